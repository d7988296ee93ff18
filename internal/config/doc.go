// Package config loads ydoc settings.
//
// Settings come from three layers, later layers overriding earlier ones:
//
//	┌─────────────────────────────┐
//	│  3. Environment (YDOC_*)    │  ← Highest priority
//	├─────────────────────────────┤
//	│  2. Config file             │  ← ydoc.toml or ydoc.yaml
//	├─────────────────────────────┤
//	│  1. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Example ydoc.toml:
//
//	[document]
//	client_id = 7
//
//	[history]
//	capture_timeout = "500ms"
//	tracked_tags = ["local"]
//	max_entries = 100
//	delete_filter = '''
//	function filter(item) return item.kind ~= "type" end
//	'''
//
// Load merges the layers and validates the result:
//
//	cfg, err := config.Load(config.WithFile("ydoc.toml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, _ := cfg.History.ManagerOptions()
//
// Parse failures are reported as *ParseError, bad values as
// *ValidationError or *TypeError; all of them can be matched with
// errors.As.
package config
