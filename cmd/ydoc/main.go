// Package main is the entry point for the ydoc script runner.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dshills/ydoc/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, script := parseFlags()

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	var in io.Reader = os.Stdin
	if script != "" && script != "-" {
		f, err := os.Open(script)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	if err := application.Run(in); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() (app.Options, string) {
	var opts app.Options
	var showVersion bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (.toml, .yaml)")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.FilterPath, "filter", "", "Lua delete filter script")
	flag.BoolVar(&opts.JSON, "json", false, "Print the JSON state report when the script ends")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ydoc - run edit scripts against a replicated document with undo\n\n")
		fmt.Fprintf(os.Stderr, "Usage: ydoc [options] [script]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nScript commands:\n")
		fmt.Fprintf(os.Stderr, "  text|map|array <root>        declare a tracked root\n")
		fmt.Fprintf(os.Stderr, "  insert <root> <index> <v>    insert text or a JSON value\n")
		fmt.Fprintf(os.Stderr, "  delete <root> <index> <n>    delete n elements\n")
		fmt.Fprintf(os.Stderr, "  set|unset <root> <key> [v]   write or remove a map entry\n")
		fmt.Fprintf(os.Stderr, "  remote-insert, remote-set    the same edits made by a peer\n")
		fmt.Fprintf(os.Stderr, "  origin <name|->              origin of following local edits\n")
		fmt.Fprintf(os.Stderr, "  stop, undo, redo, clear      undo manager controls\n")
		fmt.Fprintf(os.Stderr, "  print [root], state          show text or the JSON report\n")
		fmt.Fprintf(os.Stderr, "  snapshot <name>, diff <name> journal checkpoints\n")
		fmt.Fprintf(os.Stderr, "  metrics                      Prometheus text output\n")
		fmt.Fprintf(os.Stderr, "\nThe script is read from stdin when omitted or \"-\".\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("ydoc %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	return opts, flag.Arg(0)
}
