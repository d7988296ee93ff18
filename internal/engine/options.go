package engine

// Option configures a Doc during creation.
type Option func(*Doc)

// WithClientID sets the replica id used for local changes.
// Zero is ignored and a random id is used.
func WithClientID(id uint64) Option {
	return func(d *Doc) {
		if id != 0 {
			d.clientID = id
		}
	}
}

// WithGUID sets the document GUID.
func WithGUID(guid string) Option {
	return func(d *Doc) {
		if guid != "" {
			d.guid = guid
		}
	}
}

// WithGC enables or disables garbage collection of deleted content.
// Enabled by default.
func WithGC(enabled bool) Option {
	return func(d *Doc) {
		d.gc = enabled
	}
}
