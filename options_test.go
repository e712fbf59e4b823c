package chainview

import (
	"errors"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if !opts.CreateIfMissing {
		t.Error("CreateIfMissing should default to true")
	}
	if opts.MaxTailSize != DefaultMaxTailSize {
		t.Errorf("MaxTailSize = %d, want %d", opts.MaxTailSize, DefaultMaxTailSize)
	}
	if opts.Backend != BackendLog || opts.Compression != SnappyCompression || opts.Checksum != ChecksumXXH3 {
		t.Errorf("store defaults = %s/%s/%s", opts.Backend, opts.Compression, opts.Checksum)
	}
	if err := opts.Validate(); err != nil {
		t.Errorf("Validate(defaults) = %v", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"negative tail", func(o *Options) { o.MaxTailSize = -1 }},
		{"unknown backend", func(o *Options) { o.Backend = "rocks" }},
		{"unknown compression", func(o *Options) { o.Compression = CompressionType(99) }},
		{"unknown checksum", func(o *Options) { o.Checksum = ChecksumType(99) }},
		{"negative bolt timeout", func(o *Options) { o.BoltTimeout = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(opts)
			if err := opts.Validate(); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("Validate = %v, want ErrInvalidOptions", err)
			}
		})
	}
}

func TestOptionsSanitized(t *testing.T) {
	var nilOpts *Options
	s := nilOpts.sanitized()
	if s.FS == nil || s.Logger == nil || s.MaxTailSize != DefaultMaxTailSize {
		t.Errorf("sanitized(nil) left fields unset: %+v", s)
	}

	opts := &Options{}
	s = opts.sanitized()
	if s.Backend != BackendLog || s.BoltTimeout <= 0 {
		t.Errorf("sanitized(zero) = backend %q timeout %s", s.Backend, s.BoltTimeout)
	}
	if opts.Backend != "" {
		t.Error("sanitized modified its receiver")
	}

	so := s.storeOptions(BackendBolt, true)
	if so.Backend != BackendBolt || !so.ReadOnly || so.FS != s.FS {
		t.Errorf("storeOptions = %+v", so)
	}
}
