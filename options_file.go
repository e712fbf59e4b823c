package chainview

// options_file.go implements OPTIONS file persistence.
//
// The writer records the settings an index was created with so readers can
// find the storage backend without being told. The file is INI:
//
//	[Version]
//	chainview_version    = 1.0.0
//	options_file_version = 1
//
//	[StoreOptions]
//	backend          = log
//	compression      = snappy
//	checksum         = xxh3
//	verify_checksums = true
//
//	[ChainOptions]
//	max_tail_size = 1024

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/aalhour/chainview/internal/blockstore"
	"github.com/aalhour/chainview/internal/checksum"
	"github.com/aalhour/chainview/internal/compression"
	"github.com/aalhour/chainview/internal/logging"
)

const (
	// Version is the chainview release written to OPTIONS files.
	Version = "1.0.0"

	// OptionsFileVersion is the current options file format version.
	OptionsFileVersion = 1

	// OptionsFileName is the name of the OPTIONS file in an index directory.
	OptionsFileName = "OPTIONS"
)

// ParsedOptions represents options parsed from an OPTIONS file.
type ParsedOptions struct {
	ChainviewVersion   string
	OptionsFileVersion int
	Backend            Backend
	Compression        CompressionType
	Checksum           ChecksumType
	VerifyChecksums    bool
	MaxTailSize        int
}

// WriteOptionsFile atomically writes opts to dir/OPTIONS: it writes a temp
// file, syncs it, renames it into place and syncs the directory.
func WriteOptionsFile(fs FS, dir string, opts *Options) error {
	cfg := ini.Empty()

	version := cfg.Section("Version")
	version.Key("chainview_version").SetValue(Version)
	version.Key("options_file_version").SetValue(strconv.Itoa(OptionsFileVersion))

	store := cfg.Section("StoreOptions")
	store.Key("backend").SetValue(string(opts.Backend))
	store.Key("compression").SetValue(opts.Compression.OptionName())
	store.Key("checksum").SetValue(opts.Checksum.OptionName())
	store.Key("verify_checksums").SetValue(strconv.FormatBool(opts.VerifyChecksums))

	chain := cfg.Section("ChainOptions")
	chain.Key("max_tail_size").SetValue(strconv.Itoa(opts.MaxTailSize))

	path := filepath.Join(dir, OptionsFileName)
	tmp := path + ".tmp"
	file, err := fs.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := cfg.WriteTo(file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	if err := fs.Rename(tmp, path); err != nil {
		return err
	}
	return fs.SyncDir(dir)
}

// ReadOptionsFile reads and parses dir/OPTIONS.
func ReadOptionsFile(fs FS, dir string) (*ParsedOptions, error) {
	file, err := fs.Open(filepath.Join(dir, OptionsFileName))
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return ParseOptionsFile(file)
}

// ParseOptionsFile parses options from a reader. Missing keys keep their
// DefaultOptions values.
func ParseOptionsFile(r io.Reader) (*ParsedOptions, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse OPTIONS: %v", ErrInvalidOptions, err)
	}

	def := DefaultOptions()
	parsed := &ParsedOptions{
		Backend:         def.Backend,
		Compression:     def.Compression,
		Checksum:        def.Checksum,
		VerifyChecksums: def.VerifyChecksums,
		MaxTailSize:     def.MaxTailSize,
	}

	version := cfg.Section("Version")
	parsed.ChainviewVersion = version.Key("chainview_version").String()
	parsed.OptionsFileVersion = version.Key("options_file_version").MustInt(0)
	if parsed.OptionsFileVersion > OptionsFileVersion {
		return nil, fmt.Errorf("%w: options file version %d is newer than %d",
			ErrInvalidOptions, parsed.OptionsFileVersion, OptionsFileVersion)
	}

	store := cfg.Section("StoreOptions")
	if store.HasKey("backend") {
		b, err := blockstore.ParseBackend(store.Key("backend").String())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		parsed.Backend = b
	}
	if store.HasKey("compression") {
		c, err := compression.ParseType(store.Key("compression").String())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		parsed.Compression = c
	}
	if store.HasKey("checksum") {
		c, err := checksum.ParseType(store.Key("checksum").String())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
		parsed.Checksum = c
	}
	parsed.VerifyChecksums = store.Key("verify_checksums").MustBool(parsed.VerifyChecksums)

	chain := cfg.Section("ChainOptions")
	parsed.MaxTailSize = chain.Key("max_tail_size").MustInt(parsed.MaxTailSize)
	if parsed.MaxTailSize <= 0 {
		return nil, fmt.Errorf("%w: max_tail_size %d", ErrInvalidOptions, parsed.MaxTailSize)
	}
	return parsed, nil
}

// resolveBackend returns the backend recorded in dir/OPTIONS, or fallback
// when the file is absent.
func resolveBackend(fs FS, dir string, fallback Backend, logger logging.Logger) (Backend, error) {
	if !fs.Exists(filepath.Join(dir, OptionsFileName)) {
		return fallback, nil
	}
	parsed, err := ReadOptionsFile(fs, dir)
	if err != nil {
		return "", err
	}
	if parsed.Backend != fallback {
		logger.Debugf("%s%s records backend %s", logging.NSOptions, dir, parsed.Backend)
	}
	return parsed.Backend, nil
}
