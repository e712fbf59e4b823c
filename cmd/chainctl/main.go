// Package main provides the chainctl CLI tool for inspecting chainview index
// directories.
//
// Usage:
//
//	chainctl --db=<path> <command> [options]
//
// Commands:
//
//	info                       Print index information
//	tip                        Print the validated tip
//	get <height>               Print the entry at a height
//	scan [--from N] [--limit N] List validated entries
//	lock                       Report whether a writer holds the index
//	verify                     Check the validated chain links up
//
// chainctl only ever opens a reader; it never takes the writer lock.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aalhour/chainview"
	"github.com/aalhour/chainview/internal/logging"
	"github.com/aalhour/chainview/internal/vfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type config struct {
	dbPath    string
	backend   string
	logFile   string
	logLevel  string
	useZap    bool
	showStats bool
	timeout   time.Duration
}

// run is main without os.Exit; it returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("chainctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var cfg config
	fs.StringVar(&cfg.dbPath, "db", "", "Path to the index directory (required)")
	fs.StringVar(&cfg.backend, "backend", "", "Storage backend when the directory has no OPTIONS file (log or bolt)")
	fs.StringVar(&cfg.logFile, "log-file", "", "Write logs to this file, rotated (default: stderr)")
	fs.StringVar(&cfg.logLevel, "log-level", "warn", "Log level: error, warn, info or debug")
	fs.BoolVar(&cfg.useZap, "zap", false, "Log through zap in JSON form")
	fs.BoolVar(&cfg.showStats, "stats", false, "Print reader statistics after the command")
	fs.DurationVar(&cfg.timeout, "bolt-timeout", 0, "How long to wait for a bolt writer to let go (default 100ms)")
	help := fs.Bool("help", false, "Print help")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *help || fs.NArg() == 0 {
		printUsage(stdout, fs)
		return 0
	}
	if cfg.dbPath == "" {
		fmt.Fprintln(stderr, "Error: --db flag is required")
		return 1
	}

	logger, closeLog, err := newLogger(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	command := fs.Arg(0)
	rest := fs.Args()[1:]

	cmds := map[string]func(*chainview.ChainReader, []string, io.Writer) error{
		"info":   cmdInfo,
		"tip":    cmdTip,
		"get":    cmdGet,
		"scan":   cmdScan,
		"verify": cmdVerify,
	}

	if command == "lock" {
		return report(stderr, cmdLock(cfg, stdout))
	}
	fn, ok := cmds[command]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr, fs)
		return 1
	}

	stats := chainview.NewStatistics()
	r, err := openReader(cfg, logger, stats)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer r.Close()

	code := report(stderr, fn(r, rest, stdout))
	if cfg.showStats {
		fmt.Fprint(stdout, stats.String())
	}
	return code
}

func report(stderr io.Writer, err error) int {
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "chainctl - chainview index inspection tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: chainctl --db=<path> <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  info                         Print index information")
	fmt.Fprintln(w, "  tip                          Print the validated tip")
	fmt.Fprintln(w, "  get <height>                 Print the entry at a height")
	fmt.Fprintln(w, "  scan [--from N] [--limit N]  List validated entries")
	fmt.Fprintln(w, "  lock                         Report whether a writer holds the index")
	fmt.Fprintln(w, "  verify                       Check the validated chain links up")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func newLogger(cfg config, stderr io.Writer) (logging.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = stderr
	closeOut := func() {}
	if cfg.logFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.logFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		}
		out = lj
		closeOut = func() { _ = lj.Close() }
	}

	if !cfg.useZap {
		return logging.NewLogger(out, level), closeOut, nil
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(out),
		zapLevel(level),
	)
	zl := logging.NewZapLogger(zap.New(core))
	return zl, func() {
		_ = zl.Sync()
		closeOut()
	}, nil
}

func zapLevel(l logging.Level) zapcore.Level {
	switch l {
	case logging.LevelError:
		return zapcore.ErrorLevel
	case logging.LevelInfo:
		return zapcore.InfoLevel
	case logging.LevelDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.WarnLevel
	}
}

func readerOptions(cfg config, logger logging.Logger) (*chainview.Options, error) {
	opts := chainview.DefaultOptions()
	opts.Logger = logger
	opts.BoltTimeout = cfg.timeout
	if cfg.backend != "" {
		switch b := chainview.Backend(cfg.backend); b {
		case chainview.BackendLog, chainview.BackendBolt:
			opts.Backend = b
		default:
			return nil, fmt.Errorf("unknown backend %q", cfg.backend)
		}
	}
	return opts, nil
}

func openReader(cfg config, logger logging.Logger, stats chainview.Statistics) (*chainview.ChainReader, error) {
	opts, err := readerOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	opts.Statistics = stats
	return chainview.OpenReader(cfg.dbPath, opts)
}

func cmdInfo(r *chainview.ChainReader, _ []string, w io.Writer) error {
	h, err := r.GetValidatedChain()
	if err != nil {
		return err
	}
	defer h.Release()

	fmt.Fprintf(w, "Path:          %s\n", r.Path())
	if parsed, err := chainview.ReadOptionsFile(vfs.Default(), r.Path()); err == nil {
		fmt.Fprintf(w, "Backend:       %s\n", parsed.Backend)
		fmt.Fprintf(w, "Compression:   %s\n", parsed.Compression.OptionName())
		fmt.Fprintf(w, "Checksum:      %s\n", parsed.Checksum.OptionName())
		fmt.Fprintf(w, "Written by:    chainview %s\n", parsed.ChainviewVersion)
	}
	fmt.Fprintf(w, "View:          %d\n", h.ViewID())
	fmt.Fprintf(w, "Height:        %d\n", h.Height())
	if tip := h.Tip(); tip != nil {
		fmt.Fprintf(w, "Tip:           %s\n", tip.Hash)
		fmt.Fprintf(w, "Chain work:    %s\n", tip.Work().Hex())
	}
	fmt.Fprintf(w, "Writer active: %t\n", r.WriterActive())
	return nil
}

func cmdTip(r *chainview.ChainReader, _ []string, w io.Writer) error {
	h, err := r.GetValidatedChain()
	if err != nil {
		return err
	}
	defer h.Release()

	tip := h.Tip()
	if tip == nil {
		return errors.New("no validated entries")
	}
	fmt.Fprintf(w, "%d\t%s\n", tip.Height, tip.Hash)
	return nil
}

func cmdGet(r *chainview.ChainReader, args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: get <height>")
	}
	height, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid height %q: %w", args[0], err)
	}

	h, err := r.GetValidatedChain()
	if err != nil {
		return err
	}
	defer h.Release()

	e := h.At(height)
	if e == nil {
		return fmt.Errorf("height %d is beyond the validated tip (height %d)", height, h.Height())
	}
	printEntry(w, e)
	return nil
}

func cmdScan(r *chainview.ChainReader, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	from := fs.Int("from", 0, "First height")
	limit := fs.Int("limit", 0, "Maximum entries (0 = unlimited)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	h, err := r.GetValidatedChain()
	if err != nil {
		return err
	}
	defer h.Release()

	count := 0
	h.Snapshot().ForEach(*from, func(e *chainview.Entry) bool {
		fmt.Fprintf(w, "%d\t%s\t%s\n", e.Height, e.Hash, e.Status)
		count++
		return *limit <= 0 || count < *limit
	})
	return nil
}

func cmdVerify(r *chainview.ChainReader, _ []string, w io.Writer) error {
	h, err := r.GetValidatedChain()
	if err != nil {
		return err
	}
	defer h.Release()

	s := h.Snapshot()
	var prev *chainview.Entry
	var failed error
	s.ForEach(0, func(e *chainview.Entry) bool {
		switch {
		case !e.Status.IsValid(chainview.FullyValidated):
			failed = fmt.Errorf("height %d: status %s is not fully validated", e.Height, e.Status)
		case prev != nil && e.PrevHash != prev.Hash:
			failed = fmt.Errorf("height %d: parent %s, previous entry is %s", e.Height, e.PrevHash, prev.Hash)
		case prev != nil && e.Work().Lt(prev.Work()):
			failed = fmt.Errorf("height %d: chain work decreases", e.Height)
		}
		prev = e
		return failed == nil
	})
	if failed != nil {
		return failed
	}
	fmt.Fprintf(w, "OK: %d entries verified\n", s.Height())
	return nil
}

func cmdLock(cfg config, w io.Writer) error {
	held, err := chainview.NewLockCoordinator(nil, cfg.dbPath).Probe()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Writer active: %t\n", held)
	return nil
}

func printEntry(w io.Writer, e *chainview.Entry) {
	fmt.Fprintf(w, "Height:     %d\n", e.Height)
	fmt.Fprintf(w, "Hash:       %s\n", e.Hash)
	fmt.Fprintf(w, "Prev:       %s\n", e.PrevHash)
	fmt.Fprintf(w, "Status:     %s\n", e.Status)
	fmt.Fprintf(w, "Version:    %d\n", e.Version)
	fmt.Fprintf(w, "Time:       %s\n", time.Unix(int64(e.Time), 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Bits:       %08x\n", e.Bits)
	fmt.Fprintf(w, "Nonce:      %d\n", e.Nonce)
	fmt.Fprintf(w, "Txs:        %d\n", e.TxCount)
	fmt.Fprintf(w, "Chain work: %s\n", e.Work().Hex())
	fmt.Fprintf(w, "Data:       file %d offset %d\n", e.FileNum, e.DataPos)
}
