// Command amqp010dump decodes captured AMQP 0-10 and 0-9 connection bytes
// and prints the decoded frames.
//
// Each capture file holds the raw bytes of one direction of one
// connection. Files are decoded in parallel and printed in argument order.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"pack.ag/amqp010"
)

type cliFlags struct {
	configPath         string
	format             string
	xorWidth           bool
	maxDepth           int
	maxLegacyFrameSize int
	verbose            bool
}

func newFlagSet(f *cliFlags, handling flag.ErrorHandling) *flag.FlagSet {
	fs := flag.NewFlagSet("amqp010dump", handling)
	fs.StringVar(&f.configPath, "config", "", "TOML config file")
	fs.StringVar(&f.format, "format", formatText, "output format: text or json")
	fs.BoolVar(&f.xorWidth, "xor-width", true, "size unknown fixed-width types with the legacy XOR arithmetic")
	fs.IntVar(&f.maxDepth, "max-depth", 32, "maximum composite nesting depth")
	fs.IntVar(&f.maxLegacyFrameSize, "max-legacy-frame-size", 1<<20, "clamp for 0-9 frame payload lengths")
	fs.BoolVar(&f.verbose, "v", false, "debug logging to stderr")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: amqp010dump [flags] capture...\n")
		fs.PrintDefaults()
	}
	return fs
}

// override copies the flags given on the command line over cfg.
func (f *cliFlags) override(fs *flag.FlagSet, cfg *config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "format":
			cfg.format = f.format
		case "xor-width":
			cfg.opts.LegacyXORWidth = f.xorWidth
		case "max-depth":
			cfg.opts.MaxDepth = f.maxDepth
		case "max-legacy-frame-size":
			cfg.opts.MaxLegacyFrameSize = f.maxLegacyFrameSize
		}
	})
}

func main() {
	var f cliFlags
	fs := newFlagSet(&f, flag.ExitOnError)
	fs.Parse(os.Args[1:])

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "amqp010dump: %v\n", err)
		os.Exit(2)
	}

	f.override(fs, &cfg)
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "amqp010dump: %v\n", err)
		os.Exit(2)
	}

	log := zap.NewNop()
	if f.verbose {
		log, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "amqp010dump: %v\n", err)
			os.Exit(2)
		}
	}
	defer log.Sync()

	failed := false
	for _, r := range decodeFiles(fs.Args(), cfg.opts, log) {
		if r.err != nil {
			failed = true
		}

		if err := render(os.Stdout, cfg.format, r); err != nil {
			fmt.Fprintf(os.Stderr, "amqp010dump: %s: %v\n", r.path, err)
			failed = true
		}
	}

	if failed {
		log.Sync()
		os.Exit(1)
	}
}

type result struct {
	path   string
	frames []*amqp010.Frame
	err    error
}

// decodeFiles decodes each capture on its own Conn. Results are returned
// in the order of paths.
func decodeFiles(paths []string, opts amqp010.Options, log *zap.Logger) []result {
	results := make([]result, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			results[i] = decodeFile(path, opts, log.With(zap.String("capture", path)))
		}(i, path)
	}
	wg.Wait()

	return results
}

func decodeFile(path string, opts amqp010.Options, log *zap.Logger) result {
	r := result{path: path}

	buf, err := os.ReadFile(path)
	if err != nil {
		r.err = err
		return r
	}

	c, err := amqp010.NewConn(amqp010.ConnOptions(opts), amqp010.ConnLogger(log))
	if err != nil {
		r.err = err
		return r
	}

	r.frames, r.err = c.Decode(buf)
	log.Debug("capture decoded",
		zap.Int("bytes", len(buf)),
		zap.Int("frames", len(r.frames)),
		zap.Stringer("dialect", c.Dialect()),
	)
	return r
}
