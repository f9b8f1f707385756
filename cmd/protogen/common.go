package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/maruel/subcommands"
	"go.uber.org/zap"

	"github.com/wippyai/protogen"
	"github.com/wippyai/protogen/codec"
	"github.com/wippyai/protogen/gen"
	"github.com/wippyai/protogen/model"
)

// commonFlags are shared by every subcommand that compiles a source.
type commonFlags struct {
	subcommands.CommandRunBase
	configPath string
	verbose    bool
	ptrSize    int
	byteOrder  string
	prefix     string
	allowDup   bool

	cfg config
	log *zap.Logger
}

func (c *commonFlags) Init() {
	c.Flags.StringVar(&c.configPath, "config", "", "TOML file with default settings")
	c.Flags.BoolVar(&c.verbose, "v", false, "log compiler progress to stderr")
	c.Flags.IntVar(&c.ptrSize, "ptrsize", 4, "pointer width in bytes, 4 or 8")
	c.Flags.StringVar(&c.byteOrder, "byte-order", "little", "wire byte order, little or big")
	c.Flags.StringVar(&c.prefix, "prefix", "", "prefix of generated identifiers")
	c.Flags.BoolVar(&c.allowDup, "allow-duplicate-ids", false, "warn instead of failing on duplicate message ids")
}

// Parse loads the config file and applies the flags set on the command
// line over it.
func (c *commonFlags) Parse() error {
	cfg := defaultConfig()
	if c.configPath != "" {
		var err error
		if cfg, err = loadConfig(c.configPath); err != nil {
			return err
		}
	}

	var parseErr error
	c.Flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ptrsize":
			cfg.Compile.PointerWidth = c.ptrSize
		case "byte-order":
			big, err := parseByteOrder(c.byteOrder)
			if err != nil {
				parseErr = err
			}
			cfg.Compile.BigEndian = big
		case "prefix":
			cfg.Prefix = c.prefix
		case "allow-duplicate-ids":
			cfg.Compile.AllowDuplicateIDs = c.allowDup
		}
	})
	if parseErr != nil {
		return parseErr
	}
	c.cfg = cfg
	return c.installLogger()
}

func (c *commonFlags) installLogger() error {
	if !c.verbose {
		c.log = zap.NewNop()
		return nil
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	c.log = l
	model.SetLogger(l.Named("model"))
	codec.SetLogger(l.Named("codec"))
	gen.SetLogger(l.Named("gen"))
	return nil
}

func (c *commonFlags) compile(path string) (*protogen.Result, error) {
	res, err := protogen.CompileFile(context.Background(), path, c.cfg.Compile)
	if err != nil {
		return nil, err
	}
	c.log.Debug("compiled protocol",
		zap.String("source", path),
		zap.String("protocol", res.Protocol.Name),
		zap.Int("plans", res.Plans.Len()))
	return res, nil
}

func (c *commonFlags) close() {
	if c.log != nil {
		_ = c.log.Sync()
	}
}

func report(a subcommands.Application, err error) int {
	fmt.Fprintf(a.GetErr(), "%s: %s\n", a.GetName(), err)
	return 1
}
