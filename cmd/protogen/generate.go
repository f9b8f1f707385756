package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maruel/subcommands"
	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/gen"
)

var cmdGenerate = &subcommands.Command{
	UsageLine: "generate [flags] <source> <dest>",
	ShortDesc: "generates Go artifacts or WIT from a protocol description",
	LongDesc: `Compiles a protocol description and writes the selected artifacts to dest.

Demarshallers and marshallers need at least one of -s or -c. With -k an
unchanged dest is left untouched; with -diff nothing is written and the
unified diff against dest is printed instead.`,
	CommandRun: func() subcommands.CommandRun {
		c := &generateRun{}
		c.Init()
		c.Flags.BoolVar(&c.enums, "e", false, "generate enums")
		c.Flags.BoolVar(&c.demarshallers, "d", false, "generate demarshallers")
		c.Flags.BoolVar(&c.marshallers, "m", false, "generate message marshallers")
		c.Flags.BoolVar(&c.private, "P", false, "generate private message marshallers")
		c.Flags.Var(&c.structs, "M", "generate a marshaller for the named struct (repeatable)")
		c.Flags.BoolVar(&c.server, "s", false, "generate the server side")
		c.Flags.BoolVar(&c.client, "c", false, "generate the client side")
		c.Flags.BoolVar(&c.keep, "k", false, "keep dest untouched when its content is unchanged")
		c.Flags.StringVar(&c.pkg, "package", gen.DefaultPackage, "package clause of the generated file")
		c.Flags.BoolVar(&c.diff, "diff", false, "print a unified diff against dest instead of writing it")
		c.Flags.BoolVar(&c.wit, "wit", false, "write the message catalogue as WIT instead of Go")
		return c
	},
}

// stringsFlag collects the values of a repeatable flag.
type stringsFlag []string

func (s *stringsFlag) String() string { return strings.Join(*s, ",") }

func (s *stringsFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type generateRun struct {
	commonFlags
	enums, demarshallers, marshallers, private bool
	structs                                    stringsFlag
	server, client                             bool
	keep, diff, wit                            bool
	pkg                                        string
}

func (c *generateRun) Parse(args []string) error {
	if err := c.commonFlags.Parse(); err != nil {
		return err
	}
	c.Flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "e":
			c.cfg.Artifacts.Enums = c.enums
		case "d":
			c.cfg.Artifacts.Demarshallers = c.demarshallers
		case "m":
			c.cfg.Artifacts.Marshallers = c.marshallers
		case "P":
			c.cfg.Private = c.private
		case "M":
			c.cfg.Artifacts.Structs = c.structs
		case "s":
			c.cfg.Server = c.server
		case "c":
			c.cfg.Client = c.client
		case "package":
			c.cfg.Package = c.pkg
		}
	})
	c.cfg.Artifacts.Server = c.cfg.Server
	c.cfg.Artifacts.Client = c.cfg.Client

	switch len(args) {
	case 0:
		return errors.InvalidInput(errors.PhaseConfig, "no protocol file specified")
	case 1:
		return errors.InvalidInput(errors.PhaseConfig, "no destination file specified")
	case 2:
		return nil
	}
	return errors.InvalidInput(errors.PhaseConfig, "too many arguments")
}

func (c *generateRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if err := c.Parse(args); err != nil {
		return report(a, err)
	}
	defer c.close()
	if err := c.main(a.GetOut(), args[0], args[1]); err != nil {
		return report(a, err)
	}
	return 0
}

func (c *generateRun) main(out io.Writer, source, dest string) error {
	res, err := c.compile(source)
	if err != nil {
		return err
	}
	g := gen.New(res, gen.Options{
		Package: c.cfg.Package,
		Prefix:  c.cfg.Prefix,
		Private: c.cfg.Private,
	})

	var content []byte
	if c.wit {
		text, err := g.WIT()
		if err != nil {
			return err
		}
		content = []byte(text)
	} else if content, err = g.Generate(c.cfg.Artifacts); err != nil {
		return err
	}

	old, err := os.ReadFile(dest)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", dest, err)
	}

	if c.diff {
		return writeDiff(out, dest, string(old), string(content))
	}
	if c.keep && exists && bytes.Equal(old, content) {
		fmt.Fprintf(out, "No changes to %s\n", dest)
		return nil
	}
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	c.log.Debug("wrote artifacts", zap.String("dest", dest), zap.Int("bytes", len(content)))
	fmt.Fprintf(out, "Wrote %s\n", dest)
	return nil
}

// writeDiff prints the unified diff turning old into content, or the
// no-change notice when they are equal.
func writeDiff(out io.Writer, dest, old, content string) error {
	if old == content {
		fmt.Fprintf(out, "No changes to %s\n", dest)
		return nil
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(content),
		FromFile: dest,
		ToFile:   dest + " (generated)",
		Context:  3,
		Eol:      "\n",
	})
	if err != nil {
		return fmt.Errorf("diff %s: %w", dest, err)
	}
	_, err = io.WriteString(out, diff)
	return err
}
