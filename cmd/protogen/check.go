package main

import (
	"io"

	"github.com/maruel/subcommands"

	"github.com/wippyai/protogen/errors"
)

var cmdCheck = &subcommands.Command{
	UsageLine: "check [flags] <source>",
	ShortDesc: "compiles a protocol description and prints its size report",
	LongDesc: `Compiles a protocol description and prints, per channel direction, the
message id range and every message's wire and memory size. Variable sizes
are shown as their formulas.`,
	CommandRun: func() subcommands.CommandRun {
		c := &checkRun{}
		c.Init()
		return c
	},
}

type checkRun struct {
	commonFlags
}

func (c *checkRun) Parse(args []string) error {
	if err := c.commonFlags.Parse(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.InvalidInput(errors.PhaseConfig, "expected exactly one protocol file")
	}
	return nil
}

func (c *checkRun) Run(a subcommands.Application, args []string, _ subcommands.Env) int {
	if err := c.Parse(args); err != nil {
		return report(a, err)
	}
	defer c.close()
	if err := c.main(a.GetOut(), args[0]); err != nil {
		return report(a, err)
	}
	return 0
}

func (c *checkRun) main(out io.Writer, source string) error {
	res, err := c.compile(source)
	if err != nil {
		return err
	}
	msgs, err := catalogue(res)
	if err != nil {
		return err
	}
	writeReport(out, res, msgs)
	return nil
}
