// Command protogen compiles protocol descriptions.
//
// Usage:
//
//	protogen generate [flags] <source> <dest>
//	protogen check [flags] <source>
//	protogen explore [flags] <source>
//
// Settings may come from a TOML file given with -config; flags set on the
// command line override it.
package main

import (
	"os"

	"github.com/maruel/subcommands"
)

var application = &subcommands.DefaultApplication{
	Name:  "protogen",
	Title: "Protocol description compiler.",
	Commands: []*subcommands.Command{
		subcommands.CmdHelp,
		cmdGenerate,
		cmdCheck,
		cmdExplore,
	},
}

func main() {
	os.Exit(subcommands.Run(application, nil))
}
