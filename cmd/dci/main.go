// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command dci runs the bundled bank interactions against a configured
// runtime and inspects its wiring and journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jllopis/dci/pkg/config"
)

var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	JSON       bool
	YAML       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global, args, err := parseGlobalFlags(argv)
	if err != nil {
		return fail(stderr, NewInvalidArgumentError("flags", err.Error()), false)
	}
	if global.Help || len(args) == 0 {
		printUsage(stdout)
		return exitOK
	}

	switch args[0] {
	case "help":
		printUsage(stdout)
		return exitOK
	case "version":
		fmt.Fprintln(stdout, version)
		return exitOK
	}

	load := func() (*config.Config, error) { return config.LoadWithCLI(global.ConfigArgs) }
	cfg, err := load()
	if err != nil {
		return fail(stderr, NewConfigError(err, global.ConfigPath), global.JSON)
	}
	a, err := newApp(cfg, stderr)
	if err != nil {
		return fail(stderr, WrapRunError(err), global.JSON)
	}
	defer func() { _ = a.Close(context.Background()) }()

	out := newPrinter(stdout, global)
	switch args[0] {
	case "transfer":
		err = runTransfer(ctx, a, out, args[1:])
	case "describe":
		err = runDescribe(a, out, args[1:])
	case "journal":
		err = runJournal(ctx, a, out, args[1:])
	case "session":
		err = runSession(ctx, a, out, stdin, global.ConfigPath, load, args[1:])
	default:
		err = NewInvalidArgumentError(args[0], fmt.Sprintf("unknown command %q", args[0]))
	}
	if err != nil {
		return fail(stderr, WrapRunError(err), global.JSON)
	}
	return exitOK
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags.done(args[i+1:])
		}
		if !strings.HasPrefix(arg, "-") {
			return flags.done(args[i:])
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--yaml":
			flags.YAML = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigPath = args[i+1]
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --set")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags.done(nil)
}

func (f globalFlags) done(rest []string) (globalFlags, []string, error) {
	if f.JSON && f.YAML {
		return f, nil, fmt.Errorf("--json and --yaml are mutually exclusive")
	}
	return f, rest, nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError(fs.Name(), err.Error())
	}
	if fs.NArg() > 0 {
		return NewInvalidArgumentError(fs.Name(), fmt.Sprintf("unexpected args: %v", fs.Args()))
	}
	return nil
}

func fail(w io.Writer, err *CLIError, asJSON bool) int {
	err.PrintError(w, asJSON)
	return err.ExitCode()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `dci: role dispatch runtime

Usage:
  dci [global flags] <command> [args]

Global flags:
  --config <path>      Path to a YAML config file
  --set key=value      Override config (repeatable)
  --json               JSON output
  --yaml               YAML output

Commands:
  transfer [--from N] [--to N] [--amount N] [--source plain|fee] [--sink plain|fee] [--repeat N]
  describe
  journal [--usecase NAME] [--status ok|failed] [--interaction ID] [--limit N]
  session [--from N] [--to N] [--source plain|fee] [--sink plain|fee] [--poll D]
      reads "transfer <amount>", "balances", "reload" and "quit" from stdin;
      with --config, file changes to log, dispatch and example apply live
  version
  help

Environment:
  DCI_<SECTION>_<KEY>  e.g. DCI_JOURNAL_DRIVER=sqlite DCI_JOURNAL_DSN=file:dci.db`)
}
