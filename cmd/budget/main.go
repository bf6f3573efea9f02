// Command budget is the command-line client for the project cost estimator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/config"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/pkg/logging"
)

func main() {
	plain := flag.Bool("plain", false, "Print raw markdown instead of rendering it")

	cfg := config.LoadClient()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(subcommands.ExitUsageError))
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	e := &env{
		cfg:    cfg,
		logger: logging.Setup(cfg.LogLevel),
		out:    printer{out: os.Stdout},
		errOut: os.Stderr,
	}
	register(commander, e)

	flag.Parse()
	e.out.plain = *plain

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
