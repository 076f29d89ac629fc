package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"Narrator/internal/cli/commands"
	"Narrator/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	// -h печатает список команд, а затем флаги
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprint(out, commands.FormatGlobalUsage())
		fmt.Fprintln(out, "\nFlags:")
		flag.PrintDefaults()
	}

	// Load unified config (env + flags)
	cfg := config.NewConfig()

	if cfg.Version {
		printVersion()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// dispatcher
	exitCode := commands.Dispatch(ctx, cfg, flag.Args())
	if exitCode == 0 {
		return
	}
	os.Exit(exitCode)
}

func printVersion() {
	fmt.Printf("Narrator CLI\nVersion: %s\nBuild date: %s\n", version, buildDate)
}
