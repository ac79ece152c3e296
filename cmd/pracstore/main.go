package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pracstore/internal/backend"
	"pracstore/internal/config"
	"pracstore/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		log.Fatalf("pracstore: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("pracstore", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "path to config file")
	dataLocation := fs.String("data-location", "", "data location, e.g. local#/srv/prac (overrides config)")
	logLevel := fs.String("log-level", "", "log level (overrides config)")
	jsonOut := fs.Bool("json", false, "always print JSON")
	fs.Usage = func() { printUsage(fs) }
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Load config (TOML file, then environment)
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// CLI flags override config file and environment
	if *dataLocation != "" {
		cfg.Storage.DataLocation = *dataLocation
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := logging.Init(os.Stderr, cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(fs)
		return fmt.Errorf("%w: missing command", errUsage)
	}
	group, ok := groups[rest[0]]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, rest[0])
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	b, err := backend.Open(loc)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer b.Close()

	env := &cliEnv{
		ctx:     ctx,
		backend: b,
		out:     newPrinter(stdout, *jsonOut),
	}
	return group.dispatch(env, rest[1:])
}

func printUsage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintln(w, "Usage: pracstore [flags] <command> <subcommand> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range groupNames() {
		for _, line := range groups[name].usage(name) {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.PrintDefaults()
}
