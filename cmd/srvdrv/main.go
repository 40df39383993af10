// srvdrv lists and controls the services and drivers of the local system.
//
// Subcommands:
//
//	list                      list units, filtered by --services, --drivers and --search
//	show NAME                 describe one unit and its process
//	start|stop|pause|continue NAME
//	                          run a lifecycle transition and wait for it
//	tui                       interactive control panel
//	version                   print version information
//
// With --demo every subcommand runs against a small in-memory system.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/axondata/go-srvdrv"
)

// exitError carries a process exit code for a failed transition
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func (e *exitError) ExitCode() int { return e.code }

func main() {
	zerolog.ErrorFieldName = "err"

	if err := run(os.Args[1:], os.Stdout); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			if msg := err.Error(); msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the parsed command line flags
type options struct {
	configPath string
	envFile    string
	demo       bool
	logLevel   string
	services   bool
	drivers    bool
	search     string
	long       bool

	flags *pflag.FlagSet
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "srvdrv.yaml"
	}
	return filepath.Join(dir, "srvdrv", "config.yaml")
}

func parseFlags(args []string) (*options, []string, error) {
	opts := &options{}

	flagSet := pflag.NewFlagSet("srvdrv", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "configuration file")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	flagSet.BoolVar(&opts.demo, "demo", false, "use the in-memory demo system")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flagSet.BoolVar(&opts.services, "services", true, "show services")
	flagSet.BoolVar(&opts.drivers, "drivers", true, "show drivers")
	flagSet.StringVarP(&opts.search, "search", "s", "", "case-insensitive name or display name search")
	flagSet.BoolVarP(&opts.long, "long", "l", false, "list start mode and process ID")
	flagSet.BoolP("help", "h", false, "show help")
	flagSet.Usage = func() { printHelp(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}
	opts.flags = flagSet

	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil, nil, pflag.ErrHelp
	}
	return opts, flagSet.Args(), nil
}

// criteria applies the filter flags given on the command line over base
func (o *options) criteria(base srvdrv.Criteria) srvdrv.Criteria {
	if o.flags.Changed("services") {
		base.ShowServices = o.services
	}
	if o.flags.Changed("drivers") {
		base.ShowDrivers = o.drivers
	}
	if o.flags.Changed("search") {
		base.SearchText = o.search
	}
	return base
}

func run(args []string, stdout io.Writer) error {
	opts, rest, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if len(rest) == 0 {
		rest = []string{"list"}
	}
	name, rest := rest[0], rest[1:]

	if name == "version" {
		v := srvdrv.GetVersion()
		fmt.Fprintf(stdout, "srvdrv %s (backends: %v)\n", v.Version, v.Backends)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, opts, name == "tui")
	if err != nil {
		return err
	}
	defer a.close()

	switch name {
	case "list", "ls":
		return cmdList(ctx, a, stdout)
	case "show":
		target, err := oneArg(name, rest)
		if err != nil {
			return err
		}
		return cmdShow(ctx, a, target, stdout)
	case "tui":
		return cmdTUI(ctx, a)
	}

	op := srvdrv.ParseOperation(name)
	cmd, ok := srvdrv.CommandFor(op)
	if !ok {
		return fmt.Errorf("unknown command %q (try --help)", name)
	}
	target, err := oneArg(name, rest)
	if err != nil {
		return err
	}
	return cmdLifecycle(ctx, a, cmd, target, stdout)
}

func oneArg(cmd string, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s: expected exactly one unit name", cmd)
	}
	return args[0], nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `srvdrv lists and controls services and drivers.

Usage:
  srvdrv [flags] list
  srvdrv [flags] show NAME
  srvdrv [flags] start|stop|pause|continue NAME
  srvdrv [flags] tui
  srvdrv version

Flags:
%s
Configuration is read from --config, then --env-file, then SRVDRV_*
environment variables.
`, flagSet.FlagUsages())
}
