// Command mohyung snapshots node_modules into a single SQLite file and
// restores or diffs against it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"

	"github.com/cbcruk/mohyung/internal/config"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globals are the flags accepted before and after every subcommand.
type globals struct {
	configPath string
	verbose    bool
	quiet      bool
}

// addFlags binds the global flags to g. Values already parsed are kept as
// defaults, so globals given before the subcommand survive its parse.
func (g *globals) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&g.configPath, "config", g.configPath, "path to a YAML config file (default: $"+config.EnvVar+")")
	fs.BoolVarP(&g.verbose, "verbose", "v", g.verbose, "log debug detail and list every changed file")
	fs.BoolVarP(&g.quiet, "quiet", "q", g.quiet, "only log errors")
}

func (g *globals) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case g.quiet:
		level = slog.LevelError
	case g.verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// app carries what every subcommand needs.
type app struct {
	globals
	cfg    *config.Config
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"pack", "Pack node_modules into an archive", runPack},
	{"unpack", "Restore node_modules from an archive", runUnpack},
	{"status", "Compare an archive with the current node_modules", runStatus},
	{"info", "Show archive metadata", runInfo},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}

	fs := pflag.NewFlagSet("mohyung", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	a.addFlags(fs)
	showVersion := fs.Bool("version", false, "print the version and exit")
	fs.BoolP("help", "h", false, "show help")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "mohyung %s\n", version)
		return nil
	}
	if help, _ := fs.GetBool("help"); help || fs.NArg() == 0 {
		printUsage(stderr, fs)
		return nil
	}

	name := fs.Arg(0)
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		err := cmd.run(ctx, a, fs.Args()[1:])
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown command %q (run 'mohyung --help' for usage)", name)
}

// parse parses subcommand flags and loads the configuration they name.
func (a *app) parse(fs *pflag.FlagSet, args []string) error {
	fs.SetOutput(a.stderr)
	a.addFlags(fs)
	fs.BoolP("help", "h", false, "show help")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if help, _ := fs.GetBool("help"); help {
		fmt.Fprintf(a.stderr, "Usage:\n  mohyung %s [flags]\n\nFlags:\n%s", fs.Name(), fs.FlagUsages())
		return pflag.ErrHelp
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = a.logger(a.stderr)
	return nil
}

func printUsage(w io.Writer, fs *pflag.FlagSet) {
	var b strings.Builder
	b.WriteString("Snapshot and restore node_modules as a single SQLite file.\n\n")
	b.WriteString("Usage:\n  mohyung [flags] <command> [command flags]\n\nCommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(&b, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	b.WriteString("\nFlags:\n")
	b.WriteString(fs.FlagUsages())
	fmt.Fprint(w, b.String())
}
