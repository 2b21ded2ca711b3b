package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	serveradapter "github.com/hylla/nexus/internal/adapters/server"
	"github.com/hylla/nexus/internal/platform"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

// program is the part of tea.Program the board command drives.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the board program. Tests swap it for a scripted one.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := loadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "warning:", err)
	}
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// run builds the command tree and executes args against it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// cli carries the parsed persistent flags and output streams to every subcommand.
type cli struct {
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}
	defaultDevMode := version == "dev"
	if v, ok := parseBoolEnv(envDevMode); ok {
		defaultDevMode = v
	}

	root := &cobra.Command{
		Use:           platform.AppName,
		Short:         "Multi-tenant project and task hub",
		Long:          "nexus manages workspaces, projects, and task trees, and serves them over REST and MCP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.configPath, "config", "", "path to config TOML (env "+envConfig+")")
	flags.StringVar(&c.opts.dbPath, "db", "", "path to sqlite database (env "+envDBPath+")")
	flags.StringVar(&c.opts.appName, "app", envOr(envAppName, platform.AppName), "application name for config/data path resolution")
	flags.BoolVar(&c.opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		c.newServeCommand(),
		c.newInitCommand(),
		c.newPathsCommand(),
		c.newProjectsCommand(),
		c.newTasksCommand(),
		c.newTaskCommand(),
		c.newWorkloadCommand(),
		c.newBoardCommand(),
	)
	return root
}

// open resolves config and opens a runtime for one command.
func (c *cli) open(eo envOptions) (*runtimeEnv, error) {
	rc, err := resolveConfig(c.opts)
	if err != nil {
		return nil, err
	}
	return openRuntime(rc, c.stderr, eo)
}

// parseBoolEnv reports the parsed value of a boolean env var and whether it was set.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
