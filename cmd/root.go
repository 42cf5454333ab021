package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/liuq/nbgrader/internal/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	debug      bool
	courseRoot string
	courseID   string
	dbURL      string
}

// NewRootCmd builds the nbgrader command tree.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "nbgrader",
		Short:         "nbgrader: course management for notebook assignments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Path to nbgrader_config.json or nbgrader_config.yaml")
	pf.StringVar(&g.logLevel, "log-level", "INFO", "Application log level (DEBUG, INFO, WARN, ERROR)")
	pf.BoolVar(&g.debug, "debug", false, "set log level to DEBUG (maximize logging output)")
	pf.StringVar(&g.courseRoot, "course-root", ".", "Course root directory")
	pf.StringVar(&g.courseID, "course-id", "", "Course id in the gradebook")
	pf.StringVar(&g.dbURL, "db-url", "", "Gradebook URL (default sqlite:///{course-root}/gradebook.db)")

	root.AddCommand(newZipReleaseFeedbackCmd(g))
	root.AddCommand(newDBCmd(g))
	return root
}

// settings resolves defaults, the config file and explicit flags, then
// installs the logger for the run.
func (g *globalFlags) settings(cmd *cobra.Command) (config.Settings, error) {
	s := config.Defaults()

	path := g.configPath
	if path == "" {
		path = config.Find(".")
	}
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return s, err
		}
		if err := s.Apply(cfg); err != nil {
			return s, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		lvl, err := config.ParseLevel(g.logLevel)
		if err != nil {
			return s, err
		}
		s.LogLevel = lvl
	}
	if g.debug {
		s.LogLevel = slog.LevelDebug
	}
	if flags.Changed("course-root") {
		s.Course.Root = g.courseRoot
	}
	if flags.Changed("course-id") {
		s.Course.CourseID = g.courseID
	}
	if flags.Changed("db-url") {
		s.Course.DBURL = g.dbURL
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: s.LogLevel})))
	return s, nil
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[nbgrader] %v\n", err)
		stop()
		os.Exit(1)
	}
}
