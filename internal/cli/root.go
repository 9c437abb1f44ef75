// Package cli: командная строка vkomment.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/G1P0/vkomment/internal/config"
	"github.com/G1P0/vkomment/internal/credential"
	"github.com/G1P0/vkomment/internal/logging"
	"github.com/G1P0/vkomment/internal/poller"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// app: состояние одного запуска (флаги, конфиг, логгер).
type app struct {
	configPath    string
	dbPath        string
	verbosity     int
	alwaysSuccess bool

	token     string
	noKeyring bool
	group     string

	wait waitFlags

	cfg *config.Config
	log *zap.Logger

	now        func() time.Time
	pollerOpts []poller.Option
	stdout     io.Writer
}

func newApp() *app {
	log, err := logging.New(0)
	if err != nil {
		log = zap.NewNop()
	}
	return &app{
		log:    log,
		now:    time.Now,
		stdout: os.Stdout,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "vkomment",
		Short: "Wait for new VK post in a group and post new comment ASAP",
		Long: "vkomment sleeps until the expected time, polls the group wall until a fresh post " +
			"shows up and immediately comments on it.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/vkomment/config.yaml)")
	pf.StringVar(&a.dbPath, "db", "", "run history database (overrides storage.path)")
	pf.CountVarP(&a.verbosity, "verbose", "v", "debug message verbosity (-v info, -vv debug)")
	pf.BoolVarP(&a.alwaysSuccess, "always-success", "0", false, "always exit successfully (exit code 0)")
	pf.StringVarP(&a.token, "token", "t", "", "VK user token (falls back to $VK_TOKEN and the keyring)")
	pf.BoolVarP(&a.noKeyring, "no-keyring", "K", false, "do not use keyring for token management")
	pf.StringVarP(&a.group, "group-id", "g", config.DefaultGroup, "group ID or alias")

	addWaitFlags(root, a)

	root.AddCommand(
		newCheckCmd(a),
		newNotifyCmd(a),
		newHistoryCmd(a),
		newTokenCmd(a),
		newVersionCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "vkomment %s (%s)\n", Version, Commit)
		},
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	log, err := logging.New(a.verbosity)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.log = log

	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	if err := config.LoadDotenv(); err != nil {
		a.log.Warn("dotenv", zap.Error(err))
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.dbPath != "" {
		cfg.Storage.Path = a.dbPath
		cfg.Storage.Disabled = false
	}
	a.cfg = cfg
	return nil
}

// groupRef: флаг, если задан явно, иначе конфиг.
func (a *app) groupRef(cmd *cobra.Command) string {
	if cmd.Flags().Changed("group-id") {
		return a.group
	}
	return a.cfg.Wait.Group
}

// credentials: флаг -> env -> keyring (если не выключен).
func (a *app) credentials() credential.Chain {
	chain := credential.Chain{credential.Static(a.token), credential.Env(a.cfg.VK.TokenEnv)}
	if !a.noKeyring {
		chain = append(chain, credential.DefaultKeyring())
	}
	return chain
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	return a.execute(ctx, newRootCmd(a), os.Args[1:])
}

func (a *app) execute(ctx context.Context, root *cobra.Command, args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("unexpected failure", zap.Any("panic", r), zap.Stack("stack"))
			code = ExitCode(fmt.Errorf("panic: %v", r), a.alwaysSuccess)
		}
		_ = a.log.Sync()
	}()

	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		a.report(err)
	}
	return ExitCode(err, a.alwaysSuccess)
}
