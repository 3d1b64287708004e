// Package cli implements the portfolioctl command line.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"portfolio-console/internal/app"
	"portfolio-console/internal/config"
	xerrors "portfolio-console/internal/pkg/errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI holds the streams and global flags shared by every command.
type CLI struct {
	in     *bufio.Reader
	inFile *os.File
	out    io.Writer
	errOut io.Writer

	configPath    string
	apiURL        string
	storeDriver   string
	logLevel      string
	passwordStdin bool

	// logger overrides the configured logger, for tests.
	logger *zap.Logger
}

type Option func(*CLI)

// WithIO replaces stdin, stdout and stderr.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(c *CLI) {
		c.in = bufio.NewReader(in)
		c.inFile, _ = in.(*os.File)
		c.out = out
		c.errOut = errOut
	}
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l *zap.Logger) Option {
	return func(c *CLI) { c.logger = l }
}

func New(opts ...Option) *CLI {
	c := &CLI{
		in:     bufio.NewReader(os.Stdin),
		inFile: os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute runs the command line and returns the process exit code.
func (c *CLI) Execute(ctx context.Context, args []string) int {
	root := c.RootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(c.errOut, "error: %s\n", xerrors.MessageOrDefault(err, "command failed"))
		if errors.Is(err, errAccessDenied) {
			return 2
		}
		return 1
	}
	return 0
}

// RootCommand builds the command tree.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "portfolioctl",
		Short: "Sign in to the portfolio admin API and manage the session",
		Long: `portfolioctl signs an administrator in to the portfolio API, keeps the
session on disk between invocations, and manages two-factor settings.

Run "portfolioctl shell" for an interactive session with automatic token
refresh and inactivity logout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML config file (default $PORTFOLIO_CONFIG)")
	pf.StringVar(&c.apiURL, "api-url", "", "API base URL (overrides API_URL)")
	pf.StringVar(&c.storeDriver, "store", "", "session store: bolt, redis or memory (overrides STORE_DRIVER)")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(
		c.loginCommand(),
		c.verifyCommand(),
		c.requestCodeCommand(),
		c.logoutCommand(),
		c.statusCommand(),
		c.refreshCommand(),
		c.securityCommand(),
		c.shellCommand(),
	)
	return root
}

func (c *CLI) loadConfig() (config.AppConfig, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.AppConfig{}, err
	}
	if c.apiURL != "" {
		cfg.APIURL = c.apiURL
	}
	if c.storeDriver != "" {
		cfg.StoreDriver = c.storeDriver
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	return cfg, cfg.Validate()
}

func (c *CLI) openApp(cmd *cobra.Command, interactive bool) (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, app.Options{Interactive: interactive, Logger: c.logger})
}

// run opens a one-shot app, hands a console to fn and closes the app.
func (c *CLI) run(cmd *cobra.Command, fn func(ctx context.Context, con *console) error) error {
	a, err := c.openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	con := newConsole(a, c.stdPrompter(), c.out)
	return fn(cmd.Context(), con)
}
