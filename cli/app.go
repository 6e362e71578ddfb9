// Package cli implements the dmstat command-line interface.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/internal/apiclient"
	"github.com/dmstat/dmstat/internal/logging"
)

var log = logging.Module("dmstat/cli")

//nolint:gochecknoglobals
var errorColor = color.New(color.FgHiRed)

const defaultServerAddress = "127.0.0.1:51520"

type appServices interface {
	EnvName(s string) string
	rootContext() context.Context
	stdout() io.Writer
	stderr() io.Writer
	onTerminate(f func())

	baseAction(act func(ctx context.Context) error) func(ctx *kingpin.ParseContext) error
	apiClientAction(act func(ctx context.Context, cli *apiclient.APIClient) error) func(ctx *kingpin.ParseContext) error
}

type commandParent interface {
	Command(name, help string) *kingpin.CmdClause
}

// App contains per-invocation flags and state of the dmstat CLI.
type App struct {
	logFlags loggingFlags

	serverAddress string
	logRequests   bool

	// subcommands
	serve  commandServe
	device commandDevice
	stat   commandStat
	table  commandTable

	// testability hooks
	envNamePrefix   string
	isInProcessTest bool
	exitWithError   func(err error)
	stdoutWriter    io.Writer
	stderrWriter    io.Writer
	rootctx         context.Context //nolint:containedctx
	simulatedCtrlC  chan bool
}

// NewApp creates a new instance of App.
func NewApp() *App {
	return &App{
		exitWithError: func(err error) {
			if err != nil {
				errorColor.Fprintf(os.Stderr, "ERROR: %v\n", err) //nolint:errcheck
				os.Exit(1)
			}

			os.Exit(0)
		},

		stdoutWriter: os.Stdout,
		stderrWriter: os.Stderr,
		rootctx:      context.Background(),
	}
}

// EnvName returns the name of the environment variable, with test prefix applied.
func (c *App) EnvName(s string) string {
	return c.envNamePrefix + s
}

// Attach attaches the CLI parser to the application.
func (c *App) Attach(app *kingpin.Application) {
	c.setup(app)
}

func (c *App) setup(app *kingpin.Application) {
	c.logFlags.setup(c, app)

	app.Flag("server-address", "Address of the dmstat API server").
		Envar(c.EnvName("DMSTAT_SERVER_ADDRESS")).
		Default("http://" + defaultServerAddress).
		StringVar(&c.serverAddress)
	app.Flag("log-requests", "Log API requests").Hidden().Envar(c.EnvName("DMSTAT_LOG_REQUESTS")).BoolVar(&c.logRequests)

	app.PreAction(c.initLogging)

	c.serve.setup(c, app)
	c.device.setup(c, app)
	c.stat.setup(c, app)
	c.table.setup(c, app)
}

func (c *App) initLogging(_ *kingpin.ParseContext) error {
	if c.isInProcessTest {
		return nil
	}

	f, err := c.logFlags.loggerFactory(c.stderrWriter)
	if err != nil {
		return err
	}

	c.rootctx = logging.WithLogger(c.rootctx, f)

	return nil
}

func (c *App) rootContext() context.Context {
	return c.rootctx
}

func (c *App) stdout() io.Writer {
	return c.stdoutWriter
}

func (c *App) stderr() io.Writer {
	return c.stderrWriter
}

func (c *App) baseAction(act func(ctx context.Context) error) func(ctx *kingpin.ParseContext) error {
	return func(_ *kingpin.ParseContext) error {
		ctx := c.rootContext()

		if err := act(ctx); err != nil {
			log(ctx).Debugf("command failed: %v", err)
			c.exitWithError(err)
		}

		return nil
	}
}

func (c *App) apiClientAction(act func(ctx context.Context, cli *apiclient.APIClient) error) func(ctx *kingpin.ParseContext) error {
	return c.baseAction(func(ctx context.Context) error {
		cli, err := apiclient.NewAPIClient(apiclient.Options{
			BaseURL:     c.serverAddress,
			LogRequests: c.logRequests,
		})
		if err != nil {
			return errors.Wrap(err, "unable to create API client")
		}

		return act(ctx, cli)
	})
}
