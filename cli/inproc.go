package cli

import (
	"context"
	"io"

	"github.com/alecthomas/kingpin/v2"

	"github.com/dmstat/dmstat/internal/logging"
)

// RunSubcommand executes the subcommand asynchronously in current process
// with flags in an isolated CLI environment and returns standard output and standard error.
func (c *App) RunSubcommand(ctx context.Context, kpapp *kingpin.Application, argsAndFlags []string) (stdout, stderr io.Reader, wait func() error, interrupt func()) {
	stdoutReader, stdoutWriter := io.Pipe()
	stderrReader, stderrWriter := io.Pipe()

	c.stdoutWriter = stdoutWriter
	c.stderrWriter = stderrWriter
	c.rootctx = logging.WithLogger(ctx, logging.ToWriter(stderrWriter))
	c.simulatedCtrlC = make(chan bool, 1)
	c.isInProcessTest = true

	c.Attach(kpapp)

	resultErr := make(chan error, 1)

	c.exitWithError = func(ec error) {
		resultErr <- ec
	}

	go func() {
		defer func() {
			close(c.simulatedCtrlC)
			stderrWriter.Close() //nolint:errcheck
			stdoutWriter.Close() //nolint:errcheck
			close(resultErr)
		}()

		if _, err := kpapp.Parse(argsAndFlags); err != nil {
			resultErr <- err
		}
	}()

	return stdoutReader, stderrReader, func() error {
			return <-resultErr
		}, func() {
			// deliver simulated Ctrl-C to the app.
			c.simulatedCtrlC <- true
		}
}
