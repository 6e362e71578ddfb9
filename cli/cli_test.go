package cli

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/stretchr/testify/require"

	"github.com/dmstat/dmstat/internal/config"
	"github.com/dmstat/dmstat/internal/testlogging"
)

const serverStartTimeout = 30 * time.Second

func runInProcess(t *testing.T, args ...string) (stdout, stderr io.Reader, wait func() error, interrupt func()) {
	t.Helper()

	app := NewApp()
	app.envNamePrefix = "TEST_"

	return app.RunSubcommand(testlogging.Context(t), kingpin.New("test", "test"), args)
}

func run(t *testing.T, args ...string) ([]string, error) {
	t.Helper()

	stdout, stderr, wait, _ := runInProcess(t, args...)

	stderrDone := make(chan struct{})

	go func() {
		defer close(stderrDone)

		s := bufio.NewScanner(stderr)
		for s.Scan() {
			t.Logf("[stderr] %v", s.Text())
		}
	}()

	b, err := io.ReadAll(stdout)
	require.NoError(t, err)

	<-stderrDone

	var lines []string

	for l := range strings.SplitSeq(strings.TrimSuffix(string(b), "\n"), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}

	return lines, wait()
}

func runAndExpectSuccess(t *testing.T, args ...string) []string {
	t.Helper()

	lines, err := run(t, args...)
	require.NoError(t, err, "%v", args)

	return lines
}

func startServer(t *testing.T, args ...string) (serverURL string, stop func()) {
	t.Helper()

	stdout, stderr, wait, interrupt := runInProcess(t, append([]string{"serve"}, args...)...)

	go io.Copy(io.Discard, stdout) //nolint:errcheck

	addr := make(chan string, 1)
	stderrDone := make(chan struct{})

	go func() {
		defer close(stderrDone)
		defer close(addr)

		const prefix = "SERVER ADDRESS: "

		s := bufio.NewScanner(stderr)
		for s.Scan() {
			l := s.Text()
			t.Logf("[server] %v", l)

			if strings.HasPrefix(l, prefix) {
				addr <- strings.TrimPrefix(l, prefix)
			}
		}
	}()

	select {
	case u, ok := <-addr:
		if !ok {
			t.Fatalf("server exited: %v", wait())
		}

		return u, func() {
			interrupt()
			require.NoError(t, wait())
			<-stderrDone
		}

	case <-time.After(serverStartTimeout):
		t.Fatal("server did not start")
	}

	return "", nil
}

func TestServeAndManageDevices(t *testing.T) {
	dir := t.TempDir()
	tablePath := filepath.Join(dir, "devices.yaml")

	require.NoError(t, os.WriteFile(tablePath, []byte(`
devices:
  - name: vol0
    backing: `+filepath.Join(dir, "vol0.img")+`
    size: 1MiB
`), 0o600))

	url, stop := startServer(t,
		"--address=127.0.0.1:0",
		"--table="+tablePath,
		"--systemd-notify=false",
		"--socket-activation=false",
	)

	serverFlag := "--server-address=" + url

	lines := runAndExpectSuccess(t, "device", "list", serverFlag)
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "NAME"), lines[0])
	require.Contains(t, lines[1], "vol0")
	require.Contains(t, lines[1], "dmp_target")
	require.Contains(t, lines[1], "1 MiB")

	lines = runAndExpectSuccess(t, "device", "create", "vol1", serverFlag,
		"--backing="+filepath.Join(dir, "vol1.img"),
		"--size=64KiB")
	require.Len(t, lines, 1)
	require.True(t, strings.HasPrefix(lines[0], "Created device vol1"), lines[0])
	require.Contains(t, lines[0], "64 KiB")

	_, err := run(t, "device", "create", "vol1", serverFlag, "--backing="+filepath.Join(dir, "vol1.img"))
	require.ErrorContains(t, err, "409")

	require.Equal(t, []string{
		"read:",
		"  reqs: 0",
		"  avg size: 0",
		"write:",
		"  reqs: 0",
		"  avg size: 0",
		"total:",
		"  reqs: 0",
		"  avg size: 0",
	}, runAndExpectSuccess(t, "stat", "vol1", serverFlag))

	lines = runAndExpectSuccess(t, "stat", "vol1", "--json", serverFlag)
	require.Len(t, lines, 1)
	require.Contains(t, lines[0], `"readCount":0`)

	_, err = run(t, "stat", "no-such-device", serverFlag)
	require.Error(t, err)

	exportPath := filepath.Join(dir, "exported.yaml")
	runAndExpectSuccess(t, "table", "export", exportPath, serverFlag)

	tab, err := config.LoadTable(exportPath)
	require.NoError(t, err)
	require.Len(t, tab.Devices, 2)
	require.Equal(t, "vol0", tab.Devices[0].Name)
	require.Equal(t, filepath.Join(dir, "vol1.img"), tab.Devices[1].Backing)

	require.Equal(t, []string{"Removed device vol0.", "Removed device vol1."},
		runAndExpectSuccess(t, "device", "remove", "vol0", "vol1", serverFlag))

	require.Equal(t, []string{"[]"}, runAndExpectSuccess(t, "device", "list", "--json", serverFlag))

	stop()
}

func TestServeInvalidTable(t *testing.T) {
	tablePath := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(tablePath, []byte("devices:\n  - name: vol0\n"), 0o600))

	_, err := run(t, "serve",
		"--address=127.0.0.1:0",
		"--table="+tablePath,
		"--systemd-notify=false",
		"--socket-activation=false",
	)
	require.ErrorContains(t, err, "missing backing")
}

func TestClientWithoutServer(t *testing.T) {
	_, err := run(t, "device", "list", "--server-address=unix+http://"+filepath.Join(t.TempDir(), "missing.sock"))
	require.Error(t, err)
}
