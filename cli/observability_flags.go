package cli

import (
	"context"
	"net/http/pprof"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/prometheus/common/expfmt"

	"github.com/dmstat/dmstat/internal/clock"
)

// DirMode is the directory mode for output directories.
const DirMode = 0o700

//nolint:gochecknoglobals
var metricsPushFormats = map[string]expfmt.Format{
	"text":               expfmt.FmtText,
	"proto-text":         expfmt.FmtProtoText,
	"proto-delim":        expfmt.FmtProtoDelim,
	"proto-compact":      expfmt.FmtProtoCompact,
	"open-metrics":       expfmt.FmtOpenMetrics_1_0_0,
	"open-metrics-0.0.1": expfmt.FmtOpenMetrics_0_0_1,
}

type observabilityFlags struct {
	enablePProf         bool
	metricsPushAddr     string
	metricsJob          string
	metricsPushInterval time.Duration
	metricsGroupings    []string
	metricsPushUsername string
	metricsPushPassword string
	metricsPushFormat   string
	metricsOutputDir    string

	gatherer   prometheus.Gatherer
	stopPusher chan struct{}
	pusherWG   sync.WaitGroup
}

func (c *observabilityFlags) setup(svc appServices, cmd *kingpin.CmdClause) {
	cmd.Flag("enable-pprof", "Expose pprof handlers on the API server").Hidden().BoolVar(&c.enablePProf)

	// push gateway parameters
	cmd.Flag("metrics-push-addr", "Address of push gateway").Envar(svc.EnvName("DMSTAT_METRICS_PUSH_ADDR")).StringVar(&c.metricsPushAddr)
	cmd.Flag("metrics-push-interval", "Frequency of metrics push").Envar(svc.EnvName("DMSTAT_METRICS_PUSH_INTERVAL")).Default("15s").DurationVar(&c.metricsPushInterval)
	cmd.Flag("metrics-push-job", "Job ID for to push gateway").Envar(svc.EnvName("DMSTAT_METRICS_JOB")).Default("dmstat").StringVar(&c.metricsJob)
	cmd.Flag("metrics-push-grouping", "Grouping for push gateway").Envar(svc.EnvName("DMSTAT_METRICS_PUSH_GROUPING")).StringsVar(&c.metricsGroupings)
	cmd.Flag("metrics-push-username", "Username for push gateway").Envar(svc.EnvName("DMSTAT_METRICS_PUSH_USERNAME")).StringVar(&c.metricsPushUsername)
	cmd.Flag("metrics-push-password", "Password for push gateway").Envar(svc.EnvName("DMSTAT_METRICS_PUSH_PASSWORD")).StringVar(&c.metricsPushPassword)

	var formats []string

	for k := range metricsPushFormats {
		formats = append(formats, k)
	}

	sort.Strings(formats)

	cmd.Flag("metrics-push-format", "Format to use for push gateway").Envar(svc.EnvName("DMSTAT_METRICS_FORMAT")).EnumVar(&c.metricsPushFormat, formats...)

	cmd.Flag("metrics-directory", "Directory where the final metrics should be saved when the server exits").StringVar(&c.metricsOutputDir)
}

func (c *observabilityFlags) setupHandlers(m *mux.Router) {
	if !c.enablePProf {
		return
	}

	m.HandleFunc("/debug/pprof/", pprof.Index)
	m.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	m.HandleFunc("/debug/pprof/profile", pprof.Profile)
	m.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	m.HandleFunc("/debug/pprof/trace", pprof.Trace)
	m.HandleFunc("/debug/pprof/{cmd}", pprof.Index) // gorilla/mux does not route the index to named profiles
}

func (c *observabilityFlags) startMetrics(ctx context.Context, g prometheus.Gatherer) error {
	c.gatherer = g

	if err := c.maybeStartMetricsPusher(ctx); err != nil {
		return err
	}

	if c.metricsOutputDir != "" {
		c.metricsOutputDir = filepath.Clean(c.metricsOutputDir)

		// ensure the metrics output dir can be created
		if err := os.MkdirAll(c.metricsOutputDir, DirMode); err != nil {
			return errors.Wrapf(err, "could not create metrics output directory: %s", c.metricsOutputDir)
		}
	}

	return nil
}

func (c *observabilityFlags) maybeStartMetricsPusher(ctx context.Context) error {
	if c.metricsPushAddr == "" {
		return nil
	}

	pusher := push.New(c.metricsPushAddr, c.metricsJob)

	pusher.Gatherer(c.gatherer)

	for _, g := range c.metricsGroupings {
		const nParts = 2

		parts := strings.SplitN(g, ":", nParts)
		if len(parts) != nParts {
			return errors.Errorf("grouping must be name:value")
		}

		pusher.Grouping(parts[0], parts[1])
	}

	if c.metricsPushUsername != "" {
		pusher.BasicAuth(c.metricsPushUsername, c.metricsPushPassword)
	}

	if c.metricsPushFormat != "" {
		pusher.Format(metricsPushFormats[c.metricsPushFormat])
	}

	c.stopPusher = make(chan struct{})
	c.pusherWG.Add(1)

	log(ctx).Infof("starting prometheus pusher on %v every %v", c.metricsPushAddr, c.metricsPushInterval)
	c.pushOnce(ctx, "initial", pusher)

	go c.pushPeriodically(ctx, pusher)

	return nil
}

func (c *observabilityFlags) stopMetrics(ctx context.Context) {
	if c.stopPusher != nil {
		close(c.stopPusher)

		c.pusherWG.Wait()
		c.stopPusher = nil
	}

	if c.metricsOutputDir != "" && c.gatherer != nil {
		filename := filepath.Join(c.metricsOutputDir, clock.Now().Format("20060102-150405")+"-serve.prom")

		if err := prometheus.WriteToTextfile(filename, c.gatherer); err != nil {
			log(ctx).Warnf("unable to write metrics file '%s': %v", filename, err)
		}
	}
}

func (c *observabilityFlags) pushPeriodically(ctx context.Context, p *push.Pusher) {
	defer c.pusherWG.Done()

	ticker := time.NewTicker(c.metricsPushInterval)

	for {
		select {
		case <-ticker.C:
			c.pushOnce(ctx, "periodic", p)

		case <-c.stopPusher:
			ticker.Stop()
			c.pushOnce(ctx, "final", p)

			return
		}
	}
}

func (c *observabilityFlags) pushOnce(ctx context.Context, kind string, p *push.Pusher) {
	log(ctx).Debugw("pushing prometheus metrics", "kind", kind)

	if err := p.Push(); err != nil {
		log(ctx).Debugw("error pushing prometheus metrics", "kind", kind, "err", err)
	}
}
