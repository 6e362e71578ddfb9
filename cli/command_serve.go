package cli

import (
	"context"
	stderrors "errors"
	"net"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmstat/dmstat/internal/config"
	"github.com/dmstat/dmstat/internal/metrics"
	"github.com/dmstat/dmstat/internal/mount"
	"github.com/dmstat/dmstat/internal/server"
	"github.com/dmstat/dmstat/internal/service"
	"github.com/dmstat/dmstat/target"
)

type commandServe struct {
	address           string
	tablePath         string
	persistTable      bool
	maxDevices        int
	mountPoint        string
	fuseAllowOther    bool
	fuseAllowNonEmpty bool
	fuseDebug         bool
	socketActivation  bool
	notifySystemd     bool
	logRequests       bool

	obs observabilityFlags
	out textOutput
	svc appServices
}

func (c *commandServe) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("serve", "Run the statistics service.").Alias("server")
	cmd.Flag("address", "Address to listen on (host:port or unix:/path)").Envar(svc.EnvName("DMSTAT_ADDRESS")).Default(defaultServerAddress).StringVar(&c.address)
	cmd.Flag("table", "YAML device table with devices to create on startup").Envar(svc.EnvName("DMSTAT_TABLE")).StringVar(&c.tablePath)
	cmd.Flag("persist-table", "Write the devices back to the device table on shutdown").Envar(svc.EnvName("DMSTAT_PERSIST_TABLE")).BoolVar(&c.persistTable)
	cmd.Flag("max-devices", "Maximum number of devices (0 means unlimited)").Envar(svc.EnvName("DMSTAT_MAX_DEVICES")).IntVar(&c.maxDevices)
	cmd.Flag("mount", "Mount devices and their statistics at a given directory ('*' for a temporary directory)").Envar(svc.EnvName("DMSTAT_MOUNT")).StringVar(&c.mountPoint)
	cmd.Flag("fuse-allow-other", "Allows other users to access the file system.").BoolVar(&c.fuseAllowOther)
	cmd.Flag("fuse-allow-non-empty-mount", "Allows the mounting over a non-empty directory.").BoolVar(&c.fuseAllowNonEmpty)
	cmd.Flag("fuse-debug", "Log FUSE protocol messages").Hidden().BoolVar(&c.fuseDebug)
	cmd.Flag("socket-activation", "Use a listener passed by systemd socket activation when available").Default("true").BoolVar(&c.socketActivation)
	cmd.Flag("systemd-notify", "Notify systemd when the service is ready").Default("true").BoolVar(&c.notifySystemd)
	cmd.Flag("log-server-requests", "Log server requests").Hidden().BoolVar(&c.logRequests)

	c.obs.setup(svc, cmd)
	c.out.setup(svc)
	c.svc = svc

	cmd.Action(svc.baseAction(c.run))
}

func (c *commandServe) listener(ctx context.Context) (net.Listener, error) {
	if c.socketActivation {
		ls, err := activation.Listeners()
		if err != nil {
			return nil, errors.Wrap(err, "unable to get socket-activated listeners")
		}

		for _, l := range ls {
			if l != nil {
				log(ctx).Infof("using socket-activated listener %v", l.Addr())
				return l, nil
			}
		}
	}

	//nolint:wrapcheck
	return server.Listen(c.address)
}

func serverURL(l net.Listener) string {
	if l.Addr().Network() == "unix" {
		return "unix+http://" + l.Addr().String()
	}

	return "http://" + l.Addr().String()
}

func (c *commandServe) endpoints(l net.Listener, reg *prometheus.Registry) []service.Endpoint {
	eps := []service.Endpoint{
		&metrics.Endpoint{Registerer: reg},
		&server.Endpoint{
			Listener: l,
			Options: server.Options{
				LogRequests:        c.logRequests,
				Gatherer:           reg,
				SetupExtraHandlers: c.obs.setupHandlers,
			},
		},
	}

	if c.mountPoint != "" {
		eps = append(eps, &mount.Endpoint{
			MountPoint: c.mountPoint,
			Options: mount.Options{
				FuseAllowOther:         c.fuseAllowOther,
				FuseAllowNonEmptyMount: c.fuseAllowNonEmpty,
				Debug:                  c.fuseDebug,
			},
		})
	}

	return eps
}

func (c *commandServe) loadTable(ctx context.Context, r *target.Registry) error {
	if c.tablePath == "" {
		return nil
	}

	t, err := config.LoadTable(c.tablePath)
	if err != nil {
		return err //nolint:wrapcheck
	}

	return config.Apply(ctx, r, t) //nolint:wrapcheck
}

// reloadTable creates devices that were added to the device table since it was last read.
func (c *commandServe) reloadTable(ctx context.Context, r *target.Registry) {
	t, err := config.LoadTable(c.tablePath)
	if err != nil {
		log(ctx).Errorf("unable to reload device table: %v", err)
		return
	}

	missing := &config.Table{}

	for _, d := range t.Devices {
		if _, ok := r.Device(d.Name); !ok {
			missing.Devices = append(missing.Devices, d)
		}
	}

	if err := config.Apply(ctx, r, missing); err != nil {
		log(ctx).Errorf("unable to apply device table: %v", err)
		return
	}

	log(ctx).Infof("device table reloaded, %v new devices", len(missing.Devices))
}

func (c *commandServe) notify(ctx context.Context, state string) {
	if !c.notifySystemd {
		return
	}

	if ok, err := daemon.SdNotify(false, state); err != nil {
		log(ctx).Warnf("unable to notify systemd: %v", err)
	} else if ok {
		log(ctx).Debugf("notified systemd: %v", state)
	}
}

func (c *commandServe) run(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	l, err := c.listener(ctx)
	if err != nil {
		return err
	}

	svc := service.New(service.Options{
		Registry: target.Options{MaxDevices: c.maxDevices},
	})

	eps := c.endpoints(l, reg)

	if err := svc.Start(ctx, eps...); err != nil {
		l.Close() //nolint:errcheck
		return errors.Wrap(err, "unable to start service")
	}

	if err := c.loadTable(ctx, svc.Registry()); err != nil {
		return stderrors.Join(errors.Wrap(err, "unable to load device table"), svc.Stop(ctx))
	}

	if err := c.obs.startMetrics(ctx, reg); err != nil {
		return stderrors.Join(err, svc.Stop(ctx))
	}

	defer c.obs.stopMetrics(ctx)

	c.out.printStderr("SERVER ADDRESS: %v\n", serverURL(l))

	var mountDone <-chan struct{}

	for _, ep := range eps {
		if me, ok := ep.(*mount.Endpoint); ok {
			c.out.printStderr("MOUNTED AT: %v\n", me.Controller().MountPath())
			mountDone = me.Controller().Done()
		}
	}

	stopReload := func() {}

	if c.tablePath != "" {
		stopReload = onExternalConfigReloadRequest(func() {
			c.reloadTable(ctx, svc.Registry())
		})
	}

	c.notify(ctx, daemon.SdNotifyReady)

	terminated := make(chan struct{})

	c.svc.onTerminate(func() {
		close(terminated)
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-terminated:
			log(ctx).Infof("Shutting down...")
		case <-gctx.Done():
		}

		return nil
	})

	if mountDone != nil {
		g.Go(func() error {
			select {
			case <-mountDone:
				return errors.New("mount point was unmounted externally")
			case <-terminated:
			case <-gctx.Done():
			}

			return nil
		})
	}

	werr := g.Wait()

	// no reload may create devices while the service is stopping.
	stopReload()

	c.notify(ctx, daemon.SdNotifyStopping)

	if c.persistTable && c.tablePath != "" {
		if err := config.SaveTable(c.tablePath, config.FromRegistry(svc.Registry())); err != nil {
			log(ctx).Errorf("unable to persist device table: %v", err)
		}
	}

	return stderrors.Join(werr, svc.Stop(ctx))
}
