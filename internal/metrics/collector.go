// Package metrics exports device request counters to Prometheus.
package metrics

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmstat/dmstat/internal/service"
	"github.com/dmstat/dmstat/internal/stats"
	"github.com/dmstat/dmstat/target"
)

const namespace = "dmstat"

// StatsProvider is implemented by targets that keep request counters.
type StatsProvider interface {
	Stats() stats.Snapshot
}

// Collector implements prometheus.Collector over all devices of a registry.
// Counters are read at scrape time, so the I/O path is not affected by exporting them.
type Collector struct {
	registry *target.Registry

	readRequestsDesc  *prometheus.Desc
	writeRequestsDesc *prometheus.Desc
	readBytesDesc     *prometheus.Desc
	writeBytesDesc    *prometheus.Desc
}

// NewCollector returns a collector for devices in a given registry.
func NewCollector(r *target.Registry) *Collector {
	labels := []string{"device"}

	return &Collector{
		registry: r,

		readRequestsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "read_requests_total"),
			"Total number of read requests forwarded to the backing device.",
			labels, nil,
		),
		writeRequestsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "write_requests_total"),
			"Total number of write requests forwarded to the backing device, including flushes.",
			labels, nil,
		),
		readBytesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "read_bytes_total"),
			"Total number of bytes requested by read requests.",
			labels, nil,
		),
		writeBytesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "write_bytes_total"),
			"Total number of bytes submitted by write requests.",
			labels, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.readRequestsDesc
	ch <- c.writeRequestsDesc
	ch <- c.readBytesDesc
	ch <- c.writeBytesDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, d := range c.registry.Devices() {
		sp, ok := d.Mapper().(StatsProvider)
		if !ok {
			continue
		}

		s := sp.Stats()

		ch <- prometheus.MustNewConstMetric(c.readRequestsDesc, prometheus.CounterValue, float64(s.ReadCount), d.Name())
		ch <- prometheus.MustNewConstMetric(c.writeRequestsDesc, prometheus.CounterValue, float64(s.WriteCount), d.Name())
		ch <- prometheus.MustNewConstMetric(c.readBytesDesc, prometheus.CounterValue, float64(s.ReadBytes), d.Name())
		ch <- prometheus.MustNewConstMetric(c.writeBytesDesc, prometheus.CounterValue, float64(s.WriteBytes), d.Name())
	}
}

// Endpoint registers the collector of the service registry with a Prometheus registerer.
type Endpoint struct {
	Registerer prometheus.Registerer

	collector *Collector
}

// Name implements service.Endpoint.
func (e *Endpoint) Name() string {
	return "prometheus collector"
}

// Start implements service.Endpoint.
func (e *Endpoint) Start(ctx context.Context, s *service.Service) error {
	c := NewCollector(s.Registry())

	if err := e.Registerer.Register(c); err != nil {
		return errors.Wrap(err, "unable to register collector")
	}

	e.collector = c

	return nil
}

// Stop implements service.Endpoint.
func (e *Endpoint) Stop(ctx context.Context) error {
	if e.collector == nil {
		return nil
	}

	if !e.Registerer.Unregister(e.collector) {
		return errors.New("collector was not registered")
	}

	e.collector = nil

	return nil
}

var (
	_ prometheus.Collector = (*Collector)(nil)
	_ service.Endpoint     = (*Endpoint)(nil)
)
