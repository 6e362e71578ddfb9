// Package config reads and writes the device table, a YAML file describing devices
// to create when the service starts.
package config

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dmstat/dmstat/dmp"
	"github.com/dmstat/dmstat/internal/logging"
	"github.com/dmstat/dmstat/internal/units"
	"github.com/dmstat/dmstat/target"
)

var log = logging.Module("dmstat/config")

// Size is a number of bytes that can be written in YAML as a number or with a unit suffix (64KiB, 1GB).
type Size int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return errors.Errorf("line %v: size must be a scalar", value.Line)
	}

	v, err := units.ParseBytes(value.Value)
	if err != nil {
		return errors.Wrapf(err, "line %v", value.Line)
	}

	*s = Size(v)

	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Size) MarshalYAML() (interface{}, error) {
	return int64(s), nil
}

// Device is an entry in the device table.
type Device struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type,omitempty"`
	Backing  string   `yaml:"backing"`
	Size     Size     `yaml:"size,omitempty"`
	ReadOnly bool     `yaml:"readOnly,omitempty"`
	Args     []string `yaml:"args,omitempty"`
}

// Spec returns the device spec for the entry.
func (d *Device) Spec() target.DeviceSpec {
	t := d.Type
	if t == "" {
		t = dmp.TypeName
	}

	return target.DeviceSpec{
		Name:       d.Name,
		Type:       t,
		Backing:    d.Backing,
		CreateSize: int64(d.Size),
		ReadOnly:   d.ReadOnly,
		Args:       d.Args,
	}
}

// Table is a list of devices.
type Table struct {
	Devices []Device `yaml:"devices"`
}

// Validate checks that entries have names and backing devices and that names are unique.
func (t *Table) Validate() error {
	seen := map[string]bool{}

	for i, d := range t.Devices {
		if d.Name == "" {
			return errors.Errorf("device #%v: missing name", i)
		}

		if d.Backing == "" {
			return errors.Errorf("device %v: missing backing", d.Name)
		}

		if seen[d.Name] {
			return errors.Errorf("device %v: duplicate name", d.Name)
		}

		seen[d.Name] = true
	}

	return nil
}

// ParseTable parses and validates a device table.
func ParseTable(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	t := &Table{}

	if err := dec.Decode(t); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "unable to parse device table")
	}

	if err := t.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid device table")
	}

	return t, nil
}

// LoadTable reads the device table from a file.
func LoadTable(filename string) (*Table, error) {
	f, err := os.Open(filename) //nolint:gosec
	if err != nil {
		return nil, errors.Wrap(err, "error opening device table")
	}

	defer f.Close() //nolint:errcheck

	return ParseTable(f)
}

// SaveTable atomically writes the device table to a file.
func SaveTable(filename string, t *Table) error {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2) //nolint:mnd

	if err := enc.Encode(t); err != nil {
		return errors.Wrap(err, "unable to encode device table")
	}

	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "unable to encode device table")
	}

	return errors.Wrap(atomic.WriteFile(filename, &buf), "unable to write device table")
}

// FromRegistry returns a table describing the devices of a registry.
func FromRegistry(r *target.Registry) *Table {
	t := &Table{Devices: []Device{}}

	for _, d := range r.Devices() {
		spec := d.Spec()

		t.Devices = append(t.Devices, Device{
			Name:     spec.Name,
			Type:     spec.Type,
			Backing:  spec.Backing,
			Size:     Size(spec.CreateSize),
			ReadOnly: spec.ReadOnly,
			Args:     spec.Args,
		})
	}

	return t
}

// Apply creates all devices of the table. If any device can't be created, devices
// created so far are removed.
func Apply(ctx context.Context, r *target.Registry, t *Table) error {
	var created []string

	for i := range t.Devices {
		spec := t.Devices[i].Spec()

		if _, err := r.CreateDevice(ctx, spec); err != nil {
			var errs []error

			errs = append(errs, errors.Wrapf(err, "unable to create device %v", spec.Name))

			for j := len(created) - 1; j >= 0; j-- {
				if rerr := r.RemoveDevice(ctx, created[j]); rerr != nil {
					errs = append(errs, rerr)
				}
			}

			return stderrors.Join(errs...)
		}

		created = append(created, spec.Name)
	}

	log(ctx).Debugf("created %v devices from device table", len(created))

	return nil
}
