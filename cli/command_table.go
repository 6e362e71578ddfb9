package cli

import (
	"context"

	"github.com/dmstat/dmstat/internal/apiclient"
	"github.com/dmstat/dmstat/internal/config"
	"github.com/dmstat/dmstat/internal/serverapi"
)

type commandTable struct {
	export commandTableExport
}

func (c *commandTable) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("table", "Commands to manage device tables.")

	c.export.setup(svc, cmd)
}

type commandTableExport struct {
	file string

	out textOutput
}

func (c *commandTableExport) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("export", "Write a device table describing the current devices.")
	cmd.Arg("file", "Output file").Required().StringVar(&c.file)
	c.out.setup(svc)
	cmd.Action(svc.apiClientAction(c.run))
}

func (c *commandTableExport) run(ctx context.Context, cli *apiclient.APIClient) error {
	list, err := serverapi.ListDevices(ctx, cli)
	if err != nil {
		return err //nolint:wrapcheck
	}

	t := &config.Table{Devices: []config.Device{}}

	for _, d := range list.Items {
		t.Devices = append(t.Devices, config.Device{
			Name:     d.Name,
			Type:     d.Type,
			Backing:  d.Backing,
			ReadOnly: d.ReadOnly,
		})
	}

	if err := config.SaveTable(c.file, t); err != nil {
		return err //nolint:wrapcheck
	}

	c.out.printStdout("Wrote %v devices to %v.\n", len(t.Devices), c.file)

	return nil
}
