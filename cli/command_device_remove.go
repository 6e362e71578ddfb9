package cli

import (
	"context"

	"github.com/dmstat/dmstat/internal/apiclient"
	"github.com/dmstat/dmstat/internal/serverapi"
)

type commandDeviceRemove struct {
	names []string

	out textOutput
}

func (c *commandDeviceRemove) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("remove", "Remove devices.").Alias("rm")
	cmd.Arg("name", "Device name").Required().StringsVar(&c.names)
	c.out.setup(svc)
	cmd.Action(svc.apiClientAction(c.run))
}

func (c *commandDeviceRemove) run(ctx context.Context, cli *apiclient.APIClient) error {
	for _, n := range c.names {
		if err := serverapi.RemoveDevice(ctx, cli, n); err != nil {
			return err //nolint:wrapcheck
		}

		c.out.printStdout("Removed device %v.\n", n)
	}

	return nil
}
