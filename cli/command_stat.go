package cli

import (
	"context"

	"github.com/dmstat/dmstat/internal/apiclient"
	"github.com/dmstat/dmstat/internal/serverapi"
)

type commandStat struct {
	name string

	jo  jsonOutput
	out textOutput
}

func (c *commandStat) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("stat", "Show request statistics of a device.")
	cmd.Arg("name", "Device name").Required().StringVar(&c.name)
	c.jo.setup(svc, cmd)
	c.out.setup(svc)
	cmd.Action(svc.apiClientAction(c.run))
}

func (c *commandStat) run(ctx context.Context, cli *apiclient.APIClient) error {
	if c.jo.jsonOutput {
		di, err := serverapi.GetDevice(ctx, cli, c.name)
		if err != nil {
			return err //nolint:wrapcheck
		}

		c.jo.emit(di.Stats)

		return nil
	}

	st, err := serverapi.DeviceStat(ctx, cli, c.name)
	if err != nil {
		return err //nolint:wrapcheck
	}

	c.out.printStdout("%s", st)

	return nil
}
