package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmstat/dmstat/internal/apiclient"
	"github.com/dmstat/dmstat/internal/serverapi"
	"github.com/dmstat/dmstat/internal/units"
)

type commandDeviceList struct {
	jo  jsonOutput
	out textOutput
}

func (c *commandDeviceList) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("list", "List devices.").Alias("ls")
	c.jo.setup(svc, cmd)
	c.out.setup(svc)
	cmd.Action(svc.apiClientAction(c.run))
}

func (c *commandDeviceList) run(ctx context.Context, cli *apiclient.APIClient) error {
	list, err := serverapi.ListDevices(ctx, cli)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if c.jo.jsonOutput {
		c.jo.emit(list.Items)
		return nil
	}

	const padding = 2

	w := tabwriter.NewWriter(c.out.stdout(), 0, 0, padding, ' ', 0)

	defer w.Flush() //nolint:errcheck

	fmt.Fprintf(w, "NAME\tTYPE\tSIZE\tREADS\tWRITES\tBACKING\n") //nolint:errcheck

	for _, d := range list.Items {
		var reads, writes string

		if d.Stats != nil {
			reads = units.Count(d.Stats.ReadCount)
			writes = units.Count(d.Stats.WriteCount)
		}

		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\n", d.Name, d.Type, units.BytesString(d.Size), reads, writes, d.Backing) //nolint:errcheck
	}

	return nil
}
