package cli

import (
	"context"

	atunits "github.com/alecthomas/units"

	"github.com/dmstat/dmstat/dmp"
	"github.com/dmstat/dmstat/internal/apiclient"
	"github.com/dmstat/dmstat/internal/serverapi"
	"github.com/dmstat/dmstat/internal/units"
)

type commandDeviceCreate struct {
	name     string
	backing  string
	typeName string
	size     atunits.Base2Bytes
	readOnly bool
	args     []string

	jo  jsonOutput
	out textOutput
}

func (c *commandDeviceCreate) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("create", "Create a device on top of a backing file or block device.")
	cmd.Arg("name", "Device name").Required().StringVar(&c.name)
	cmd.Flag("backing", "Path to the backing file or block device").Required().StringVar(&c.backing)
	cmd.Flag("type", "Target type").Default(dmp.TypeName).StringVar(&c.typeName)
	cmd.Flag("size", "Create the backing file with a given size if it does not exist").BytesVar(&c.size)
	cmd.Flag("read-only", "Reject writes to the device").BoolVar(&c.readOnly)
	cmd.Flag("arg", "Target constructor argument (repeatable)").StringsVar(&c.args)
	c.jo.setup(svc, cmd)
	c.out.setup(svc)
	cmd.Action(svc.apiClientAction(c.run))
}

func (c *commandDeviceCreate) run(ctx context.Context, cli *apiclient.APIClient) error {
	di, err := serverapi.CreateDevice(ctx, cli, &serverapi.CreateDeviceRequest{
		Name:       c.name,
		Type:       c.typeName,
		Backing:    c.backing,
		CreateSize: int64(c.size),
		ReadOnly:   c.readOnly,
		Args:       c.args,
	})
	if err != nil {
		return err //nolint:wrapcheck
	}

	if c.jo.jsonOutput {
		c.jo.emit(di)
		return nil
	}

	c.out.printStdout("Created device %v (%v) on %v, %v.\n", di.Name, di.ID, di.Backing, units.BytesString(di.Size))

	return nil
}
