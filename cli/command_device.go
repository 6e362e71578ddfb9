package cli

type commandDevice struct {
	create commandDeviceCreate
	remove commandDeviceRemove
	list   commandDeviceList
}

func (c *commandDevice) setup(svc appServices, parent commandParent) {
	cmd := parent.Command("device", "Commands to manage devices.").Alias("dev")

	c.create.setup(svc, cmd)
	c.remove.setup(svc, cmd)
	c.list.setup(svc, cmd)
}
