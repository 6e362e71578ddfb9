//go:build !windows && !openbsd && !freebsd

// Package fusemount implements FUSE filesystem nodes exposing devices of a registry.
//
// Each device is a directory with two files: "stat" holding the statistics report
// and "device" giving read-write access to the device through its target.
//
// The FUSE implementation used is from github.com/hanwen/go-fuse/v2
package fusemount

import (
	"context"
	"syscall"

	gofusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/blockdev"
	"github.com/dmstat/dmstat/internal/logging"
	"github.com/dmstat/dmstat/target"
)

var log = logging.Module("dmstat/fuse")

// Names of files in each device directory.
const (
	StatFileName   = "stat"
	DeviceFileName = "device"
)

const fakeBlockSize = 4096

func populateAttributes(a *fuse.Attr, mode uint32, size int64, d *target.Device) {
	a.Mode = mode
	a.Size = uint64(size)                  //nolint:gosec
	a.Mtime = uint64(d.CreatedAt().Unix()) //nolint:gosec
	a.Ctime = a.Mtime
	a.Atime = a.Mtime
	a.Nlink = 1
	a.Blocks = (a.Size + fakeBlockSize - 1) / fakeBlockSize
}

func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return gofusefs.OK
	case errors.Is(err, target.ErrDeviceRemoved):
		return syscall.ENXIO
	case errors.Is(err, blockdev.ErrOutOfRange):
		return syscall.EINVAL
	case errors.Is(err, blockdev.ErrReadOnly):
		return syscall.EROFS
	default:
		return syscall.EIO
	}
}

type rootNode struct {
	gofusefs.Inode

	registry *target.Registry
}

// NewRootNode returns FUSE Node listing all devices of a registry.
func NewRootNode(r *target.Registry) gofusefs.InodeEmbedder {
	return &rootNode{registry: r}
}

func (n *rootNode) Getattr(ctx context.Context, _ gofusefs.FileHandle, a *fuse.AttrOut) syscall.Errno {
	a.Mode = fuse.S_IFDIR | 0o555
	a.Nlink = 1

	return gofusefs.OK
}

func (n *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofusefs.Inode, syscall.Errno) {
	d, ok := n.registry.Device(name)
	if !ok {
		return nil, syscall.ENOENT
	}

	dn := &deviceDirNode{dev: d}
	dn.attributes(&out.Attr)

	return n.NewInode(ctx, dn, gofusefs.StableAttr{Mode: fuse.S_IFDIR}), gofusefs.OK
}

func (n *rootNode) Readdir(ctx context.Context) (gofusefs.DirStream, syscall.Errno) {
	result := []fuse.DirEntry{}

	for _, d := range n.registry.Devices() {
		result = append(result, fuse.DirEntry{
			Name: d.Name(),
			Mode: fuse.S_IFDIR,
		})
	}

	return gofusefs.NewListDirStream(result), gofusefs.OK
}

type deviceDirNode struct {
	gofusefs.Inode

	dev *target.Device
}

func (n *deviceDirNode) attributes(a *fuse.Attr) {
	populateAttributes(a, fuse.S_IFDIR|0o555, 0, n.dev)
}

func (n *deviceDirNode) Getattr(ctx context.Context, _ gofusefs.FileHandle, a *fuse.AttrOut) syscall.Errno {
	n.attributes(&a.Attr)

	return gofusefs.OK
}

func (n *deviceDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofusefs.Inode, syscall.Errno) {
	if n.dev.Removed() {
		return nil, syscall.ENOENT
	}

	switch name {
	case StatFileName:
		sn := &statFileNode{dev: n.dev}
		sn.attributes(&out.Attr)

		return n.NewInode(ctx, sn, gofusefs.StableAttr{Mode: fuse.S_IFREG}), gofusefs.OK

	case DeviceFileName:
		dn := &deviceFileNode{dev: n.dev}
		dn.attributes(&out.Attr)

		return n.NewInode(ctx, dn, gofusefs.StableAttr{Mode: fuse.S_IFREG}), gofusefs.OK

	default:
		return nil, syscall.ENOENT
	}
}

func (n *deviceDirNode) Readdir(ctx context.Context) (gofusefs.DirStream, syscall.Errno) {
	if n.dev.Removed() {
		return gofusefs.NewListDirStream(nil), gofusefs.OK
	}

	return gofusefs.NewListDirStream([]fuse.DirEntry{
		{Name: DeviceFileName, Mode: fuse.S_IFREG},
		{Name: StatFileName, Mode: fuse.S_IFREG},
	}), gofusefs.OK
}

var (
	_ gofusefs.NodeGetattrer = (*rootNode)(nil)
	_ gofusefs.NodeLookuper  = (*rootNode)(nil)
	_ gofusefs.NodeReaddirer = (*rootNode)(nil)
	_ gofusefs.NodeGetattrer = (*deviceDirNode)(nil)
	_ gofusefs.NodeLookuper  = (*deviceDirNode)(nil)
	_ gofusefs.NodeReaddirer = (*deviceDirNode)(nil)
)
