//go:build !windows && !openbsd && !freebsd

package fusemount

import (
	"context"
	"syscall"

	gofusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/dmstat/dmstat/target"
)

// statFileNode exposes the statistics report, generated when the file is opened.
type statFileNode struct {
	gofusefs.Inode

	dev *target.Device
}

func (n *statFileNode) report() []byte {
	st, _ := n.dev.Status()

	return []byte(st)
}

func (n *statFileNode) attributes(a *fuse.Attr) {
	populateAttributes(a, fuse.S_IFREG|0o444, int64(len(n.report())), n.dev)
}

func (n *statFileNode) Getattr(ctx context.Context, _ gofusefs.FileHandle, a *fuse.AttrOut) syscall.Errno {
	n.attributes(&a.Attr)

	return gofusefs.OK
}

func (n *statFileNode) Open(ctx context.Context, flags uint32) (gofusefs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EACCES
	}

	if n.dev.Removed() {
		return nil, 0, syscall.ENXIO
	}

	// contents are regenerated on each open and must not be cached.
	return &statFileHandle{data: n.report()}, fuse.FOPEN_DIRECT_IO, gofusefs.OK
}

type statFileHandle struct {
	data []byte
}

func (h *statFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off >= int64(len(h.data)) {
		return fuse.ReadResultData(nil), gofusefs.OK
	}

	end := min(off+int64(len(dest)), int64(len(h.data)))

	return fuse.ReadResultData(h.data[off:end]), gofusefs.OK
}

// deviceFileNode gives access to the device data, every request passes through the target.
type deviceFileNode struct {
	gofusefs.Inode

	dev *target.Device
}

func (n *deviceFileNode) attributes(a *fuse.Attr) {
	var perm uint32 = 0o644
	if n.dev.Spec().ReadOnly {
		perm = 0o444
	}

	populateAttributes(a, fuse.S_IFREG|perm, n.dev.Size(), n.dev)
}

func (n *deviceFileNode) Getattr(ctx context.Context, _ gofusefs.FileHandle, a *fuse.AttrOut) syscall.Errno {
	n.attributes(&a.Attr)

	return gofusefs.OK
}

// Setattr only accepts truncation to the current size.
func (n *deviceFileNode) Setattr(ctx context.Context, _ gofusefs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if sz, ok := in.GetSize(); ok && int64(sz) != n.dev.Size() { //nolint:gosec
		return syscall.EPERM
	}

	n.attributes(&out.Attr)

	return gofusefs.OK
}

func (n *deviceFileNode) Open(ctx context.Context, flags uint32) (gofusefs.FileHandle, uint32, syscall.Errno) {
	if n.dev.Removed() {
		return nil, 0, syscall.ENXIO
	}

	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 && n.dev.Spec().ReadOnly {
		return nil, 0, syscall.EROFS
	}

	// each request must reach the target.
	return &deviceFileHandle{dev: n.dev}, fuse.FOPEN_DIRECT_IO, gofusefs.OK
}

type deviceFileHandle struct {
	dev *target.Device
}

func (h *deviceFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	size := h.dev.Size()
	if off >= size {
		return fuse.ReadResultData(nil), gofusefs.OK
	}

	if remaining := size - off; int64(len(dest)) > remaining {
		dest = dest[:remaining]
	}

	n, err := h.dev.ReadAt(dest, off)
	if err != nil {
		log(ctx).Errorf("read error: %v at %v: %v", h.dev.Name(), off, err)
		return nil, toErrno(err)
	}

	return fuse.ReadResultData(dest[:n]), gofusefs.OK
}

func (h *deviceFileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	if off+int64(len(data)) > h.dev.Size() {
		return 0, syscall.ENOSPC
	}

	n, err := h.dev.WriteAt(data, off)
	if err != nil {
		log(ctx).Errorf("write error: %v at %v: %v", h.dev.Name(), off, err)
		return uint32(n), toErrno(err) //nolint:gosec
	}

	return uint32(n), gofusefs.OK //nolint:gosec
}

func (h *deviceFileHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	if err := h.dev.Sync(); err != nil {
		log(ctx).Errorf("sync error: %v: %v", h.dev.Name(), err)
		return toErrno(err)
	}

	return gofusefs.OK
}

var (
	_ gofusefs.NodeGetattrer = (*statFileNode)(nil)
	_ gofusefs.NodeOpener    = (*statFileNode)(nil)
	_ gofusefs.FileReader    = (*statFileHandle)(nil)
	_ gofusefs.NodeGetattrer = (*deviceFileNode)(nil)
	_ gofusefs.NodeSetattrer = (*deviceFileNode)(nil)
	_ gofusefs.NodeOpener    = (*deviceFileNode)(nil)
	_ gofusefs.FileReader    = (*deviceFileHandle)(nil)
	_ gofusefs.FileWriter    = (*deviceFileHandle)(nil)
	_ gofusefs.FileFsyncer   = (*deviceFileHandle)(nil)
)
