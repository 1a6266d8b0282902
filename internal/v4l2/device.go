//go:build linux
// +build linux

package v4l2

import (
	"io"
	"path/filepath"
	"sort"
	"syscall"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// A V4L2 character device.
type Device struct {
	// Device path, usually "/dev/video0".
	path string

	// File descriptor of v4l2 device.
	fd int

	// Memory-mapped buffers, one per kernel buffer.
	mmaps [][]byte

	numBuffers int
	width      int
	height     int
	format     FourCC
}

// OpenDevice opens a device node without configuring it.
func OpenDevice(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	return &Device{
		path:       path,
		fd:         fd,
		numBuffers: 2,
	}, nil
}

// Open opens a device and applies cfg. The returned device is configured but
// not streaming; call Start.
func Open(path string, cfg Config) (*Device, error) {
	cfg.setDefaults()

	dev, err := OpenDevice(path)
	if err != nil {
		return nil, err
	}
	dev.numBuffers = cfg.NumBuffers

	if err := dev.SetPixelFormat(cfg.Width, cfg.Height, cfg.Format); err != nil {
		dev.Close()
		return nil, err
	}

	if cfg.FrameRate > 0 {
		if err := dev.SetFrameRate(cfg.FrameRate); err != nil {
			// Many UVC cameras ignore or reject S_PARM; not fatal.
			log.Warn("%s: cannot set frame rate %d: %v", path, cfg.FrameRate, err)
		}
	}

	if cfg.HFlip {
		if err := dev.setControl(V4L2_CID_HFLIP, 1); err != nil {
			log.Warn("%s: hflip: %v", path, err)
		}
	}
	if cfg.VFlip {
		if err := dev.setControl(V4L2_CID_VFLIP, 1); err != nil {
			log.Warn("%s: vflip: %v", path, err)
		}
	}

	return dev, nil
}

func (dev *Device) Path() string {
	return dev.path
}

// Format returns the negotiated frame size and pixel format.
func (dev *Device) Format() (width, height int, format FourCC) {
	return dev.width, dev.height, dev.format
}

func (dev *Device) Close() error {
	if err := dev.Stop(); err != nil {
		unix.Close(dev.fd)
		return err
	}

	return unix.Close(dev.fd)
}

func (dev *Device) ioctl(request uint, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(
			unix.SYS_IOCTL,
			uintptr(dev.fd),
			uintptr(request),
			uintptr(arg),
		)
		switch errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}

// Capability queries the driver identity and capability flags.
func (dev *Device) Capability() (Info, error) {
	var cap v4l2_capability
	if err := dev.ioctl(VIDIOC_QUERYCAP, unsafe.Pointer(&cap)); err != nil {
		return Info{}, errors.Wrap(err, "VIDIOC_QUERYCAP")
	}

	caps := cap.capabilities
	if caps&V4L2_CAP_DEVICE_CAPS != 0 {
		caps = cap.device_caps
	}

	return Info{
		Path:    dev.path,
		Driver:  cstring(cap.driver[:]),
		Card:    cstring(cap.card[:]),
		BusInfo: cstring(cap.bus_info[:]),
		Capture: caps&V4L2_CAP_VIDEO_CAPTURE != 0 && caps&V4L2_CAP_STREAMING != 0,
	}, nil
}

// Formats enumerates the pixel formats the device can capture.
func (dev *Device) Formats() ([]Format, error) {
	var out []Format
	for i := uint32(0); ; i++ {
		desc := v4l2_fmtdesc{
			index: i,
			typ:   V4L2_BUF_TYPE_VIDEO_CAPTURE,
		}
		if err := dev.ioctl(VIDIOC_ENUM_FMT, unsafe.Pointer(&desc)); err != nil {
			if err == syscall.EINVAL {
				break
			}
			return out, errors.Wrap(err, "VIDIOC_ENUM_FMT")
		}
		out = append(out, Format{
			FourCC:      FourCC(desc.pixelformat),
			Description: cstring(desc.description[:]),
			Compressed:  desc.flags&0x1 != 0,
		})
	}
	return out, nil
}

// SetPixelFormat requests a frame size and pixel format. The driver picks the
// closest size it supports; the format must match exactly.
func (dev *Device) SetPixelFormat(width, height int, format FourCC) error {
	f := v4l2_format{
		typ: V4L2_BUF_TYPE_VIDEO_CAPTURE,
	}
	pix := f.pix()
	pix.width = uint32(width)
	pix.height = uint32(height)
	pix.pixelformat = uint32(format)
	pix.field = V4L2_FIELD_ANY

	if err := dev.ioctl(VIDIOC_S_FMT, unsafe.Pointer(&f)); err != nil {
		return errors.Wrapf(err, "VIDIOC_S_FMT %dx%d %s", width, height, format)
	}
	if FourCC(pix.pixelformat) != format {
		return errors.Errorf("%s: pixel format %s not supported (driver chose %s)",
			dev.path, format, FourCC(pix.pixelformat))
	}

	dev.width = int(pix.width)
	dev.height = int(pix.height)
	dev.format = format
	if dev.width != width || dev.height != height {
		log.Info("%s: requested %dx%d, driver chose %dx%d", dev.path, width, height, dev.width, dev.height)
	}
	return nil
}

// SetFrameRate requests a capture interval of 1/fps seconds.
func (dev *Device) SetFrameRate(fps int) error {
	p := v4l2_streamparm{typ: V4L2_BUF_TYPE_VIDEO_CAPTURE}
	if err := dev.ioctl(VIDIOC_G_PARM, unsafe.Pointer(&p)); err != nil {
		return errors.Wrap(err, "VIDIOC_G_PARM")
	}
	if p.capture().capability&V4L2_CAP_TIMEPERFRAME == 0 {
		return errors.New("frame interval not adjustable")
	}

	p.capture().timeperframe = v4l2_fract{numerator: 1, denominator: uint32(fps)}
	return errors.Wrap(dev.ioctl(VIDIOC_S_PARM, unsafe.Pointer(&p)), "VIDIOC_S_PARM")
}

func (dev *Device) setControl(id uint32, value int32) error {
	ctrl := v4l2_control{id: id, value: value}
	return dev.ioctl(VIDIOC_S_CTRL, unsafe.Pointer(&ctrl))
}

// Query buffer parameters.
func (dev *Device) queryBuffer(n uint32) (length, offset uint32, err error) {
	qb := v4l2_buffer{
		index:  n,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err = dev.ioctl(VIDIOC_QUERYBUF, unsafe.Pointer(&qb)); err != nil {
		return
	}

	return qb.length, qb.offset(), nil
}

// Request specified number of kernel buffers memory-mapped to user-space.
// Returns the number the driver actually allocated.
func (dev *Device) requestBuffers(n int) (int, error) {
	rb := v4l2_requestbuffers{
		count:  uint32(n),
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	err := dev.ioctl(VIDIOC_REQBUFS, unsafe.Pointer(&rb))
	return int(rb.count), err
}

func (dev *Device) mapMemory() error {
	if dev.mmaps != nil {
		panic("v4l2 device: memory already mapped")
	}

	n, err := dev.requestBuffers(dev.numBuffers)
	if err != nil {
		return errors.Wrap(err, "VIDIOC_REQBUFS")
	}
	if n < 1 {
		return errors.Errorf("%s: driver allocated no buffers", dev.path)
	}

	for i := 0; i < n; i++ {
		length, offset, err := dev.queryBuffer(uint32(i))
		if err != nil {
			dev.unmapMemory()
			return errors.Wrap(err, "VIDIOC_QUERYBUF")
		}

		m, err := unix.Mmap(
			dev.fd,
			int64(offset),
			int(length),
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_SHARED,
		)
		if err != nil {
			dev.unmapMemory()
			return errors.Wrap(err, "mmap")
		}
		dev.mmaps = append(dev.mmaps, m)
	}
	return nil
}

func (dev *Device) unmapMemory() error {
	for _, m := range dev.mmaps {
		if err := unix.Munmap(m); err != nil {
			return err
		}
	}
	dev.mmaps = nil

	_, err := dev.requestBuffers(0)
	return err
}

func (dev *Device) enqueue(index int) error {
	qbuf := v4l2_buffer{
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
		index:  uint32(index),
	}
	return dev.ioctl(VIDIOC_QBUF, unsafe.Pointer(&qbuf))
}

func (dev *Device) dequeue() (index, n int, err error) {
	dqbuf := v4l2_buffer{
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	err = dev.ioctl(VIDIOC_DQBUF, unsafe.Pointer(&dqbuf))
	return int(dqbuf.index), int(dqbuf.bytesused), err
}

func (dev *Device) enableStream() error {
	typ := int32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	return dev.ioctl(VIDIOC_STREAMON, unsafe.Pointer(&typ))
}

func (dev *Device) disableStream() error {
	// Disable stream (dequeues any outstanding buffers as well)
	typ := int32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	return dev.ioctl(VIDIOC_STREAMOFF, unsafe.Pointer(&typ))
}

// Start video capture.
func (dev *Device) Start() error {
	if err := dev.mapMemory(); err != nil {
		return err
	}

	for i := range dev.mmaps {
		if err := dev.enqueue(i); err != nil {
			dev.unmapMemory()
			return errors.Wrap(err, "VIDIOC_QBUF")
		}
	}

	if err := dev.enableStream(); err != nil {
		dev.unmapMemory()
		return errors.Wrap(err, "VIDIOC_STREAMON")
	}
	return nil
}

// Stop video capture. Safe to call when not started.
func (dev *Device) Stop() error {
	if dev.mmaps == nil {
		return nil
	}

	if err := dev.disableStream(); err != nil {
		log.Warn("%s: VIDIOC_STREAMOFF: %v", dev.path, err)
	}

	return dev.unmapMemory()
}

// ReadFrame waits up to timeout for the next frame and returns a copy of its
// bytes. Returns ErrTimeout if the device delivered nothing in time, and
// io.EOF if the device went away.
func (dev *Device) ReadFrame(timeout time.Duration) ([]byte, error) {
	if dev.mmaps == nil {
		return nil, ErrNotStarted
	}

	fds := []unix.PollFd{{Fd: int32(dev.fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "poll")
		}
		if n == 0 {
			return nil, ErrTimeout
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
			return nil, io.EOF
		}
		break
	}

	index, n, err := dev.dequeue()
	if err != nil {
		if err == syscall.EINVAL || err == syscall.ENODEV {
			return nil, io.EOF
		}
		return nil, errors.Wrap(err, "VIDIOC_DQBUF")
	}

	// Copy data to new heap-allocated buffer.
	out := append([]byte(nil), dev.mmaps[index][:n]...)

	if err := dev.enqueue(index); err != nil {
		return out, errors.Wrap(err, "VIDIOC_QBUF")
	}
	return out, nil
}

// ListDevices probes every /dev/video* node and reports what each one is.
// Nodes that cannot be opened are skipped.
func ListDevices() ([]Info, error) {
	paths, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []Info
	for _, path := range paths {
		dev, err := OpenDevice(path)
		if err != nil {
			log.Debug("skipping %s: %v", path, err)
			continue
		}

		info, err := dev.Capability()
		if err == nil && info.Capture {
			info.Formats, _ = dev.Formats()
		}
		unix.Close(dev.fd)
		if err != nil {
			log.Debug("skipping %s: %v", path, err)
			continue
		}
		out = append(out, info)
	}
	return out, nil
}
