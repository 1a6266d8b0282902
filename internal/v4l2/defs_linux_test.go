//go:build linux && (amd64 || arm64)
// +build linux
// +build amd64 arm64

package v4l2

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// Values from <linux/videodev2.h> on 64-bit little-endian targets.
func TestStructSizes(t *testing.T) {
	assert.EqualValues(t, 104, unsafe.Sizeof(v4l2_capability{}))
	assert.EqualValues(t, 64, unsafe.Sizeof(v4l2_fmtdesc{}))
	assert.EqualValues(t, 48, unsafe.Sizeof(v4l2_pix_format{}))
	assert.EqualValues(t, 208, unsafe.Sizeof(v4l2_format{}))
	assert.EqualValues(t, 204, unsafe.Sizeof(v4l2_streamparm{}))
	assert.EqualValues(t, 20, unsafe.Sizeof(v4l2_requestbuffers{}))
	assert.EqualValues(t, 88, unsafe.Sizeof(v4l2_buffer{}))
}

func TestIoctlNumbers(t *testing.T) {
	assert.EqualValues(t, 0x80685600, VIDIOC_QUERYCAP)
	assert.EqualValues(t, 0xc0405602, VIDIOC_ENUM_FMT)
	assert.EqualValues(t, 0xc0d05605, VIDIOC_S_FMT)
	assert.EqualValues(t, 0xc0145608, VIDIOC_REQBUFS)
	assert.EqualValues(t, 0xc0585609, VIDIOC_QUERYBUF)
	assert.EqualValues(t, 0xc058560f, VIDIOC_QBUF)
	assert.EqualValues(t, 0xc0585611, VIDIOC_DQBUF)
	assert.EqualValues(t, 0x40045612, VIDIOC_STREAMON)
	assert.EqualValues(t, 0x40045613, VIDIOC_STREAMOFF)
	assert.EqualValues(t, 0xc0cc5616, VIDIOC_S_PARM)
	assert.EqualValues(t, 0xc008561c, VIDIOC_S_CTRL)
}

func TestBufferOffset(t *testing.T) {
	var b v4l2_buffer
	*(*uint32)(unsafe.Pointer(&b.m)) = 0x1000
	assert.EqualValues(t, 0x1000, b.offset())
}

func TestCString(t *testing.T) {
	assert.Equal(t, "uvcvideo", cstring([]uint8{'u', 'v', 'c', 'v', 'i', 'd', 'e', 'o', 0, 0}))
	assert.Equal(t, "abc", cstring([]uint8{'a', 'b', 'c'}))
}
