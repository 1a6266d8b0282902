//go:build cgo && aom
// +build cgo,aom

package av1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacam/internal/codec"
	"github.com/lanikai/alohacam/internal/media"
)

func TestLibaomEncodes(t *testing.T) {
	require.True(t, Available())

	p := codec.DefaultParams()
	p.Width, p.Height = 64, 48
	newBackend, err := codec.LookupBackend(Name)
	require.NoError(t, err)

	enc, err := codec.NewIncremental(p, newBackend)
	require.NoError(t, err)
	defer enc.Close()

	var kinds []media.FrameKind
	for i := 0; i < 60; i++ {
		f := media.NewRawFrame(64, 48)
		for j := range f.Pix {
			f.Pix[j] = byte(i*3 + j)
		}
		f.CapturedAt = time.Now()

		res, err := enc.Encode(f)
		require.NoError(t, err)
		if res.Status == codec.Encoded {
			assert.NotEmpty(t, res.Packet.Data)
			kinds = append(kinds, res.Packet.Kind)
		}
	}

	require.NotEmpty(t, kinds)
	assert.Equal(t, media.Key, kinds[0])

	last := 0
	for i, k := range kinds {
		if k == media.Key {
			assert.True(t, i-last <= 50)
			last = i
		}
	}
}
