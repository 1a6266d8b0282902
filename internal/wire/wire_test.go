package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacam/internal/media"
)

var capturedAt = time.Unix(1700000000, 123000000)

func TestJSONEnvelope(t *testing.T) {
	fr, err := NewFramer(JSON)
	require.NoError(t, err)

	m, err := fr.Frame(&media.Packet{
		Data:       []byte{1, 2, 3},
		Kind:       media.Key,
		Encoding:   media.AV1,
		CapturedAt: capturedAt,
	})
	require.NoError(t, err)
	assert.False(t, m.Binary)
	assert.Equal(t,
		`{"data":"AQID","frameType":"key","epochTime":{"secs":1700000000,"nanos":123000000},"encoding":"AV1"}`,
		string(m.Payload))
}

func TestJSONEnvelopeNulls(t *testing.T) {
	fr, _ := NewFramer(JSON)

	m, err := fr.Frame(&media.Packet{Encoding: media.MJPEG, CapturedAt: capturedAt})
	require.NoError(t, err)
	assert.Equal(t,
		`{"data":null,"frameType":null,"epochTime":{"secs":1700000000,"nanos":123000000},"encoding":"MJPEG"}`,
		string(m.Payload))
}

func TestDecodeJSON(t *testing.T) {
	p, err := Decode(JSON, media.MJPEG, []byte(
		`{"data":"AQID","frameType":"delta","epochTime":{"secs":1700000000,"nanos":123000000},"encoding":"AV1"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p.Data)
	assert.Equal(t, media.Delta, p.Kind)
	assert.Equal(t, media.AV1, p.Encoding)
	assert.True(t, capturedAt.Equal(p.CapturedAt))

	for _, bad := range []string{
		`not json`,
		`{"data":null,"frameType":null,"epochTime":{"secs":1,"nanos":0},"encoding":"H264"}`,
		`{"data":null,"frameType":"bidi","epochTime":{"secs":1,"nanos":0},"encoding":"AV1"}`,
		`{"data":"!!","frameType":null,"epochTime":{"secs":1,"nanos":0},"encoding":"AV1"}`,
	} {
		_, err := Decode(JSON, media.MJPEG, []byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestMsgPackEnvelope(t *testing.T) {
	fr, err := NewFramer(MsgPack)
	require.NoError(t, err)

	in := &media.Packet{
		Data:       []byte("jpeg bytes"),
		Encoding:   media.MJPEG,
		CapturedAt: capturedAt,
	}
	m, err := fr.Frame(in)
	require.NoError(t, err)
	assert.True(t, m.Binary)
	assert.Same(t, in, m.Packet)

	out, err := Decode(MsgPack, media.AV1, m.Payload)
	require.NoError(t, err)
	assert.Equal(t, in.Data, out.Data)
	assert.Equal(t, media.NoKind, out.Kind)
	assert.Equal(t, media.MJPEG, out.Encoding)
	assert.True(t, capturedAt.Equal(out.CapturedAt))
}

func TestBinaryFrame(t *testing.T) {
	fr, err := NewFramer(Binary)
	require.NoError(t, err)

	in := &media.Packet{Data: []byte{9, 8, 7}, Kind: media.Delta, Encoding: media.AV1}
	m, err := fr.Frame(in)
	require.NoError(t, err)
	assert.True(t, m.Binary)
	assert.Equal(t, in.Data, m.Payload)

	out, err := Decode(Binary, media.AV1, m.Payload)
	require.NoError(t, err)
	assert.Equal(t, media.AV1, out.Encoding)
	assert.Equal(t, in.Data, out.Data)
}

func TestParseFormat(t *testing.T) {
	for s, want := range map[string]Format{
		"json":    JSON,
		"":        JSON,
		"MsgPack": MsgPack,
		"binary":  Binary,
		"raw":     Binary,
	} {
		got, err := ParseFormat(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := ParseFormat("protobuf")
	assert.Error(t, err)

	_, err = NewFramer(Format(9))
	assert.Error(t, err)
}

func TestEpochTime(t *testing.T) {
	e := NewEpochTime(capturedAt)
	assert.Equal(t, EpochTime{Secs: 1700000000, Nanos: 123000000}, e)
	assert.True(t, capturedAt.Equal(e.Time()))
	assert.Equal(t, EpochTime{}, NewEpochTime(time.Time{}))
}
