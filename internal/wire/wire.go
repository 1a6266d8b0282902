// Package wire serializes encoded packets for viewers.
//
// Three shapes are supported, fixed per deployment:
//
//	json     text message: {"data": base64|null, "frameType": "key"|"delta"|null,
//	         "epochTime": {"secs": N, "nanos": N}, "encoding": "MJPEG"|"AV1"}
//	msgpack  binary message: the same envelope, with raw payload bytes
//	binary   binary message: the payload alone, one encoded unit per message
package wire

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacam/internal/media"
)

// Format selects the wire shape.
type Format int

const (
	JSON Format = iota
	MsgPack
	Binary
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case MsgPack:
		return "msgpack"
	case Binary:
		return "binary"
	default:
		return "unknown"
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	case "binary", "raw":
		return Binary, nil
	}
	return 0, errors.Errorf("unknown wire format %q", s)
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// ContentType is the MIME type of a framed message.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case MsgPack:
		return "application/msgpack"
	default:
		return "application/octet-stream"
	}
}

// EpochTime is a wall-clock instant as seconds and nanoseconds since the Unix
// epoch.
type EpochTime struct {
	Secs  uint64 `json:"secs" msgpack:"secs"`
	Nanos uint32 `json:"nanos" msgpack:"nanos"`
}

func NewEpochTime(t time.Time) EpochTime {
	if t.Before(time.Unix(0, 0)) {
		return EpochTime{}
	}
	return EpochTime{
		Secs:  uint64(t.Unix()),
		Nanos: uint32(t.Nanosecond()),
	}
}

func (e EpochTime) Time() time.Time {
	return time.Unix(int64(e.Secs), int64(e.Nanos))
}

// Framer serializes packets. Implementations are safe for concurrent use.
type Framer interface {
	Format() Format
	Frame(p *media.Packet) (*media.Message, error)
}

// NewFramer returns the framer for f.
func NewFramer(f Format) (Framer, error) {
	switch f {
	case JSON:
		return jsonFramer{}, nil
	case MsgPack:
		return msgpackFramer{}, nil
	case Binary:
		return binaryFramer{}, nil
	}
	return nil, errors.Errorf("unknown wire format %d", f)
}

// Decode parses a framed message back into a packet. For Binary, which
// carries no metadata, enc is used as the encoding and the capture time is
// left zero.
func Decode(f Format, enc media.Encoding, payload []byte) (*media.Packet, error) {
	switch f {
	case JSON:
		return decodeJSON(payload)
	case MsgPack:
		return decodeMsgPack(payload)
	case Binary:
		return &media.Packet{Data: payload, Encoding: enc}, nil
	}
	return nil, errors.Errorf("unknown wire format %d", f)
}

func frameType(k media.FrameKind) *string {
	if k == media.NoKind {
		return nil
	}
	s := k.String()
	return &s
}

func parseFrameType(s *string) (media.FrameKind, error) {
	if s == nil {
		return media.NoKind, nil
	}
	switch *s {
	case "key":
		return media.Key, nil
	case "delta":
		return media.Delta, nil
	}
	return media.NoKind, errors.Errorf("unknown frameType %q", *s)
}

type binaryFramer struct{}

func (binaryFramer) Format() Format {
	return Binary
}

func (binaryFramer) Frame(p *media.Packet) (*media.Message, error) {
	return &media.Message{Packet: p, Payload: p.Data, Binary: true}, nil
}
