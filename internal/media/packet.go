package media

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Encoding identifies how a packet payload was produced. Selected once at
// startup.
type Encoding int

const (
	// MJPEG is the stateless full-frame mode: every packet is a JPEG image.
	MJPEG Encoding = iota

	// AV1 is the stateful incremental mode: packets are key or delta units
	// from one encoder context.
	AV1
)

func (e Encoding) String() string {
	switch e {
	case MJPEG:
		return "MJPEG"
	case AV1:
		return "AV1"
	default:
		return "Encoding(" + strconv.Itoa(int(e)) + ")"
	}
}

// Incremental reports whether packets of this encoding depend on earlier
// packets.
func (e Encoding) Incremental() bool {
	return e == AV1
}

// ParseEncoding accepts "MJPEG" or "AV1", case-insensitively.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MJPEG":
		return MJPEG, nil
	case "AV1":
		return AV1, nil
	}
	return 0, errors.Errorf("unknown encoding mode %q", s)
}

func (e Encoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Encoding) UnmarshalText(text []byte) error {
	v, err := ParseEncoding(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// FrameKind classifies incremental packets. Full-frame packets carry NoKind.
type FrameKind int

const (
	NoKind FrameKind = iota
	Key
	Delta
)

func (k FrameKind) String() string {
	switch k {
	case Key:
		return "key"
	case Delta:
		return "delta"
	default:
		return ""
	}
}

// Packet is one encoded unit. Immutable once published; every viewer queue
// holding it shares the same instance.
type Packet struct {
	Data       []byte
	Kind       FrameKind
	Encoding   Encoding
	CapturedAt time.Time
}

// Message is a packet serialized for viewers. Framing happens once per
// packet, before fan-out.
type Message struct {
	Packet *Packet

	// Bytes to put on the wire.
	Payload []byte

	// Binary messages go out as websocket binary frames, others as text.
	Binary bool
}
