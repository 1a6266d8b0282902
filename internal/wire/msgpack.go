package wire

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lanikai/alohacam/internal/media"
)

// binaryEnvelope mirrors Envelope with the payload kept as raw bytes.
type binaryEnvelope struct {
	Data      []byte    `msgpack:"data"`
	FrameType *string   `msgpack:"frameType"`
	EpochTime EpochTime `msgpack:"epochTime"`
	Encoding  string    `msgpack:"encoding"`
}

type msgpackFramer struct{}

func (msgpackFramer) Format() Format {
	return MsgPack
}

func (msgpackFramer) Frame(p *media.Packet) (*media.Message, error) {
	env := binaryEnvelope{
		FrameType: frameType(p.Kind),
		EpochTime: NewEpochTime(p.CapturedAt),
		Encoding:  p.Encoding.String(),
	}
	if len(p.Data) > 0 {
		env.Data = p.Data
	}

	b, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, errors.Wrap(err, "marshal envelope")
	}
	return &media.Message{Packet: p, Payload: b, Binary: true}, nil
}

func decodeMsgPack(b []byte) (*media.Packet, error) {
	var env binaryEnvelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, errors.Wrap(err, "unmarshal envelope")
	}

	p := &media.Packet{
		Data:       env.Data,
		CapturedAt: env.EpochTime.Time(),
	}
	var err error
	if p.Encoding, err = media.ParseEncoding(env.Encoding); err != nil {
		return nil, err
	}
	if p.Kind, err = parseFrameType(env.FrameType); err != nil {
		return nil, err
	}
	return p, nil
}
