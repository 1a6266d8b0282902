package wire

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacam/internal/media"
)

// Envelope is the JSON wire shape. Data and FrameType serialize as null when
// absent.
type Envelope struct {
	Data      *string   `json:"data"`
	FrameType *string   `json:"frameType"`
	EpochTime EpochTime `json:"epochTime"`
	Encoding  string    `json:"encoding"`
}

type jsonFramer struct{}

func (jsonFramer) Format() Format {
	return JSON
}

func (jsonFramer) Frame(p *media.Packet) (*media.Message, error) {
	env := Envelope{
		FrameType: frameType(p.Kind),
		EpochTime: NewEpochTime(p.CapturedAt),
		Encoding:  p.Encoding.String(),
	}
	if len(p.Data) > 0 {
		s := base64.StdEncoding.EncodeToString(p.Data)
		env.Data = &s
	}

	b, err := json.Marshal(&env)
	if err != nil {
		return nil, errors.Wrap(err, "marshal envelope")
	}
	return &media.Message{Packet: p, Payload: b}, nil
}

func decodeJSON(b []byte) (*media.Packet, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, errors.Wrap(err, "unmarshal envelope")
	}

	p := &media.Packet{CapturedAt: env.EpochTime.Time()}
	var err error
	if p.Encoding, err = media.ParseEncoding(env.Encoding); err != nil {
		return nil, err
	}
	if p.Kind, err = parseFrameType(env.FrameType); err != nil {
		return nil, err
	}
	if env.Data != nil {
		if p.Data, err = base64.StdEncoding.DecodeString(*env.Data); err != nil {
			return nil, errors.Wrap(err, "decode data")
		}
	}
	return p, nil
}
