package irc

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/emersion/go-sasl"
)

// SASLType selects which SASL mechanism the Session Engine negotiates
// during capability negotiation.
type SASLType string

const (
	SASLPlain    SASLType = "PLAIN"
	SASLExternal SASLType = "EXTERNAL"
)

// errUnsupportedSASL is raised locally (never sent on the wire) when the
// configured SASL method was requested but the server did not advertise
// it. Negotiation aborts with CAP END rather than attempting a mechanism
// the server never offered.
var errUnsupportedSASL = errors.New("irc: server does not support the requested SASL method")

// saslExchange drives a single SASL client mechanism across the
// AUTHENTICATE exchange. It wraps github.com/emersion/go-sasl's client
// Start()/Next() API, base64-encoding/decoding the wire payloads and
// chunking outgoing data at the 400-byte AUTHENTICATE line limit.
type saslExchange struct {
	client sasl.Client
}

func newSASLExchange(typ SASLType, user, password string) (*saslExchange, error) {
	switch typ {
	case SASLPlain:
		return &saslExchange{client: sasl.NewPlainClient("", user, password)}, nil
	case SASLExternal:
		return &saslExchange{client: sasl.NewExternalAuthClient("")}, nil
	default:
		return nil, fmt.Errorf("irc: unknown SASL type %q", typ)
	}
}

// start returns the initial response, if the mechanism has one.
func (s *saslExchange) start() (mechanism string, initial []byte, err error) {
	return s.client.Start()
}

// next answers a server challenge (the base64-decoded payload following
// "AUTHENTICATE <chunk>"; an empty challenge corresponds to the bare "+"
// the server sends to request our initial response).
func (s *saslExchange) next(challenge []byte) ([]byte, error) {
	_, resp, err := s.client.Next(challenge)
	return resp, err
}

// encodeAuthenticate base64-encodes payload and splits it into
// AUTHENTICATE lines no longer than 400 bytes of base64 data each, per
// the IRCv3 SASL spec; an exact multiple of 400 is terminated with a
// line containing a bare "+" to mark the end of the payload.
func encodeAuthenticate(payload []byte) []*Message {
	if len(payload) == 0 {
		return []*Message{NewMessage(CmdAuthenticate, "+")}
	}
	enc := base64.StdEncoding.EncodeToString(payload)
	const chunk = 400
	var out []*Message
	for len(enc) > 0 {
		n := chunk
		if n > len(enc) {
			n = len(enc)
		}
		out = append(out, NewMessage(CmdAuthenticate, enc[:n]))
		enc = enc[n:]
	}
	if len(enc) == 0 && len(payload) > 0 && len(payload)%(chunk*3/4) == 0 {
		// a payload landing exactly on a chunk boundary needs an explicit
		// empty-payload terminator so the server doesn't wait for more.
		out = append(out, NewMessage(CmdAuthenticate, "+"))
	}
	return out
}

// decodeAuthenticate base64-decodes the single parameter of an
// AUTHENTICATE challenge line. A bare "+" decodes to an empty challenge.
func decodeAuthenticate(m *Message) ([]byte, error) {
	p := m.Params.Get(1)
	if p == "+" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(p)
}
