package irc

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// EncodingShim transcodes raw bytes read off the wire into UTF-8 text:
// if a target encoding is configured, it decodes (or assumes) the source
// charset and transcodes; otherwise it falls back to best-effort UTF-8,
// using encodingFallback when the bytes aren't valid UTF-8.
// Detection/transcode failures are swallowed and the original bytes pass
// through unmodified, since a malformed line is still more useful to the
// embedder than a dropped one.
type EncodingShim struct {
	// Target is the configured source encoding name (e.g. "iso-8859-1"),
	// looked up via golang.org/x/text/encoding/htmlindex. Empty means "assume UTF-8".
	Target string
	// Fallback is used when Target is empty and the bytes are not valid UTF-8.
	Fallback string
}

// Decode converts b according to the shim's configuration, returning the
// resulting text.
func (e EncodingShim) Decode(b []byte) string {
	if e.Target != "" {
		if enc, err := htmlindex.Get(e.Target); err == nil {
			if out, err := decodeWith(enc, b); err == nil {
				return out
			}
		}
		return string(b)
	}

	if utf8.Valid(b) {
		return string(b)
	}

	if e.Fallback != "" {
		if enc, err := htmlindex.Get(e.Fallback); err == nil {
			if out, err := decodeWith(enc, b); err == nil {
				return out
			}
		}
	}

	return string(b)
}

func decodeWith(enc encoding.Encoding, b []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
