package irc

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func TestNewSASLExchange_unknownType(t *testing.T) {
	if _, err := newSASLExchange(SASLType("SCRAM-SHA-1"), "user", "pass"); err == nil {
		t.Errorf("expected an error for an unsupported SASL type")
	}
}

func TestSASLExchange_plain(t *testing.T) {
	ex, err := newSASLExchange(SASLPlain, "alice", "hunter2")
	if err != nil {
		t.Fatalf("newSASLExchange: %v", err)
	}
	mechanism, initial, err := ex.start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if mechanism != "PLAIN" {
		t.Errorf("mechanism = %q; want PLAIN", mechanism)
	}
	want := "\x00alice\x00hunter2"
	if string(initial) != want {
		t.Errorf("initial = %q; want %q", initial, want)
	}
}

func TestDecodeAuthenticate(t *testing.T) {
	m := new(Message)
	if err := m.UnmarshalText([]byte("AUTHENTICATE +\r\n")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	got, err := decodeAuthenticate(m)
	if err != nil {
		t.Fatalf("decodeAuthenticate: %v", err)
	}
	if got != nil {
		t.Errorf("decodeAuthenticate(bare +) = %v; want nil", got)
	}

	payload := []byte("hello")
	encoded := base64.StdEncoding.EncodeToString(payload)
	m2 := new(Message)
	if err := m2.UnmarshalText([]byte("AUTHENTICATE " + encoded + "\r\n")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	got2, err := decodeAuthenticate(m2)
	if err != nil {
		t.Fatalf("decodeAuthenticate: %v", err)
	}
	if !bytes.Equal(got2, payload) {
		t.Errorf("decodeAuthenticate() = %q; want %q", got2, payload)
	}
}

func TestEncodeAuthenticate_shortPayload(t *testing.T) {
	msgs := encodeAuthenticate([]byte("\x00alice\x00hunter2"))
	if len(msgs) != 1 {
		t.Fatalf("encodeAuthenticate() produced %d lines; want 1", len(msgs))
	}
	text, err := msgs[0].MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if !strings.HasPrefix(string(text), "AUTHENTICATE ") {
		t.Errorf("line = %q; want AUTHENTICATE prefix", text)
	}
}

func TestEncodeAuthenticate_emptyPayload(t *testing.T) {
	msgs := encodeAuthenticate(nil)
	if len(msgs) != 1 {
		t.Fatalf("encodeAuthenticate(nil) produced %d lines; want 1", len(msgs))
	}
	text, _ := msgs[0].MarshalText()
	if !strings.Contains(string(text), "+") {
		t.Errorf("line = %q; want a bare + payload", text)
	}
}

func TestEncodeAuthenticate_chunking(t *testing.T) {
	// 400 chars of base64 decode to 300 raw bytes; with an extra byte
	// the encoded payload spans two AUTHENTICATE lines.
	payload := bytes.Repeat([]byte{'a'}, 301)
	msgs := encodeAuthenticate(payload)
	if len(msgs) < 2 {
		t.Fatalf("encodeAuthenticate() produced %d lines; want at least 2 for a payload exceeding one chunk", len(msgs))
	}
	// every line but the last must carry exactly 400 bytes of base64 data.
	for i, m := range msgs[:len(msgs)-1] {
		text, _ := m.MarshalText()
		data := strings.TrimPrefix(strings.TrimSuffix(string(text), "\r\n"), "AUTHENTICATE :")
		if len(data) != 400 {
			t.Errorf("line %d carries %d bytes of base64 data; want 400", i, len(data))
		}
	}
}
