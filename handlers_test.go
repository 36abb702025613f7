package irc

import (
	"bytes"
	"testing"
)

func TestClient_pingMiddlewareEmitsEventPing(t *testing.T) {
	c := &Client{bus: newEventBus()}
	var got bool
	c.bus.On(EventPing, func(Event) { got = true })

	rec := &recorder{}
	h := c.pingMiddleware(HandlerFunc(func(MessageWriter, *Message) {}))
	h.SpeakIRC(rec, NewMessage(CmdPing, "123"))

	if !got {
		t.Errorf("EventPing was not emitted for an incoming PING")
	}
	if len(rec.lines) != 1 {
		t.Fatalf("got %d outgoing messages; want 1 PONG reply", len(rec.lines))
	}
}

func TestPingHandler_pongHandlerEmitsEventPong(t *testing.T) {
	bus := newEventBus()
	var got bool
	bus.On(EventPong, func(Event) { got = true })

	ph := &pingHandler{bus: bus}
	rec := &recorder{}
	h := ph.pongHandler(HandlerFunc(func(MessageWriter, *Message) {}))
	h.SpeakIRC(rec, NewMessage(CmdPong, "irc.example.com", "123"))

	if !got {
		t.Errorf("EventPong was not emitted for an incoming PONG")
	}
}

type nopReadWriteCloser struct {
	*bytes.Buffer
}

func (nopReadWriteCloser) Close() error { return nil }

func TestClient_writeMessageEmitsSelfMessage(t *testing.T) {
	c := &Client{bus: newEventBus()}
	c.session = NewSession("alice")
	c.conn = nopReadWriteCloser{&bytes.Buffer{}}
	c.send = NewSendPipeline(c.conn, 0)

	var got Event
	c.bus.On(EventSelfMessage, func(e Event) { got = e })
	c.WriteMessage(Msg("#chan", "hello"))

	if got.Type != EventSelfMessage {
		t.Fatalf("EventSelfMessage was not emitted for an outgoing PRIVMSG")
	}
	if got.Channel != "#chan" || got.Nick != "alice" {
		t.Errorf("EventSelfMessage = %+v; want Channel=#chan Nick=alice", got)
	}
}

func TestClient_writeMessageIgnoresNonPrivmsg(t *testing.T) {
	c := &Client{bus: newEventBus()}
	c.session = NewSession("alice")
	c.conn = nopReadWriteCloser{&bytes.Buffer{}}
	c.send = NewSendPipeline(c.conn, 0)

	var fired bool
	c.bus.On(EventSelfMessage, func(Event) { fired = true })
	c.WriteMessage(Join("#chan"))

	if fired {
		t.Errorf("EventSelfMessage fired for a non-PRIVMSG outgoing message")
	}
}
