// comment

/*
Package irc provides an IRC client implementation.

API

These are the main interfaces and structs that you will interact with while using this package:

	// A Handler responds to an IRC message.
	type Handler interface {
		SpeakIRC(MessageWriter, *Message)
	}

	// A MessageWriter can write an IRC message.
	type MessageWriter interface {
		WriteMessage(encoding.TextMarshaler)
	}

	// Message represents any incoming our outgoing IRC line.
	// It also satisfies the encoding.TextMarshaler interface used by MessageWriter.
	type Message struct {

		// Tags contains any IRCv3 message tags.
		Tags    Tags

		// Source is where the message originated from.
		Source  Prefix

		// Command is the IRC verb or canonical numeric name (event type) such as PRIVMSG, NOTICE, rpl_welcome (for 001), etc.
		Command Command

		// Params contains all the message parameters.
		Params  Params
	}

	// A Client manages a connection: dialing, capability negotiation, SASL,
	// registration, nick-collision recovery, reconnect, and dispatch of
	// parsed messages to its Handler.
	type Client struct {
		Config
		// ...
	}

	// NewClient builds a Client from a Config.
	func NewClient(cfg Config) *Client {
		// ...
	}

	// ConnectAndRun connects to the IRC server and runs the client until the connection is closed,
	// calling h for each message the client parses from the connection. If the connection was not
	// supplied externally via Config.DialFn, ConnectAndRun reconnects according to
	// Config.RetryCount/Config.RetryDelay.
	func (c *Client) ConnectAndRun(ctx context.Context, h Handler) error {
		// ...
	}

Encoding and Decoding

The Message type can marshal and unmarshal itself to and from a raw line of IRC-formatted text.
If you only want IRC parsing and encoding,
you can use this type for encoding or decoding IRC messages.

Session state and events

A Client's Session holds the persistable state of a connection: registration status, current
nick, hostmask, joined channels and their members/modes, in-flight WHOIS accumulators, negotiated
capabilities, and ISUPPORT-derived rules. Session.Flush, if set, is called after each coherent
batch of state mutations, which is useful for persisting state across restarts.

A Client's EventBus exposes a typed, subscribable surface (On/Once/OnChannel) for the events
enumerated by EventType, so an embedder does not need to write its own Router matching logic for
common cases such as join/part/message/whois.

Request lifecycle

	- NewClient builds a Client from a Config and is given to ConnectAndRun along with a Handler.
	- The handler is wrapped by a chain of middleware that implement sub-protocols: CTCP rewriting,
	PING/PONG, state tracking, and CAP/SASL/registration negotiation.
	- ConnectAndRun calls the function in the DialFn field of its Config struct to connect to an IRC
	stream, or dials Config.Addr directly (optionally over TLS) if DialFn is nil.
	- The client begins reading lines from the stream and parsing them into Message structs until
	the connection is closed.
	- Each Message parsed from the stream results in a call to the client's handler chain, which is
	given an object implementing MessageWriter as well as a pointer to the parsed Message struct.

*/
package irc
