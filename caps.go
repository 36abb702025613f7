package irc

import "strings"

// Capabilities accumulates the multi-line CAP LS / CAP ACK exchange
// defined by the IRCv3 capability negotiation spec and exposes readiness
// signals and SASL method queries to the Session Engine.
//
// Earlier, simpler clients often drive CAP negotiation with nothing more
// than "CAP LS" followed by "CAP END", discarding the advertised list
// entirely; Capabilities instead retains it so SASL method selection and
// capability-gated behavior elsewhere can query what the server offers.
type Capabilities struct {
	// serverCaps holds every capability token the server advertised via
	// CAP LS, across however many continuation lines it took.
	serverCaps map[string]string // cap name -> value (e.g. sasl -> "PLAIN,EXTERNAL")

	// userCaps holds capabilities the server ACKed for this connection.
	userCaps map[string]bool

	// lsComplete is set once a CAP LS/NEW line arrives without a
	// continuation marker ("*" in the 3rd param).
	lsComplete bool

	// acked is set once a CAP ACK has been observed for a requested batch.
	acked bool
}

func newCapabilities() *Capabilities {
	return &Capabilities{
		serverCaps: make(map[string]string),
		userCaps:   make(map[string]bool),
	}
}

// applyLS folds one CAP LS/NEW continuation line into the tracker.
// final indicates whether this was the last line of the batch (no "*"
// continuation marker).
func (c *Capabilities) applyLS(tokens []string, final bool) {
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		name, value, _ := strings.Cut(tok, "=")
		c.serverCaps[strings.ToLower(name)] = value
	}
	if final {
		c.lsComplete = true
	}
}

// applyDel removes capabilities named in a CAP DEL line (cap-notify).
func (c *Capabilities) applyDel(tokens []string) {
	for _, tok := range tokens {
		name, _, _ := strings.Cut(tok, "=")
		name = strings.ToLower(name)
		delete(c.serverCaps, name)
		delete(c.userCaps, name)
	}
}

// applyAck records capabilities the server ACKed as requested by us.
func (c *Capabilities) applyAck(tokens []string) {
	for _, tok := range tokens {
		name := strings.ToLower(strings.TrimPrefix(tok, "-"))
		if name == "" {
			continue
		}
		if strings.HasPrefix(tok, "-") {
			delete(c.userCaps, name)
			continue
		}
		c.userCaps[name] = true
	}
	c.acked = true
}

// serverCapabilitiesReady reports whether the CAP LS batch has finished.
func (c *Capabilities) serverCapabilitiesReady() bool {
	return c.lsComplete
}

// userCapabilitiesReady reports whether a CAP ACK has been observed for
// our requested capability set.
func (c *Capabilities) userCapabilitiesReady() bool {
	return c.acked
}

// supportsSasl reports whether the server advertised the sasl capability.
func (c *Capabilities) supportsSasl() bool {
	_, ok := c.serverCaps["sasl"]
	return ok
}

// supportsSaslMethod reports whether method is one of the server's
// advertised SASL mechanisms. If the server advertised "sasl" with no
// method list (bare "sasl" token, common on servers predating the
// mechanism-list extension), allowNoMethods is returned instead.
func (c *Capabilities) supportsSaslMethod(method string, allowNoMethods bool) bool {
	v, ok := c.serverCaps["sasl"]
	if !ok {
		return false
	}
	if v == "" {
		return allowNoMethods
	}
	for _, m := range strings.Split(v, ",") {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// requested returns the capabilities of the caller's wanted set that the
// server actually advertised, in the order they were wanted, for use in a
// CAP REQ.
func (c *Capabilities) requested(want []string) []string {
	var out []string
	for _, w := range want {
		if _, ok := c.serverCaps[strings.ToLower(w)]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Enabled returns the set of capabilities currently acknowledged as
// active for this connection, in no particular order.
func (c *Capabilities) Enabled() []string {
	out := make([]string, 0, len(c.userCaps))
	for name := range c.userCaps {
		out = append(out, name)
	}
	return out
}

// serialize returns four lists for persisting capability state across a
// process restart: server caps, server sasl methods, user caps, user
// sasl methods.
func (c *Capabilities) serialize() (serverCaps, serverSaslMethods, userCaps, userSaslMethods []string) {
	for name := range c.serverCaps {
		serverCaps = append(serverCaps, name)
	}
	if v, ok := c.serverCaps["sasl"]; ok && v != "" {
		serverSaslMethods = strings.Split(v, ",")
	}
	for name := range c.userCaps {
		userCaps = append(userCaps, name)
		if name == "sasl" {
			if v := c.serverCaps["sasl"]; v != "" {
				userSaslMethods = strings.Split(v, ",")
			}
		}
	}
	return
}

// capTokens splits the trailing capability-list parameter of a CAP line
// into its individual tokens.
func capTokens(m *Message) []string {
	return strings.Fields(m.Params.Get(len(m.Params)))
}

// capContinuing reports whether a CAP LS/NEW line carries the "*"
// continuation marker in its third parameter.
func capContinuing(m *Message) bool {
	return m.Params.Get(3) == "*"
}
