package irc

import "strings"

// stateTracker applies JOIN/PART/KICK/QUIT/NICK/MODE/TOPIC/NAMES deltas
// to a Session's channel and user structures under ISUPPORT-derived
// rules, and emits the corresponding domain events.
type stateTracker struct {
	session *Session
	bus     *EventBus
}

// middleware wraps next with the state tracker, intercepting each
// message before handing it onward, following the same pattern as
// ctcpHandler.
func (t *stateTracker) middleware(next Handler) Handler {
	return HandlerFunc(func(mw MessageWriter, m *Message) {
		t.apply(mw, m)
		next.SpeakIRC(mw, m)
	})
}

func (t *stateTracker) apply(mw MessageWriter, m *Message) {
	s := t.session

	switch m.Command {
	case RplISupport:
		tokens := isupportTokens(m)
		applyISupport(&s.Supported, tokens)
		s.flush()
		t.bus.Emit(Event{Type: EventISupport, Message: m})

	case CmdJoin:
		ch := m.Params.Get(1)
		if ch == "" {
			return
		}
		if m.Source.Nick.Is(s.CurrentNick) {
			s.getOrCreateChan(ch)
		} else if cd := s.chan_(ch); cd != nil {
			cd.Users[m.Source.Nick.String()] = ""
		}
		s.flush()
		t.bus.Emit(Event{Type: EventJoin, Message: m, Channel: ch, Nick: m.Source.Nick.String()})

	case CmdPart:
		ch := m.Params.Get(1)
		if m.Source.Nick.Is(s.CurrentNick) {
			s.removeChanData(ch)
		} else if cd := s.chan_(ch); cd != nil {
			delete(cd.Users, m.Source.Nick.String())
		}
		s.flush()
		t.bus.Emit(Event{Type: EventPart, Message: m, Channel: ch, Nick: m.Source.Nick.String()})

	case CmdKick:
		ch := m.Params.Get(1)
		kicked := m.Params.Get(2)
		if Nickname(kicked).Is(s.CurrentNick) {
			s.removeChanData(ch)
		} else if cd := s.chan_(ch); cd != nil {
			delete(cd.Users, kicked)
		}
		s.flush()
		t.bus.Emit(Event{Type: EventKick, Message: m, Channel: ch, Nick: kicked, By: m.Source.Nick.String()})

	case CmdQuit:
		s.removeNickEverywhere(m.Source.Nick.String())
		s.flush()
		t.bus.Emit(Event{Type: EventQuit, Message: m, Nick: m.Source.Nick.String()})

	case CmdKill:
		killed := m.Params.Get(1)
		s.removeNickEverywhere(killed)
		s.flush()
		t.bus.Emit(Event{Type: EventKill, Message: m, Nick: killed, By: m.Source.Nick.String()})

	case CmdNick:
		newNick := m.Params.Get(1)
		if m.Source.Nick.Is(s.CurrentNick) {
			s.CurrentNick = newNick
		}
		s.renameNickEverywhere(m.Source.Nick.String(), newNick)
		s.flush()
		t.bus.Emit(Event{Type: EventNick, Message: m, Nick: m.Source.Nick.String(), By: newNick})

	case CmdTopic:
		ch := m.Params.Get(1)
		if cd := s.chan_(ch); cd != nil {
			cd.Topic = m.Params.Get(2)
			cd.TopicBy = m.Source.Nick.String()
		}
		s.flush()
		t.bus.Emit(Event{Type: EventTopic, Message: m, Channel: ch})

	case RplTopic:
		ch := m.Params.Get(2)
		if cd := s.chan_(ch); cd != nil {
			cd.Topic = m.Params.Get(3)
		}
		t.bus.Emit(Event{Type: EventTopic, Message: m, Channel: ch})

	case RplTopicWhoTime:
		ch := m.Params.Get(2)
		if cd := s.chan_(ch); cd != nil {
			cd.TopicBy = m.Params.Get(3)
		}

	case RplNamReply:
		ch := m.Params.Get(3)
		cd := s.getOrCreateChan(ch)
		for _, tok := range strings.Fields(m.Params.Get(4)) {
			prefix, nick := splitNamePrefix(tok, s.Supported.ModeForPrefix)
			cd.Users[nick] = prefix
		}
		s.flush()

	case RplEndOfNames:
		ch := m.Params.Get(2)
		cd := s.chan_(ch)
		var users map[string]string
		if cd != nil {
			users = cd.Users
		}
		t.bus.Emit(Event{Type: EventNames, Message: m, Channel: ch})
		_ = users
		mw.WriteMessage(ModeQuery(ch))

	case RplChannelModeIs:
		ch := m.Params.Get(2)
		cd := s.getOrCreateChan(ch)
		applyModeString(cd, &s.Supported, "", m.Params.Get(3), m.Params[3:], t.bus, ch)
		t.bus.Emit(Event{Type: EventModeIs, Message: m, Channel: ch})

	case CmdMode:
		target := m.Params.Get(1)
		if !strings.ContainsAny(target[:minInt(1, len(target))], s.Supported.ChanTypes) {
			return // user mode change, not channel state
		}
		cd := s.getOrCreateChan(target)
		applyModeString(cd, &s.Supported, m.Source.Nick.String(), m.Params.Get(2), m.Params[2:], t.bus, target)
		s.flush()

	case RplAway:
		nick := m.Params.Get(2)
		w := s.whois(nick)
		w.Away = m.Params.Get(3)

	case "ACCOUNT":
		w := s.whois(m.Source.Nick.String())
		w.Account = m.Params.Get(1)

	case "CHGHOST":
		// "<new user> <new host>" — update hostmask bookkeeping for the
		// affected nick if it is ours.
		if m.Source.Nick.Is(s.CurrentNick) {
			s.HostMask = m.Source.Nick.String() + "!" + m.Params.Get(1) + "@" + m.Params.Get(2)
		}

	case RplWhoisUser:
		w := s.whois(m.Params.Get(2))
		w.User = m.Params.Get(3)
		w.Host = m.Params.Get(4)
		w.Realname = m.Params.Get(6)
	case RplWhoisServer:
		w := s.whois(m.Params.Get(2))
		w.Server = m.Params.Get(3)
		w.ServerInfo = m.Params.Get(4)
	case RplWhoisOperator:
		s.whois(m.Params.Get(2)).Operator = true
	case RplWhoisIdle:
		w := s.whois(m.Params.Get(2))
		w.Idle = atoiOr(m.Params.Get(3), 0)
	case RplWhoisChannels:
		w := s.whois(m.Params.Get(2))
		w.Channels = strings.Fields(m.Params.Get(3))
	case RplWhoisAccount:
		s.whois(m.Params.Get(2)).Account = m.Params.Get(3)
	case RplWhoisActually:
		s.whois(m.Params.Get(2)).RealHost = m.Params.Get(3)
	case RplWhoisSecure:
		s.whois(m.Params.Get(2)).CertFP = m.Params.Get(3)
	case RplEndOfWhois:
		nick := m.Params.Get(2)
		w := s.whois(nick)
		delete(s.WhoisData, nick)
		t.bus.Emit(Event{Type: EventWhois, Message: m, Nick: nick, Whois: w})

	case RplMOTD, RplMOTDStart, RplEndOfMOTD, ErrNoMOTD:
		t.bus.Emit(Event{Type: EventMOTD, Message: m})

	case RplListStart:
		t.bus.Emit(Event{Type: EventChannelListStart, Message: m})
	case RplList:
		t.bus.Emit(Event{Type: EventChannelListItem, Message: m, Channel: m.Params.Get(2)})
	case RplListEnd:
		t.bus.Emit(Event{Type: EventChannelList, Message: m})

	case CTCPAction:
		ch := m.Params.Get(1)
		t.bus.Emit(Event{Type: EventAction, Message: m, Channel: ch, Nick: m.Source.Nick.String()})

	case CmdPrivmsg:
		ch := m.Params.Get(1)
		evt := EventMessage
		if s.CurrentNick != "" && Nickname(ch).Is(s.CurrentNick) {
			evt = EventPM
		}
		t.bus.Emit(Event{Type: evt, Message: m, Channel: ch, Nick: m.Source.Nick.String()})

	case CmdNotice:
		t.bus.Emit(Event{Type: EventNotice, Message: m, Channel: m.Params.Get(1), Nick: m.Source.Nick.String()})

	case CmdInvite:
		t.bus.Emit(Event{Type: EventInvite, Message: m, Channel: m.Params.Get(2), Nick: m.Source.Nick.String()})
	}

	if kind, ok := ctcpQueryKind(m.Command); ok {
		nick := m.Source.Nick.String()
		ch := m.Params.Get(1)
		t.bus.Emit(Event{Type: EventCTCP, Message: m, Channel: ch, Nick: nick, Param: kind})
		t.bus.Emit(Event{Type: EventType("ctcp-" + strings.ToLower(kind)), Message: m, Channel: ch, Nick: nick})
	}

	if q, reply, ok := ctcpAutoReply(m); ok {
		mw.WriteMessage(CTCPReply(m.Source.Nick.String(), q, reply))
	}

	t.bus.Emit(Event{Type: EventRaw, Message: m})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// splitNamePrefix peels the leading run of configured prefix sigils off
// a NAMES token, returning the prefix string and the bare nickname.
func splitNamePrefix(tok string, modeForPrefix map[string]string) (prefix, nick string) {
	i := 0
	for i < len(tok) {
		c := string(tok[i])
		if _, known := modeForPrefix[c]; !known {
			break
		}
		i++
	}
	return tok[:i], tok[i:]
}

// applyModeString scans a MODE (or RPL_CHANNELMODEIS) mode string,
// toggling "adding" on '+'/'-' and classifying each mode character:
// prefix modes consume a user parameter and adjust that user's prefix
// string; class-a modes consume a parameter and append/remove from a
// list; class-b always consumes a parameter; class-c consumes a
// parameter only when being added; class-d never takes a parameter and
// only toggles presence in the channel's mode string.
func applyModeString(cd *ChanData, sup *IrcSupported, by, modeStr string, allParams []string, bus *EventBus, channel string) {
	params := allParams
	paramIdx := 0
	nextParam := func() string {
		if paramIdx >= len(params) {
			return ""
		}
		p := params[paramIdx]
		paramIdx++
		return p
	}

	adding := true
	for _, r := range modeStr {
		switch r {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}
		mc := string(r)

		switch {
		case isPrefixMode(sup, mc):
			user := nextParam()
			prefix := prefixForModeChar(sup, mc)
			cur := cd.Users[user]
			if adding {
				if !strings.Contains(cur, prefix) {
					cd.Users[user] = cur + prefix
				}
			} else {
				cd.Users[user] = strings.ReplaceAll(cur, prefix, "")
			}
			emitMode(bus, adding, channel, by, mc, user)

		case sup.ChanModes.has('a', r):
			p := nextParam()
			if adding {
				cd.ModeParams[mc] = appendIfMissing(cd.ModeParams[mc], p)
			} else {
				cd.ModeParams[mc] = removeString(cd.ModeParams[mc], mc)
			}
			emitMode(bus, adding, channel, by, mc, p)

		case sup.ChanModes.has('b', r):
			p := nextParam()
			if adding {
				cd.ModeParams[mc] = []string{p}
			} else {
				delete(cd.ModeParams, mc)
			}
			emitMode(bus, adding, channel, by, mc, p)

		case sup.ChanModes.has('c', r):
			var p string
			if adding {
				p = nextParam()
				cd.ModeParams[mc] = []string{p}
			} else {
				delete(cd.ModeParams, mc)
			}
			emitMode(bus, adding, channel, by, mc, p)

		default: // class d or unrecognized: never takes a parameter
			if adding {
				if !strings.ContainsRune(cd.Mode, r) {
					cd.Mode += mc
				}
			} else {
				cd.Mode = strings.ReplaceAll(cd.Mode, mc, "")
			}
			emitMode(bus, adding, channel, by, mc, "")
		}
	}
}

func emitMode(bus *EventBus, adding bool, channel, by, mode, param string) {
	if bus == nil {
		return
	}
	evt := EventModeDel
	if adding {
		evt = EventModeAdd
	}
	bus.Emit(Event{Type: evt, Channel: channel, By: by, Mode: mode, Param: param})
}

func isPrefixMode(sup *IrcSupported, mode string) bool {
	_, ok := sup.PrefixForMode[mode]
	return ok
}

func prefixForModeChar(sup *IrcSupported, mode string) string {
	return sup.PrefixForMode[mode]
}

func appendIfMissing(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}

// removeString drops every element equal to v from list.
func removeString(list []string, v string) []string {
	out := list[:0]
	for _, e := range list {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

var ctcpPingQuery = NewCTCPCmd("PING")
var ctcpVersionQuery = NewCTCPCmd("VERSION")

const ctcpQueryPrefix = "_CTCP_QUERY_"

// ctcpQueryKind returns the CTCP subcommand name encoded in cmd (as
// rewritten by ctcpHandler) and true, or "", false if cmd is not a CTCP
// query.
func ctcpQueryKind(cmd Command) (string, bool) {
	s := string(cmd)
	if !strings.HasPrefix(s, ctcpQueryPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, ctcpQueryPrefix), true
}

// ctcpAutoReply implements the CTCP PING/VERSION auto-reply behavior: a
// CTCP PING is echoed back verbatim, and CTCP VERSION gets a generic
// reply. ok is false for any other command.
func ctcpAutoReply(m *Message) (query, reply string, ok bool) {
	switch m.Command {
	case ctcpPingQuery:
		return "PING", m.Params.Get(2), true
	case ctcpVersionQuery:
		return "VERSION", "ircsession", true
	default:
		return "", "", false
	}
}
