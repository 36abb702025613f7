package irc

import (
	"strings"
	"sync"
	"time"
)

// caseMapping controls how nicknames and channel names are compared for
// equality, per the CASEMAPPING token of ISUPPORT.
type caseMapping int

const (
	caseMapRfc1459 caseMapping = iota
	caseMapAscii
	caseMapRfc1459Strict
)

func parseCaseMapping(s string) caseMapping {
	switch strings.ToLower(s) {
	case "ascii":
		return caseMapAscii
	case "strict-rfc1459":
		return caseMapRfc1459Strict
	default:
		return caseMapRfc1459
	}
}

func (c caseMapping) String() string {
	switch c {
	case caseMapAscii:
		return "ascii"
	case caseMapRfc1459Strict:
		return "strict-rfc1459"
	default:
		return "rfc1459"
	}
}

// lower folds s according to the casemapping rules. ascii only lowercases
// a-z; rfc1459 additionally maps []\^ to {}|~; strict-rfc1459 maps []\ to
// {}| but leaves ^ alone.
func (c caseMapping) lower(s string) string {
	b := []byte(strings.ToLower(s))
	if c == caseMapAscii {
		return string(b)
	}
	for i, r := range b {
		switch r {
		case '[':
			b[i] = '{'
		case ']':
			b[i] = '}'
		case '\\':
			b[i] = '|'
		case '^':
			if c == caseMapRfc1459 {
				b[i] = '~'
			}
		}
	}
	return string(b)
}

// ChanModeClasses holds the four CHANMODES parameter classes from
// ISUPPORT: A (list, always takes a parameter), B (always takes a
// parameter), C (takes a parameter only when set), D (never takes a
// parameter). PREFIX modes behave like class B and are folded into it.
type ChanModeClasses struct {
	A, B, C, D string
}

// has reports whether mode belongs to this class.
func (m ChanModeClasses) has(class byte, mode rune) bool {
	var s string
	switch class {
	case 'a':
		s = m.A
	case 'b':
		s = m.B
	case 'c':
		s = m.C
	case 'd':
		s = m.D
	}
	return strings.ContainsRune(s, mode)
}

// IrcSupported holds the server features negotiated via the 005
// (RPL_ISUPPORT) numeric.
type IrcSupported struct {
	ChanTypes    string
	ChanLength   int
	ChanLimit    map[string]int
	ChanIDLength map[string]int
	ChanModes    ChanModeClasses
	KickLength   int
	MaxList      map[string]int
	MaxTargets   map[string]int
	Modes        int
	NickLength   int
	TopicLength  int
	UserModes    string
	// UserModePriority lists user modes most-powerful first, e.g. "ov".
	UserModePriority string
	CaseMapping      caseMapping

	// ModeForPrefix maps a membership prefix sigil to its mode char, e.g. "@" -> "o".
	ModeForPrefix map[string]string
	// PrefixForMode is the inverse of ModeForPrefix, e.g. "o" -> "@".
	PrefixForMode map[string]string

	// Extra holds unrecognized ISUPPORT tokens, each appearing at most once.
	Extra []string
}

// defaultIrcSupported returns the RFC 1459/2812 baseline defaults for a
// connection that has not yet received a 005 line.
func defaultIrcSupported() IrcSupported {
	return IrcSupported{
		ChanTypes:     "&#",
		ChanLimit:     map[string]int{},
		ChanIDLength:  map[string]int{},
		MaxList:       map[string]int{},
		MaxTargets:    map[string]int{},
		Modes:         3,
		NickLength:    9,
		ModeForPrefix: map[string]string{"@": "o", "+": "v"},
		PrefixForMode: map[string]string{"o": "@", "v": "+"},
		ChanModes:     ChanModeClasses{A: "beI", B: "ovk", C: "l", D: "imnpst"},
	}
}

// ChanData tracks the state of a single channel the client has joined.
type ChanData struct {
	// Key is the channel name lowercased under the current casemapping.
	Key string
	// ServerName preserves the original casing as first observed.
	ServerName string
	// Users maps a member's nickname to their membership prefix string, e.g. "@" or "+" or "".
	Users map[string]string
	// Mode is the set of class-d (and any toggled, non-listed) channel modes currently active.
	Mode string
	// ModeParams maps a mode char to its ordered parameter list; class-a modes accumulate a list,
	// classes b/c hold a single-element list while set.
	ModeParams map[string][]string
	Topic      string
	TopicBy    string
	Created    time.Time
}

func newChanData(serverName, key string) *ChanData {
	return &ChanData{
		ServerName: serverName,
		Key:        key,
		Users:      make(map[string]string),
		ModeParams: make(map[string][]string),
		Created:    time.Now(),
	}
}

// WhoisResponse accumulates the numerics of a WHOIS reply for one nick
// until rpl_endofwhois is observed.
type WhoisResponse struct {
	Nick        string
	User        string
	Host        string
	Realname    string
	Channels    []string
	Idle        int
	Server      string
	ServerInfo  string
	Operator    bool
	Account     string
	AccountInfo string
	RealHost    string
	CertFP      string
	Away        string
}

// Session is the pluggable, persistable state of a client's connection to
// an IRC network: registration status, current nick, hostmask, joined
// channels, in-flight whois accumulators, negotiated capabilities, and
// ISUPPORT-derived rules. NewClient always starts from a fresh Session;
// an existing Session cannot be handed to a new Client.
type Session struct {
	mu sync.Mutex

	LoggedIn    bool
	Registered  bool
	CurrentNick string
	HostMask    string

	WhoisData map[string]*WhoisResponse
	nickMod   int

	Capabilities *Capabilities
	Supported    IrcSupported

	Chans map[string]*ChanData

	LastSendTime time.Time

	// Flush is called after any coherent batch of mutations (registration,
	// ISUPPORT parsing, a MODE-driven state change, channel membership
	// change, or nick change). It is invoked at most once per triggering
	// message. Flush may be nil.
	Flush func(*Session)
}

// NewSession returns a Session with default (pre-005) ISUPPORT values.
func NewSession(nick string) *Session {
	return &Session{
		CurrentNick:  nick,
		WhoisData:    make(map[string]*WhoisResponse),
		Capabilities: newCapabilities(),
		Supported:    defaultIrcSupported(),
		Chans:        make(map[string]*ChanData),
	}
}

// chanKey lowercases name under the session's current casemapping.
func (s *Session) chanKey(name string) string {
	return s.Supported.CaseMapping.lower(name)
}

// nickKey lowercases a nickname under the session's current casemapping.
func (s *Session) nickKey(name string) string {
	return s.Supported.CaseMapping.lower(name)
}

// chan_ returns the ChanData for name, or nil if the channel is not tracked.
func (s *Session) chan_(name string) *ChanData {
	return s.Chans[s.chanKey(name)]
}

// getOrCreateChan returns the existing ChanData for name or creates one,
// preserving name's original case as ServerName the first time it is seen.
func (s *Session) getOrCreateChan(name string) *ChanData {
	key := s.chanKey(name)
	cd, ok := s.Chans[key]
	if !ok {
		cd = newChanData(name, key)
		s.Chans[key] = cd
	}
	return cd
}

// removeChanData destroys the tracked state for name, if any.
func (s *Session) removeChanData(name string) {
	delete(s.Chans, s.chanKey(name))
}

// removeNickEverywhere removes nick from the users map of every tracked
// channel, as happens on QUIT.
func (s *Session) removeNickEverywhere(nick string) {
	for _, cd := range s.Chans {
		for u := range cd.Users {
			if strings.EqualFold(u, nick) {
				delete(cd.Users, u)
			}
		}
	}
}

// renameNickEverywhere moves a member's entry from old to new in every
// tracked channel, preserving their prefix string.
func (s *Session) renameNickEverywhere(old, new string) {
	for _, cd := range s.Chans {
		for u, prefix := range cd.Users {
			if strings.EqualFold(u, old) {
				delete(cd.Users, u)
				cd.Users[new] = prefix
			}
		}
	}
}

// flush invokes the Flush hook, if set.
func (s *Session) flush() {
	if s.Flush != nil {
		s.Flush(s)
	}
}

// whois returns the in-progress WhoisResponse for nick, creating one if
// this is the first numeric observed for it.
func (s *Session) whois(nick string) *WhoisResponse {
	w, ok := s.WhoisData[nick]
	if !ok {
		w = &WhoisResponse{Nick: nick}
		s.WhoisData[nick] = w
	}
	return w
}
