package irc

import "sync"

// EventType identifies the kind of Event delivered to an embedder's
// subscription.
type EventType string

const (
	EventRegistered EventType = "registered"
	EventConnect    EventType = "connect"
	EventAbort      EventType = "abort"
	EventErr        EventType = "error"
	EventNetErr     EventType = "netError"

	EventNotice      EventType = "notice"
	EventMessage     EventType = "message"
	EventPM          EventType = "pm"
	EventAction      EventType = "action"
	EventCTCP        EventType = "ctcp"
	EventCTCPVersion EventType = "ctcp-version"
	EventSelfMessage EventType = "selfMessage"

	EventJoin   EventType = "join"
	EventPart   EventType = "part"
	EventKick   EventType = "kick"
	EventKill   EventType = "kill"
	EventQuit   EventType = "quit"
	EventNick   EventType = "nick"
	EventInvite EventType = "invite"
	EventTopic  EventType = "topic"
	EventNames  EventType = "names"

	EventModeAdd EventType = "+mode"
	EventModeDel EventType = "-mode"
	EventModeIs  EventType = "mode_is"

	EventMOTD EventType = "motd"

	EventChannelListStart EventType = "channellist_start"
	EventChannelListItem  EventType = "channellist_item"
	EventChannelList      EventType = "channellist"

	EventWhois    EventType = "whois"
	EventISupport EventType = "isupport"

	EventSASLLoggedIn  EventType = "sasl_loggedin"
	EventSASLLoggedOut EventType = "sasl_loggedout"
	EventSASLErr       EventType = "sasl_error"

	EventPing EventType = "ping"
	EventPong EventType = "pong"
	EventRaw  EventType = "raw"
)

// Event is the payload delivered to event bus subscribers. Only the
// fields relevant to Type are populated; the rest remain zero.
type Event struct {
	Type EventType

	// Message is the *Message that triggered the event, when applicable.
	Message *Message

	// Channel is the channel name this event pertains to, for channel
	// events (join, part, message, etc.); empty otherwise.
	Channel string

	// Nick/By/Mode/Param carry MODE and NICK event details.
	Nick  string
	By    string
	Mode  string
	Param string

	// Whois carries the accumulated record for a "whois" event.
	Whois *WhoisResponse

	// Err carries the error for error/netError/sasl_error/abort events.
	Err error

	// RetryCount carries the attempt count for an "abort" event.
	RetryCount int
}

// EventBus is the typed, subscribable surface an embedder uses to
// observe a Client. Handler/Router dispatch remains the internal
// plumbing the bus is built on; EventBus adds a fixed payload schema,
// subscribe, one-shot subscribe, and unsubscribe on top of it.
type EventBus struct {
	mu      sync.Mutex
	nextID  int
	subs    map[EventType]map[int]*subscription
}

type subscription struct {
	// channel, if non-empty, restricts delivery to events whose Channel
	// field matches it case-insensitively; this implements per-channel
	// subscriptions (join<chan>, part<chan>, message<chan>).
	channel string
	once    bool
	fn      func(Event)
}

func newEventBus() *EventBus {
	return &EventBus{subs: make(map[EventType]map[int]*subscription)}
}

// Unsubscribe removes a subscription previously returned by On/Once/OnChannel.
type Unsubscribe func()

// On subscribes fn to every Event of type evt until unsubscribed.
func (b *EventBus) On(evt EventType, fn func(Event)) Unsubscribe {
	return b.subscribe(evt, "", false, fn)
}

// Once subscribes fn to the next Event of type evt only.
func (b *EventBus) Once(evt EventType, fn func(Event)) Unsubscribe {
	return b.subscribe(evt, "", true, fn)
}

// OnChannel subscribes fn to Events of type evt whose Channel matches
// channel (case-insensitively), for the join<chan>/part<chan>/
// message<chan> style of per-channel subscription.
func (b *EventBus) OnChannel(evt EventType, channel string, fn func(Event)) Unsubscribe {
	return b.subscribe(evt, channel, false, fn)
}

func (b *EventBus) subscribe(evt EventType, channel string, once bool, fn func(Event)) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[evt] == nil {
		b.subs[evt] = make(map[int]*subscription)
	}
	id := b.nextID
	b.nextID++
	b.subs[evt][id] = &subscription{channel: channel, once: once, fn: fn}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[evt], id)
	}
}

// Emit delivers e to every matching subscriber of e.Type, in arbitrary
// order. Channel events are additionally delivered to per-channel
// subscribers whose channel equals e.Channel under rfc1459 case folding,
// so a channel subscription matches whatever case the server used.
func (b *EventBus) Emit(e Event) {
	b.mu.Lock()
	matches := b.subs[e.Type]
	var fire []*subscription
	var expired []int
	for id, sub := range matches {
		if sub.channel != "" && !channelKeyMatches(sub.channel, e.Channel) {
			continue
		}
		fire = append(fire, sub)
		if sub.once {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(matches, id)
	}
	b.mu.Unlock()

	for _, sub := range fire {
		sub.fn(e)
	}
}

func channelKeyMatches(subChannel, eventChannel string) bool {
	if subChannel == eventChannel {
		return true
	}
	return caseMapRfc1459.lower(subChannel) == caseMapRfc1459.lower(eventChannel)
}
