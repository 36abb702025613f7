package irc

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"
)

var errPingTimeout = errors.New("ping timeout")

// WebircConfig carries the parameters of an optional WEBIRC command, used
// by gateways to pass along the real address of a proxied client.
type WebircConfig struct {
	Pass string
	IP   string
	User string
	Host string
}

// Config holds the connection options for a Client.
type Config struct {
	// Addr is "host:port". Only used when DialFn is nil.
	Addr string

	// Secure dials with TLS when DialFn is nil.
	Secure bool
	// SelfSigned and CertExpired apply when DialFn is nil and Secure is
	// set. Setting either one turns TLS certificate verification off
	// entirely (InsecureSkipVerify); certificate errors are not told apart
	// by class, so any invalid certificate is accepted.
	SelfSigned  bool
	CertExpired bool

	Nickname string
	User     string
	Realname string
	Pass     string

	// Channels are joined automatically once registered.
	Channels []string

	// RetryCount is the maximum number of reconnect attempts after the
	// client's own socket closes; 0 means unbounded.
	RetryCount int
	RetryDelay time.Duration

	FloodProtection      bool
	FloodProtectionDelay time.Duration

	// SASL selects the SASL mechanism to negotiate; empty disables SASL.
	SASL         SASLType
	SASLUser     string
	SASLPassword string

	StripColors bool

	// MessageSplit caps the per-line budget used by Say/Notice/Action; 0 means 512.
	MessageSplit int

	Encoding         string
	EncodingFallback string

	// OnNickConflict computes the next nick to try after ERR_NICKNAMEINUSE,
	// given the rejected nick and the server's NICKLEN. A nil value uses
	// the default append/increment-numeric-suffix strategy.
	OnNickConflict func(tried string, maxLen int) string

	Webirc *WebircConfig

	ConnectionTimeout time.Duration

	// ErrorLog specifies an optional logger for errors from parsing
	// incoming lines, from encoding and writing outgoing messages, and for
	// writes attempted without a connection. Connect, reconnect and
	// protocol events are not logged; they are reported on the EventBus.
	// If nil, logging is done via the log package's standard logger.
	ErrorLog *log.Logger

	// DialFn, if set, overrides the default TLS/TCP dial behavior. The
	// returned connection can be any io.ReadWriteCloser: irc, ircs, ws,
	// wss, a server mock, etc. When DialFn is set, the client does not
	// own the connection for reconnect purposes: on close it emits an
	// abort event rather than retrying, since the caller controls the
	// connection's lifecycle.
	DialFn func() (io.ReadWriteCloser, error)
}

// A Client manages a single connection to an IRC network: registration,
// capability negotiation, SASL, nick-collision recovery, reconnect, and
// dispatch of parsed messages to the State Tracker and the embedder's
// EventBus.
type Client struct {
	Config

	session *Session
	bus     *EventBus

	conn    io.ReadWriteCloser
	send    *SendPipeline
	handler Handler
	wg      sync.WaitGroup

	saslEx *saslExchange

	// errC is a buffered channel of errors.
	// The channel may be nil, so senders must always have a default case if sending blocked.
	errC chan error

	retryAttempt int
}

// NewClient returns a Client configured by cfg, with a fresh Session and
// EventBus.
func NewClient(cfg Config) *Client {
	c := &Client{Config: cfg}
	c.session = NewSession(cfg.Nickname)
	c.bus = newEventBus()
	return c
}

// Events returns the Client's EventBus for subscribing to typed events.
func (c *Client) Events() *EventBus {
	return c.bus
}

// Session returns the Client's persistable session state. A caller may
// set Session().Flush to receive a callback after coherent state batches.
// NewClient always creates a fresh Session; an existing Session cannot be
// handed to a new Client.
func (c *Client) Session() *Session {
	return c.session
}

var noop HandlerFunc = func(mw MessageWriter, m *Message) {}

// ConnectAndRun establishes a connection to the remote IRC server,
// performs registration and capability negotiation, and runs until the
// connection ends. If the client owns its socket (DialFn was not
// supplied externally) and the disconnect was not requested by the
// caller, it reconnects according to RetryCount/RetryDelay; exceeding
// RetryCount emits an "abort" event. If the socket was supplied
// externally, any close immediately emits abort(0) without retrying.
//
// ConnectAndRun always returns an error, with one exception: if the
// client sends QUIT and then receives io.EOF, the returned error is nil.
func (c *Client) ConnectAndRun(ctx context.Context, h Handler) error {
	if c.Nickname == "" {
		panic("client nickname cannot be empty")
	}
	if c.User == "" {
		c.User = "guest"
	}
	if c.Realname == "" {
		c.Realname = "..."
	}

	externalConn := c.DialFn != nil

	for {
		err := c.connectOnce(ctx, h)
		if err != nil {
			c.bus.Emit(Event{Type: EventNetErr, Err: err})
		}

		if ctx.Err() != nil {
			return err
		}
		if externalConn {
			c.bus.Emit(Event{Type: EventAbort, RetryCount: 0, Err: err})
			return err
		}
		if err == nil {
			// a requested disconnect ends the loop without reconnecting.
			return nil
		}
		c.retryAttempt++
		if c.RetryCount > 0 && c.retryAttempt > c.RetryCount {
			c.bus.Emit(Event{Type: EventAbort, RetryCount: c.retryAttempt, Err: err})
			return err
		}

		delay := c.RetryDelay
		if delay <= 0 {
			delay = time.Second
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
}

// connectOnce dials, registers, and runs the connection until it ends,
// returning the terminal error (nil for a clean, requested disconnect).
func (c *Client) connectOnce(ctx context.Context, h Handler) error {
	dial := c.DialFn
	if dial == nil {
		dial = c.defaultDialFn()
	}

	conn, err := dial()
	if err != nil {
		return err
	}
	c.conn = conn
	c.bus.Emit(Event{Type: EventConnect})

	mainctx, cancel := context.WithCancel(context.Background())

	c.session.Registered = false
	c.session.LoggedIn = false

	c.send = NewSendPipeline(c.conn, c.FloodProtectionDelayOrDefault())
	c.send.ErrorLog = c.ErrorLog
	c.errC = make(chan error, 1)

	if h == nil {
		h = noop
	}

	tracker := &stateTracker{session: c.session, bus: c.bus}
	pinger := &pingHandler{timeout: func() { c.exit(errPingTimeout) }, bus: c.bus}

	c.handler = wrap(h, ctcpHandler, c.pingMiddleware, pinger.pongHandler, tracker.middleware, c.capMiddleware)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.mainLoop(mainctx, pinger)
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-mainctx.Done():
		case <-ctx.Done():
			c.WriteMessage(Quit("closing link"))
			select {
			case <-mainctx.Done():
			case <-time.After(3 * time.Second):
				c.exit(nil)
			}
		}
	}()

	c.sendRegistration()

	runErr := <-c.errC
	cancel()
	_ = conn.Close()
	c.wg.Wait()
	c.conn = nil

	if runErr == io.EOF && c.send.requestedDisconnect {
		return nil
	}
	return runErr
}

// FloodProtectionDelayOrDefault returns the configured flood protection
// delay, or 0 (disabled) when FloodProtection is false.
func (c *Client) FloodProtectionDelayOrDefault() time.Duration {
	if !c.FloodProtection {
		return 0
	}
	if c.FloodProtectionDelay <= 0 {
		return 33 * time.Millisecond
	}
	return c.FloodProtectionDelay
}

func (c *Client) defaultDialFn() func() (io.ReadWriteCloser, error) {
	return func() (io.ReadWriteCloser, error) {
		dialer := &net.Dialer{Timeout: c.ConnectionTimeout}
		if c.Secure {
			tlsCfg := &tls.Config{InsecureSkipVerify: c.SelfSigned || c.CertExpired}
			return tls.DialWithDialer(dialer, "tcp", c.Addr, tlsCfg)
		}
		return dialer.Dial("tcp", c.Addr)
	}
}

// sendRegistration writes the initial handshake: optional WEBIRC,
// optional PASS (skipped when SASL is configured, since SASL supplies
// its own authentication), CAP LS, NICK, USER.
func (c *Client) sendRegistration() {
	if c.Webirc != nil {
		c.WriteMessage(NewMessage(CmdWebirc, c.Webirc.Pass, c.Webirc.User, c.Webirc.Host, c.Webirc.IP))
	}
	if c.Pass != "" && c.SASL == "" {
		c.WriteMessage(Pass(c.Pass))
	}
	c.WriteMessage(CapLS("302"))
	c.WriteMessage(Nick(c.Nickname))
	c.WriteMessage(User(c.User, c.Realname))
}

func (c *Client) mainLoop(ctx context.Context, pinger *pingHandler) {
	readLine := c.startReading(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case l, ok := <-readLine:
			if !ok {
				c.exit(errors.New("read channel closed"))
				return
			}
			m := new(Message)
			m.IncludePrefix()
			line := l
			if c.Encoding != "" || c.EncodingFallback != "" {
				line = []byte(EncodingShim{Target: c.Encoding, Fallback: c.EncodingFallback}.Decode(l))
			}
			if c.StripColors {
				line = []byte(StripFormatting(string(line)))
			}
			if err := m.UnmarshalText(line); err != nil {
				c.log(err)
				continue
			}
			if m.Source == (Prefix{}) {
				m.Source.Host = c.session.HostMask
			}
			c.handler.SpeakIRC(c, m)
		case <-time.After(180 * time.Second):
			pinger.ping(ctx, c, "TIMEOUTCHECK")
		}
	}
}

func (c *Client) startReading(ctx context.Context) <-chan []byte {
	lines := make(chan []byte)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(lines)

		s := bufio.NewScanner(c.conn)
		for s.Scan() {
			l := s.Bytes()
			if len(l) == 0 {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case lines <- l:
			}
		}
		err := s.Err()
		if err == nil {
			c.exit(io.EOF)
		} else {
			c.exit(err)
		}
	}()
	return lines
}

// exit requests the client to exit and return with err. Only the first
// such error is returned.
func (c *Client) exit(err error) {
	select {
	case c.errC <- err:
	default:
	}
}

// WriteMessage implements irc.MessageWriter. It hands m to the Send
// Pipeline, which applies flood protection and FIFO ordering before
// writing it to the connection.
func (c *Client) WriteMessage(m encoding.TextMarshaler) {
	if c.conn == nil {
		c.log(fmt.Errorf("WriteMessage: conn cannot be nil; m: %#v", m))
		return
	}
	c.session.LastSendTime = time.Now()
	c.send.Send(m)

	if msg, ok := m.(*Message); ok && msg.Command.is(CmdPrivmsg) {
		c.bus.Emit(Event{Type: EventSelfMessage, Message: msg, Channel: msg.Params.Get(1), Nick: c.session.CurrentNick})
	}
}

// Say sends lines of text to target, splitting on line breaks and then
// on the effective message-length budget.
func (c *Client) Say(target, text string) {
	c.sendSplit(target, text, Msg)
}

// Notice sends a NOTICE to target, split the same way as Say.
func (c *Client) Notice(target, text string) {
	c.sendSplit(target, text, Notice)
}

// Action sends a CTCP ACTION to target, split the same way as Say.
func (c *Client) Action(target, text string) {
	c.sendSplit(target, text, Describe)
}

func (c *Client) sendSplit(target, text string, build func(target, text string) *Message) {
	budget := splitBudget(c.messageSplitOrDefault(), c.session.CurrentNick, c.session.HostMask, target)
	for _, line := range SplitLines(text) {
		for _, chunk := range Split(line, budget) {
			c.WriteMessage(build(target, chunk))
		}
	}
}

func (c *Client) messageSplitOrDefault() int {
	if c.MessageSplit <= 0 {
		return 512
	}
	return c.MessageSplit
}

// log reports errors which are noteworthy but not a reason for the client to exit.
func (c *Client) log(e error) {
	if c.ErrorLog == nil {
		log.Println(e)
		return
	}
	c.ErrorLog.Println(e)
}

// Nick returns the client's current nickname according to the session.
func (c *Client) Nick() Nickname {
	return Nickname(c.session.CurrentNick)
}

var fullAddress = regexp.MustCompile(`^([^!@]+)!(.+?)@(.+)?$`)

func splitHostmask(hm string) (nick, user, host string) {
	if parts := fullAddress.FindStringSubmatch(hm); parts != nil {
		return parts[1], parts[2], parts[3]
	}
	return "", "", ""
}

// capMiddleware drives the CAP/SASL negotiation sequence and the
// registration-time numerics (RPL_WELCOME, nick-collision recovery).
func (c *Client) capMiddleware(next Handler) Handler {
	return HandlerFunc(func(mw MessageWriter, m *Message) {
		next.SpeakIRC(mw, m)

		switch m.Command {
		case CmdCap:
			c.handleCap(mw, m)
		case CmdAuthenticate:
			c.handleAuthenticate(mw, m)
		case RplSASLSuccess:
			mw.WriteMessage(CapEnd())
		case ErrSASLFail, ErrSASLTooLong, ErrSASLAborted, ErrSASLAlready:
			c.bus.Emit(Event{Type: EventSASLErr, Message: m, Err: fmt.Errorf("sasl: %s", m.RawCommand)})
			mw.WriteMessage(CapEnd())
		case RplLoggedIn:
			c.session.LoggedIn = true
			c.bus.Emit(Event{Type: EventSASLLoggedIn, Message: m})
		case RplLoggedOut:
			c.session.LoggedIn = false
			c.bus.Emit(Event{Type: EventSASLLoggedOut, Message: m})
		case RplWelcome:
			c.handleWelcome(mw, m)
		case ErrNicknameInUse:
			c.handleNickInUse(mw, m)
		case ErrErroneusNick, ErrUnavailResource:
			c.handleBadNick(mw, m)
		case RplHostHidden:
			if len(m.Params) > 1 {
				nick, user, _ := splitHostmask(c.session.HostMask)
				if nick == "" {
					nick = c.session.CurrentNick
				}
				c.session.HostMask = nick + "!" + user + "@" + m.Params.Get(2)
			}
		}
	})
}

func (c *Client) handleCap(mw MessageWriter, m *Message) {
	if len(m.Params) < 3 {
		return
	}
	switch strings.ToUpper(m.Params.Get(2)) {
	case "LS":
		final := !capContinuing(m)
		c.session.Capabilities.applyLS(capTokens(m), final)
		if final {
			c.negotiateCaps(mw)
		}
	case "NEW":
		c.session.Capabilities.applyLS(capTokens(m), true)
	case "DEL":
		c.session.Capabilities.applyDel(capTokens(m))
	case "ACK":
		tokens := capTokens(m)
		c.session.Capabilities.applyAck(tokens)
		if containsFold(tokens, "sasl") {
			c.startSASL(mw)
			return
		}
		mw.WriteMessage(CapEnd())
	case "NAK":
		mw.WriteMessage(CapEnd())
	}
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// negotiateCaps requests the capabilities this client wants and the
// server advertised. If none are both wanted and advertised, negotiation
// ends immediately.
func (c *Client) negotiateCaps(mw MessageWriter) {
	want := []string{"account-notify", "chghost", "away-notify", "extended-join", "multi-prefix", "cap-notify"}
	if c.SASL != "" {
		want = append([]string{"sasl"}, want...)
	}
	req := c.session.Capabilities.requested(want)
	if len(req) == 0 {
		mw.WriteMessage(CapEnd())
		return
	}
	mw.WriteMessage(CapReq(strings.Join(req, " ")))
}

func (c *Client) startSASL(mw MessageWriter) {
	if c.SASL == "" {
		mw.WriteMessage(CapEnd())
		return
	}
	if !c.session.Capabilities.supportsSaslMethod(string(c.SASL), true) {
		c.bus.Emit(Event{Type: EventSASLErr, Err: errUnsupportedSASL})
		mw.WriteMessage(CapEnd())
		return
	}
	ex, err := newSASLExchange(c.SASL, c.SASLUser, c.SASLPassword)
	if err != nil {
		c.bus.Emit(Event{Type: EventSASLErr, Err: err})
		mw.WriteMessage(CapEnd())
		return
	}
	c.saslEx = ex
	mw.WriteMessage(NewMessage(CmdAuthenticate, string(c.SASL)))
}

func (c *Client) handleAuthenticate(mw MessageWriter, m *Message) {
	if c.saslEx == nil {
		return
	}
	challenge, err := decodeAuthenticate(m)
	if err != nil {
		c.bus.Emit(Event{Type: EventSASLErr, Err: err})
		mw.WriteMessage(CapEnd())
		return
	}

	var resp []byte
	if m.Params.Get(1) == "+" {
		_, initial, serr := c.saslEx.start()
		if serr != nil {
			c.bus.Emit(Event{Type: EventSASLErr, Err: serr})
			mw.WriteMessage(CapEnd())
			return
		}
		resp = initial
	} else {
		r, nerr := c.saslEx.next(challenge)
		if nerr != nil {
			c.bus.Emit(Event{Type: EventSASLErr, Err: nerr})
			mw.WriteMessage(CapEnd())
			return
		}
		resp = r
	}
	for _, line := range encodeAuthenticate(resp) {
		mw.WriteMessage(line)
	}
}

func (c *Client) handleWelcome(mw MessageWriter, m *Message) {
	if nick := m.Params.Get(1); nick != "" {
		c.session.CurrentNick = nick
	}
	fields := strings.Fields(m.Params.Get(len(m.Params)))
	if len(fields) > 0 {
		c.session.HostMask = fields[len(fields)-1]
	}
	c.session.Registered = true
	c.session.flush()
	c.bus.Emit(Event{Type: EventRegistered, Message: m})

	mw.WriteMessage(NewMessage(CmdWhoIs, c.session.CurrentNick))
	for _, ch := range c.Channels {
		mw.WriteMessage(Join(ch))
	}
}

func (c *Client) handleNickInUse(mw MessageWriter, m *Message) {
	tried := m.Params.Get(2)
	mw.WriteMessage(Nick(c.nextNick(tried)))
}

func (c *Client) nextNick(tried string) string {
	maxLen := c.session.Supported.NickLength
	if maxLen <= 0 {
		maxLen = 9
	}
	if c.OnNickConflict != nil {
		return c.OnNickConflict(tried, maxLen)
	}
	return defaultNickConflict(tried, maxLen)
}

// defaultNickConflict appends (or increments) a numeric suffix to tried,
// truncating the base so the result fits maxLen.
func defaultNickConflict(tried string, maxLen int) string {
	base := tried
	i := len(base)
	for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
		i--
	}
	suffix := "1"
	if i < len(base) {
		suffix = fmt.Sprintf("%d", atoiOr(base[i:], 0)+1)
		base = base[:i]
	}
	if len(base)+len(suffix) > maxLen {
		cut := maxLen - len(suffix)
		if cut < 0 {
			cut = 0
		}
		if cut > len(base) {
			cut = len(base)
		}
		base = base[:cut]
	}
	return base + suffix
}

func (c *Client) handleBadNick(mw MessageWriter, m *Message) {
	if c.session.HostMask == "" {
		mw.WriteMessage(Nick(fmt.Sprintf("enick_%03d", rand.Intn(1000))))
		return
	}
	c.bus.Emit(Event{Type: EventErr, Message: m})
}
