package microstudio

import (
	"MicroStudioLink/internal/core/domain"
	"MicroStudioLink/internal/core/ports"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultURL is the public MicroStudio socket endpoint.
	DefaultURL = "wss://microstudio.dev/ws"
	// DefaultCallTimeout bounds every call.
	DefaultCallTimeout = 30 * time.Second
)

type callResult struct {
	msg *Message
	err error
}

// pendingCall lives in Client.pending from the moment its frame is about to
// be written until exactly one of: accepted response, timeout, send failure,
// context cancellation, socket close.
type pendingCall struct {
	id     int64
	kind   RequestKind
	expect ResponseKind
	timer  *clock.Timer
	done   chan callResult
}

// accepts reports whether msg answers this call. A frame that echoes a
// request_id must match it exactly. Frames without one fall back to the
// service's loose rules: token_valid always answers, pong answers a ping,
// anything else must carry a token.
func (p *pendingCall) accepts(msg *Message) bool {
	if msg.Name() != string(p.expect) {
		return false
	}
	if id, ok := msg.RequestID(); ok {
		return id == p.id
	}
	switch {
	case p.expect == ResponseTokenValid:
		return true
	case p.kind == RequestPing && p.expect == ResponsePong:
		return true
	default:
		return msg.Token() != ""
	}
}

// Client is one MicroStudio session over a single socket. It is not
// reusable: once Closed, build a new one.
type Client struct {
	log       zerolog.Logger
	bus       ports.EventBus
	dialer    Dialer
	clock     clock.Clock
	url       string
	timeout   time.Duration
	sessionID uuid.UUID

	mu      sync.Mutex
	creds   domain.Credentials
	state   domain.ConnectionState
	conn    Conn
	nextID  int64
	pending map[int64]*pendingCall

	writeMu sync.Mutex
}

var _ ports.StudioClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithURL overrides DefaultURL.
func WithURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.url = url
		}
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithClock replaces the wall clock used for call timeouts.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a disconnected client. Inbound frames are published on
// bus under their name.
func NewClient(creds domain.Credentials, bus ports.EventBus, baseLogger *zerolog.Logger, opts ...Option) *Client {
	sessionID := uuid.New()
	c := &Client{
		log: baseLogger.With().
			Str("component", "microstudio_client").
			Str("session_id", sessionID.String()).
			Logger(),
		bus:       bus,
		clock:     clock.New(),
		url:       DefaultURL,
		timeout:   DefaultCallTimeout,
		sessionID: sessionID,
		creds:     creds,
		state:     domain.StateDisconnected,
		pending:   make(map[int64]*pendingCall),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = NewWebsocketDialer(c.timeout)
	}
	return c
}

// SessionID tags this client's log lines.
func (c *Client) SessionID() uuid.UUID { return c.sessionID }

// State returns the current lifecycle state.
func (c *Client) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Token returns the active session token, empty before authentication.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.Token
}

// Nick returns the account nick.
func (c *Client) Nick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.Nick
}

// Connect opens the socket and authenticates. It returns once the session is
// Ready, or with the error that moved it to Closed.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: client is %s", ErrConnection, state)
	}
	c.state = domain.StateConnecting
	token := c.creds.Token
	c.mu.Unlock()
	c.publishState(domain.StateConnecting)

	header := http.Header{}
	if token != "" {
		header.Set("Cookie", "token="+token)
	}
	header.Set("Cache-Control", "no-cache")
	header.Set("Pragma", "no-cache")

	c.log.Info().Str("url", c.url).Msg("Opening socket")
	conn, err := c.dialer.Dial(ctx, c.url, header)
	if err != nil {
		c.log.Error().Err(err).Str("url", c.url).Msg("Failed to open socket")
		c.transition(domain.StateConnecting, domain.StateClosed)
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	if !c.transition(domain.StateConnecting, domain.StateAuthenticating) {
		_ = conn.Close()
		return fmt.Errorf("%w: client closed while connecting", ErrConnection)
	}

	go c.readLoop(conn)

	if err := c.authenticate(ctx); err != nil {
		c.log.Error().Err(err).Msg("Authentication failed, closing socket")
		c.shutdown(err)
		return err
	}

	if !c.transition(domain.StateAuthenticating, domain.StateReady) {
		return fmt.Errorf("%w: socket closed during authentication", ErrConnectionClosed)
	}
	c.log.Info().Str("nick", c.Nick()).Msg("Session ready")
	return nil
}

// Close ends the session. Pending calls fail with ErrConnectionClosed.
func (c *Client) Close() error {
	c.shutdown(ErrConnectionClosed)
	return nil
}

// Call sends one request and waits for the response that answers it.
func (c *Client) Call(ctx context.Context, kind RequestKind, payload Payload) (*Message, error) {
	c.mu.Lock()
	if !c.state.SocketOpen() || c.conn == nil {
		c.mu.Unlock()
		return nil, &CallError{Kind: kind, Err: ErrNotConnected}
	}
	expect, err := ExpectedResponse(kind)
	if err != nil {
		c.mu.Unlock()
		return nil, &CallError{Kind: kind, Err: err}
	}

	c.nextID++
	id := c.nextID
	p := &pendingCall{
		id:     id,
		kind:   kind,
		expect: expect,
		done:   make(chan callResult, 1),
	}
	p.timer = c.clock.AfterFunc(c.timeout, func() {
		c.complete(id, nil, fmt.Errorf("%w after %s", ErrTimeout, c.timeout))
	})
	c.pending[id] = p
	conn := c.conn
	c.mu.Unlock()

	frame, err := encodeRequest(kind, id, payload)
	if err == nil {
		err = c.write(conn, frame)
	}
	if err != nil {
		c.log.Error().Err(err).Str("kind", string(kind)).Int64("request_id", id).Msg("Failed to send request")
		c.complete(id, nil, fmt.Errorf("%w: %w", ErrSend, err))
	} else {
		c.log.Debug().Str("kind", string(kind)).Int64("request_id", id).Msg("Request sent")
	}

	select {
	case res := <-p.done:
		return res.msg, res.err
	case <-ctx.Done():
		c.complete(id, nil, ctx.Err())
		res := <-p.done
		return res.msg, res.err
	}
}

func (c *Client) write(conn Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(frame)
}

// complete hands the result to a pending call. Only the first completion of
// an id wins; later ones report false.
func (c *Client) complete(id int64, msg *Message, err error) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	p.timer.Stop()
	if err != nil {
		err = &CallError{Kind: p.kind, RequestID: id, Err: err}
	}
	p.done <- callResult{msg: msg, err: err}
	return true
}

// resolve finds the pending call msg answers: the call named by its
// request_id, else the oldest call of that kind that accepts it.
func (c *Client) resolve(msg *Message) bool {
	c.mu.Lock()
	var match *pendingCall
	if id, ok := msg.RequestID(); ok {
		if p, found := c.pending[id]; found && p.accepts(msg) {
			match = p
		}
	} else {
		for _, p := range c.pending {
			if p.accepts(msg) && (match == nil || p.id < match.id) {
				match = p
			}
		}
	}
	c.mu.Unlock()

	if match == nil {
		return false
	}
	return c.complete(match.id, msg, nil)
}

func (c *Client) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.log.Info().Err(err).Msg("Socket read ended")
			c.shutdown(err)
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame resolves any call the frame answers, then publishes it on the
// bus under its name. Malformed frames are dropped.
func (c *Client) handleFrame(data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		c.log.Error().Err(err).Int("size", len(data)).Msg("Dropping malformed frame")
		return
	}

	resolved := c.resolve(msg)
	c.log.Debug().Str("name", msg.Name()).Bool("resolved_call", resolved).Msg("Frame received")

	if err := c.bus.Publish(context.Background(), msg.Name(), msg); err != nil {
		c.log.Warn().Err(err).Str("name", msg.Name()).Msg("Frame subscriber failed")
	}
}

// shutdown moves the client to Closed, drops the socket and fails every
// pending call. It is idempotent.
func (c *Client) shutdown(cause error) {
	c.mu.Lock()
	if c.state == domain.StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = domain.StateClosed
	conn := c.conn
	pending := c.pending
	c.pending = make(map[int64]*pendingCall)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	for id, p := range pending {
		p.timer.Stop()
		p.done <- callResult{err: &CallError{
			Kind:      p.kind,
			RequestID: id,
			Err:       fmt.Errorf("%w: %v", ErrConnectionClosed, cause),
		}}
	}
	if len(pending) > 0 {
		c.log.Warn().Int("pending", len(pending)).Msg("Failed pending calls on close")
	}
	c.publishState(domain.StateClosed)
}

// transition moves from one state to another, reporting false when the
// client was no longer in from.
func (c *Client) transition(from, to domain.ConnectionState) bool {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.mu.Unlock()
	c.publishState(to)
	return true
}

func (c *Client) publishState(state domain.ConnectionState) {
	c.log.Debug().Str("state", string(state)).Msg("State changed")
	if err := c.bus.Publish(context.Background(), ports.TopicConnectionState, state); err != nil {
		c.log.Warn().Err(err).Msg("State subscriber failed")
	}
}

// On subscribes to frames named topic. Handlers run on the socket reader
// goroutine and must not block on calls of the same client.
func (c *Client) On(topic string, handler ports.EventHandler, opts ...ports.SubscribeOption) (ports.SubscriptionID, error) {
	return c.bus.Subscribe(topic, handler, opts...)
}

// Once subscribes to the next frame named topic.
func (c *Client) Once(topic string, handler ports.EventHandler, opts ...ports.SubscribeOption) (ports.SubscriptionID, error) {
	return c.bus.SubscribeOnce(topic, handler, opts...)
}

// Off removes subscriptions, or every handler of topic when ids is empty.
func (c *Client) Off(topic string, ids ...ports.SubscriptionID) {
	c.bus.Unsubscribe(topic, ids...)
}
