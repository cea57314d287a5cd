package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

var (
	// HandshakeTimeout bounds the websocket upgrade.
	HandshakeTimeout = 15 * time.Second
	// MaxFrameSize caps one inbound frame; larger frames end the session.
	MaxFrameSize = int64(64 << 10)
	// closeWriteTimeout bounds the best-effort close frame on Close.
	closeWriteTimeout = time.Second
)

// Options configures one Session.
type Options struct {
	URL          string
	APIKey       string
	PingInterval time.Duration // 0 disables client pings
	// OnClose runs once when the session ends, whatever the cause.
	OnClose func(s *Session, cause error)
}

// Completion is what the completion signal carries.
type Completion struct {
	ResourceID string
	Err        error // non-nil when the server reported a failed job
}

// Session owns one notification channel. It writes a single init frame and
// then only reads: the session token and job completion arrive here.
type Session struct {
	id      string
	conn    *websocket.Conn
	onClose func(*Session, error)

	mu         sync.Mutex
	token      string
	tokenSig   *signal[string]
	expect     string
	completion *signal[Completion]
	closed     bool
	cause      error
	done       chan struct{}

	wg sync.WaitGroup
}

// Dial connects, sends the init handshake and starts reading.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	url, err := tool.BuildWebsocketURL(opts.URL, opts.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrChannelError, err)
	}
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: HandshakeTimeout,
	}
	header := http.Header{}
	header.Set("User-Agent", tool.UserAgent())
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial failed: %v (%s)", types.ErrChannelError, err, resp.Status)
		}
		return nil, fmt.Errorf("%w: dial failed: %v", types.ErrChannelError, err)
	}

	conn.SetReadLimit(MaxFrameSize)
	s := newSession(conn, opts.OnClose)
	hello, err := encodeInit()
	if err == nil {
		err = conn.WriteMessage(websocket.TextMessage, hello)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to send init: %v", types.ErrChannelError, err)
	}
	tool.DefaultLogger.Debugf("[Duplex %s] Connected, init sent", s.id)

	s.wg.Add(1)
	go s.readLoop()
	if opts.PingInterval > 0 {
		s.wg.Add(1)
		go s.pingLoop(opts.PingInterval)
	}
	return s, nil
}

func newSession(conn *websocket.Conn, onClose func(*Session, error)) *Session {
	return &Session{
		id:         tool.GenerateRandomUUID()[:8],
		conn:       conn,
		onClose:    onClose,
		tokenSig:   newSignal[string](),
		completion: newSignal[Completion](),
		done:       make(chan struct{}),
	}
}

// ID is a short local identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// Token returns the session token, empty until assigned and after the session ends.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Open reports whether the channel is still live.
func (s *Session) Open() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session ended, nil while open.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cause
}

// Expect arms a fresh completion signal for resourceId. A completion frame that
// omits modelId is attributed to it; frames for other resources are dropped.
func (s *Session) Expect(resourceId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.cause
	}
	s.expect = resourceId
	s.completion = newSignal[Completion]()
	return nil
}

// WaitToken blocks until the session token is assigned. It resolves at once if
// the token arrived earlier.
func (s *Session) WaitToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		defer s.mu.Unlock()
		return "", s.cause
	}
	sig, done := s.tokenSig, s.done
	s.mu.Unlock()

	select {
	case <-sig.ready():
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return "", s.cause
		}
		return s.token, nil
	case <-done:
		return "", s.Err()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// WaitCompletion blocks until the armed resource completes or fails. A
// completion received before the channel dropped is still reported.
func (s *Session) WaitCompletion(ctx context.Context) (Completion, error) {
	s.mu.Lock()
	sig, done := s.completion, s.done
	s.mu.Unlock()

	if v, ok := sig.peek(); ok {
		return v, nil
	}
	select {
	case <-sig.ready():
		v, _ := sig.peek()
		return v, nil
	case <-done:
		if v, ok := sig.peek(); ok {
			return v, nil
		}
		return Completion{}, s.Err()
	case <-ctx.Done():
		return Completion{}, ctx.Err()
	}
}

// Close ends the session. Closing a nil or already closed session is a no-op.
func (s *Session) Close() {
	if s == nil {
		return
	}
	cause := fmt.Errorf("%w: session closed", types.ErrChannelError)
	if !s.shutdown(cause) {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	if err := s.conn.Close(); err != nil {
		tool.DefaultLogger.Debugf("[Duplex %s] Close: %v", s.id, err)
	}
	s.wg.Wait()
	tool.DefaultLogger.Debugf("[Duplex %s] Closed", s.id)
	s.notifyClosed(cause)
}

// shutdown marks the session ended and clears the token. Only the first call returns true.
func (s *Session) shutdown(cause error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.cause = cause
	s.token = ""
	s.expect = ""
	close(s.done)
	return true
}

func (s *Session) notifyClosed(cause error) {
	if s.onClose != nil {
		s.onClose(s, cause)
	}
}

// abort is the reader-side teardown for transport errors and desync.
func (s *Session) abort(cause error) {
	if !s.shutdown(cause) {
		return
	}
	_ = s.conn.Close()
	tool.DefaultLogger.Warnf("[Duplex %s] Session ended: %v", s.id, cause)
	s.notifyClosed(cause)
}

func (s *Session) readLoop() {
	defer s.wg.Done()
	for {
		messageType, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.abort(fmt.Errorf("%w: closed by peer", types.ErrChannelError))
			} else {
				s.abort(fmt.Errorf("%w: %v", types.ErrChannelError, err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			tool.DefaultLogger.Debugf("[Duplex %s] Ignoring non-text frame (type %d)", s.id, messageType)
			continue
		}
		if !s.handle(raw) {
			return
		}
	}
}

// handle applies one frame. It returns false once the session has been torn down.
func (s *Session) handle(raw []byte) bool {
	n, err := Classify(raw)
	if err != nil {
		tool.DefaultLogger.Warnf("[Duplex %s] Unparseable frame %q", s.id, n.Raw)
		s.abort(err)
		return false
	}

	switch n.Kind {
	case types.NotificationSessionAssigned:
		s.assignToken(n.Token)
	case types.NotificationJobStatus:
		s.jobStatus(n)
	default:
		tool.DefaultLogger.Infof("[Duplex %s] Unrecognized frame: %s", s.id, n.Raw)
	}
	return true
}

func (s *Session) assignToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.token != "" {
		tool.DefaultLogger.Debugf("[Duplex %s] Ignoring second session token %q", s.id, token)
		return
	}
	s.token = token
	s.tokenSig.resolve(token)
	tool.DefaultLogger.Infof("[Duplex %s] Session token assigned: %s", s.id, token)
}

func (s *Session) jobStatus(n types.JobNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	resourceId := n.ResourceID
	if resourceId == "" {
		resourceId = s.expect
	}

	switch n.Status {
	case types.JobStatusCompleted, types.JobStatusFailed:
	default:
		tool.DefaultLogger.Debugf("[Duplex %s] Job %s is %s", s.id, resourceId, n.Status)
		return
	}
	if s.expect == "" || resourceId != s.expect {
		tool.DefaultLogger.Infof("[Duplex %s] Job status %s for %q does not match expected %q, skipped", s.id, n.Status, resourceId, s.expect)
		return
	}

	c := Completion{ResourceID: resourceId}
	if n.Status == types.JobStatusFailed {
		msg := n.Error
		if msg == "" {
			msg = "server reported failure"
		}
		c.Err = fmt.Errorf("%w: %s", types.ErrConversionFailed, msg)
	}
	if !s.completion.resolve(c) {
		tool.DefaultLogger.Debugf("[Duplex %s] Duplicate job status for %s ignored", s.id, resourceId)
		return
	}
	if n.JobID != "" {
		tool.DefaultLogger.Infof("[Duplex %s] Job %s (%s) %s", s.id, resourceId, n.JobID, n.Status)
		return
	}
	tool.DefaultLogger.Infof("[Duplex %s] Job %s %s", s.id, resourceId, n.Status)
}

func (s *Session) pingLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(interval/2))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				tool.DefaultLogger.Debugf("[Duplex %s] Ping failed: %v", s.id, err)
			}
		}
	}
}
