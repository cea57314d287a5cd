package saga

import (
	"context"
	"fmt"
	"sync"

	"github.com/moyoez/blendconv/notify"
	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// DialFunc opens a duplex session. notify.Dial fits once bound to options.
type DialFunc func(ctx context.Context, opts notify.Options) (*notify.Session, error)

// PerAttempt opens a fresh channel for every attempt and closes it when the attempt ends.
type PerAttempt struct {
	opts notify.Options
	dial DialFunc
}

func NewPerAttempt(opts notify.Options) *PerAttempt {
	return &PerAttempt{opts: opts, dial: notify.Dial}
}

func (p *PerAttempt) Acquire(ctx context.Context) (Channel, error) {
	opts := p.opts
	userHook := opts.OnClose
	opts.OnClose = func(s *notify.Session, cause error) {
		tool.DefaultLogger.Debugf("[Supervisor] per-attempt channel %s ended: %v", s.ID(), cause)
		if userHook != nil {
			userHook(s, cause)
		}
	}
	s, err := p.dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (p *PerAttempt) Release(ch Channel, _ bool) {
	if ch != nil {
		ch.Close()
	}
}

// LongLived shares one channel across attempts, one attempt at a time. It is
// opened by Start, closed by Stop or by a failed attempt. After a failure the
// next Acquire dials again so a retry starts from a clean handshake; a channel
// that died on its own makes the next Acquire fail fast instead.
type LongLived struct {
	opts notify.Options
	dial DialFunc

	mu      sync.Mutex
	current *notify.Session
	busy    bool
	stopped bool
}

func NewLongLived(opts notify.Options) *LongLived {
	return &LongLived{opts: opts, dial: notify.Dial}
}

// Start opens the shared channel.
func (l *LongLived) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = false
	if l.current != nil && l.current.Open() {
		return nil
	}
	s, err := l.dialLocked(ctx)
	if err != nil {
		return err
	}
	l.current = s
	return nil
}

func (l *LongLived) dialLocked(ctx context.Context) (*notify.Session, error) {
	opts := l.opts
	userHook := opts.OnClose
	opts.OnClose = func(s *notify.Session, cause error) {
		tool.DefaultLogger.Infof("[Supervisor] long-lived channel %s ended: %v", s.ID(), cause)
		if userHook != nil {
			userHook(s, cause)
		}
	}
	return l.dial(ctx, opts)
}

func (l *LongLived) Acquire(ctx context.Context) (Channel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return nil, fmt.Errorf("%w: supervisor stopped", types.ErrChannelError)
	}
	if l.busy {
		return nil, fmt.Errorf("%w: channel in use by another attempt", types.ErrChannelBusy)
	}
	if l.current != nil && !l.current.Open() {
		cause := l.current.Err()
		l.current = nil
		return nil, fmt.Errorf("%w: shared channel is no longer open (%v)", types.ErrChannelError, cause)
	}
	if l.current == nil {
		s, err := l.dialLocked(ctx)
		if err != nil {
			return nil, err
		}
		l.current = s
	}
	l.busy = true
	return l.current, nil
}

func (l *LongLived) Release(ch Channel, failed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch == nil {
		return
	}
	if s, ok := ch.(*notify.Session); !ok || s != l.current {
		ch.Close()
		return
	}
	l.busy = false
	if failed {
		l.current.Close()
		l.current = nil
	}
}

// Exclusive reports that attempts must be serialized on the shared channel.
func (l *LongLived) Exclusive() bool {
	return true
}

// Stop closes the shared channel; later Acquires fail until Start.
func (l *LongLived) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.busy = false
	l.current.Close()
	l.current = nil
}

// Current exposes the shared channel, nil when none is open.
func (l *LongLived) Current() *notify.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
