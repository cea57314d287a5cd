package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moyoez/blendconv/notify"
	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// Options tunes a Saga. Zero timeouts wait forever.
type Options struct {
	TokenTimeout      time.Duration
	CompletionTimeout time.Duration
	Observer          Observer
}

// Saga drives one upload attempt at a time:
// target -> bytes -> (token) -> job -> (completion) -> result.
type Saga struct {
	client     ResourceClient
	supervisor Supervisor
	opts       Options

	mu        sync.Mutex
	state     types.SagaState
	attempt   *types.UploadAttempt
	channel   Channel
	lastErr   error
	result    types.ResultLocation
	cancel    context.CancelFunc
	cancelled bool
	updatedAt time.Time
}

func New(client ResourceClient, supervisor Supervisor, opts Options) *Saga {
	return &Saga{
		client:     client,
		supervisor: supervisor,
		opts:       opts,
		state:      types.StateIdle,
		updatedAt:  time.Now(),
	}
}

// State returns the current state.
func (s *Saga) State() types.SagaState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error of the last failed attempt.
func (s *Saga) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Snapshot returns the externally visible state of the current or last attempt.
func (s *Saga) Snapshot(id, resourceId string) types.AttemptSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(id, resourceId)
}

func (s *Saga) snapshotLocked(id, resourceId string) types.AttemptSnapshot {
	if s.attempt != nil {
		id, resourceId = s.attempt.ID, s.attempt.ResourceID
	}
	snap := types.AttemptSnapshot{
		ID:         id,
		ResourceID: resourceId,
		State:      s.state.String(),
		ResultURL:  s.result.URL,
		UpdatedAt:  s.updatedAt,
	}
	if s.lastErr != nil && s.state == types.StateFailed {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

// Run executes attempt to a terminal state. It returns the result location on
// success, ErrCancelled after Cancel or ctx cancellation, or the error that
// failed the attempt. The saga may be reused once Run returns.
func (s *Saga) Run(ctx context.Context, attempt *types.UploadAttempt) (types.ResultLocation, error) {
	if attempt == nil || attempt.ResourceID == "" {
		return types.ResultLocation{}, errors.New("invalid attempt: resource id is required")
	}
	runCtx, err := s.begin(ctx, attempt)
	if err != nil {
		return types.ResultLocation{}, err
	}
	defer s.end()

	ch, err := s.supervisor.Acquire(runCtx)
	if err != nil {
		return s.finish(ctx, nil, err)
	}
	if !s.attach(ch) {
		s.supervisor.Release(ch, true)
		return types.ResultLocation{}, types.ErrCancelled
	}
	if err := ch.Expect(attempt.ResourceID); err != nil {
		return s.finish(ctx, ch, err)
	}

	stepCtx, stopGuard := guard(runCtx, ch)
	defer stopGuard()

	target, err := s.client.RequestUploadTarget(stepCtx, attempt.ResourceID, attempt.SourceFormat)
	if err != nil {
		return s.finish(ctx, ch, err)
	}

	if !s.transition(types.StateUploadingBytes) {
		return types.ResultLocation{}, types.ErrCancelled
	}
	if err := s.client.SubmitBytes(stepCtx, target, attempt.Payload); err != nil {
		return s.finish(ctx, ch, err)
	}

	if !s.transition(types.StateAwaitingSessionToken) {
		return types.ResultLocation{}, types.ErrCancelled
	}
	token, err := s.waitToken(stepCtx, ch)
	if err != nil {
		return s.finish(ctx, ch, err)
	}

	if !s.transition(types.StateSubmittingJob) {
		return types.ResultLocation{}, types.ErrCancelled
	}
	err = s.client.SubmitConversionJob(stepCtx, token, attempt.ResourceID, attempt.SourceFormat, attempt.TargetFormat, attempt.StorageKey())
	if err != nil {
		return s.finish(ctx, ch, err)
	}

	if !s.transition(types.StateAwaitingCompletion) {
		return types.ResultLocation{}, types.ErrCancelled
	}
	completion, err := s.waitCompletion(runCtx, ch)
	if err != nil {
		return s.finish(ctx, ch, err)
	}
	if completion.Err != nil {
		return s.finish(ctx, ch, completion.Err)
	}

	if !s.transition(types.StateFetchingResult) {
		return types.ResultLocation{}, types.ErrCancelled
	}
	// the channel has done its job, release it before the speculative fetch
	stopGuard()
	s.releaseChannel(false)

	resourceId := completion.ResourceID
	if resourceId == "" {
		resourceId = attempt.ResourceID
	}
	result, err := s.client.FetchResult(runCtx, resourceId, attempt.TargetFormat)
	if err != nil {
		if s.wasCancelled(ctx) {
			return types.ResultLocation{}, types.ErrCancelled
		}
		tool.DefaultLogger.Warnf("[Saga %s] Result fetch after completion failed: %v", attempt.ID, err)
	}
	if !s.succeed(result) {
		return types.ResultLocation{}, types.ErrCancelled
	}
	return result, nil
}

// Cancel abandons the attempt in flight: the channel is closed, pending waits are
// released and the saga returns to Idle. It reports whether anything was cancelled.
func (s *Saga) Cancel() bool {
	s.mu.Lock()
	if !s.state.Busy() {
		s.mu.Unlock()
		return false
	}
	s.cancelled = true
	if s.cancel != nil {
		s.cancel()
	}
	ch := s.channel
	s.channel = nil
	id, resourceId := s.attempt.ID, s.attempt.ResourceID
	tool.DefaultLogger.Infof("[Saga %s] Cancelled in state %s", id, s.state)
	s.setStateLocked(types.StateIdle)
	s.attempt = nil
	snap := s.snapshotLocked(id, resourceId)
	s.mu.Unlock()

	if ch != nil {
		s.supervisor.Release(ch, true)
	}
	s.publish(snap)
	return true
}

func (s *Saga) begin(ctx context.Context, attempt *types.UploadAttempt) (context.Context, error) {
	s.mu.Lock()
	if s.state.Busy() {
		s.mu.Unlock()
		return nil, fmt.Errorf("saga busy: attempt %s is %s", s.attempt.ID, s.state)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.attempt = attempt
	s.cancel = cancel
	s.cancelled = false
	s.lastErr = nil
	s.result = types.ResultLocation{}
	s.setStateLocked(types.StateAwaitingUploadTarget)
	snap := s.snapshotLocked("", "")
	s.mu.Unlock()

	tool.DefaultLogger.Infof("[Saga %s] Starting upload of %s (%d bytes, %s -> %s)", attempt.ID, attempt.FileName, len(attempt.Payload), attempt.SourceFormat, attempt.TargetFormat)
	s.publish(snap)
	return runCtx, nil
}

func (s *Saga) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Saga) attach(ch Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return false
	}
	s.channel = ch
	return true
}

// transition moves to a non-terminal state unless the attempt was cancelled.
func (s *Saga) transition(to types.SagaState) bool {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return false
	}
	tool.DefaultLogger.Debugf("[Saga %s] %s -> %s", s.attempt.ID, s.state, to)
	s.setStateLocked(to)
	snap := s.snapshotLocked("", "")
	s.mu.Unlock()
	s.publish(snap)
	return true
}

func (s *Saga) setStateLocked(to types.SagaState) {
	s.state = to
	s.updatedAt = time.Now()
}

// releaseChannel detaches the channel and hands it back to the supervisor.
func (s *Saga) releaseChannel(failed bool) {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()
	if ch != nil {
		s.supervisor.Release(ch, failed)
	}
}

func (s *Saga) wasCancelled(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled || ctx.Err() != nil
}

// finish ends a failed step. Caller cancellation wins over the step error, and a
// dead channel's cause wins over the HTTP error it provoked.
func (s *Saga) finish(ctx context.Context, ch Channel, err error) (types.ResultLocation, error) {
	if s.wasCancelled(ctx) {
		s.abandon()
		return types.ResultLocation{}, types.ErrCancelled
	}
	if ch != nil && !ch.Open() {
		if cause := ch.Err(); cause != nil && !errors.Is(err, types.ErrConversionFailed) {
			err = cause
		}
	}
	if !s.fail(err) {
		return types.ResultLocation{}, types.ErrCancelled
	}
	return types.ResultLocation{}, err
}

// fail closes the channel and clears the attempt before publishing Failed.
// It reports false when a concurrent Cancel got there first.
func (s *Saga) fail(err error) bool {
	s.releaseChannel(true)

	s.mu.Lock()
	if s.cancelled || s.attempt == nil {
		s.mu.Unlock()
		return false
	}
	id, resourceId := s.attempt.ID, s.attempt.ResourceID
	s.lastErr = err
	s.setStateLocked(types.StateFailed)
	s.attempt = nil
	snap := s.snapshotLocked(id, resourceId)
	s.mu.Unlock()

	tool.DefaultLogger.Errorf("[Saga %s] Upload failed: %v", id, err)
	s.publish(snap)
	return true
}

// abandon is the ctx-cancelled twin of Cancel, used when the caller's context ends.
func (s *Saga) abandon() {
	s.releaseChannel(true)

	s.mu.Lock()
	if !s.state.Busy() {
		s.mu.Unlock()
		return
	}
	id, resourceId := s.attempt.ID, s.attempt.ResourceID
	s.setStateLocked(types.StateIdle)
	s.attempt = nil
	snap := s.snapshotLocked(id, resourceId)
	s.mu.Unlock()

	tool.DefaultLogger.Infof("[Saga %s] Abandoned", id)
	s.publish(snap)
}

func (s *Saga) succeed(result types.ResultLocation) bool {
	s.releaseChannel(false)

	s.mu.Lock()
	if s.cancelled || s.attempt == nil {
		s.mu.Unlock()
		return false
	}
	id, resourceId := s.attempt.ID, s.attempt.ResourceID
	s.result = result
	s.setStateLocked(types.StateSucceeded)
	s.attempt = nil
	snap := s.snapshotLocked(id, resourceId)
	s.mu.Unlock()

	tool.DefaultLogger.Infof("[Saga %s] Conversion of %s finished", id, resourceId)
	s.publish(snap)
	return true
}

func (s *Saga) publish(snap types.AttemptSnapshot) {
	if s.opts.Observer != nil {
		s.opts.Observer(snap)
	}
}

func (s *Saga) waitToken(ctx context.Context, ch Channel) (string, error) {
	waitCtx, cancel := withOptionalTimeout(ctx, s.opts.TokenTimeout)
	defer cancel()
	token, err := ch.WaitToken(waitCtx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: no session token after %s", types.ErrTimeout, s.opts.TokenTimeout)
	}
	return token, err
}

func (s *Saga) waitCompletion(ctx context.Context, ch Channel) (notify.Completion, error) {
	waitCtx, cancel := withOptionalTimeout(ctx, s.opts.CompletionTimeout)
	defer cancel()
	c, err := ch.WaitCompletion(waitCtx)
	if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return c, fmt.Errorf("%w: no completion notice after %s", types.ErrTimeout, s.opts.CompletionTimeout)
	}
	return c, err
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// guard derives a context that is cancelled as soon as ch ends, so an HTTP step
// in flight stops when the channel drops.
func guard(ctx context.Context, ch Channel) (context.Context, context.CancelFunc) {
	stepCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-ch.Done():
			cancel()
		case <-stepCtx.Done():
		}
	}()
	return stepCtx, cancel
}
