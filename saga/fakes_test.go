package saga

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/moyoez/blendconv/notify"
	"github.com/moyoez/blendconv/types"
)

// recorder keeps the order in which calls and state changes happened.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *recorder) index(event string) int {
	return slices.Index(r.list(), event)
}

func (r *recorder) has(event string) bool {
	return r.index(event) >= 0
}

type fakeChannel struct {
	rec         *recorder
	tokens      chan string
	completions chan notify.Completion
	done        chan struct{}
	once        sync.Once

	mu       sync.Mutex
	cause    error
	expected string
}

func newFakeChannel(rec *recorder) *fakeChannel {
	return &fakeChannel{
		rec:         rec,
		tokens:      make(chan string, 1),
		completions: make(chan notify.Completion, 1),
		done:        make(chan struct{}),
	}
}

func (f *fakeChannel) kill(cause error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.cause = cause
		f.mu.Unlock()
		close(f.done)
	})
}

func (f *fakeChannel) Expect(resourceId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cause != nil {
		return f.cause
	}
	f.expected = resourceId
	return nil
}

func (f *fakeChannel) WaitToken(ctx context.Context) (string, error) {
	select {
	case token := <-f.tokens:
		f.rec.add("token-ready:%s", token)
		return token, nil
	case <-f.done:
		return "", f.Err()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeChannel) WaitCompletion(ctx context.Context) (notify.Completion, error) {
	select {
	case c := <-f.completions:
		return c, nil
	case <-f.done:
		return notify.Completion{}, f.Err()
	case <-ctx.Done():
		return notify.Completion{}, ctx.Err()
	}
}

func (f *fakeChannel) Open() bool {
	select {
	case <-f.done:
		return false
	default:
		return true
	}
}

func (f *fakeChannel) Done() <-chan struct{} {
	return f.done
}

func (f *fakeChannel) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cause
}

func (f *fakeChannel) Close() {
	f.kill(fmt.Errorf("%w: session closed", types.ErrChannelError))
}

type fakeSupervisor struct {
	rec *recorder
	ch  *fakeChannel
	err error
}

func (f *fakeSupervisor) Acquire(context.Context) (Channel, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rec.add("acquire")
	return f.ch, nil
}

func (f *fakeSupervisor) Release(ch Channel, failed bool) {
	f.rec.add("release:%v", failed)
	ch.Close()
}

// fakeClient records every call. Hooks run inside the call and may block on ctx.
type fakeClient struct {
	rec *recorder

	targetErr error
	putErr    error
	jobErr    error
	fetchErr  error

	onTarget func(ctx context.Context) error
	onPut    func(ctx context.Context) error
	onJob    func()
}

func (f *fakeClient) RequestUploadTarget(ctx context.Context, resourceId, sourceFormat string) (types.UploadTarget, error) {
	f.rec.add("target:%s:%s", resourceId, sourceFormat)
	if f.onTarget != nil {
		if err := f.onTarget(ctx); err != nil {
			return types.UploadTarget{}, err
		}
	}
	if f.targetErr != nil {
		return types.UploadTarget{}, f.targetErr
	}
	return types.UploadTarget{URL: "https://x/u1"}, nil
}

func (f *fakeClient) SubmitBytes(ctx context.Context, target types.UploadTarget, payload []byte) error {
	f.rec.add("put:%s", target.URL)
	if f.onPut != nil {
		if err := f.onPut(ctx); err != nil {
			return err
		}
	}
	return f.putErr
}

func (f *fakeClient) SubmitConversionJob(_ context.Context, sessionToken, resourceId, sourceFormat, targetFormat, storageKey string) error {
	f.rec.add("job:%s:%s:%s:%s:%s", sessionToken, resourceId, sourceFormat, targetFormat, storageKey)
	if f.jobErr != nil {
		return f.jobErr
	}
	if f.onJob != nil {
		f.onJob()
	}
	return nil
}

func (f *fakeClient) FetchResult(_ context.Context, resourceId, targetFormat string) (types.ResultLocation, error) {
	f.rec.add("fetch:%s:%s", resourceId, targetFormat)
	if f.fetchErr != nil {
		return types.ResultLocation{}, f.fetchErr
	}
	return types.ResultLocation{URL: "https://x/" + resourceId + "." + targetFormat}, nil
}

// harness wires a saga to fakes and records observed states alongside calls.
type harness struct {
	rec        *recorder
	ch         *fakeChannel
	client     *fakeClient
	supervisor *fakeSupervisor
	saga       *Saga
}

func newHarness(opts Options) *harness {
	rec := &recorder{}
	h := &harness{
		rec:    rec,
		ch:     newFakeChannel(rec),
		client: &fakeClient{rec: rec},
	}
	h.supervisor = &fakeSupervisor{rec: rec, ch: h.ch}
	userObserver := opts.Observer
	opts.Observer = func(snap types.AttemptSnapshot) {
		rec.add("state:%s", snap.State)
		if userObserver != nil {
			userObserver(snap)
		}
	}
	h.saga = New(h.client, h.supervisor, opts)
	return h
}

func (h *harness) states() []string {
	var states []string
	for _, e := range h.rec.list() {
		if state, ok := strings.CutPrefix(e, "state:"); ok {
			states = append(states, state)
		}
	}
	return states
}

func testAttempt() *types.UploadAttempt {
	return types.NewUploadAttempt("a1", "m1.blend", []byte("BLENDER"), "blend", "glb")
}
