package saga

import (
	"context"

	"github.com/moyoez/blendconv/notify"
	"github.com/moyoez/blendconv/types"
)

// ResourceClient is the request/response side of an attempt. *transfer.Client implements it.
type ResourceClient interface {
	RequestUploadTarget(ctx context.Context, resourceId, sourceFormat string) (types.UploadTarget, error)
	SubmitBytes(ctx context.Context, target types.UploadTarget, payload []byte) error
	SubmitConversionJob(ctx context.Context, sessionToken, resourceId, sourceFormat, targetFormat, storageKey string) error
	FetchResult(ctx context.Context, resourceId, targetFormat string) (types.ResultLocation, error)
}

// Channel is the saga's view of a duplex session. *notify.Session implements it.
type Channel interface {
	Expect(resourceId string) error
	WaitToken(ctx context.Context) (string, error)
	WaitCompletion(ctx context.Context) (notify.Completion, error)
	Open() bool
	Done() <-chan struct{}
	Err() error
	Close()
}

// Supervisor decides channel lifetime. Acquire hands out a live channel for one
// attempt; Release returns it when the attempt ends. failed=true means the
// channel must not be reused.
type Supervisor interface {
	Acquire(ctx context.Context) (Channel, error)
	Release(ch Channel, failed bool)
}

// Exclusive is implemented by supervisors that serve one attempt at a time.
// Callers check it up front instead of letting a second attempt fail in Acquire.
type Exclusive interface {
	Exclusive() bool
}

// Observer receives a snapshot after every state change.
type Observer func(types.AttemptSnapshot)

var (
	_ Channel   = (*notify.Session)(nil)
	_ Exclusive = (*LongLived)(nil)
)
