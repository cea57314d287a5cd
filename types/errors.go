package types

import "errors"

// Every failure of an upload attempt wraps exactly one of these.
var (
	ErrTargetUnavailable   = errors.New("upload target unavailable")
	ErrTransferFailed      = errors.New("transfer failed")
	ErrJobSubmissionFailed = errors.New("job submission failed")
	ErrProtocolDesync      = errors.New("protocol desync")
	ErrChannelError        = errors.New("channel error")
	ErrResultFetchFailed   = errors.New("result fetch failed")
	ErrTimeout             = errors.New("timeout")
	ErrConversionFailed    = errors.New("conversion failed")
	ErrCancelled           = errors.New("upload cancelled")
	ErrUnsupportedFormat   = errors.New("unsupported format")
	// ErrChannelBusy means a shared channel is serving another attempt; the channel itself is healthy.
	ErrChannelBusy = errors.New("notification channel busy")
)
