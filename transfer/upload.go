package transfer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// SubmitBytes PUTs payload to the presigned target. It makes a single attempt.
func (c *Client) SubmitBytes(ctx context.Context, target types.UploadTarget, payload []byte) error {
	if target.URL == "" {
		return fmt.Errorf("%w: empty upload target", types.ErrTransferFailed)
	}
	if payload == nil {
		return fmt.Errorf("%w: payload must not be nil", types.ErrTransferFailed)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", types.ErrTransferFailed, ctx.Err())
	default:
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: failed to create upload request: %v", types.ErrTransferFailed, err)
	}
	req.ContentLength = int64(len(payload))
	req.Header.Set("Content-Type", "application/octet-stream")

	// presigned URLs carry their own authorization, the API key is not sent to blob storage
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", types.ErrTransferFailed, ctx.Err())
		}
		return fmt.Errorf("%w: %v", types.ErrTransferFailed, err)
	}
	defer closeBody(resp)

	if !successful(resp) {
		return fmt.Errorf("%w: %s", types.ErrTransferFailed, resp.Status)
	}
	tool.DefaultLogger.Infof("[Transfer] Uploaded %d bytes", len(payload))
	return nil
}
