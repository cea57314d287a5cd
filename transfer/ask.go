package transfer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// RequestUploadTarget asks the resource API for a presigned PUT URL for resourceId.
func (c *Client) RequestUploadTarget(ctx context.Context, resourceId, sourceFormat string) (types.UploadTarget, error) {
	if resourceId == "" || sourceFormat == "" {
		return types.UploadTarget{}, fmt.Errorf("%w: resourceId and sourceFormat must not be empty", types.ErrTargetUnavailable)
	}
	url, err := tool.BuildResourceURL(c.baseURL, resourceId, sourceFormat, true)
	if err != nil {
		return types.UploadTarget{}, fmt.Errorf("%w: %v", types.ErrTargetUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.UploadTarget{}, fmt.Errorf("%w: failed to create request: %v", types.ErrTargetUnavailable, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return types.UploadTarget{}, fmt.Errorf("%w: %v", types.ErrTargetUnavailable, err)
	}
	defer closeBody(resp)

	if !successful(resp) {
		return types.UploadTarget{}, fmt.Errorf("%w: %s", types.ErrTargetUnavailable, describeFailure(resp))
	}
	presigned, ok := readPresignedURL(resp)
	if !ok {
		return types.UploadTarget{}, fmt.Errorf("%w: no presignedUrl in response", types.ErrTargetUnavailable)
	}
	tool.DefaultLogger.Debugf("[Transfer] Upload target for %s ready", resourceId)
	return types.UploadTarget{URL: presigned}, nil
}
