package transfer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// FetchResult returns the presigned download URL of the converted artifact.
// It doubles as an existence probe: a missing artifact is an ErrResultFetchFailed.
func (c *Client) FetchResult(ctx context.Context, resourceId, targetFormat string) (types.ResultLocation, error) {
	if resourceId == "" || targetFormat == "" {
		return types.ResultLocation{}, fmt.Errorf("%w: resourceId and targetFormat must not be empty", types.ErrResultFetchFailed)
	}
	url, err := tool.BuildResourceURL(c.baseURL, resourceId, targetFormat, false)
	if err != nil {
		return types.ResultLocation{}, fmt.Errorf("%w: %v", types.ErrResultFetchFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.ResultLocation{}, fmt.Errorf("%w: failed to create request: %v", types.ErrResultFetchFailed, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return types.ResultLocation{}, fmt.Errorf("%w: %v", types.ErrResultFetchFailed, err)
	}
	defer closeBody(resp)

	if !successful(resp) {
		return types.ResultLocation{}, fmt.Errorf("%w: %s", types.ErrResultFetchFailed, describeFailure(resp))
	}
	presigned, ok := readPresignedURL(resp)
	if !ok {
		return types.ResultLocation{}, fmt.Errorf("%w: no presignedUrl in response", types.ErrResultFetchFailed)
	}
	return types.ResultLocation{URL: presigned}, nil
}
