package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// ListResources fetches one page of converted models. An empty cursor means the first page.
func (c *Client) ListResources(ctx context.Context, targetFormat string, limit int, cursor string) (*types.ResourcePage, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("invalid parameters: limit must be > 0")
	}
	if c.list != nil {
		if err := c.list.Wait(ctx); err != nil {
			return nil, fmt.Errorf("list throttled: %v", err)
		}
	}
	url, err := tool.BuildListURL(c.baseURL, targetFormat, limit, cursor)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create list request: %v", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send list request: %v", err)
	}
	defer closeBody(resp)

	if !successful(resp) {
		return nil, fmt.Errorf("list request failed: %s", describeFailure(resp))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read list response: %v", err)
	}
	var page types.ResourcePage
	if err := sonic.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse list response: %v", err)
	}
	if page.Models == nil {
		page.Models = []types.ModelMetadata{}
	}
	return &page, nil
}
