package transfer

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// SubmitConversionJob asks the server to convert storageKey. sessionToken names the
// notification channel that will receive the completion notice, so it is mandatory.
func (c *Client) SubmitConversionJob(ctx context.Context, sessionToken, resourceId, sourceFormat, targetFormat, storageKey string) error {
	if sessionToken == "" {
		return fmt.Errorf("%w: missing session token", types.ErrJobSubmissionFailed)
	}
	url, err := tool.BuildSubmitJobURL(c.baseURL)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrJobSubmissionFailed, err)
	}
	payload, err := sonic.Marshal(types.ConversionJob{
		ConnectionID: sessionToken,
		FromFileType: sourceFormat,
		ToFileType:   targetFormat,
		ModelID:      resourceId,
		S3Key:        storageKey,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to marshal job: %v", types.ErrJobSubmissionFailed, err)
	}

	req, err := tool.NewHTTPReqWithApplication(http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload)))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", types.ErrJobSubmissionFailed, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrJobSubmissionFailed, err)
	}
	defer closeBody(resp)

	if !successful(resp) {
		return fmt.Errorf("%w: %s", types.ErrJobSubmissionFailed, describeFailure(resp))
	}
	tool.DefaultLogger.Infof("[Transfer] Conversion job for %s (%s -> %s) accepted", resourceId, sourceFormat, targetFormat)
	return nil
}
