package transfer

import (
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"

	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 4 * 1024

// Client talks to the resource API. It holds no per-attempt state.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	list    *rate.Limiter
}

// NewClient builds a client from config. listRatePerSecond <= 0 disables listing throttling.
func NewClient(cfg *types.AppConfig) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey:  cfg.APIKey,
		http:    tool.GetHttpClient(),
	}
	if cfg.ListRatePerSecond > 0 {
		burst := int(cfg.ListRatePerSecond)
		if burst < 1 {
			burst = 1
		}
		c.list = rate.NewLimiter(rate.Limit(cfg.ListRatePerSecond), burst)
	}
	return c
}

// WithHTTPClient replaces the transport, tests point it at httptest servers.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.http = hc
	}
	return c
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", tool.UserAgent())
	if c.apiKey != "" && req.Header.Get(tool.APIKeyHeader) == "" {
		req.Header.Set(tool.APIKeyHeader, c.apiKey)
	}
	return c.http.Do(req)
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		tool.DefaultLogger.Errorf("Failed to close response body: %v", err)
	}
}

func successful(resp *http.Response) bool {
	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}

// describeFailure returns the API's {"error": "..."} message when there is one, else the status line.
func describeFailure(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return resp.Status
	}
	var errorResponse types.ErrorResponse
	if err := sonic.Unmarshal(body, &errorResponse); err == nil && errorResponse.Error != "" {
		return resp.Status + ": " + errorResponse.Error
	}
	return resp.Status
}

// readPresignedURL decodes {"presignedUrl": "..."} and rejects an empty URL.
func readPresignedURL(resp *http.Response) (string, bool) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tool.DefaultLogger.Warnf("Failed to read response body: %v", err)
		return "", false
	}
	var parsed types.PresignedURLResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		tool.DefaultLogger.Debugf("Unparseable presigned URL response: %s", string(body))
		return "", false
	}
	if parsed.PresignedUrl == "" {
		return "", false
	}
	return parsed.PresignedUrl, true
}
