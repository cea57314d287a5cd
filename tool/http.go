package tool

import (
	"net"
	"net/http"
	"time"
)

var (
	DefaultDialTimeout   = 30 * time.Second
	ConnectionHttpClient *http.Client
)

func init() {
	ConnectionHttpClient = NewHTTPClient()
}

// NewHTTPClient creates the client shared by all resource API calls.
// There is no overall Timeout: uploads can take minutes, callers bound each call with a context.
func NewHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   DefaultDialTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
	}
	return &http.Client{
		Transport: transport,
	}
}

// SetHttpClient swaps the shared client, tests use it to point at httptest servers.
func SetHttpClient(c *http.Client) {
	if c != nil {
		ConnectionHttpClient = c
	}
}

func GetHttpClient() *http.Client {
	return ConnectionHttpClient
}

// NewHTTPReqWithApplication wraps http.NewRequest* and sets the JSON content type.
func NewHTTPReqWithApplication(req *http.Request, err error) (*http.Request, error) {
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
