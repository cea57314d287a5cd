package tool

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const APIKeyHeader = "x-api-key"

// BuildResourceURL builds GET /resource/{id}?getPresignedUploadURL=...&fileType=...
// upload=true asks for a PUT target, upload=false for the converted artifact.
func BuildResourceURL(base, resourceId, fileType string, upload bool) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/resource/" + url.PathEscape(resourceId))
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %v", err)
	}
	q := url.Values{}
	q.Set("getPresignedUploadURL", strconv.FormatBool(upload))
	q.Set("fileType", fileType)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildSubmitJobURL builds POST /resource.
func BuildSubmitJobURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/resource")
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %v", err)
	}
	return u.String(), nil
}

// BuildListURL builds GET /resources?fileType=...&limit=N[&cursor=C].
func BuildListURL(base, fileType string, limit int, cursor string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/resources")
	if err != nil {
		return "", fmt.Errorf("failed to parse base URL: %v", err)
	}
	q := url.Values{}
	q.Set("fileType", fileType)
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// BuildWebsocketURL appends the API key as a query parameter, browsers cannot set headers on upgrade.
func BuildWebsocketURL(base, apiKey string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse websocket URL: %v", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	if apiKey != "" {
		q := u.Query()
		q.Set(APIKeyHeader, apiKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
