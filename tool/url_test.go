package tool

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResourceURL(t *testing.T) {
	raw, err := BuildResourceURL("https://api.example.com/v1/", "my model", "blend", true)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/v1/resource/my model", u.Path)
	assert.Equal(t, "true", u.Query().Get("getPresignedUploadURL"))
	assert.Equal(t, "blend", u.Query().Get("fileType"))

	raw, err = BuildResourceURL("https://api.example.com/v1", "m1", "glb", false)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1/resource/m1?fileType=glb&getPresignedUploadURL=false", raw)
}

func TestBuildSubmitJobURL(t *testing.T) {
	raw, err := BuildSubmitJobURL("http://localhost:8080/v1/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/v1/resource", raw)
}

func TestBuildListURL(t *testing.T) {
	raw, err := BuildListURL("http://localhost/v1", "glb", 12, "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/v1/resources?fileType=glb&limit=12", raw)

	raw, err = BuildListURL("http://localhost/v1", "glb", 12, "eyJpZCI6Im0xIn0=")
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "eyJpZCI6Im0xIn0=", u.Query().Get("cursor"))
}

func TestBuildWebsocketURL(t *testing.T) {
	tests := []struct {
		base   string
		apiKey string
		want   string
	}{
		{base: "ws://localhost:8080/ws", want: "ws://localhost:8080/ws"},
		{base: "http://localhost:8080/ws", want: "ws://localhost:8080/ws"},
		{base: "https://gw.example.com/prod", apiKey: "k1", want: "wss://gw.example.com/prod?x-api-key=k1"},
		{base: "wss://gw.example.com/prod?stage=1", apiKey: "k1", want: "wss://gw.example.com/prod?stage=1&x-api-key=k1"},
	}
	for _, tt := range tests {
		got, err := BuildWebsocketURL(tt.base, tt.apiKey)
		require.NoError(t, err, tt.base)
		assert.Equal(t, tt.want, got)
	}

	_, err := BuildWebsocketURL("ftp://example.com", "")
	assert.Error(t, err)
}
