package types

// ConfigResponse is the JSON shape for GET /api/self/v1/config. The API key is never echoed.
type ConfigResponse struct {
	APIURL            string   `json:"api_url"`
	WebsocketURL      string   `json:"websocket_url"`
	HasAPIKey         bool     `json:"has_api_key"`
	SourceFormat      string   `json:"source_format"`
	TargetFormat      string   `json:"target_format"`
	TargetFormats     []string `json:"target_formats"`
	SessionPolicy     string   `json:"session_policy"`
	TokenTimeout      string   `json:"token_timeout"`
	CompletionTimeout string   `json:"completion_timeout"`
	Version           string   `json:"version"`
}
