package tool

import (
	"runtime"
	"runtime/debug"
	"slices"
	"time"

	"github.com/moyoez/blendconv/types"
)

// Version is overridden at build time with -ldflags "-X github.com/moyoez/blendconv/tool.Version=...".
var Version = "dev"

// UserAgent identifies this client to the resource API and the notification gateway.
func UserAgent() string {
	v := Version
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	return "blendconv/" + v + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}

// BuildConfigResponse renders the effective config for the control API.
func BuildConfigResponse(cfg *types.AppConfig) types.ConfigResponse {
	return types.ConfigResponse{
		APIURL:            cfg.APIURL,
		WebsocketURL:      cfg.WebsocketURL,
		HasAPIKey:         cfg.APIKey != "",
		SourceFormat:      cfg.SourceFormat,
		TargetFormat:      cfg.TargetFormat,
		TargetFormats:     slices.Clone(SupportedTargetFormats),
		SessionPolicy:     cfg.SessionPolicy,
		TokenTimeout:      formatTimeout(cfg.TokenTimeout),
		CompletionTimeout: formatTimeout(cfg.CompletionTimeout),
		Version:           Version,
	}
}

func formatTimeout(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}
