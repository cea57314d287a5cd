package tool

import (
	"flag"

	"github.com/moyoez/blendconv/types"
)

// SetFlags parses CLI flags and returns the override config.
func SetFlags() types.Config {
	var cfg types.Config
	flag.StringVar(&cfg.Log, "log", "", "log mode: dev|prod|none")
	flag.StringVar(&cfg.UseConfigPath, "useConfigPath", "", "override config file path")
	flag.StringVar(&cfg.UseAPIURL, "useAPIURL", "", "override resource API base URL")
	flag.StringVar(&cfg.UseWSURL, "useWSURL", "", "override notification websocket URL")
	flag.StringVar(&cfg.UseAPIKey, "useAPIKey", "", "override API key")
	flag.IntVar(&cfg.UsePort, "usePort", 0, "override control API port")
	flag.StringVar(&cfg.UsePolicy, "useSessionPolicy", "", "per-attempt|long-lived notification channel lifetime")
	flag.StringVar(&cfg.File, "file", "", "upload this file, wait for conversion and exit")
	flag.StringVar(&cfg.To, "to", "", "target format for -file (glb, gltf, obj, fbx, usd, usdz)")
	flag.Parse()
	return cfg
}
