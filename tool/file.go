package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/moyoez/blendconv/types"
)

// MaxUploadSize caps a single model file.
var MaxUploadSize int64 = 2 << 30 // 2GB

var (
	SupportedSourceFormats = []string{"blend"}
	SupportedTargetFormats = []string{"glb", "gltf", "obj", "fbx", "usd", "usdz"}
)

// ValidateFormats mirrors the resource API's own validation so a bad request never leaves the client.
func ValidateFormats(sourceFormat, targetFormat string) error {
	if !slices.Contains(SupportedSourceFormats, sourceFormat) {
		return fmt.Errorf("%w: source %q, only %s files are supported", types.ErrUnsupportedFormat, sourceFormat, strings.Join(SupportedSourceFormats, ", "))
	}
	if !slices.Contains(SupportedTargetFormats, targetFormat) {
		return fmt.Errorf("%w: target %q, only %s files are supported", types.ErrUnsupportedFormat, targetFormat, strings.Join(SupportedTargetFormats, ", "))
	}
	return nil
}

// SourceFormatFromName returns the lowercased extension without the dot.
func SourceFormatFromName(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// ResolveSourceFormat takes the format from the file extension, falling back to
// the configured default for names without one.
func ResolveSourceFormat(fileName, fallback string) string {
	if format := SourceFormatFromName(fileName); format != "" {
		return format
	}
	return fallback
}

// ReadUploadFile loads a local model file for upload, returning its base name and bytes.
func ReadUploadFile(ctx context.Context, filePath string) (string, []byte, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to stat file: %v", err)
	}
	if fileInfo.IsDir() {
		return "", nil, fmt.Errorf("path is a directory, not a file")
	}
	if fileInfo.Size() == 0 {
		return "", nil, fmt.Errorf("file is empty")
	}
	if fileInfo.Size() > MaxUploadSize {
		return "", nil, fmt.Errorf("file too large: %d bytes (max %d)", fileInfo.Size(), MaxUploadSize)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open file: %v", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			DefaultLogger.Errorf("Failed to close file: %v", err)
		}
	}()

	payload, err := ReadAllWithContext(ctx, file, fileInfo.Size())
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file: %v", err)
	}
	return filepath.Base(filePath), payload, nil
}
