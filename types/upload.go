package types

import (
	"fmt"
	"strings"
)

// UploadAttempt is one file submitted for conversion.
type UploadAttempt struct {
	ID           string
	FileName     string
	Payload      []byte
	SourceFormat string
	TargetFormat string
	ResourceID   string
}

// NewUploadAttempt derives the resource id by stripping the ".<sourceFormat>" suffix from fileName.
func NewUploadAttempt(id, fileName string, payload []byte, sourceFormat, targetFormat string) *UploadAttempt {
	return &UploadAttempt{
		ID:           id,
		FileName:     fileName,
		Payload:      payload,
		SourceFormat: sourceFormat,
		TargetFormat: targetFormat,
		ResourceID:   DeriveResourceID(fileName, sourceFormat),
	}
}

// DeriveResourceID strips a trailing ".<sourceFormat>" (case-insensitive) from fileName.
func DeriveResourceID(fileName, sourceFormat string) string {
	suffix := "." + sourceFormat
	if sourceFormat != "" && len(fileName) > len(suffix) && strings.EqualFold(fileName[len(fileName)-len(suffix):], suffix) {
		return fileName[:len(fileName)-len(suffix)]
	}
	return fileName
}

// StorageKey is where the uploaded bytes land, e.g. blend/m1.blend.
func (a *UploadAttempt) StorageKey() string {
	return fmt.Sprintf("%s/%s.%s", a.SourceFormat, a.ResourceID, a.SourceFormat)
}

// UploadTarget is a presigned PUT location.
type UploadTarget struct {
	URL string
}

// ResultLocation is a presigned GET location for the converted artifact.
type ResultLocation struct {
	URL string
}

// PresignedURLResponse is the body of GET /resource/{id}.
type PresignedURLResponse struct {
	PresignedUrl string `json:"presignedUrl"`
}

// ConversionJob is the body of POST /resource.
type ConversionJob struct {
	ConnectionID string `json:"connectionId"`
	FromFileType string `json:"fromFileType"`
	ToFileType   string `json:"toFileType"`
	ModelID      string `json:"modelId"`
	S3Key        string `json:"s3Key"`
}

// ErrorResponse is what the resource API returns on 4xx/5xx.
type ErrorResponse struct {
	Error string `json:"error"`
}
