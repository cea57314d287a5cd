package types

// ModelMetadata is one row of the resource listing.
type ModelMetadata struct {
	JobID        string `json:"jobId"`
	ConnectionID string `json:"connectionId"`
	JobType      string `json:"jobType"`
	JobStatus    string `json:"jobStatus"`
	FromFileType string `json:"fromFileType"`
	ToFileType   string `json:"toFileType"`
	ModelID      string `json:"modelId"`
	S3Key        string `json:"s3Key"`
	NewS3Key     string `json:"newS3Key,omitempty"`
	Error        string `json:"error,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// ResourcePage is the body of GET /resources.
type ResourcePage struct {
	Models     []ModelMetadata `json:"models"`
	NextCursor string          `json:"nextCursor,omitempty"`
}
