package domain

// UploadInput is the ingestion request from the orchestration layer.
// Metadata is nil when the caller wants the extractor collaborator to
// produce it during pipeline processing.
type UploadInput struct {
	FileName        string
	MimeType        string
	Metadata        *ExtractedMetadata
	ConfidenceScore int
}

// CleanupResult reports the best-effort temp-file cleanup that follows a
// reject. It is a side channel: a cleanup failure never fails the reject
// itself, and tests can assert on each outcome independently.
type CleanupResult struct {
	Attempted bool
	Err       error
}

func (c CleanupResult) Failed() bool {
	return c.Attempted && c.Err != nil
}

// RejectOutcome pairs the primary reject result with its cleanup side
// channel.
type RejectOutcome struct {
	Session *UploadSession
	Cleanup CleanupResult
}
