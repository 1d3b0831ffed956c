package domain

import (
	"strings"
	"time"
)

type SessionStatus string

const (
	StatusPendingReview SessionStatus = "PENDING_REVIEW"
	StatusApproved      SessionStatus = "APPROVED"
	StatusRejected      SessionStatus = "REJECTED"
	StatusCommitted     SessionStatus = "COMMITTED"
)

// Terminal reports whether a session in this status can no longer be
// reviewed. APPROVED is terminal for reviewers even though the external
// committer still moves it to COMMITTED.
func (s SessionStatus) Terminal() bool {
	return s != StatusPendingReview
}

// UploadSession tracks one submitted file from ingestion until a reviewer
// decision. Exactly one review transition ever applies; ReviewedBy,
// ReviewedAt and RoutingDecision are written once, at that transition.
type UploadSession struct {
	ID              string             `json:"id"`
	FileName        string             `json:"file_name"`
	MimeType        string             `json:"mime_type"`
	StoragePath     string             `json:"storage_path"`
	SourceSHA256    string             `json:"source_sha256"`
	WorkHash        string             `json:"work_hash,omitempty"`
	Metadata        ExtractedMetadata  `json:"metadata"`
	ConfidenceScore int                `json:"confidence_score"`
	Policy          DuplicatePolicy    `json:"policy,omitempty"`
	PolicyReason    string             `json:"policy_reason,omitempty"`
	Structure       *StructureAnalysis `json:"structure,omitempty"`
	Status          SessionStatus      `json:"status"`
	ReviewedBy      string             `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time         `json:"reviewed_at,omitempty"`
	RoutingDecision string             `json:"routing_decision,omitempty"`
	Error           string             `json:"error,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// ExtractedMetadata is the validated form of the upstream extractor's
// output. It is parsed and checked once at the ingestion boundary; nothing
// downstream re-inspects raw extractor JSON.
type ExtractedMetadata struct {
	Title       string     `json:"title"`
	Composer    string     `json:"composer,omitempty"`
	Arranger    string     `json:"arranger,omitempty"`
	IsMultiPart bool       `json:"is_multi_part"`
	Parts       []PartHint `json:"parts,omitempty"`
}

// PartHint is the extractor's guess about one instrument part.
type PartHint struct {
	InstrumentName string  `json:"instrument_name"`
	PartName       string  `json:"part_name,omitempty"`
	Chair          *string `json:"chair,omitempty"`
}

// Validate enforces the closed metadata schema at the ingestion boundary.
func (m ExtractedMetadata) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return WrapError(ErrInvalidInput, "validate metadata", errMissingTitle)
	}
	for i, part := range m.Parts {
		if strings.TrimSpace(part.InstrumentName) == "" {
			return WrapError(ErrInvalidInput, "validate metadata", missingInstrumentError(i))
		}
	}
	return nil
}

// PartInfo is one estimated instrument part inside an analyzed document.
// PageStart/PageEnd are 0-indexed and inclusive; PartNumber is the
// 1-indexed ordinal among parts of the same session. Chair, when hinted,
// separates otherwise identical parts (1st vs 2nd Trumpet). Fingerprint
// makes part-record creation idempotent under job retries.
type PartInfo struct {
	PageStart      int     `json:"page_start"`
	PageEnd        int     `json:"page_end"`
	InstrumentName string  `json:"instrument_name"`
	PartName       string  `json:"part_name,omitempty"`
	Chair          *string `json:"chair,omitempty"`
	PartNumber     int     `json:"part_number"`
	Fingerprint    string  `json:"fingerprint,omitempty"`
}

// StructureAnalysis is the structural analyzer's always-well-formed result.
// Confidence is 0-100; 0 means the document was unreadable and the session
// should be judged by a human.
type StructureAnalysis struct {
	IsMultiPart    bool       `json:"is_multi_part"`
	TotalPages     int        `json:"total_pages"`
	EstimatedParts []PartInfo `json:"estimated_parts"`
	Confidence     int        `json:"confidence"`
	Notes          string     `json:"notes"`
}

type ProgressEventType string

const (
	EventProgress  ProgressEventType = "progress"
	EventCompleted ProgressEventType = "completed"
	EventFailed    ProgressEventType = "failed"
)

// Terminal reports whether this event ends its job's stream.
func (t ProgressEventType) Terminal() bool {
	return t == EventCompleted || t == EventFailed
}

// ProgressEvent is the envelope fanned out to pipeline observers.
type ProgressEvent struct {
	JobID     string            `json:"job_id"`
	SessionID string            `json:"session_id,omitempty"`
	Type      ProgressEventType `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Data      any               `json:"data,omitempty"`
}

// ProgressData is the payload of a "progress" event.
type ProgressData struct {
	Step    string `json:"step"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// CompletedData summarizes a finished pipeline run.
type CompletedData struct {
	Policy      DuplicatePolicy `json:"policy"`
	IsMultiPart bool            `json:"is_multi_part"`
	PartCount   int             `json:"part_count"`
	Confidence  int             `json:"confidence"`
}

// FailedData carries the terminal failure reason.
type FailedData struct {
	Reason string `json:"reason"`
}
