package ports

import (
	"context"
	"io"

	"github.com/notelib/score-intake/internal/core/domain"
)

// SessionIngestor is the inbound contract for upload-session creation.
type SessionIngestor interface {
	Upload(ctx context.Context, upload domain.UploadInput, body io.Reader) (*domain.UploadSession, error)
}

// SessionProcessor is the inbound contract for the asynchronous pipeline.
type SessionProcessor interface {
	ProcessByID(ctx context.Context, jobID, sessionID string) error
}

// SessionReviewer is the inbound contract for reviewer decisions. The
// caller identity is assumed to be authorized already.
type SessionReviewer interface {
	Approve(ctx context.Context, sessionID, reviewer string) (*domain.UploadSession, error)
	Reject(ctx context.Context, sessionID, reviewer, reason string) (domain.RejectOutcome, error)
}

// SessionReader is the inbound read model for session state.
type SessionReader interface {
	GetByID(ctx context.Context, id string) (*domain.UploadSession, error)
	ListByStatus(ctx context.Context, status domain.SessionStatus, limit int) ([]domain.UploadSession, error)
}
