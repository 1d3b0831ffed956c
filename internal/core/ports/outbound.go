package ports

import (
	"context"
	"io"
	"time"

	"github.com/notelib/score-intake/internal/core/domain"
)

// SessionRepository persists and reads upload-session state.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.UploadSession) error
	GetByID(ctx context.Context, id string) (*domain.UploadSession, error)
	ListByStatus(ctx context.Context, status domain.SessionStatus, limit int) ([]domain.UploadSession, error)

	// FindBySourceHash returns (nil, nil) when no other session carries the
	// hash. excludeID keeps a session from matching its own row.
	FindBySourceHash(ctx context.Context, hash, excludeID string) (*domain.SessionMatch, error)

	SaveAnalysis(ctx context.Context, id string, workHash string, policy domain.DuplicateCheckResult, analysis domain.StructureAnalysis) error
	SetError(ctx context.Context, id, message string) error

	// Transition applies a compare-and-transition write: the row is updated
	// only while its status still equals from. Zero rows affected yields
	// domain.ErrSessionNotFound or *domain.InvalidTransitionError with the
	// current status.
	Transition(ctx context.Context, id string, from, to domain.SessionStatus, reviewedBy, routingDecision string, reviewedAt time.Time) error
}

// PieceCatalog reads the permanent library the committer writes into.
type PieceCatalog interface {
	// FindByWorkHash returns (nil, nil) when no piece matches.
	FindByWorkHash(ctx context.Context, workHash string) (*domain.PieceMatch, error)
	// ReferencesSession reports whether a committed library record names the
	// session as its origin, regardless of the session's stored status.
	ReferencesSession(ctx context.Context, sessionID string) (bool, error)
}

// ObjectStorage stores uploaded files until a session reaches a terminal
// state.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// MessageQueue carries pipeline jobs between the API and the worker.
type MessageQueue interface {
	PublishSessionQueued(ctx context.Context, sessionID string) error
	SubscribeSessionQueued(ctx context.Context, handler func(context.Context, string) error) error
}

// StructureAnalyzer estimates the part layout of a document. It never
// fails: unreadable input yields a confidence-0 result.
type StructureAnalyzer interface {
	Analyze(ctx context.Context, data []byte, meta *domain.ExtractedMetadata) domain.StructureAnalysis
}

// MetadataExtractor is the opaque upstream collaborator that turns raw
// bytes into validated metadata. Consumed only when an upload arrives
// without pre-extracted metadata.
type MetadataExtractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (domain.ExtractedMetadata, int, error)
}

// LibraryCommitter is the external collaborator that moves an APPROVED
// session into the permanent library.
type LibraryCommitter interface {
	Commit(ctx context.Context, session *domain.UploadSession) error
}

// EventSink receives pipeline progress events.
type EventSink interface {
	Publish(evt domain.ProgressEvent)
}
