package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notelib/score-intake/internal/core/domain"
	"github.com/notelib/score-intake/internal/core/ports"
	"github.com/notelib/score-intake/internal/fingerprint"
)

// maxUploadBytes bounds a single submission. Scanned scores run large but
// a full concert folder should be split client-side.
const maxUploadBytes = 64 << 20

type IngestSessionUseCase struct {
	repo    ports.SessionRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestSessionUseCase(
	repo ports.SessionRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestSessionUseCase {
	return &IngestSessionUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Upload hashes and stores the submitted bytes, creates the session in
// PENDING_REVIEW and queues the pipeline job. Pre-extracted metadata is
// validated here, once; it is never re-inspected downstream.
func (uc *IngestSessionUseCase) Upload(
	ctx context.Context,
	upload domain.UploadInput,
	body io.Reader,
) (*domain.UploadSession, error) {
	if upload.Metadata != nil {
		if err := upload.Metadata.Validate(); err != nil {
			return nil, err
		}
	}
	if upload.ConfidenceScore < 0 || upload.ConfidenceScore > 100 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload session",
			fmt.Errorf("confidence score %d outside 0-100", upload.ConfidenceScore))
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload session",
			fmt.Errorf("empty upload body"))
	}
	if len(raw) > maxUploadBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload session",
			fmt.Errorf("upload exceeds %d bytes", maxUploadBytes))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFileName(upload.FileName))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save upload to storage: %w", err)
	}

	session := &domain.UploadSession{
		ID:              id,
		FileName:        upload.FileName,
		MimeType:        upload.MimeType,
		StoragePath:     storageKey,
		SourceSHA256:    fingerprint.SourceSHA256(raw),
		ConfidenceScore: upload.ConfidenceScore,
		Status:          domain.StatusPendingReview,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if upload.Metadata != nil {
		session.Metadata = *upload.Metadata
	}

	if err := uc.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create upload session: %w", err)
	}

	if err := uc.queue.PublishSessionQueued(ctx, session.ID); err != nil {
		return nil, fmt.Errorf("publish pipeline job: %w", err)
	}

	return session, nil
}

func sanitizeFileName(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "score.pdf"
	}
	return base
}
