package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/notelib/score-intake/internal/core/domain"
	"github.com/notelib/score-intake/internal/core/ports"
)

type ReviewSessionUseCase struct {
	repo      ports.SessionRepository
	catalog   ports.PieceCatalog
	storage   ports.ObjectStorage
	committer ports.LibraryCommitter
	logger    *slog.Logger
	now       func() time.Time
}

func NewReviewSessionUseCase(
	repo ports.SessionRepository,
	catalog ports.PieceCatalog,
	storage ports.ObjectStorage,
	committer ports.LibraryCommitter,
	logger *slog.Logger,
) *ReviewSessionUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewSessionUseCase{
		repo:      repo,
		catalog:   catalog,
		storage:   storage,
		committer: committer,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Reject moves a PENDING_REVIEW session to REJECTED. The transition is a
// compare-and-swap on the stored status, so two racing rejects resolve to
// exactly one winner. Cleanup of the stored file is best-effort and
// reported on the side channel, never as a failure of the reject.
func (uc *ReviewSessionUseCase) Reject(ctx context.Context, sessionID, reviewer, reason string) (domain.RejectOutcome, error) {
	session, err := uc.repo.GetByID(ctx, sessionID)
	if err != nil {
		return domain.RejectOutcome{}, err
	}
	if session.Status != domain.StatusPendingReview {
		return domain.RejectOutcome{}, &domain.InvalidTransitionError{
			SessionID: sessionID,
			Current:   session.Status,
			Attempted: domain.StatusRejected,
		}
	}

	// A session already committed into the permanent library can never be
	// rejected, even when some other code path left its status stale.
	committed, err := uc.catalog.ReferencesSession(ctx, sessionID)
	if err != nil {
		return domain.RejectOutcome{}, fmt.Errorf("check library references: %w", err)
	}
	if committed {
		return domain.RejectOutcome{}, &domain.InvalidTransitionError{
			SessionID: sessionID,
			Current:   session.Status,
			Attempted: domain.StatusRejected,
			Reason:    "a committed library record references this session",
		}
	}

	reviewedAt := uc.now()
	routing := rejectRouting(reviewer, reason)
	if err := uc.repo.Transition(ctx, sessionID, domain.StatusPendingReview, domain.StatusRejected, reviewer, routing, reviewedAt); err != nil {
		return domain.RejectOutcome{}, err
	}

	session.Status = domain.StatusRejected
	session.ReviewedBy = reviewer
	session.ReviewedAt = &reviewedAt
	session.RoutingDecision = routing

	cleanup := uc.cleanupStorage(ctx, session)
	return domain.RejectOutcome{Session: session, Cleanup: cleanup}, nil
}

// Approve moves a PENDING_REVIEW session to APPROVED and hands it to the
// library committer. This use case's responsibility ends at APPROVED; the
// committer owns the COMMITTED transition.
func (uc *ReviewSessionUseCase) Approve(ctx context.Context, sessionID, reviewer string) (*domain.UploadSession, error) {
	session, err := uc.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.StatusPendingReview {
		return nil, &domain.InvalidTransitionError{
			SessionID: sessionID,
			Current:   session.Status,
			Attempted: domain.StatusApproved,
		}
	}

	reviewedAt := uc.now()
	routing := fmt.Sprintf("approved by %s; handed to library commit", reviewer)
	if err := uc.repo.Transition(ctx, sessionID, domain.StatusPendingReview, domain.StatusApproved, reviewer, routing, reviewedAt); err != nil {
		return nil, err
	}

	session.Status = domain.StatusApproved
	session.ReviewedBy = reviewer
	session.ReviewedAt = &reviewedAt
	session.RoutingDecision = routing

	if err := uc.committer.Commit(ctx, session); err != nil {
		// The session stays APPROVED; the committer retries on its own
		// schedule. Surface the handoff failure to the caller.
		return session, fmt.Errorf("library commit handoff: %w", err)
	}
	return session, nil
}

func (uc *ReviewSessionUseCase) cleanupStorage(ctx context.Context, session *domain.UploadSession) domain.CleanupResult {
	if session.StoragePath == "" {
		return domain.CleanupResult{}
	}
	err := uc.storage.Remove(ctx, session.StoragePath)
	if err != nil {
		uc.logger.Warn("session_cleanup_failed",
			"session_id", session.ID,
			"storage_path", session.StoragePath,
			"error", err,
		)
	}
	return domain.CleanupResult{Attempted: true, Err: err}
}

func rejectRouting(reviewer, reason string) string {
	if reason == "" {
		return fmt.Sprintf("rejected by %s", reviewer)
	}
	return fmt.Sprintf("rejected by %s: %s", reviewer, reason)
}
