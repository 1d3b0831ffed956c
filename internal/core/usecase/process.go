package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/notelib/score-intake/internal/core/domain"
	"github.com/notelib/score-intake/internal/core/ports"
	"github.com/notelib/score-intake/internal/fingerprint"
)

// Pipeline stage percentages reported to observers. The steps are fixed;
// only their messages vary per session.
const (
	percentValidate    = 10
	percentFingerprint = 30
	percentDedup       = 55
	percentStructure   = 80
	percentPersist     = 95
)

type ProcessSessionUseCase struct {
	repo      ports.SessionRepository
	catalog   ports.PieceCatalog
	storage   ports.ObjectStorage
	analyzer  ports.StructureAnalyzer
	extractor ports.MetadataExtractor
	eventSink ports.EventSink
	logger    *slog.Logger
}

func NewProcessSessionUseCase(
	repo ports.SessionRepository,
	catalog ports.PieceCatalog,
	storage ports.ObjectStorage,
	analyzer ports.StructureAnalyzer,
	extractor ports.MetadataExtractor,
	eventSink ports.EventSink,
	logger *slog.Logger,
) *ProcessSessionUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessSessionUseCase{
		repo:      repo,
		catalog:   catalog,
		storage:   storage,
		analyzer:  analyzer,
		extractor: extractor,
		eventSink: eventSink,
		logger:    logger,
	}
}

// ProcessByID runs the full ingestion decision pipeline for one session:
// metadata validation, fingerprinting, dedup lookups, structural analysis,
// persistence. Stage transitions are published to the event sink; the run
// always ends with a terminal completed or failed event.
func (uc *ProcessSessionUseCase) ProcessByID(ctx context.Context, jobID, sessionID string) error {
	summary, err := uc.runPipeline(ctx, jobID, sessionID)
	if err != nil {
		if setErr := uc.repo.SetError(ctx, sessionID, err.Error()); setErr != nil {
			uc.logger.Error("mark_session_error_failed", "session_id", sessionID, "error", setErr)
		}
		uc.emit(jobID, sessionID, domain.EventFailed, domain.FailedData{Reason: err.Error()})
		return err
	}
	uc.emit(jobID, sessionID, domain.EventCompleted, summary)
	return nil
}

func (uc *ProcessSessionUseCase) runPipeline(ctx context.Context, jobID, sessionID string) (domain.CompletedData, error) {
	session, err := uc.repo.GetByID(ctx, sessionID)
	if err != nil {
		return domain.CompletedData{}, fmt.Errorf("load session: %w", err)
	}

	uc.progress(jobID, sessionID, "validate", percentValidate, "validating metadata")
	meta, raw, err := uc.resolveMetadata(ctx, session)
	if err != nil {
		return domain.CompletedData{}, err
	}

	uc.progress(jobID, sessionID, "fingerprint", percentFingerprint, "computing work fingerprint")
	workFP, err := fingerprint.Work(meta.Title, meta.Composer)
	if err != nil {
		// No sensible fallback exists for a fingerprinting failure.
		return domain.CompletedData{}, fmt.Errorf("work fingerprint: %w", err)
	}

	uc.progress(jobID, sessionID, "dedup", percentDedup, "checking for duplicates")
	policy, err := uc.resolvePolicy(ctx, session, workFP.Hash)
	if err != nil {
		return domain.CompletedData{}, err
	}

	uc.progress(jobID, sessionID, "structure", percentStructure, "analyzing document structure")
	if raw == nil {
		raw, err = uc.readSource(ctx, session)
		if err != nil {
			return domain.CompletedData{}, err
		}
	}
	analysis := uc.analyzer.Analyze(ctx, raw, &meta)
	uc.fingerprintParts(sessionID, &analysis)

	uc.progress(jobID, sessionID, "persist", percentPersist, "persisting pipeline results")
	if err := uc.repo.SaveAnalysis(ctx, sessionID, workFP.Hash, policy, analysis); err != nil {
		return domain.CompletedData{}, fmt.Errorf("save analysis: %w", err)
	}

	uc.logger.Info("pipeline_complete",
		"session_id", sessionID,
		"job_id", jobID,
		"policy", string(policy.Policy),
		"total_pages", analysis.TotalPages,
		"is_multi_part", analysis.IsMultiPart,
		"confidence", analysis.Confidence,
	)

	return domain.CompletedData{
		Policy:      policy.Policy,
		IsMultiPart: analysis.IsMultiPart,
		PartCount:   len(analysis.EstimatedParts),
		Confidence:  analysis.Confidence,
	}, nil
}

// resolveMetadata returns validated metadata, asking the extractor
// collaborator when the upload arrived without any. The raw bytes are
// returned when the extractor path already had to read them.
func (uc *ProcessSessionUseCase) resolveMetadata(ctx context.Context, session *domain.UploadSession) (domain.ExtractedMetadata, []byte, error) {
	if session.Metadata.Title != "" {
		if err := session.Metadata.Validate(); err != nil {
			return domain.ExtractedMetadata{}, nil, err
		}
		return session.Metadata, nil, nil
	}

	raw, err := uc.readSource(ctx, session)
	if err != nil {
		return domain.ExtractedMetadata{}, nil, err
	}
	meta, confidence, err := uc.extractor.Extract(ctx, session.FileName, raw)
	if err != nil {
		return domain.ExtractedMetadata{}, nil, fmt.Errorf("extract metadata: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return domain.ExtractedMetadata{}, nil, err
	}
	session.Metadata = meta
	if session.ConfidenceScore == 0 {
		session.ConfidenceScore = confidence
	}
	return meta, raw, nil
}

func (uc *ProcessSessionUseCase) resolvePolicy(ctx context.Context, session *domain.UploadSession, workHash string) (domain.DuplicateCheckResult, error) {
	sessionMatch, err := uc.repo.FindBySourceHash(ctx, session.SourceSHA256, session.ID)
	if err != nil {
		return domain.DuplicateCheckResult{}, fmt.Errorf("source hash lookup: %w", err)
	}
	pieceMatch, err := uc.catalog.FindByWorkHash(ctx, workHash)
	if err != nil {
		return domain.DuplicateCheckResult{}, fmt.Errorf("work fingerprint lookup: %w", err)
	}

	sourceResult := domain.CheckSourceDuplicate(session.SourceSHA256, sessionMatch)
	workResult := domain.CheckWorkDuplicate(workHash, pieceMatch)
	return domain.ResolveDeduplicationPolicy(sourceResult, workResult), nil
}

func (uc *ProcessSessionUseCase) readSource(ctx context.Context, session *domain.UploadSession) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, session.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored upload: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read stored upload: %w", err)
	}
	return raw, nil
}

// fingerprintParts stamps each estimated part with its idempotent identity.
// A part whose identity cannot be computed keeps an empty fingerprint; the
// analysis itself is still usable.
func (uc *ProcessSessionUseCase) fingerprintParts(sessionID string, analysis *domain.StructureAnalysis) {
	for i := range analysis.EstimatedParts {
		part := &analysis.EstimatedParts[i]
		fp, err := fingerprint.Part(sessionID, part.InstrumentName, part.Chair, part.PageStart, part.PageEnd)
		if err != nil {
			uc.logger.Warn("part_fingerprint_skipped",
				"session_id", sessionID,
				"part_number", part.PartNumber,
				"error", err,
			)
			continue
		}
		part.Fingerprint = fp
	}
}

func (uc *ProcessSessionUseCase) progress(jobID, sessionID, step string, percent int, message string) {
	uc.emit(jobID, sessionID, domain.EventProgress, domain.ProgressData{
		Step:    step,
		Percent: percent,
		Message: message,
	})
}

func (uc *ProcessSessionUseCase) emit(jobID, sessionID string, typ domain.ProgressEventType, data any) {
	if uc.eventSink == nil {
		return
	}
	uc.eventSink.Publish(domain.ProgressEvent{
		JobID:     jobID,
		SessionID: sessionID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}
