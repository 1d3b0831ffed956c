package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/notelib/score-intake/internal/core/domain"
)

type repoFake struct {
	sessions map[string]*domain.UploadSession

	createErr     error
	sourceMatch   *domain.SessionMatch
	sourceErr     error
	savedWorkHash string
	savedPolicy   *domain.DuplicateCheckResult
	savedAnalysis *domain.StructureAnalysis
	saveErr       error
	setErrorMsg   string
	transitionErr error
	transitions   int
}

func newRepoFake(sessions ...*domain.UploadSession) *repoFake {
	f := &repoFake{sessions: map[string]*domain.UploadSession{}}
	for _, s := range sessions {
		copySession := *s
		f.sessions[s.ID] = &copySession
	}
	return f
}

func (f *repoFake) Create(_ context.Context, session *domain.UploadSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	copySession := *session
	f.sessions[session.ID] = &copySession
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.UploadSession, error) {
	session, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copySession := *session
	return &copySession, nil
}

func (f *repoFake) ListByStatus(context.Context, domain.SessionStatus, int) ([]domain.UploadSession, error) {
	return nil, errors.New("not implemented")
}

func (f *repoFake) FindBySourceHash(_ context.Context, _, _ string) (*domain.SessionMatch, error) {
	return f.sourceMatch, f.sourceErr
}

func (f *repoFake) SaveAnalysis(_ context.Context, id, workHash string, policy domain.DuplicateCheckResult, analysis domain.StructureAnalysis) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedWorkHash = workHash
	f.savedPolicy = &policy
	f.savedAnalysis = &analysis
	if session, ok := f.sessions[id]; ok {
		session.WorkHash = workHash
		session.Policy = policy.Policy
		session.PolicyReason = policy.Reason
		session.Structure = &analysis
	}
	return nil
}

func (f *repoFake) SetError(_ context.Context, _, message string) error {
	f.setErrorMsg = message
	return nil
}

func (f *repoFake) Transition(_ context.Context, id string, from, to domain.SessionStatus, reviewedBy, routingDecision string, reviewedAt time.Time) error {
	if f.transitionErr != nil {
		return f.transitionErr
	}
	session, ok := f.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Status != from {
		return &domain.InvalidTransitionError{SessionID: id, Current: session.Status, Attempted: to}
	}
	f.transitions++
	session.Status = to
	session.ReviewedBy = reviewedBy
	session.RoutingDecision = routingDecision
	session.ReviewedAt = &reviewedAt
	return nil
}

type catalogFake struct {
	pieceMatch *domain.PieceMatch
	pieceErr   error
	committed  bool
	refErr     error
}

func (f *catalogFake) FindByWorkHash(context.Context, string) (*domain.PieceMatch, error) {
	return f.pieceMatch, f.pieceErr
}

func (f *catalogFake) ReferencesSession(context.Context, string) (bool, error) {
	return f.committed, f.refErr
}

type storageFake struct {
	files     map[string][]byte
	saveErr   error
	openErr   error
	removeErr error
	removed   []string
}

func newStorageFake() *storageFake {
	return &storageFake{files: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	raw, ok := f.files[key]
	if !ok {
		return nil, errors.New("no such stored file")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Remove(_ context.Context, key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, key)
	delete(f.files, key)
	return nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishSessionQueued(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, sessionID)
	return nil
}

func (f *queueFake) SubscribeSessionQueued(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type analyzerFake struct {
	result domain.StructureAnalysis
}

func (f *analyzerFake) Analyze(context.Context, []byte, *domain.ExtractedMetadata) domain.StructureAnalysis {
	return f.result
}

type extractorFake struct {
	meta       domain.ExtractedMetadata
	confidence int
	err        error
	calls      int
}

func (f *extractorFake) Extract(context.Context, string, []byte) (domain.ExtractedMetadata, int, error) {
	f.calls++
	return f.meta, f.confidence, f.err
}

type committerFake struct {
	committed []string
	err       error
}

func (f *committerFake) Commit(_ context.Context, session *domain.UploadSession) error {
	if f.err != nil {
		return f.err
	}
	f.committed = append(f.committed, session.ID)
	return nil
}

type sinkFake struct {
	events []domain.ProgressEvent
}

func (f *sinkFake) Publish(evt domain.ProgressEvent) {
	f.events = append(f.events, evt)
}

func (f *sinkFake) types() []domain.ProgressEventType {
	out := make([]domain.ProgressEventType, 0, len(f.events))
	for _, evt := range f.events {
		out = append(out, evt.Type)
	}
	return out
}
