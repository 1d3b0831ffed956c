package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/notelib/score-intake/internal/core/domain"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS upload_sessions (
	id TEXT PRIMARY KEY,
	file_name TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	source_sha256 TEXT NOT NULL,
	work_hash TEXT,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	confidence_score INTEGER NOT NULL DEFAULT 0,
	policy TEXT,
	policy_reason TEXT,
	structure JSONB,
	status TEXT NOT NULL,
	reviewed_by TEXT,
	reviewed_at TIMESTAMPTZ,
	routing_decision TEXT,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_upload_sessions_source_sha256 ON upload_sessions(source_sha256);
CREATE INDEX IF NOT EXISTS idx_upload_sessions_status ON upload_sessions(status);
CREATE INDEX IF NOT EXISTS idx_upload_sessions_created_at ON upload_sessions(created_at DESC);

CREATE TABLE IF NOT EXISTS library_pieces (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	composer TEXT,
	work_hash TEXT NOT NULL,
	origin_session_id TEXT,
	committed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_library_pieces_work_hash ON library_pieces(work_hash);
CREATE INDEX IF NOT EXISTS idx_library_pieces_origin_session ON library_pieces(origin_session_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const sessionColumns = `id, file_name, mime_type, storage_path, source_sha256, work_hash, metadata,
confidence_score, policy, policy_reason, structure, status, reviewed_by, reviewed_at,
routing_decision, error_message, created_at, updated_at`

func (r *SessionRepository) Create(ctx context.Context, session *domain.UploadSession) error {
	metadataJSON, err := json.Marshal(session.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO upload_sessions (
	id, file_name, mime_type, storage_path, source_sha256, metadata, confidence_score, status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		session.ID, session.FileName, session.MimeType, session.StoragePath, session.SourceSHA256,
		metadataJSON, session.ConfidenceScore, string(session.Status), session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.UploadSession, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+sessionColumns+`
FROM upload_sessions
WHERE id = $1
`, id)

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan upload session: %w", err)
	}
	return session, nil
}

func (r *SessionRepository) ListByStatus(ctx context.Context, status domain.SessionStatus, limit int) ([]domain.UploadSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+sessionColumns+`
FROM upload_sessions
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2
`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list upload sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.UploadSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) FindBySourceHash(ctx context.Context, hash, excludeID string) (*domain.SessionMatch, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, file_name
FROM upload_sessions
WHERE source_sha256 = $1 AND id <> $2
ORDER BY created_at ASC
LIMIT 1
`, hash, excludeID)

	var match domain.SessionMatch
	if err := row.Scan(&match.SessionID, &match.FileName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find session by source hash: %w", err)
	}
	return &match, nil
}

func (r *SessionRepository) SaveAnalysis(ctx context.Context, id string, workHash string, policy domain.DuplicateCheckResult, analysis domain.StructureAnalysis) error {
	structureJSON, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal structure analysis: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE upload_sessions
SET work_hash = $2, policy = $3, policy_reason = $4, structure = $5, updated_at = $6
WHERE id = $1
`, id, workHash, string(policy.Policy), policy.Reason, structureJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save pipeline analysis: %w", err)
	}
	return nil
}

func (r *SessionRepository) SetError(ctx context.Context, id, message string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE upload_sessions
SET error_message = $2, updated_at = $3
WHERE id = $1
`, id, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set session error: %w", err)
	}
	return nil
}

// Transition applies the compare-and-transition guard: the write lands only
// while the stored status still equals from, so concurrent reviews of the
// same session resolve to exactly one winner.
func (r *SessionRepository) Transition(ctx context.Context, id string, from, to domain.SessionStatus, reviewedBy, routingDecision string, reviewedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE upload_sessions
SET status = $3, reviewed_by = $4, reviewed_at = $5, routing_decision = $6, updated_at = $5
WHERE id = $1 AND status = $2
`, id, string(from), string(to), reviewedBy, reviewedAt, routingDecision)
	if err != nil {
		return fmt.Errorf("transition session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Nothing matched: distinguish an unknown session from a lost race.
	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM upload_sessions WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrSessionNotFound, "transition session", fmt.Errorf("id %s", id))
	}
	if err != nil {
		return fmt.Errorf("read current status: %w", err)
	}
	return &domain.InvalidTransitionError{
		SessionID: id,
		Current:   domain.SessionStatus(current),
		Attempted: to,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.UploadSession, error) {
	var (
		session      domain.UploadSession
		metadataRaw  []byte
		structureRaw []byte
		workHash     sql.NullString
		policy       sql.NullString
		policyReason sql.NullString
		status       string
		reviewedBy   sql.NullString
		reviewedAt   sql.NullTime
		routing      sql.NullString
		errorMessage sql.NullString
	)

	err := row.Scan(
		&session.ID, &session.FileName, &session.MimeType, &session.StoragePath, &session.SourceSHA256,
		&workHash, &metadataRaw, &session.ConfidenceScore, &policy, &policyReason, &structureRaw,
		&status, &reviewedBy, &reviewedAt, &routing, &errorMessage,
		&session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataRaw) > 0 {
		if err := json.Unmarshal(metadataRaw, &session.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if len(structureRaw) > 0 {
		var structure domain.StructureAnalysis
		if err := json.Unmarshal(structureRaw, &structure); err != nil {
			return nil, fmt.Errorf("unmarshal structure analysis: %w", err)
		}
		session.Structure = &structure
	}

	session.Status = domain.SessionStatus(status)
	session.WorkHash = workHash.String
	session.Policy = domain.DuplicatePolicy(policy.String)
	session.PolicyReason = policyReason.String
	session.ReviewedBy = reviewedBy.String
	session.RoutingDecision = routing.String
	session.Error = errorMessage.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		session.ReviewedAt = &t
	}
	return &session, nil
}
