package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/notelib/score-intake/internal/core/domain"
)

// PieceRepository reads the permanent library catalog the external
// committer writes into. The intake service never inserts here.
type PieceRepository struct {
	db *sql.DB
}

func NewPieceRepository(db *sql.DB) *PieceRepository {
	return &PieceRepository{db: db}
}

func (r *PieceRepository) FindByWorkHash(ctx context.Context, workHash string) (*domain.PieceMatch, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, COALESCE(composer, '')
FROM library_pieces
WHERE work_hash = $1
ORDER BY committed_at ASC
LIMIT 1
`, workHash)

	var match domain.PieceMatch
	if err := row.Scan(&match.PieceID, &match.Title, &match.Composer); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find piece by work hash: %w", err)
	}
	return &match, nil
}

func (r *PieceRepository) ReferencesSession(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM library_pieces WHERE origin_session_id = $1)
`, sessionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check piece references: %w", err)
	}
	return exists, nil
}
