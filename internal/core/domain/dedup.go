package domain

import "fmt"

type DuplicatePolicy string

const (
	PolicyNewPiece        DuplicatePolicy = "NEW_PIECE"
	PolicySkipDuplicate   DuplicatePolicy = "SKIP_DUPLICATE"
	PolicyVersionUpdate   DuplicatePolicy = "VERSION_UPDATE"
	PolicyExceptionReview DuplicatePolicy = "EXCEPTION_REVIEW"
)

// DuplicateCheckResult is the pipeline's routing decision for one upload.
type DuplicateCheckResult struct {
	Policy            DuplicatePolicy `json:"policy"`
	IsDuplicate       bool            `json:"is_duplicate"`
	MatchingSessionID string          `json:"matching_session_id,omitempty"`
	MatchingPieceID   string          `json:"matching_piece_id,omitempty"`
	Reason            string          `json:"reason"`
}

// SessionMatch identifies an existing session found by source hash.
type SessionMatch struct {
	SessionID string
	FileName  string
}

// PieceMatch identifies an existing library piece found by work fingerprint.
type PieceMatch struct {
	PieceID  string
	Title    string
	Composer string
}

// CheckSourceDuplicate routes byte-identical re-uploads. An exact source
// hash match is authoritative: reprocessing identical bytes wastes pipeline
// work and risks duplicate library entries.
func CheckSourceDuplicate(sourceHash string, match *SessionMatch) DuplicateCheckResult {
	if match != nil {
		return DuplicateCheckResult{
			Policy:            PolicySkipDuplicate,
			IsDuplicate:       true,
			MatchingSessionID: match.SessionID,
			Reason:            fmt.Sprintf("identical file already uploaded as session %s (sha256 %s)", match.SessionID, sourceHash),
		}
	}
	return DuplicateCheckResult{
		Policy: PolicyNewPiece,
		Reason: "no session with matching source hash",
	}
}

// CheckWorkDuplicate routes title+composer fingerprint matches. A fuzzy
// match always goes to a human: two arrangements or editions can
// legitimately share a title, so it is never an automatic skip.
func CheckWorkDuplicate(fingerprint string, match *PieceMatch) DuplicateCheckResult {
	if match != nil {
		return DuplicateCheckResult{
			Policy:          PolicyExceptionReview,
			IsDuplicate:     true,
			MatchingPieceID: match.PieceID,
			Reason:          fmt.Sprintf("library piece %s (%q) shares work fingerprint %s; needs human judgment", match.PieceID, match.Title, fingerprint),
		}
	}
	return DuplicateCheckResult{
		Policy: PolicyNewPiece,
		Reason: "no piece with matching work fingerprint",
	}
}

// ResolveDeduplicationPolicy combines both lookups with strict priority: an
// exact source match wins and is returned verbatim, then a work match
// verbatim, otherwise a clean NEW_PIECE. The ordering encodes the
// confidence asymmetry between byte-exact and fuzzy matching.
func ResolveDeduplicationPolicy(source, work DuplicateCheckResult) DuplicateCheckResult {
	if source.IsDuplicate {
		return source
	}
	if work.IsDuplicate {
		return work
	}
	return DuplicateCheckResult{
		Policy: PolicyNewPiece,
		Reason: "no matching source hash or work fingerprint",
	}
}
