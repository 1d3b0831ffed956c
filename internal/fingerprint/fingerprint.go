// Package fingerprint computes the three identities the intake pipeline
// routes on: the source hash of raw bytes, the normalized work fingerprint
// of title+composer, and the per-session part fingerprint. All functions
// are pure and deterministic.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/notelib/score-intake/internal/core/domain"
)

// chairNone is the sentinel for "no chair". It is distinct from the empty
// string so that an absent chair and an explicitly empty chair value hash
// differently.
const chairNone = "__none__"

// shortHashLen is the hex length of work and part fingerprints. 64 bits is
// collision-safe at library scale (thousands of works) while staying
// compact as an indexed lookup key.
const shortHashLen = 16

// WorkFingerprint is the normalized identity of a musical work,
// independent of file encoding. Recomputed on demand, never stored as its
// own row.
type WorkFingerprint struct {
	NormalizedTitle    string `json:"normalized_title"`
	NormalizedComposer string `json:"normalized_composer"`
	Hash               string `json:"hash"`
}

// SourceSHA256 returns the 64-hex content hash of raw file bytes, used for
// exact-duplicate detection.
func SourceSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Work computes the work fingerprint for a title and optional composer.
// A title that normalizes to nothing is rejected: there is no sensible
// identity to derive from it.
func Work(title, composer string) (WorkFingerprint, error) {
	normTitle := Normalize(title)
	if normTitle == "" {
		return WorkFingerprint{}, domain.WrapError(domain.ErrInvalidInput, "work fingerprint",
			errors.New("title normalizes to empty string"))
	}
	normComposer := Normalize(composer)

	sum := sha256.Sum256([]byte(normTitle + "::" + normComposer))
	return WorkFingerprint{
		NormalizedTitle:    normTitle,
		NormalizedComposer: normComposer,
		Hash:               hex.EncodeToString(sum[:])[:shortHashLen],
	}, nil
}

// Part computes the stable 16-hex identity of one instrument part within an
// upload session. Any change to session, instrument, chair or page range
// yields a different fingerprint; a nil chair uses a fixed sentinel.
func Part(sessionID, instrument string, chair *string, pageStart, pageEnd int) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "part fingerprint",
			errors.New("session id is required"))
	}
	canonical := Normalize(instrument)
	if canonical == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "part fingerprint",
			errors.New("instrument normalizes to empty string"))
	}
	if pageStart < 0 || pageEnd < pageStart {
		return "", domain.WrapError(domain.ErrInvalidInput, "part fingerprint",
			fmt.Errorf("invalid page range [%d,%d]", pageStart, pageEnd))
	}

	chairToken := chairNone
	if chair != nil {
		chairToken = *chair
	}

	key := fmt.Sprintf("%s|%s|%s|%d-%d", sessionID, canonical, chairToken, pageStart, pageEnd)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:shortHashLen], nil
}

// Normalize lowercases, strips punctuation and symbol runes, collapses
// whitespace runs to a single space and trims. "Sousa's March" and
// "Sousas March" normalize identically.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped entirely, not replaced by a space
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
