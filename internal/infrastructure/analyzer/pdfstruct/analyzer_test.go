package pdfstruct

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/notelib/score-intake/internal/core/domain"
)

// buildPDF assembles a minimal but valid n-page PDF in memory.
func buildPDF(pages int) []byte {
	objCount := 2 + pages
	offsets := make([]int, objCount+1)

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [")
	for i := 0; i < pages; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%d 0 R", 3+i)
	}
	fmt.Fprintf(&b, "] /Count %d >>\nendobj\n", pages)

	for i := 0; i < pages; i++ {
		offsets[3+i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", 3+i)
	}

	xrefOffset := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", objCount+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= objCount; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", objCount+1, xrefOffset)

	return []byte(b.String())
}

func TestAnalyzeSinglePageNoHint(t *testing.T) {
	a := New(DefaultConfig(), nil)

	res := a.Analyze(context.Background(), buildPDF(1), nil)
	if res.IsMultiPart {
		t.Fatalf("1-page document must not be multi-part")
	}
	if res.Confidence != 90 {
		t.Fatalf("expected confidence 90, got %d", res.Confidence)
	}
	if res.TotalPages != 1 {
		t.Fatalf("expected 1 page, got %d", res.TotalPages)
	}
	if len(res.EstimatedParts) != 1 {
		t.Fatalf("expected a single whole-document part, got %d", len(res.EstimatedParts))
	}
}

func TestAnalyzeEightPagesNoHint(t *testing.T) {
	a := New(DefaultConfig(), nil)

	res := a.Analyze(context.Background(), buildPDF(8), nil)
	if !res.IsMultiPart {
		t.Fatalf("8-page document should be flagged multi-part")
	}
	if res.Confidence != 30 {
		t.Fatalf("page-count heuristic is a weak signal; expected confidence 30, got %d", res.Confidence)
	}
	if len(res.EstimatedParts) != 2 {
		t.Fatalf("expected 2 estimated parts, got %d", len(res.EstimatedParts))
	}
	first, second := res.EstimatedParts[0], res.EstimatedParts[1]
	if first.PageStart != 0 || first.PageEnd != 3 {
		t.Fatalf("expected first range [0,3], got [%d,%d]", first.PageStart, first.PageEnd)
	}
	if second.PageStart != 4 || second.PageEnd != 7 {
		t.Fatalf("expected second range [4,7], got [%d,%d]", second.PageStart, second.PageEnd)
	}
}

func TestAnalyzeCorruptBufferNeverFails(t *testing.T) {
	a := New(DefaultConfig(), nil)

	res := a.Analyze(context.Background(), []byte("this is not a pdf"), nil)
	if res.Confidence != 0 {
		t.Fatalf("corrupt input must yield confidence 0, got %d", res.Confidence)
	}
	if res.TotalPages != 0 || res.IsMultiPart {
		t.Fatalf("corrupt input must yield a zeroed analysis: %+v", res)
	}
	if res.EstimatedParts == nil || len(res.EstimatedParts) != 0 {
		t.Fatalf("expected empty (non-nil) parts slice")
	}
	if res.Notes == "" {
		t.Fatalf("notes must summarize the failure")
	}
}

func TestAnalyzeWithExtractorHint(t *testing.T) {
	a := New(DefaultConfig(), nil)
	meta := &domain.ExtractedMetadata{
		Title:       "Suite in E-flat",
		IsMultiPart: true,
		Parts: []domain.PartHint{
			{InstrumentName: "Flute"},
			{InstrumentName: "Clarinet", PartName: "Clarinet in B-flat"},
			{InstrumentName: "Horn"},
		},
	}

	res := a.Analyze(context.Background(), buildPDF(10), meta)
	if !res.IsMultiPart {
		t.Fatalf("hinted multi-part document must stay multi-part")
	}
	if res.Confidence != 60 {
		t.Fatalf("hint-derived boundaries are moderate confidence; expected 60, got %d", res.Confidence)
	}
	if len(res.EstimatedParts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(res.EstimatedParts))
	}

	// ceil(10/3)=4 pages per part, last absorbs the remainder.
	wantRanges := [][2]int{{0, 3}, {4, 7}, {8, 9}}
	for i, want := range wantRanges {
		part := res.EstimatedParts[i]
		if part.PageStart != want[0] || part.PageEnd != want[1] {
			t.Fatalf("part %d: expected range %v, got [%d,%d]", i, want, part.PageStart, part.PageEnd)
		}
	}
	if res.EstimatedParts[1].PartName != "Clarinet in B-flat" {
		t.Fatalf("hinted part name must be kept, got %q", res.EstimatedParts[1].PartName)
	}
	if res.EstimatedParts[0].PartName != "Flute" {
		t.Fatalf("part name defaults to instrument, got %q", res.EstimatedParts[0].PartName)
	}
}

func TestHintChairsCarriedIntoParts(t *testing.T) {
	first, second := "1st", "2nd"
	meta := &domain.ExtractedMetadata{
		Title:       "Overture",
		IsMultiPart: true,
		Parts: []domain.PartHint{
			{InstrumentName: "Trumpet", Chair: &first},
			{InstrumentName: "Trumpet", Chair: &second},
			{InstrumentName: "Tuba"},
		},
	}

	res := estimateParts(6, meta, DefaultConfig())
	if len(res.EstimatedParts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(res.EstimatedParts))
	}
	if res.EstimatedParts[0].Chair == nil || *res.EstimatedParts[0].Chair != "1st" {
		t.Fatalf("first trumpet chair dropped: %+v", res.EstimatedParts[0])
	}
	if res.EstimatedParts[1].Chair == nil || *res.EstimatedParts[1].Chair != "2nd" {
		t.Fatalf("second trumpet chair dropped: %+v", res.EstimatedParts[1])
	}
	if res.EstimatedParts[2].Chair != nil {
		t.Fatalf("unhinted chair must stay nil, got %q", *res.EstimatedParts[2].Chair)
	}
}

func TestHintedPartsPartitionAllPages(t *testing.T) {
	for pages := 1; pages <= 24; pages++ {
		for count := 1; count <= 6; count++ {
			hints := make([]domain.PartHint, count)
			for i := range hints {
				hints[i] = domain.PartHint{InstrumentName: fmt.Sprintf("Instrument %d", i+1)}
			}
			meta := &domain.ExtractedMetadata{Title: "x", IsMultiPart: true, Parts: hints}
			res := estimateParts(pages, meta, DefaultConfig())

			next := 0
			for _, part := range res.EstimatedParts {
				if part.PageStart != next {
					t.Fatalf("pages=%d count=%d: gap/overlap at page %d (start %d)", pages, count, next, part.PageStart)
				}
				if part.PageEnd < part.PageStart {
					t.Fatalf("pages=%d count=%d: inverted range [%d,%d]", pages, count, part.PageStart, part.PageEnd)
				}
				next = part.PageEnd + 1
			}
			if next != pages {
				t.Fatalf("pages=%d count=%d: parts cover %d pages", pages, count, next)
			}
		}
	}
}

func TestEstimateThreePagesInconclusive(t *testing.T) {
	res := estimateParts(3, nil, DefaultConfig())
	if res.IsMultiPart {
		t.Fatalf("3 pages should be inconclusive single-part")
	}
	if res.Confidence != 50 {
		t.Fatalf("expected inconclusive confidence 50, got %d", res.Confidence)
	}
}

func TestConfigOverrides(t *testing.T) {
	cfg := Config{ShortDocConfidence: 99, PagesPerPart: 2}
	res := estimateParts(1, nil, cfg.normalize())
	if res.Confidence != 99 {
		t.Fatalf("override ignored, got %d", res.Confidence)
	}

	res = estimateParts(6, nil, cfg.normalize())
	if !res.IsMultiPart || len(res.EstimatedParts) != 3 {
		t.Fatalf("pages-per-part override ignored: %+v", res)
	}
}
