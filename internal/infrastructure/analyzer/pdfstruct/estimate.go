package pdfstruct

import (
	"fmt"
	"strings"

	"github.com/notelib/score-intake/internal/core/domain"
)

// estimateParts turns a page count and an optional extractor hint into a
// part-split estimate. Pure; all tuning comes from cfg.
func estimateParts(totalPages int, meta *domain.ExtractedMetadata, cfg Config) domain.StructureAnalysis {
	if meta != nil && meta.IsMultiPart && len(meta.Parts) > 0 {
		return estimateFromHint(totalPages, meta.Parts, cfg)
	}

	if totalPages <= cfg.ShortDocMaxPages {
		return domain.StructureAnalysis{
			TotalPages:     totalPages,
			EstimatedParts: []domain.PartInfo{wholeDocumentPart(totalPages)},
			Confidence:     cfg.ShortDocConfidence,
			Notes:          fmt.Sprintf("heuristic: %d-page document, almost certainly a single part", totalPages),
		}
	}

	candidates := ceilDiv(totalPages, cfg.PagesPerPart)
	if candidates > totalPages {
		candidates = totalPages
	}
	if candidates > 1 && totalPages >= cfg.PagesPerPart {
		parts := splitEvenly(totalPages, candidates, nil)
		return domain.StructureAnalysis{
			IsMultiPart:    true,
			TotalPages:     totalPages,
			EstimatedParts: parts,
			Confidence:     cfg.HeuristicConfidence,
			Notes: fmt.Sprintf("heuristic: %d pages split into %d candidate parts of ~%d pages; page count alone is a weak signal",
				totalPages, len(parts), cfg.PagesPerPart),
		}
	}

	return domain.StructureAnalysis{
		TotalPages:     totalPages,
		EstimatedParts: []domain.PartInfo{wholeDocumentPart(totalPages)},
		Confidence:     cfg.InconclusiveConfidence,
		Notes:          "heuristic inconclusive: treating document as a single part",
	}
}

// estimateFromHint distributes pages over the hinted parts in hint order.
// Boundaries are an estimate, never verified against in-page headers,
// hence the moderate fixed confidence.
func estimateFromHint(totalPages int, hints []domain.PartHint, cfg Config) domain.StructureAnalysis {
	count := len(hints)
	if count > totalPages {
		// More hinted parts than pages; the extras cannot own a page.
		count = totalPages
	}
	parts := splitEvenly(totalPages, count, hints)

	notes := fmt.Sprintf("derived from extractor hint: %d parts over %d pages", len(parts), totalPages)
	if count < len(hints) {
		notes += fmt.Sprintf("; %d hinted parts dropped (fewer pages than parts)", len(hints)-count)
	}
	return domain.StructureAnalysis{
		IsMultiPart:    len(parts) > 1,
		TotalPages:     totalPages,
		EstimatedParts: parts,
		Confidence:     cfg.HintConfidence,
		Notes:          notes,
	}
}

// splitEvenly partitions [0,totalPages) into count ranges of
// ceil(totalPages/count) pages, the last range absorbing the remainder.
// Ranges cover every page exactly once. hints may be nil (heuristic path).
func splitEvenly(totalPages, count int, hints []domain.PartHint) []domain.PartInfo {
	per := ceilDiv(totalPages, count)
	parts := make([]domain.PartInfo, 0, count)
	for i := 0; i < count; i++ {
		start := i * per
		if start >= totalPages {
			break
		}
		end := start + per - 1
		if i == count-1 || end >= totalPages {
			end = totalPages - 1
		}

		part := domain.PartInfo{
			PageStart:  start,
			PageEnd:    end,
			PartNumber: i + 1,
		}
		if i < len(hints) {
			part.InstrumentName = strings.TrimSpace(hints[i].InstrumentName)
			part.PartName = strings.TrimSpace(hints[i].PartName)
			if part.PartName == "" {
				part.PartName = part.InstrumentName
			}
			part.Chair = hints[i].Chair
		} else {
			part.InstrumentName = fmt.Sprintf("Part %d", i+1)
			part.PartName = part.InstrumentName
		}
		parts = append(parts, part)
	}
	return parts
}

func wholeDocumentPart(totalPages int) domain.PartInfo {
	end := totalPages - 1
	if end < 0 {
		end = 0
	}
	return domain.PartInfo{
		PageStart:      0,
		PageEnd:        end,
		InstrumentName: "Full Score",
		PartName:       "Full Score",
		PartNumber:     1,
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	return (a + b - 1) / b
}
