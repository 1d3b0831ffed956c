// Package pdfstruct estimates whether an uploaded PDF bundles multiple
// instrument parts and where the page boundaries likely fall.
//
// The document is opened solely to read its page count; everything else is
// arithmetic over that count and the extractor's optional hint. Analysis
// never fails: corrupt input yields a well-formed confidence-0 result so
// the session still reaches review instead of crashing the job.
package pdfstruct

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/notelib/score-intake/internal/core/domain"
)

// Config names the empirical tuning constants. The defaults carry the
// values the heuristics were calibrated with; deployments may override
// them but should not re-derive new thresholds.
type Config struct {
	// ShortDocMaxPages is the page count at or below which a document is
	// treated as a single part outright.
	ShortDocMaxPages int `yaml:"short_doc_max_pages"`
	// PagesPerPart is the divisor of the page-count heuristic.
	PagesPerPart int `yaml:"pages_per_part"`

	ShortDocConfidence     int `yaml:"short_doc_confidence"`
	HintConfidence         int `yaml:"hint_confidence"`
	HeuristicConfidence    int `yaml:"heuristic_confidence"`
	InconclusiveConfidence int `yaml:"inconclusive_confidence"`
}

func DefaultConfig() Config {
	return Config{
		ShortDocMaxPages:       2,
		PagesPerPart:           4,
		ShortDocConfidence:     90,
		HintConfidence:         60,
		HeuristicConfidence:    30,
		InconclusiveConfidence: 50,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c
	if out.ShortDocMaxPages <= 0 {
		out.ShortDocMaxPages = def.ShortDocMaxPages
	}
	if out.PagesPerPart <= 0 {
		out.PagesPerPart = def.PagesPerPart
	}
	if out.ShortDocConfidence <= 0 {
		out.ShortDocConfidence = def.ShortDocConfidence
	}
	if out.HintConfidence <= 0 {
		out.HintConfidence = def.HintConfidence
	}
	if out.HeuristicConfidence <= 0 {
		out.HeuristicConfidence = def.HeuristicConfidence
	}
	if out.InconclusiveConfidence <= 0 {
		out.InconclusiveConfidence = def.InconclusiveConfidence
	}
	return out
}

type Analyzer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{cfg: cfg.normalize(), logger: logger}
}

// Analyze estimates the part structure of data. Logs carry structural
// facts only, never raw bytes or document text.
func (a *Analyzer) Analyze(_ context.Context, data []byte, meta *domain.ExtractedMetadata) domain.StructureAnalysis {
	totalPages, err := pageCount(data)
	if err != nil {
		a.logger.Warn("pdf_unreadable", "size_bytes", len(data), "error", err)
		return domain.StructureAnalysis{
			EstimatedParts: []domain.PartInfo{},
			Confidence:     0,
			Notes:          fmt.Sprintf("document unreadable: %v; routed to manual review", err),
		}
	}

	analysis := estimateParts(totalPages, meta, a.cfg)
	a.logger.Debug("pdf_structure_estimated",
		"total_pages", analysis.TotalPages,
		"is_multi_part", analysis.IsMultiPart,
		"part_count", len(analysis.EstimatedParts),
		"confidence", analysis.Confidence,
	)
	return analysis
}

// pageCount opens the document just long enough to read its page total.
// The parse context is not retained past this function; pdfcpu failures
// (and any parser panic) come back as plain errors.
func pageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	if pdfCtx.PageCount <= 0 {
		return 0, fmt.Errorf("document reports %d pages", pdfCtx.PageCount)
	}
	return pdfCtx.PageCount, nil
}
