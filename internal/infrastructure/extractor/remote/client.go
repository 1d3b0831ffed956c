// Package remote calls the metadata-extraction service over HTTP. The
// service receives raw score bytes and answers with title, composer and
// optional part hints plus a confidence score.
package remote

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/notelib/score-intake/internal/core/domain"
	"github.com/notelib/score-intake/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithResilienceExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type extractRequest struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

type extractResponse struct {
	Title       string `json:"title"`
	Composer    string `json:"composer"`
	Arranger    string `json:"arranger"`
	IsMultiPart bool   `json:"is_multi_part"`
	Confidence  int    `json:"confidence"`
	Parts       []struct {
		InstrumentName string  `json:"instrument_name"`
		PartName       string  `json:"part_name"`
		Chair          *string `json:"chair"`
	} `json:"parts"`
}

// Extract sends the file to the extraction service and validates the
// answer into domain metadata. The returned int is the service's
// confidence in its own extraction, clamped to 0-100.
func (c *Client) Extract(ctx context.Context, fileName string, data []byte) (domain.ExtractedMetadata, int, error) {
	request := extractRequest{
		FileName: fileName,
		Content:  base64.StdEncoding.EncodeToString(data),
	}

	var response extractResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/v1/extract", request, &response, "extract")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "extractor.extract", call, classifyHTTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.ExtractedMetadata{}, 0, wrapTemporaryIfNeeded("extract metadata", err)
	}

	meta := domain.ExtractedMetadata{
		Title:       strings.TrimSpace(response.Title),
		Composer:    strings.TrimSpace(response.Composer),
		Arranger:    strings.TrimSpace(response.Arranger),
		IsMultiPart: response.IsMultiPart,
	}
	for _, part := range response.Parts {
		meta.Parts = append(meta.Parts, domain.PartHint{
			InstrumentName: strings.TrimSpace(part.InstrumentName),
			PartName:       strings.TrimSpace(part.PartName),
			Chair:          part.Chair,
		})
	}
	if err := meta.Validate(); err != nil {
		return domain.ExtractedMetadata{}, 0, domain.WrapError(domain.ErrInvalidInput, "extractor response", err)
	}

	confidence := response.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	return meta, confidence, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	return postJSON(ctx, c.httpClient, c.baseURL+path, payload, out, operation)
}
