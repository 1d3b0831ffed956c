// Package commit hands approved sessions to the library service that
// owns the permanent piece catalog.
package commit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
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
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type commitRequest struct {
	SessionID       string       `json:"session_id"`
	Title           string       `json:"title"`
	Composer        string       `json:"composer"`
	Arranger        string       `json:"arranger,omitempty"`
	WorkHash        string       `json:"work_hash"`
	SourceSHA256    string       `json:"source_sha256"`
	StoragePath     string       `json:"storage_path"`
	Policy          string       `json:"policy"`
	RoutingDecision string       `json:"routing_decision,omitempty"`
	Parts           []commitPart `json:"parts,omitempty"`
}

type commitPart struct {
	PageStart      int     `json:"page_start"`
	PageEnd        int     `json:"page_end"`
	InstrumentName string  `json:"instrument_name"`
	PartName       string  `json:"part_name"`
	Chair          *string `json:"chair,omitempty"`
	Fingerprint    string  `json:"fingerprint"`
}

// Commit posts the session to the library service. Idempotent on the
// service side: a session that is already committed answers 409, which is
// treated as success.
func (c *Client) Commit(ctx context.Context, session *domain.UploadSession) error {
	if session == nil {
		return domain.WrapError(domain.ErrInvalidInput, "commit session", errors.New("nil session"))
	}

	request := commitRequest{
		SessionID:       session.ID,
		Title:           session.Metadata.Title,
		Composer:        session.Metadata.Composer,
		Arranger:        session.Metadata.Arranger,
		WorkHash:        session.WorkHash,
		SourceSHA256:    session.SourceSHA256,
		StoragePath:     session.StoragePath,
		Policy:          string(session.Policy),
		RoutingDecision: session.RoutingDecision,
	}
	if session.Structure != nil {
		for _, part := range session.Structure.EstimatedParts {
			request.Parts = append(request.Parts, commitPart{
				PageStart:      part.PageStart,
				PageEnd:        part.PageEnd,
				InstrumentName: part.InstrumentName,
				PartName:       part.PartName,
				Chair:          part.Chair,
				Fingerprint:    part.Fingerprint,
			})
		}
	}

	call := func(callCtx context.Context) error {
		return c.post(callCtx, "/v1/pieces", request)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "library.commit", call, classifyCommitError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded("commit session", err)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal commit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create commit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commit request: %w", err)
	}
	defer resp.Body.Close()

	// 409 means the library already holds this session.
	if resp.StatusCode < 300 || resp.StatusCode == http.StatusConflict {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &StatusError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(raw)),
	}
}

type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "commit status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("commit status: %s", e.Status)
	}
	return fmt.Sprintf("commit status: %s: %s", e.Status, e.Body)
}

func classifyCommitError(err error) resilience.Classification {
	if err == nil {
		return resilience.Classification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.Classification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.Classification{Retryable: true, RecordFailure: true}
		}
		return resilience.Classification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.Classification{Retryable: true, RecordFailure: true}
	}

	return resilience.Classification{Retryable: false, RecordFailure: true}
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyCommitError(err).Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
