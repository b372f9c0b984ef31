package services

import (
	"context"
	"errors"
	"net"

	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/clients/openai"
)

// Failure taxonomy. Only ErrConfiguration is fatal to a run; everything
// else degrades to a recorded failure on the smallest unit possible.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrSourceRead        = errors.New("source read error")
	ErrQuotaExceeded     = errors.New("ai quota exceeded")
	ErrTransientService  = errors.New("transient service error")
	ErrMalformedResponse = errors.New("malformed ai response")
	ErrPersistence       = errors.New("persistence error")
)

// FailureKind labels a per-conversation failure for counting and reporting.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureSourceRead FailureKind = "source_read"
	FailureQuota      FailureKind = "quota_exceeded"
	FailureTransient  FailureKind = "transient"
	FailureMalformed  FailureKind = "malformed_response"
	FailurePersist    FailureKind = "persistence"
)

// ClassifyAIError maps an error from the AI client onto the taxonomy.
// Quota exhaustion is a distinct, statically detectable code; timeouts and
// transport faults are transient; anything shaped wrong is malformed.
func ClassifyAIError(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if openai.IsQuotaExceeded(err) {
		return FailureQuota
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureTransient
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return FailureTransient
	}
	return FailureMalformed
}
