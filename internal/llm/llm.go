// Package llm defines the completion-service contract used by the
// document, receipt and categorization stages, plus its Gemini-backed
// implementation. The rest of the pipeline only ever consumes plain
// strings from it; provider response shapes never leak out.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the completion service could not produce a
	// reply. The pipeline aborts for that one input only.
	ErrUnavailable = errors.New("llm: service unavailable")

	// ErrRateLimited is signalled distinctly so callers can queue and
	// retry with backoff instead of showing a hard failure.
	ErrRateLimited = errors.New("llm: rate limited")
)

// AttachmentKind tells the provider how to interpret attached bytes.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment is a document or image sent alongside a prompt.
type Attachment struct {
	Kind      AttachmentKind
	MediaType string
	Data      []byte
}

// Client is the single collaborator contract for LLM completions.
// Implementations must honor ctx cancellation and deadlines; calls are
// blocking network requests from the pipeline's point of view.
type Client interface {
	Complete(ctx context.Context, prompt string, attachment *Attachment, maxTokens int32) (string, error)
}
