package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// GeminiClient implements Client on top of the GenAI SDK. Credentials
// come from the environment (GOOGLE_API_KEY or application default
// credentials).
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed completion client.
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Complete sends the prompt (and optional attachment) to the model and
// returns the reply text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string, attachment *Attachment, maxTokens int32) (string, error) {
	parts := []*genai.Part{{Text: prompt}}
	if attachment != nil {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: attachment.MediaType,
				Data:     attachment.Data,
			},
		})
	}

	contents := []*genai.Content{{Role: "user", Parts: parts}}

	var config *genai.GenerateContentConfig
	if maxTokens > 0 {
		config = &genai.GenerateContentConfig{MaxOutputTokens: maxTokens}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		if isRateLimited(err) {
			return "", fmt.Errorf("gemini: generate content: %w", ErrRateLimited)
		}
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response from model")
	}
	return text, nil
}

func isRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == http.StatusTooManyRequests
	}
	return false
}
