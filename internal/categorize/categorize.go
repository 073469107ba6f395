// Package categorize assigns category hints to transaction candidates,
// preferring per-user merchant rules and falling back to a batched LLM
// classification call.
package categorize

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/llm"
	"github.com/mkuznetsov/finbot/internal/logger"
	"github.com/mkuznetsov/finbot/internal/textparse"
)

// DefaultChunkSize bounds how many candidates go into one LLM request,
// keeping prompts inside token limits.
const DefaultChunkSize = 50

const maxOutputTokens = 2048

// Categorizer fills category hints on candidates. LLM failures never
// propagate: affected candidates degrade to the default category so a
// categorization outage cannot abort an ingestion run.
type Categorizer struct {
	client    llm.Client
	chunkSize int
}

// New creates a Categorizer. chunkSize <= 0 selects DefaultChunkSize.
func New(client llm.Client, chunkSize int) *Categorizer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Categorizer{client: client, chunkSize: chunkSize}
}

// Categorize returns a same-length copy of candidates with category
// hints filled. Priority per candidate: a merchant rule match wins and
// skips the LLM entirely; an already-present hint is kept; the rest are
// classified in batched LLM calls, positionally one answer per line.
func (c *Categorizer) Categorize(ctx context.Context, candidates []domain.TransactionCandidate, categories []domain.Category, rules []domain.MerchantRule) []domain.TransactionCandidate {
	log := logger.FromContext(ctx)

	out := make([]domain.TransactionCandidate, len(candidates))
	copy(out, candidates)

	categoryByID := make(map[string]domain.Category, len(categories))
	for _, cat := range categories {
		categoryByID[cat.ID] = cat
	}

	var pending []int
	for i := range out {
		if name, ok := matchRule(out[i].Description, rules, categoryByID); ok {
			out[i].CategoryHint = name
			continue
		}
		if out[i].CategoryHint != "" {
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out
	}

	for start := 0; start < len(pending); start += c.chunkSize {
		end := start + c.chunkSize
		if end > len(pending) {
			end = len(pending)
		}
		chunk := pending[start:end]

		answers, err := c.classifyChunk(ctx, out, chunk, categories)
		if err != nil {
			log.Warn().Err(err).Int("count", len(chunk)).Msg("batch categorization failed, using default category")
			for _, idx := range chunk {
				out[idx].CategoryHint = domain.DefaultCategoryName
			}
			continue
		}
		for pos, idx := range chunk {
			out[idx].CategoryHint = resolveAnswer(answers, pos, categories)
		}
	}

	return out
}

// matchRule looks the candidate description up in the user's merchant
// rules. A rule whose category no longer exists is skipped so the
// candidate still reaches the LLM path.
func matchRule(description string, rules []domain.MerchantRule, categoryByID map[string]domain.Category) (string, bool) {
	normalized := textparse.NormalizeMerchantName(description)
	if normalized == "" {
		return "", false
	}
	for _, rule := range rules {
		if rule.MerchantName == "" || !strings.Contains(normalized, rule.MerchantName) {
			continue
		}
		cat, ok := categoryByID[rule.CategoryID]
		if !ok {
			continue
		}
		return cat.Name, true
	}
	return "", false
}

func (c *Categorizer) classifyChunk(ctx context.Context, candidates []domain.TransactionCandidate, chunk []int, categories []domain.Category) ([]string, error) {
	reply, err := c.client.Complete(ctx, classifyPrompt(candidates, chunk, categories), nil, maxOutputTokens)
	if err != nil {
		return nil, fmt.Errorf("classifyChunk: %w", err)
	}
	return answerLines(reply), nil
}

func classifyPrompt(candidates []domain.TransactionCandidate, chunk []int, categories []domain.Category) string {
	names := make([]string, 0, len(categories))
	for _, cat := range categories {
		names = append(names, cat.Name)
	}

	var b strings.Builder
	b.WriteString("Assign each transaction below to exactly one category.\n\n")
	b.WriteString("Categories: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\nTransactions:\n")
	for i, idx := range chunk {
		cand := candidates[idx]
		fmt.Fprintf(&b, "%d. %s %.2f %s\n", i+1, cand.Kind, cand.Amount, cand.Description)
	}
	b.WriteString("\nReply with exactly one category name per line, in the same order. ")
	b.WriteString("No numbering, no explanations.\n")
	b.WriteString("If no category fits, use \"" + domain.DefaultCategoryName + "\".\n")
	return b.String()
}

var (
	lineNumber = regexp.MustCompile(`^\d+[.)]\s*`)
	labelNoise = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
)

// answerLines extracts the non-empty reply lines, tolerating numbering
// the model was told not to add.
func answerLines(reply string) []string {
	var answers []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(lineNumber.ReplaceAllString(strings.TrimSpace(line), ""))
		if line == "" {
			continue
		}
		answers = append(answers, line)
	}
	return answers
}

// resolveAnswer maps the pos-th answer to a known category name. A
// missing line or an unknown label both fall back to the default.
func resolveAnswer(answers []string, pos int, categories []domain.Category) string {
	if pos >= len(answers) {
		return domain.DefaultCategoryName
	}
	label := strings.TrimSpace(labelNoise.ReplaceAllString(answers[pos], ""))
	for _, cat := range categories {
		name := strings.TrimSpace(labelNoise.ReplaceAllString(cat.Name, ""))
		if strings.EqualFold(name, label) {
			return cat.Name
		}
	}
	return domain.DefaultCategoryName
}
