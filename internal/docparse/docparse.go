// Package docparse extracts transactions from PDF statements (or any
// document the model can read) via the LLM document-understanding call.
//
// The prompt deliberately asks for labeled field lines, one block per
// transaction, instead of strict JSON: free-text block parsing degrades
// far more gracefully against model formatting drift than single-shot
// JSON parsing does.
package docparse

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/llm"
	"github.com/mkuznetsov/finbot/internal/logger"
	"github.com/mkuznetsov/finbot/internal/normalize"
)

var (
	// ErrNoTransactions means the model replied but no transaction
	// block could be recovered. Distinct from llm.ErrUnavailable: a
	// statement always holds at least one transaction, so an empty
	// result is itself an error, never returned as an empty list.
	ErrNoTransactions = errors.New("docparse: no transactions extracted")
)

const maxOutputTokens = 4096

// Parser turns statement documents into transaction candidates.
type Parser struct {
	client llm.Client
}

func New(client llm.Client) *Parser {
	return &Parser{client: client}
}

// Parse sends the document to the model and parses the reply. One
// retry with a stricter instruction is permitted when the first call
// fails at the transport/API level; rate limiting is surfaced
// immediately so the caller can back off instead.
func (p *Parser) Parse(ctx context.Context, data []byte, mimeType string, categories []domain.Category) ([]domain.TransactionCandidate, error) {
	log := logger.FromContext(ctx)

	attachment := &llm.Attachment{
		Kind:      llm.AttachmentDocument,
		MediaType: mimeType,
		Data:      data,
	}

	reply, err := p.client.Complete(ctx, statementPrompt(categories), attachment, maxOutputTokens)
	if err != nil {
		if errors.Is(err, llm.ErrRateLimited) {
			return nil, err
		}
		log.Warn().Err(err).Msg("statement parse call failed, retrying with strict prompt")

		reply, err = p.client.Complete(ctx, strictStatementPrompt(categories), attachment, maxOutputTokens)
		if err != nil {
			if errors.Is(err, llm.ErrRateLimited) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
		}
	}

	source := domain.SourcePDFStatement
	candidates := parseBlocks(reply, source)
	if len(candidates) == 0 {
		candidates = scanLines(reply, source)
	}
	if len(candidates) == 0 {
		log.Warn().Str("reply_head", head(reply, 200)).Msg("no transaction blocks in model reply")
		return nil, ErrNoTransactions
	}

	log.Debug().Int("count", len(candidates)).Msg("extracted statement transactions")
	return candidates, nil
}

// statementPrompt asks for one labeled block per transaction.
func statementPrompt(categories []domain.Category) string {
	var b strings.Builder
	b.WriteString("You are a bank statement parser. Extract EVERY transaction from the attached statement.\n\n")
	b.WriteString("For each transaction output one block with exactly these four lines:\n\n")
	b.WriteString("Direction: income or expense\n")
	b.WriteString("Amount: positive number, digits with optional decimal part\n")
	b.WriteString("Description: short description of the operation\n")
	b.WriteString("Category: the best matching category from this list: ")
	b.WriteString(categoryNames(categories))
	b.WriteString("\n\n")
	b.WriteString("Separate blocks with a blank line.\n")
	b.WriteString("If no category fits, use \"" + domain.DefaultCategoryName + "\".\n")
	return b.String()
}

func strictStatementPrompt(categories []domain.Category) string {
	return statementPrompt(categories) +
		"\nIMPORTANT: return ONLY the field lines described above. " +
		"No explanations, no markdown, no numbering, nothing else.\n"
}

func categoryNames(categories []domain.Category) string {
	if len(categories) == 0 {
		return domain.DefaultCategoryName
	}
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return strings.Join(names, ", ")
}

// blockRe matches a complete block: all four labeled fields contiguous.
var blockRe = regexp.MustCompile(
	`(?mi)^direction:[ \t]*(income|expense)[ \t]*\r?\n` +
		`amount:[ \t]*([^\r\n]+)\r?\n` +
		`description:[ \t]*([^\r\n]*)\r?\n` +
		`category:[ \t]*([^\r\n]+)[ \t]*$`)

func parseBlocks(reply string, source domain.Source) []domain.TransactionCandidate {
	var candidates []domain.TransactionCandidate
	for _, m := range blockRe.FindAllStringSubmatch(reply, -1) {
		c, ok := buildCandidate(m[1], m[2], m[3], m[4], source)
		if ok {
			candidates = append(candidates, c)
		}
	}
	return candidates
}

// scanLines is the fallback for replies where the model drifted from
// the block format: fields are accumulated across blank-line-delimited
// groups, and a group is emitted once it has at least a direction and
// an amount. A repeated direction label also closes the current group,
// since drifted replies often omit the blank separator too. Partial
// groups are dropped, never guessed.
func scanLines(reply string, source domain.Source) []domain.TransactionCandidate {
	var candidates []domain.TransactionCandidate
	var direction, amount, description, category string

	flush := func() {
		if direction != "" && amount != "" {
			if c, ok := buildCandidate(direction, amount, description, category, source); ok {
				candidates = append(candidates, c)
			}
		}
		direction, amount, description, category = "", "", "", ""
	}

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "direction":
			if direction != "" {
				flush()
			}
			direction = value
		case "amount":
			amount = value
		case "description":
			description = value
		case "category":
			category = value
		}
	}
	flush()

	return candidates
}

// labelNoise strips emoji, bullets and other decoration from category
// labels, leaving word characters, spaces and hyphens.
var labelNoise = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)

func cleanLabel(label string) string {
	return strings.TrimSpace(labelNoise.ReplaceAllString(label, ""))
}

func buildCandidate(direction, amountStr, description, category string, source domain.Source) (domain.TransactionCandidate, bool) {
	kind := domain.KindExpense
	if strings.EqualFold(strings.TrimSpace(direction), string(domain.KindIncome)) {
		kind = domain.KindIncome
	}

	// Thousands-separator spaces go first, then the shared normalizer.
	amount, err := normalize.ParseAmount(strings.ReplaceAll(amountStr, " ", ""))
	if err != nil {
		return domain.TransactionCandidate{}, false
	}
	if amount < 0 {
		amount = -amount
	}
	if amount <= 0 {
		return domain.TransactionCandidate{}, false
	}

	return domain.TransactionCandidate{
		OccurredOn:   civil.DateOf(time.Now()),
		Amount:       amount,
		Kind:         kind,
		Description:  strings.TrimSpace(description),
		CategoryHint: cleanLabel(category),
		Source:       source,
	}, true
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
