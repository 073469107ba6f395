// Package textparse recognizes single-line chat messages that describe
// a transaction, like "− 379 Перекрёсток" or "+1500 зарплата".
package textparse

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/mkuznetsov/finbot/internal/domain"
	"github.com/mkuznetsov/finbot/internal/normalize"
)

// shape pairs a pattern with an extractor pulling (sign, amount,
// merchant) out of its submatches. Shapes are tried in order and the
// first match wins.
type shape struct {
	re      *regexp.Regexp
	extract func(m []string) (sign, amount, merchant string)
}

const amountExpr = `[0-9]+(?:[.,][0-9]{1,2})?`

var shapes = []shape{
	// "− 379 Перекрёсток", "-379 Перекрёсток", "+1500 зарплата"
	{
		re: regexp.MustCompile(`^([−\-+])\s*(` + amountExpr + `)\s+(.+)$`),
		extract: func(m []string) (string, string, string) {
			return m[1], m[2], m[3]
		},
	},
	// "1500+ зарплата"
	{
		re: regexp.MustCompile(`^(` + amountExpr + `)([−\-+])\s+(.+)$`),
		extract: func(m []string) (string, string, string) {
			return m[2], m[1], m[3]
		},
	},
	// "1500 + зарплата"
	{
		re: regexp.MustCompile(`^(` + amountExpr + `)\s+([−\-+])\s+(.+)$`),
		extract: func(m []string) (string, string, string) {
			return m[2], m[1], m[3]
		},
	},
	// "379 Перекрёсток" — no sign means expense
	{
		re: regexp.MustCompile(`^(` + amountExpr + `)\s+(.+)$`),
		extract: func(m []string) (string, string, string) {
			return "", m[1], m[2]
		},
	},
}

// Parse parses a chat message into a transaction candidate. The second
// return value is false when the message is not a transaction at all:
// no shape matched, the amount was not positive, or the merchant text
// was empty. That is not an error condition.
func Parse(text string) (*domain.TransactionCandidate, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	for _, s := range shapes {
		m := s.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		sign, amountStr, merchant := s.extract(m)
		merchant = strings.TrimSpace(merchant)

		amount, err := normalize.ParseAmount(amountStr)
		if err != nil || amount <= 0 || merchant == "" {
			continue
		}

		kind := domain.KindExpense
		if sign == "+" {
			kind = domain.KindIncome
		}

		return &domain.TransactionCandidate{
			OccurredOn:  civil.DateOf(time.Now()),
			Amount:      amount,
			Kind:        kind,
			Description: merchant,
			Source:      domain.SourceChatText,
		}, true
	}

	return nil, false
}

var trailingPunct = regexp.MustCompile(`[!?,.\s]+$`)

// NormalizeMerchantName canonicalizes a merchant name for rule lookups:
// lower-case, trimmed, trailing punctuation stripped.
func NormalizeMerchantName(merchant string) string {
	normalized := strings.ToLower(strings.TrimSpace(merchant))
	return trailingPunct.ReplaceAllString(normalized, "")
}

var merchantPatterns = []*regexp.Regexp{
	// "Покупка в Перекрёсток"
	regexp.MustCompile(`(?:в|В)\s+([\p{L}][\p{L}\d\s]*)`),
	// "Оплата СБП QR Пятёрочка"
	regexp.MustCompile(`(?:QR|qr)\s+([\p{L}][\p{L}\d\s]*)`),
	// "Списание 379.00р Магнит"
	regexp.MustCompile(`(?:Списание|списание).*?([\p{L}\d]+)$`),
}

var merchantNoise = regexp.MustCompile(`[0-9₽$€£.,\-]`)

// ExtractMerchantFromDescription pulls a merchant name out of a bank
// transaction description, for merchant-rule lookups. Returns "" when
// nothing plausible is found.
func ExtractMerchantFromDescription(description string) string {
	if description == "" {
		return ""
	}

	for _, re := range merchantPatterns {
		if m := re.FindStringSubmatch(description); m != nil {
			merchant := strings.TrimSpace(m[1])
			if len([]rune(merchant)) >= 3 {
				return merchant
			}
		}
	}

	// Last word, if long enough after dropping digits and currency marks.
	words := strings.Fields(description)
	if len(words) > 0 {
		last := merchantNoise.ReplaceAllString(words[len(words)-1], "")
		if len([]rune(last)) >= 3 {
			return last
		}
	}

	return ""
}
