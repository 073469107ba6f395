package textparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkuznetsov/finbot/internal/domain"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantAmount   float64
		wantKind     domain.Kind
		wantMerchant string
		wantNoMatch  bool
	}{
		{
			name:         "unicode minus with space",
			input:        "− 379 Перекрёсток",
			wantAmount:   379,
			wantKind:     domain.KindExpense,
			wantMerchant: "Перекрёсток",
		},
		{
			name:         "ascii minus no space",
			input:        "-379 Перекрёсток",
			wantAmount:   379,
			wantKind:     domain.KindExpense,
			wantMerchant: "Перекрёсток",
		},
		{
			name:         "leading plus",
			input:        "+1500 зарплата",
			wantAmount:   1500,
			wantKind:     domain.KindIncome,
			wantMerchant: "зарплата",
		},
		{
			name:         "no sign defaults to expense",
			input:        "379 Магнит",
			wantAmount:   379,
			wantKind:     domain.KindExpense,
			wantMerchant: "Магнит",
		},
		{
			name:         "trailing plus",
			input:        "1500+ зарплата",
			wantAmount:   1500,
			wantKind:     domain.KindIncome,
			wantMerchant: "зарплата",
		},
		{
			name:         "spaced trailing plus",
			input:        "1500 + зарплата",
			wantAmount:   1500,
			wantKind:     domain.KindIncome,
			wantMerchant: "зарплата",
		},
		{
			name:         "decimal amount",
			input:        "99,90 кофе",
			wantAmount:   99.90,
			wantKind:     domain.KindExpense,
			wantMerchant: "кофе",
		},
		{name: "plain text", input: "привет как дела", wantNoMatch: true},
		{name: "empty", input: "", wantNoMatch: true},
		{name: "amount without merchant", input: "379", wantNoMatch: true},
		{name: "zero amount", input: "0 Магнит", wantNoMatch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			if tt.wantNoMatch {
				assert.False(t, ok)
				assert.Nil(t, got)
				return
			}
			require.True(t, ok)
			assert.InDelta(t, tt.wantAmount, got.Amount, 1e-9)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantMerchant, got.Description)
			assert.Equal(t, domain.SourceChatText, got.Source)
		})
	}
}

func TestNormalizeMerchantName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Перекрёсток", "перекрёсток"},
		{"ПЕРЕКРЁСТОК!!!", "перекрёсток"},
		{"  Пятёрочка  ", "пятёрочка"},
		{"Magnit.", "magnit"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMerchantName(tt.input), "input %q", tt.input)
	}
}

func TestExtractMerchantFromDescription(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Покупка в Перекрёсток", "Перекрёсток"},
		{"Оплата СБП QR Пятёрочка", "Пятёрочка"},
		{"Списание 379.00р Магнит", "Магнит"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractMerchantFromDescription(tt.input), "input %q", tt.input)
	}
}
