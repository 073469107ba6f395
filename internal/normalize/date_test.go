package normalize

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := civil.Date{Year: 2024, Month: 11, Day: 1}

	tests := []struct {
		input   string
		want    civil.Date
		wantErr bool
	}{
		{input: "2024-11-01", want: want},
		{input: "01.11.2024", want: want},
		{input: "01/11/2024", want: want},
		{input: "2024/11/01", want: want},
		{input: " 2024-11-01 ", want: want},
		{input: "not a date", wantErr: true},
		{input: "", wantErr: true},
		{input: "2024-13-45", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// ISO order wins over day-first when both could match.
func TestParseDateFormatPriority(t *testing.T) {
	got, err := ParseDate("2024-11-01")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: 11, Day: 1}, got)
}
