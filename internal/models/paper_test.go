package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"versioned", "2108.09112v1", "2108.09112"},
		{"multiDigitVersion", "2301.00001v12", "2301.00001"},
		{"noVersion", "2108.09112", "2108.09112"},
		{"oldStyle", "math.GT/0309136v2", "math.GT/0309136"},
		{"trailingV", "2108.09112v", "2108.09112v"},
		{"nonNumericSuffix", "2108.09112vfinal", "2108.09112vfinal"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CanonicalID(tc.raw))
		})
	}
}

func TestDateJSON(t *testing.T) {
	t.Parallel()

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()

		d := NewDate(time.Date(2025, 8, 14, 13, 30, 0, 0, time.UTC))
		data, err := json.Marshal(d)
		require.NoError(t, err)
		assert.Equal(t, `"2025-08-14"`, string(data))

		var out Date
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, d.String(), out.String())
	})

	t.Run("Zero", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(Date{})
		require.NoError(t, err)
		assert.Equal(t, `""`, string(data))

		var out Date
		require.NoError(t, json.Unmarshal([]byte(`""`), &out))
		assert.True(t, out.IsZero())

		require.NoError(t, json.Unmarshal([]byte(`null`), &out))
		assert.True(t, out.IsZero())
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Parallel()

		var out Date
		assert.Error(t, json.Unmarshal([]byte(`"14-08-2025"`), &out))
		assert.Error(t, json.Unmarshal([]byte(`42`), &out))
	})
}

func TestPaperJSON(t *testing.T) {
	t.Parallel()

	paper := Paper{
		ID:          "2108.09112",
		Title:       "A Study",
		URL:         "https://arxiv.org/abs/2108.09112",
		Abstract:    "About things.",
		Authors:     "Ada Lovelace, Alan Turing",
		Category:    "cs.DC",
		PublishDate: NewDate(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)),
		UpdateDate:  NewDate(time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)),
	}

	data, err := json.Marshal(PaperWithSummary{Paper: paper, Summary: "short"})
	require.NoError(t, err)

	var decoded PaperWithSummary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, paper.ID, decoded.ID)
	assert.Equal(t, "2025-08-02", decoded.UpdateDate.String())
	assert.Equal(t, "short", decoded.Summary)

	// Field names are the persisted wire format.
	assert.Contains(t, string(data), `"publish_date":"2025-08-01"`)
	assert.Contains(t, string(data), `"summary":"short"`)
}
