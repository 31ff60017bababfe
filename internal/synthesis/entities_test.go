package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntities_NumbersAndProperNouns(t *testing.T) {
	got := entities("Led migration of 14 services to AWS, cutting costs 40% for Acme Corp.")

	assert.Contains(t, got, "14")
	assert.Contains(t, got, "40%")
	assert.Contains(t, got, "AWS")
	assert.Contains(t, got, "Acme")
	assert.Contains(t, got, "Corp")
}

func TestEntities_SentenceInitialCapitalIsNotProperNoun(t *testing.T) {
	got := entities("Led the design of the billing system.")

	assert.Empty(t, got)
}

func TestEntities_AcronymCountsEvenAsFirstWord(t *testing.T) {
	got := entities("SQL tuning across the reporting stack.")

	require.Len(t, got, 1)
	assert.Equal(t, "SQL", got[0])
}

func TestEntities_MixedCaseName(t *testing.T) {
	got := entities("Migrated the catalog from MySQL to PostgreSQL.")

	assert.Contains(t, got, "MySQL")
	assert.Contains(t, got, "PostgreSQL")
}

func TestEntities_NumberFormats(t *testing.T) {
	got := entities("Served 2,000,000 requests with p99 under 3.5 seconds.")

	assert.Contains(t, got, "2,000,000")
	assert.Contains(t, got, "3.5")
	assert.Contains(t, got, "99")
}

func TestEntities_Deduplicates(t *testing.T) {
	got := entities("Tuned AWS costs and wrote AWS automation.")

	count := 0
	for _, e := range got {
		if e == "AWS" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestContainsToken_WordBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		entity string
		want   bool
	}{
		{"exact word", "I write Go daily", "Go", true},
		{"inside longer word", "I work at Google", "Go", false},
		{"at start", "Go services in production", "Go", true},
		{"at end", "rewrote the pipeline in Go", "Go", true},
		{"hyphen boundary", "Go-based tooling", "Go", true},
		{"absent", "Python services", "Go", false},
		{"number with percent", "cut costs 40% overall", "40%", true},
		{"number embedded", "cut costs 140x overall", "40", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsToken(tt.text, tt.entity))
		})
	}
}

func TestMissingEntities(t *testing.T) {
	source := "Led migration to AWS, cutting costs 40%."

	t.Run("all preserved", func(t *testing.T) {
		assert.Empty(t, missingEntities(source, "Drove the AWS migration that cut costs 40%."))
	})

	t.Run("dropped number and name", func(t *testing.T) {
		missing := missingEntities(source, "Led a major cloud migration effort.")
		assert.Contains(t, missing, "AWS")
		assert.Contains(t, missing, "40%")
	})
}
