package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	c, err := NewCounter("")
	require.NoError(t, err)
	assert.Equal(t, "cl100k_base", c.Encoding())

	assert.Equal(t, 1, c.Count("Hello"))
	assert.Equal(t, 0, c.Count(""))

	text := "All expense reports must be submitted within 15 days of trip completion."
	first := c.Count(text)
	assert.Greater(t, first, 5)
	assert.Equal(t, first, c.Count(text))
}

func TestNewCounterUnknownEncoding(t *testing.T) {
	_, err := NewCounter("not_an_encoding")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	c, err := NewCounter("cl100k_base")
	require.NoError(t, err)

	texts := []string{"Hello", "ChromaDB is awesome!"}
	s := c.Summarize("text-embedding-3-small", texts)

	require.Len(t, s.Counts, 2)
	assert.Equal(t, "Hello", s.Counts[0].Text)
	assert.Equal(t, s.Counts[0].Tokens+s.Counts[1].Tokens, s.Total)
	assert.InDelta(t, float64(s.Total)*0.02/1_000_000, s.Cost, 1e-15)
}

func TestEstimateCost(t *testing.T) {
	cost, ok := EstimateCost("text-embedding-3-small", 1_000_000)
	assert.True(t, ok)
	assert.InDelta(t, 0.02, cost, 1e-12)

	cost, ok = EstimateCost("text-embedding-3-large", 500_000)
	assert.True(t, ok)
	assert.InDelta(t, 0.065, cost, 1e-12)

	_, ok = EstimateCost("unknown", 10)
	assert.False(t, ok)

	price, ok := PricePerMillion("text-embedding-ada-002")
	assert.True(t, ok)
	assert.Equal(t, 0.10, price)
}
