// Package tokens counts model tokens and estimates embedding costs.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/nickcecere/lvec/internal/config"
)

func init() {
	// BPE ranks ship with the binary; counting never touches the network
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Prices in dollars per one million input tokens.
var pricePerMillion = map[string]float64{
	"text-embedding-3-small": 0.02,
	"text-embedding-3-large": 0.13,
	"text-embedding-ada-002": 0.10,
}

// Counter counts tokens with a fixed encoding.
type Counter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	mu       sync.Mutex
}

// Count holds the token count for one text.
type Count struct {
	Text   string `json:"text"`
	Tokens int    `json:"tokens"`
}

// Summary is the result of counting several texts.
type Summary struct {
	Encoding string  `json:"encoding"`
	Model    string  `json:"model"`
	Counts   []Count `json:"counts"`
	Total    int     `json:"total"`
	Cost     float64 `json:"cost"`
}

// NewCounter loads the named encoding. An empty name selects cl100k_base.
func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = config.DefaultTokenEncoding
	}

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %s: %w", encoding, err)
	}

	return &Counter{encoding: encoding, enc: enc}, nil
}

// Encoding returns the encoding name.
func (c *Counter) Encoding() string {
	return c.encoding
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enc.Encode(text, nil, nil))
}

// Summarize counts every text and prices the total for model.
func (c *Counter) Summarize(model string, texts []string) Summary {
	s := Summary{
		Encoding: c.encoding,
		Model:    model,
		Counts:   make([]Count, 0, len(texts)),
	}
	for _, text := range texts {
		n := c.Count(text)
		s.Counts = append(s.Counts, Count{Text: text, Tokens: n})
		s.Total += n
	}
	s.Cost, _ = EstimateCost(model, s.Total)
	return s
}

// EstimateCost converts a token count into dollars for model.
// The bool is false when the model has no known price.
func EstimateCost(model string, tokens int) (float64, bool) {
	price, ok := pricePerMillion[model]
	if !ok {
		return 0, false
	}
	return float64(tokens) * price / 1_000_000, true
}

// PricePerMillion returns the known price per one million tokens for model.
func PricePerMillion(model string) (float64, bool) {
	price, ok := pricePerMillion[model]
	return price, ok
}
