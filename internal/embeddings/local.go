package embeddings

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	localModelPrefix  = "hash-"
	localDefaultDims  = 384
	trigramWeight     = 0.5
	wordFeatureWeight = 1.0
)

// LocalService is an offline embedding function based on feature hashing.
// Lowercased words and their character trigrams are hashed into a fixed
// number of signed buckets and the result is L2-normalized. Identical texts
// always produce identical vectors.
type LocalService struct {
	dimensions int
}

// NewLocalService creates a hashing embedder. Non-positive dims use the default.
func NewLocalService(dims int) *LocalService {
	if dims <= 0 {
		dims = localDefaultDims
	}
	return &LocalService{dimensions: dims}
}

// Embed generates an embedding for document text.
func (s *LocalService) Embed(_ context.Context, text string) ([]float32, error) {
	return s.vector(text), nil
}

// EmbedQuery generates an embedding for query text. Documents and queries
// share the same feature space.
func (s *LocalService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.Embed(ctx, text)
}

// EmbedBatch generates embeddings for multiple texts.
func (s *LocalService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.vector(text)
	}
	return out, nil
}

// Dimensions returns the embedding dimensions.
func (s *LocalService) Dimensions() int {
	return s.dimensions
}

// Provider returns the provider name.
func (s *LocalService) Provider() Provider {
	return ProviderLocal
}

// ModelName encodes the dimensionality so the function can be rebuilt later.
func (s *LocalService) ModelName() string {
	return fmt.Sprintf("%s%d", localModelPrefix, s.dimensions)
}

func (s *LocalService) vector(text string) []float32 {
	acc := make([]float64, s.dimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, word := range words {
		s.addFeature(acc, "w:"+word, wordFeatureWeight)

		padded := []rune("^" + word + "$")
		for i := 0; i+3 <= len(padded); i++ {
			s.addFeature(acc, "t:"+string(padded[i:i+3]), trigramWeight)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}

	vec := make([]float32, s.dimensions)
	if norm == 0 {
		// Texts without words map to a fixed unit vector
		vec[0] = 1
		return vec
	}

	norm = math.Sqrt(norm)
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (s *LocalService) addFeature(acc []float64, feature string, weight float64) {
	h := xxhash.Sum64String(feature)
	idx := h % uint64(len(acc))
	if h>>63 == 1 {
		weight = -weight
	}
	acc[idx] += weight
}

// parseLocalModel extracts the dimensionality from a local model name.
func parseLocalModel(model string) (int, bool) {
	if !strings.HasPrefix(model, localModelPrefix) {
		return 0, false
	}
	dims, err := strconv.Atoi(strings.TrimPrefix(model, localModelPrefix))
	if err != nil || dims <= 0 {
		return 0, false
	}
	return dims, true
}
