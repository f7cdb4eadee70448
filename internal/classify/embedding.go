package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = openai.SmallEmbedding3

// Embedding inputs beyond this are truncated; long stack traces otherwise
// blow the model's token limit.
const maxEmbedChars = 20000

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder embeds via an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder. An empty model selects
// DefaultEmbeddingModel.
func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	m := openai.EmbeddingModel(model)
	if model == "" {
		m = DefaultEmbeddingModel
	}
	return &OpenAIEmbedder{client: client, model: m}
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response has no data")
	}
	return resp.Data[0].Embedding, nil
}

// cachedLabel is one entry of the exemplar cache. The description is stored
// alongside the vector so edited label descriptions invalidate their entry.
type cachedLabel struct {
	Description string    `json:"description"`
	Vector      []float32 `json:"vector"`
}

// EmbeddingClassifier labels bugs by cosine similarity between the bug text
// embedding and per-label exemplar embeddings. Exemplar vectors are cached on
// disk; Prepare must run before Classify.
type EmbeddingClassifier struct {
	embedder  Embedder
	cachePath string
	logger    *zap.Logger
	labelVecs map[string][]float32
}

// NewEmbeddingClassifier creates the classifier with its exemplar cache at
// cachePath.
func NewEmbeddingClassifier(embedder Embedder, cachePath string, logger *zap.Logger) *EmbeddingClassifier {
	return &EmbeddingClassifier{embedder: embedder, cachePath: cachePath, logger: logger}
}

// Method identifies this strategy in the output.
func (c *EmbeddingClassifier) Method() string { return "embedding" }

// Prepare loads or computes the exemplar vector for every taxonomy label.
// Cached entries whose description still matches are reused; entries for
// labels no longer in the taxonomy are pruned.
func (c *EmbeddingClassifier) Prepare(ctx context.Context) error {
	cache := c.loadCache()
	c.labelVecs = make(map[string][]float32, len(Labels))
	updated := false

	for _, label := range Labels {
		if entry, ok := cache[label.Name]; ok && entry.Description == label.Description {
			c.labelVecs[label.Name] = entry.Vector
			continue
		}
		vec, err := c.embedder.Embed(ctx, label.Description)
		if err != nil {
			return fmt.Errorf("failed to embed label %q: %w", label.Name, err)
		}
		c.labelVecs[label.Name] = vec
		cache[label.Name] = cachedLabel{Description: label.Description, Vector: vec}
		updated = true
		c.logger.Debug("computed label embedding", zap.String("label", label.Name))
	}

	known := map[string]bool{}
	for _, label := range Labels {
		known[label.Name] = true
	}
	for name := range cache {
		if !known[name] {
			delete(cache, name)
			updated = true
		}
	}

	if updated {
		if err := c.saveCache(cache); err != nil {
			return err
		}
	}
	return nil
}

// Classify returns the taxonomy label whose exemplar is nearest to the bug
// text embedding.
func (c *EmbeddingClassifier) Classify(ctx context.Context, text string) (string, error) {
	if c.labelVecs == nil {
		return "", fmt.Errorf("embedding classifier not prepared")
	}
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return "", err
	}

	best := LabelOther
	bestScore := -1.0
	for _, label := range Labels {
		score := cosineSimilarity(vec, c.labelVecs[label.Name])
		if score > bestScore {
			bestScore = score
			best = label.Name
		}
	}
	return best, nil
}

func (c *EmbeddingClassifier) loadCache() map[string]cachedLabel {
	cache := map[string]cachedLabel{}
	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return cache
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		c.logger.Warn("corrupt embedding cache, recomputing", zap.String("path", c.cachePath))
		return map[string]cachedLabel{}
	}
	return cache
}

func (c *EmbeddingClassifier) saveCache(cache map[string]cachedLabel) error {
	if err := os.MkdirAll(filepath.Dir(c.cachePath), 0o755); err != nil {
		return fmt.Errorf("failed to create embedding cache dir: %w", err)
	}
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal embedding cache: %w", err)
	}
	if err := os.WriteFile(c.cachePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write embedding cache: %w", err)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
