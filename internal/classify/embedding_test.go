package classify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEmbedder maps known texts to fixed vectors and counts calls so cache
// tests can assert reuse.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	// Unknown texts get a default direction so Prepare never fails.
	return []float32{1, 0, 0}, nil
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 0}))
}

func TestEmbeddingClassifier_PrepareWritesCache(t *testing.T) {
	t.Parallel()
	cachePath := filepath.Join(t.TempDir(), "label-embeddings.json")
	embedder := &fakeEmbedder{}
	c := NewEmbeddingClassifier(embedder, cachePath, zap.NewNop())

	require.NoError(t, c.Prepare(context.Background()))
	assert.Equal(t, len(Labels), embedder.calls)
	assert.FileExists(t, cachePath)

	// A fresh classifier over the same cache recomputes nothing.
	cold := &fakeEmbedder{}
	c2 := NewEmbeddingClassifier(cold, cachePath, zap.NewNop())
	require.NoError(t, c2.Prepare(context.Background()))
	assert.Zero(t, cold.calls)
}

func TestEmbeddingClassifier_ChangedDescriptionRecomputes(t *testing.T) {
	t.Parallel()
	cachePath := filepath.Join(t.TempDir(), "label-embeddings.json")

	cache := map[string]cachedLabel{}
	for _, l := range Labels {
		cache[l.Name] = cachedLabel{Description: l.Description, Vector: []float32{1, 0, 0}}
	}
	cache[LabelOther] = cachedLabel{Description: "stale wording", Vector: []float32{1, 0, 0}}
	data, err := json.Marshal(cache)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cachePath, data, 0o644))

	embedder := &fakeEmbedder{}
	c := NewEmbeddingClassifier(embedder, cachePath, zap.NewNop())
	require.NoError(t, c.Prepare(context.Background()))
	assert.Equal(t, 1, embedder.calls, "only the stale entry is recomputed")
}

func TestEmbeddingClassifier_PrunesDeprecatedLabels(t *testing.T) {
	t.Parallel()
	cachePath := filepath.Join(t.TempDir(), "label-embeddings.json")

	cache := map[string]cachedLabel{
		"Removed/Label": {Description: "gone", Vector: []float32{1, 0, 0}},
	}
	for _, l := range Labels {
		cache[l.Name] = cachedLabel{Description: l.Description, Vector: []float32{1, 0, 0}}
	}
	data, err := json.Marshal(cache)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cachePath, data, 0o644))

	c := NewEmbeddingClassifier(&fakeEmbedder{}, cachePath, zap.NewNop())
	require.NoError(t, c.Prepare(context.Background()))

	saved, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	var after map[string]cachedLabel
	require.NoError(t, json.Unmarshal(saved, &after))
	assert.NotContains(t, after, "Removed/Label")
	assert.Len(t, after, len(Labels))
}

func TestEmbeddingClassifier_NearestExemplarWins(t *testing.T) {
	t.Parallel()
	cachePath := filepath.Join(t.TempDir(), "label-embeddings.json")

	// Give two labels distinct directions; everything else points elsewhere.
	embedder := &fakeEmbedder{vectors: map[string][]float32{}}
	for _, l := range Labels {
		embedder.vectors[l.Description] = []float32{0, 0, 1}
	}
	crash := labelDescription(t, "Crash/NullPointer")
	timeout := labelDescription(t, "Network/Timeout")
	embedder.vectors[crash] = []float32{1, 0, 0}
	embedder.vectors[timeout] = []float32{0, 1, 0}
	embedder.vectors["NPE when the list is empty"] = []float32{0.9, 0.1, 0}

	c := NewEmbeddingClassifier(embedder, cachePath, zap.NewNop())
	require.NoError(t, c.Prepare(context.Background()))

	label, err := c.Classify(context.Background(), "NPE when the list is empty")
	require.NoError(t, err)
	assert.Equal(t, "Crash/NullPointer", label)
}

func TestEmbeddingClassifier_ClassifyBeforePrepare(t *testing.T) {
	t.Parallel()
	c := NewEmbeddingClassifier(&fakeEmbedder{}, filepath.Join(t.TempDir(), "c.json"), zap.NewNop())
	_, err := c.Classify(context.Background(), "text")
	require.Error(t, err)
}

func labelDescription(t *testing.T, name string) string {
	t.Helper()
	for _, l := range Labels {
		if l.Name == name {
			return l.Description
		}
	}
	t.Fatalf("unknown label %s", name)
	return ""
}
