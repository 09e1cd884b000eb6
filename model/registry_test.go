package model

import (
	"testing"

	"github.com/c360studio/contentmesh/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	kinds := r.ListKinds()
	if len(kinds) != 4 {
		t.Errorf("expected 4 kinds, got %d", len(kinds))
	}
}

func TestRegistryGeneration(t *testing.T) {
	r := NewDefaultRegistry()

	tests := []struct {
		name       string
		kind       task.Kind
		targetSize int
		wantTokens int
		wantTemp   float64
	}{
		{"content scales with size", task.KindContentGeneration, 800, 1600, 0.7},
		{"content small size", task.KindContentGeneration, 50, 100, 0.7},
		{"generic scales with size", task.KindGeneric, 600, 1200, 0.7},
		{"intent uses fixed budget", task.KindIntentParse, 0, 1000, 0.1},
		{"social uses fixed budget", task.KindSocialPost, 0, 256, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := r.Generation(tt.kind, tt.targetSize)
			assert.Equal(t, tt.wantTokens, g.MaxOutputTokens)
			require.NotNil(t, g.Temperature)
			assert.InDelta(t, tt.wantTemp, *g.Temperature, 1e-9)
		})
	}
}

func TestRegistryGeneration_SamplingParameters(t *testing.T) {
	g := NewDefaultRegistry().Generation(task.KindContentGeneration, 100)
	assert.Equal(t, 40, g.TopK)
	assert.InDelta(t, 0.95, g.TopP, 1e-9)

	g = NewDefaultRegistry().Generation(task.KindIntentParse, 0)
	assert.Zero(t, g.TopK)
	assert.Zero(t, g.TopP)
}

func TestRegistryResolve_FallsBackToGeneric(t *testing.T) {
	r := NewRegistry(map[task.Kind]*Profile{
		task.KindGeneric: {Temperature: 0.3, FixedTokens: 42},
	})

	assert.Equal(t, 42, r.Generation(task.KindSocialPost, 0).MaxOutputTokens)
}

func TestRegistryResolve_EmptyRegistryUsesDefaults(t *testing.T) {
	r := NewRegistry(nil)

	g := r.Generation(task.KindIntentParse, 0)
	assert.Equal(t, 1024, g.MaxOutputTokens)
}

func ptr[T any](v T) *T { return &v }

func TestRegistryMergeFromConfig(t *testing.T) {
	r := NewDefaultRegistry()

	err := r.MergeFromConfig(RegistryConfig{
		"social_post": {Temperature: ptr(0.2), FixedTokens: ptr(128)},
	})
	require.NoError(t, err)
	assert.Equal(t, 128, r.Generation(task.KindSocialPost, 0).MaxOutputTokens)

	// Untouched kinds keep their defaults.
	assert.Equal(t, 1000, r.Generation(task.KindIntentParse, 0).MaxOutputTokens)

	err = r.MergeFromConfig(RegistryConfig{"poetry": {Temperature: ptr(1.0)}})
	assert.Error(t, err)
}

func TestRegistryMergeFromConfig_PartialOverrideKeepsDefaults(t *testing.T) {
	r := NewDefaultRegistry()

	require.NoError(t, r.MergeFromConfig(RegistryConfig{
		"content_generation": {Temperature: ptr(0.5)},
	}))

	g := r.Generation(task.KindContentGeneration, 800)
	assert.Equal(t, 1600, g.MaxOutputTokens)
	assert.Equal(t, 40, g.TopK)
	assert.InDelta(t, 0.95, g.TopP, 1e-9)
	require.NotNil(t, g.Temperature)
	assert.InDelta(t, 0.5, *g.Temperature, 1e-9)
}

func TestRegistryMergeFromConfig_RejectsZeroBudget(t *testing.T) {
	r := NewDefaultRegistry()

	err := r.MergeFromConfig(RegistryConfig{
		"social_post": {FixedTokens: ptr(0)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tokens_per_word or fixed_tokens")

	// Switching from fixed to scaled budget is allowed.
	require.NoError(t, r.MergeFromConfig(RegistryConfig{
		"intent_parse": {FixedTokens: ptr(0), TokensPerWord: ptr(3)},
	}))
	assert.Equal(t, 30, r.Generation(task.KindIntentParse, 10).MaxOutputTokens)
}

func TestProfileOverrideMerge(t *testing.T) {
	user := &ProfileOverride{Temperature: ptr(0.3), TopK: ptr(10)}
	project := &ProfileOverride{Temperature: ptr(0.6)}

	merged := user.Merge(project)
	require.NotNil(t, merged.Temperature)
	assert.InDelta(t, 0.6, *merged.Temperature, 1e-9)
	require.NotNil(t, merged.TopK)
	assert.Equal(t, 10, *merged.TopK)
	assert.Nil(t, merged.FixedTokens)

	// The receiver is not modified.
	assert.InDelta(t, 0.3, *user.Temperature, 1e-9)
}

func TestRegistryToConfig_IsACopy(t *testing.T) {
	r := NewDefaultRegistry()

	cfg := r.ToConfig()
	*cfg["intent_parse"].FixedTokens = 1

	assert.Equal(t, 1000, r.Generation(task.KindIntentParse, 0).MaxOutputTokens)

	// A round trip through the serialized form reproduces the registry.
	rebuilt := NewRegistry(nil)
	require.NoError(t, rebuilt.MergeFromConfig(NewDefaultRegistry().ToConfig()))
	assert.Equal(t, 1600, rebuilt.Generation(task.KindContentGeneration, 800).MaxOutputTokens)
	assert.Equal(t, 256, rebuilt.Generation(task.KindSocialPost, 0).MaxOutputTokens)
}
