package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simlab-dev/simlab/internal/model"
)

func TestElementFieldsAccessors(t *testing.T) {
	// Decoded JSON carries float64 numbers, YAML and hand-built fixtures
	// carry ints. Both must read back the same.
	var decoded model.ElementFields
	err := json.Unmarshal([]byte(`{
		"id": "n1",
		"label": "router-1",
		"x": 100,
		"cpu_limit": 80.0,
		"hide_links": true,
		"tags": ["core", "edge"]
	}`), &decoded)
	require.NoError(t, err)

	assert.Equal(t, "n1", decoded.ID())
	assert.Equal(t, "router-1", decoded.Str("label"))
	assert.Equal(t, 100, decoded.Int("x"))
	assert.Equal(t, 80.0, decoded.Float("cpu_limit"))
	assert.True(t, decoded.Bool("hide_links"))
	assert.Equal(t, []string{"core", "edge"}, decoded.StrSlice("tags"))

	handmade := model.ElementFields{"x": 100, "ram": int64(2048)}
	assert.Equal(t, 100, handmade.Int("x"))
	assert.Equal(t, 2048, handmade.Int("ram"))
	assert.Equal(t, 100.0, handmade.Float("x"))

	// Absent or mistyped fields read back as zero values.
	assert.Equal(t, "", decoded.Str("missing"))
	assert.Equal(t, 0, decoded.Int("label"))
	assert.False(t, decoded.Bool("label"))
	assert.Nil(t, decoded.StrSlice("missing"))
	assert.False(t, decoded.Has("missing"))
	assert.True(t, decoded.Has("label"))
}

func TestElementFieldsClone(t *testing.T) {
	original := model.ElementFields{"id": "n1", "label": "router-1"}

	clone := original.Clone()
	clone["label"] = "changed"
	clone["new"] = "value"

	assert.Equal(t, "router-1", original.Str("label"))
	assert.False(t, original.Has("new"))
}

func TestIsActiveState(t *testing.T) {
	assert.True(t, model.IsActiveState(model.StateStarted))
	assert.True(t, model.IsActiveState(model.StateQueued))
	assert.True(t, model.IsActiveState(model.StateBooted))
	assert.False(t, model.IsActiveState(model.StateStopped))
	assert.False(t, model.IsActiveState(model.StateDefined))
	assert.False(t, model.IsActiveState(""))
}

func TestErrStaleMatchesNotFound(t *testing.T) {
	// Staleness is a refinement of not-found, both checks must hit.
	assert.True(t, errors.Is(model.ErrStale, model.ErrNotFound))
	assert.False(t, errors.Is(model.ErrNotFound, model.ErrStale))
}
