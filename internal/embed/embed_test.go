package embed

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/facegate/internal/engine"
	"github.com/ayusman/facegate/internal/match"
	"github.com/ayusman/facegate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func newNet(t *testing.T, dim int, tensors ...engine.Tensor) (*Net, *engine.MockBackend) {
	t.Helper()
	backend := engine.NewMockBackend(tensors...)
	cfg := DefaultConfig()
	cfg.Dim = dim
	n, err := NewNet(engine.NewSession(backend), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n, backend
}

func TestNet_ExtractNormalizes(t *testing.T) {
	n, backend := newNet(t, 4, engine.Tensor{Name: "output", Shape: []int{1, 4}, Data: []float32{0, 3, 0, 4}})

	face := testutil.Frame(112, 112)
	defer face.Close()

	f, err := n.Extract(face)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.6, 0, 0.8}, []float32(f), 1e-6)
	assert.Equal(t, 1, backend.Runs())
}

func TestNet_FallsBackToFirstOutput(t *testing.T) {
	n, _ := newNet(t, 2, engine.Tensor{Name: "fc1", Data: []float32{1, 0}})

	face := testutil.Frame(112, 112)
	defer face.Close()

	f, err := n.Extract(face)
	require.NoError(t, err)
	assert.Equal(t, match.Feature{1, 0}, f)
}

func TestNet_ExtractErrors(t *testing.T) {
	face := testutil.Frame(112, 112)
	defer face.Close()

	t.Run("wrong dimension", func(t *testing.T) {
		n, _ := newNet(t, 4, engine.Tensor{Name: "output", Data: []float32{1, 2, 3}})
		_, err := n.Extract(face)
		assert.ErrorIs(t, err, ErrExtract)
	})

	t.Run("zero vector", func(t *testing.T) {
		n, _ := newNet(t, 3, engine.Tensor{Name: "output", Data: []float32{0, 0, 0}})
		_, err := n.Extract(face)
		assert.ErrorIs(t, err, ErrExtract)
	})

	t.Run("non-finite output", func(t *testing.T) {
		n, _ := newNet(t, 3, engine.Tensor{Name: "output", Data: []float32{float32(math.NaN()), 1, 0}})
		_, err := n.Extract(face)
		assert.ErrorIs(t, err, ErrExtract)
	})

	t.Run("no output", func(t *testing.T) {
		n, _ := newNet(t, 3)
		_, err := n.Extract(face)
		assert.ErrorIs(t, err, ErrExtract)
	})

	t.Run("backend failure", func(t *testing.T) {
		n, backend := newNet(t, 3)
		boom := errors.New("boom")
		backend.SetError(boom)
		_, err := n.Extract(face)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty face", func(t *testing.T) {
		n, _ := newNet(t, 3)
		empty := gocv.NewMat()
		defer empty.Close()
		_, err := n.Extract(empty)
		assert.ErrorIs(t, err, ErrEmptyFace)
	})
}

func TestNewNet_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dim = 0
	_, err := NewNet(engine.NewSession(engine.NewMockBackend()), cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Size = -1
	_, err = NewNet(engine.NewSession(engine.NewMockBackend()), cfg)
	assert.Error(t, err)
}

func TestModelConfig(t *testing.T) {
	cfg := DefaultConfig()
	mc := ModelConfig("ort", "/models/arcface.onnx", cfg)

	assert.Equal(t, []int64{1, 3, 112, 112}, mc.InputShape)
	require.Len(t, mc.Outputs, 1)
	assert.Equal(t, "output", mc.Outputs[0].Name)
	assert.Equal(t, []int64{1, 512}, mc.Outputs[0].Shape)
}

func TestMockExtractor(t *testing.T) {
	face := testutil.Frame(8, 8)
	defer face.Close()

	m := NewMockExtractor(match.Feature{1, 0}, match.Feature{0, 1})

	f, err := m.Extract(face)
	require.NoError(t, err)
	assert.Equal(t, match.Feature{1, 0}, f)

	for i := 0; i < 2; i++ {
		f, err = m.Extract(face)
		require.NoError(t, err)
		assert.Equal(t, match.Feature{0, 1}, f)
	}
	assert.Equal(t, 3, m.Calls())
}
