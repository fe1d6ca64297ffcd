package clusterer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_InstallReplacesPrevious(t *testing.T) {
	r := NewRegistry()
	vp := newFakeViewport(tenDegreeView, 5)

	first, err := r.Install(vp, DefaultOptions())
	require.NoError(t, err)
	second, err := r.Install(vp, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, first.Destroyed())
	assert.False(t, second.Destroyed())
	assert.Equal(t, 3, vp.liveListeners(), "only the live controller listens")

	got, ok := r.Lookup(vp)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DestroyForgets(t *testing.T) {
	r := NewRegistry()
	vp := newFakeViewport(tenDegreeView, 5)
	c, err := r.Install(vp, DefaultOptions())
	require.NoError(t, err)

	c.Destroy()

	_, ok := r.Lookup(vp)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRegistry_SeparateViewports(t *testing.T) {
	r := NewRegistry()
	a, err := r.Install(newFakeViewport(tenDegreeView, 5), DefaultOptions())
	require.NoError(t, err)
	b, err := r.Install(newFakeViewport(tenDegreeView, 5), DefaultOptions())
	require.NoError(t, err)

	assert.False(t, a.Destroyed())
	assert.False(t, b.Destroyed())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Install(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrUnavailable)

	vp := newFakeViewport(tenDegreeView, 5)
	prev, err := r.Install(vp, DefaultOptions())
	require.NoError(t, err)

	_, err = r.Install(vp, Options{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	assert.True(t, prev.Destroyed(), "the previous controller is gone even if the new one fails")
	assert.Zero(t, r.Len())
}

func TestInstall_DefaultRegistry(t *testing.T) {
	vp := newFakeViewport(tenDegreeView, 5)
	c, err := Install(vp, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(c.Destroy)

	got, ok := defaultRegistry.Lookup(vp)
	require.True(t, ok)
	assert.Same(t, c, got)
}
