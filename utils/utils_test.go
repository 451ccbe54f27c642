package utils

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateThreshold(t *testing.T) {
	assert.NoError(t, ValidateThreshold(0))
	assert.NoError(t, ValidateThreshold(DefaultThreshold))
	assert.ErrorIs(t, ValidateThreshold(-1), ErrInvalidThreshold)
}

func TestResolveKeepLarger(t *testing.T) {
	assert.True(t, ResolveKeepLarger(false, false), "default keeps larger")
	assert.True(t, ResolveKeepLarger(true, false))
	assert.True(t, ResolveKeepLarger(true, true), "keep-larger wins when both are set")
	assert.False(t, ResolveKeepLarger(false, true))
}

func TestValidateRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/photos", 0755))
	require.NoError(t, afero.WriteFile(fs, "/photos/a.jpg", []byte("x"), 0644))

	assert.NoError(t, ValidateRoot(fs, "/photos"))
	assert.ErrorIs(t, ValidateRoot(fs, "/nope"), ErrRootNotFound)
	assert.ErrorIs(t, ValidateRoot(fs, "/photos/a.jpg"), ErrRootNotDir)
}

func TestModeName(t *testing.T) {
	assert.Equal(t, "interactive", ModeName(true, false))
	assert.Equal(t, "auto-keep-larger", ModeName(false, true))
	assert.Equal(t, "auto-keep-smaller", ModeName(false, false))
}
