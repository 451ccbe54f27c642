package config

import (
	"testing"

	"imagededup/utils"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cfg.yaml", []byte(`
threshold: 4
auto_keep_smaller: true
trash_folder: /trash
hash_size: 16
`), 0644))

	file, err := Load(fs, "/cfg.yaml")
	require.NoError(t, err)

	options := Default()
	file.ApplyTo(&options)

	assert.Equal(t, 4, options.Threshold)
	assert.Equal(t, "/trash", options.TrashFolder)
	assert.Equal(t, 16, options.HashSize)
	assert.False(t, options.KeepLarger())
	assert.Equal(t, "phash", options.Hasher, "unset keys keep defaults")
	assert.Equal(t, "similar_images_log.txt", options.LogFile)
	assert.NoError(t, options.Validate())
}

func TestLoad_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/typo.yaml", []byte("treshold: 4\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/empty.yaml", nil, 0644))

	_, err := Load(fs, "/typo.yaml")
	assert.Error(t, err, "unknown keys are rejected")

	_, err = Load(fs, "/missing.yaml")
	assert.Error(t, err)

	file, err := Load(fs, "/empty.yaml")
	require.NoError(t, err)
	options := Default()
	file.ApplyTo(&options)
	assert.Equal(t, Default(), options)
}

func TestValidate(t *testing.T) {
	options := Default()
	assert.NoError(t, options.Validate())
	assert.True(t, options.KeepLarger())

	bad := Default()
	bad.Threshold = -1
	assert.ErrorIs(t, bad.Validate(), utils.ErrInvalidThreshold)

	bad = Default()
	bad.HashSize = 12
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Workers = -2
	assert.Error(t, bad.Validate())
}
