package viewer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, fs afero.Fs, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.SetGray(x, 0, color.Gray{Y: uint8(x)})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0644))
}

func TestAsk(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/a.png", 12, 7)
	writePNG(t, fs, "/b.png", 12, 7)

	var out bytes.Buffer
	p := NewPrompt(fs, strings.NewReader("  2 \nn\n"), &out, Options{})

	answer, err := p.Ask("/a.png", "/b.png")
	require.NoError(t, err)
	assert.Equal(t, "2", answer)

	answer, err = p.Ask("/a.png", "/b.png")
	require.NoError(t, err)
	assert.Equal(t, "n", answer)

	_, err = p.Ask("/a.png", "/b.png")
	assert.ErrorIs(t, err, io.EOF)

	assert.Contains(t, out.String(), ChoicePrompt)
	assert.NoError(t, p.Close())
}

func TestRender(t *testing.T) {
	fs := afero.NewMemMapFs()
	writePNG(t, fs, "/a.png", 12, 7)
	p := NewPrompt(fs, strings.NewReader(""), io.Discard, Options{})

	panel := p.Render("/a.png", "/missing.png")

	assert.Contains(t, panel, "Original Image")
	assert.Contains(t, panel, "Duplicate Image")
	assert.Contains(t, panel, "/a.png")
	assert.Contains(t, panel, "/missing.png")
	assert.Contains(t, panel, "12x7")
	assert.Contains(t, panel, "unavailable")
}

func TestAsk_ViewerThatCannotStart(t *testing.T) {
	fs := afero.NewMemMapFs()
	p := NewPrompt(fs, strings.NewReader("1\n"), io.Discard, Options{ViewerCommand: "/nonexistent/viewer --flag"})

	answer, err := p.Ask("/a.png", "/b.png")
	require.NoError(t, err)
	assert.Equal(t, "1", answer)
}
