package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Minimal PNG signature followed by an IHDR chunk header.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type fakeHTMLRenderer struct {
	html string
	pdf  []byte
	err  error
}

func (f *fakeHTMLRenderer) RenderHTML(_ context.Context, html string) ([]byte, error) {
	f.html = html
	return f.pdf, f.err
}

func TestPhotoHTMLEmbedsImageAndCaption(t *testing.T) {
	doc, err := PhotoHTML(PhotoPage{
		Image:   pngBytes,
		Caption: "(01/03/2024, 14:05:09) --- (ID: 2024-3-1-G100123-55)",
	})
	require.NoError(t, err)

	assert.Contains(t, doc, `src="data:image/png;base64,`)
	assert.Contains(t, doc, "(ID: 2024-3-1-G100123-55)")
	assert.Contains(t, doc, "size: A4")
	assert.NotContains(t, doc, "ZgotmplZ")
}

func TestPhotoHTMLEscapesCaption(t *testing.T) {
	doc, err := PhotoHTML(PhotoPage{Image: pngBytes, Caption: "<script>x</script>"})
	require.NoError(t, err)

	assert.NotContains(t, doc, "<script>x</script>")
	assert.Contains(t, doc, "&lt;script&gt;")
}

func TestPhotoHTMLRejectsNonImage(t *testing.T) {
	_, err := PhotoHTML(PhotoPage{Image: []byte("%PDF-1.7 not an image")})
	require.Error(t, err)

	_, err = PhotoHTML(PhotoPage{})
	require.Error(t, err)
}

func TestRenderPhotoPassesDocumentToRenderer(t *testing.T) {
	html := &fakeHTMLRenderer{pdf: []byte("%PDF-1.7")}
	pdf, err := NewPhotoRenderer(html).RenderPhoto(context.Background(), PhotoPage{Image: pngBytes, Caption: "cap"})
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.7"), pdf)
	assert.True(t, strings.HasPrefix(html.html, "<!DOCTYPE html>"))
}

func TestRenderPhotoPropagatesFailures(t *testing.T) {
	boom := errors.New("chrome crashed")
	_, err := NewPhotoRenderer(&fakeHTMLRenderer{err: boom}).RenderPhoto(context.Background(), PhotoPage{Image: pngBytes})
	assert.ErrorIs(t, err, boom)

	_, err = NewPhotoRenderer(&fakeHTMLRenderer{}).RenderPhoto(context.Background(), PhotoPage{Image: pngBytes})
	assert.ErrorIs(t, err, ErrEmptyPDF)

	var nilRenderer *PhotoRenderer
	_, err = nilRenderer.RenderPhoto(context.Background(), PhotoPage{Image: pngBytes})
	assert.Error(t, err)
}

func TestChromeRendererRejectsEmptyHTML(t *testing.T) {
	r := NewChromeRenderer(ChromeConfig{RemoteURL: "ws://127.0.0.1:1"})
	defer r.Close()

	_, err := r.RenderHTML(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, defaultChromeTimeout, r.timeout)
}
