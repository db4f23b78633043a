// Package render turns submitted photos into a printable single-page A4 PDF.
package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
)

// ErrEmptyPDF reports a render that produced no output.
var ErrEmptyPDF = errors.New("rendered PDF is empty")

// PhotoPage is the content of a rendered photo page.
type PhotoPage struct {
	Image   []byte
	Caption string
}

// HTMLRenderer converts an HTML document into PDF bytes.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// A4 page with the caption above the image, the image scaled to fit.
var photoTemplate = template.Must(template.New("photo").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
  @page { size: A4; margin: 0; }
  html, body { margin: 0; padding: 0; }
  body { height: 284.44mm; width: 210mm; display: table-cell; vertical-align: middle; text-align: center; }
  #page { height: 94.5%; width: 95%; display: inline-block; vertical-align: middle; text-align: center; }
  #log { height: 4%; width: 99.5%; display: inline-block; vertical-align: middle; text-align: center; }
  #log h1 { font-size: 12px; font-family: Arial, sans-serif; display: inline-block; margin: 0; }
  #image { height: 95.5%; width: 99.5%; display: inline-block; vertical-align: middle; text-align: center; }
  #image img { max-height: 100%; max-width: 100%; display: inline-block; vertical-align: middle; }
</style>
</head>
<body>
  <div id="page">
    <div id="log"><h1>{{.Caption}}</h1></div>
    <div id="image"><img src="{{.Source}}" /></div>
  </div>
</body>
</html>`))

// PhotoHTML builds the page document embedding the image as a data URL.
func PhotoHTML(page PhotoPage) (string, error) {
	if len(page.Image) == 0 {
		return "", errors.New("photo is empty")
	}

	mimeType := http.DetectContentType(page.Image)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("unsupported photo content type %q", mimeType)
	}

	source := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(page.Image)

	var buf bytes.Buffer
	err := photoTemplate.Execute(&buf, struct {
		Caption string
		Source  template.URL
	}{
		Caption: page.Caption,
		Source:  template.URL(source),
	})
	if err != nil {
		return "", fmt.Errorf("execute photo template: %w", err)
	}

	return buf.String(), nil
}

// PhotoRenderer renders photo pages with an HTMLRenderer.
type PhotoRenderer struct {
	html HTMLRenderer
}

// NewPhotoRenderer constructs a PhotoRenderer.
func NewPhotoRenderer(html HTMLRenderer) *PhotoRenderer {
	return &PhotoRenderer{html: html}
}

// RenderPhoto renders page into PDF bytes.
func (r *PhotoRenderer) RenderPhoto(ctx context.Context, page PhotoPage) ([]byte, error) {
	if r == nil || r.html == nil {
		return nil, errors.New("photo renderer is not initialized")
	}

	doc, err := PhotoHTML(page)
	if err != nil {
		return nil, err
	}

	pdf, err := r.html.RenderHTML(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, ErrEmptyPDF
	}

	return pdf, nil
}
