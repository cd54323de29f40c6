package viewer

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestImageInliner_ResizeOverMaxWidth(t *testing.T) {
	src := makeSolidNRGBA(1600, 800, color.NRGBA{R: 20, G: 50, B: 200, A: 255})
	data := mustEncodeJPEG(t, src, 90)
	in := NewImageInliner(ImageOptions{MaxWidth: 800})

	out, err := in.Optimize("img.jpg", data)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if out.Width != 800 || out.Height != 400 {
		t.Fatalf("got %dx%d, want 800x400", out.Width, out.Height)
	}
	if out.Format != "jpeg" {
		t.Fatalf("format = %q, want jpeg", out.Format)
	}
}

func TestImageInliner_NoResizeUnderMaxWidth(t *testing.T) {
	src := makeSolidNRGBA(500, 300, color.NRGBA{R: 100, G: 120, B: 140, A: 255})
	in := NewImageInliner(ImageOptions{})

	out, err := in.Optimize("img.jpg", mustEncodeJPEG(t, src, 90))
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if out.Width != 500 || out.Height != 300 {
		t.Fatalf("got %dx%d, want 500x300", out.Width, out.Height)
	}
}

func TestImageInliner_OpaquePNGToJPEG(t *testing.T) {
	src := makeSolidNRGBA(300, 200, color.NRGBA{R: 10, G: 80, B: 180, A: 255})
	out, err := NewImageInliner(ImageOptions{}).Optimize("img.png", mustEncodePNG(t, src))
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if out.Format != "jpeg" {
		t.Fatalf("format = %q, want jpeg", out.Format)
	}
}

func TestImageInliner_KeepTransparentPNG(t *testing.T) {
	src := makeSolidNRGBA(300, 200, color.NRGBA{R: 10, G: 80, B: 180, A: 120})
	out, err := NewImageInliner(ImageOptions{}).Optimize("alpha.png", mustEncodePNG(t, src))
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if out.Format != "png" {
		t.Fatalf("format = %q, want png", out.Format)
	}
}

func TestImageInliner_KeepAnimatedGIF(t *testing.T) {
	pal := color.Palette{color.RGBA{0, 0, 0, 255}, color.RGBA{255, 255, 255, 255}}
	anim := &gif.GIF{
		Image: []*image.Paletted{
			image.NewPaletted(image.Rect(0, 0, 20, 20), pal),
			image.NewPaletted(image.Rect(0, 0, 20, 20), pal),
		},
		Delay: []int{10, 10},
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		t.Fatalf("EncodeAll() error = %v", err)
	}

	out, err := NewImageInliner(ImageOptions{}).Optimize("a.gif", buf.Bytes())
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if out.Format != "gif" || !bytes.Equal(out.Data, buf.Bytes()) {
		t.Fatalf("animated gif was re-encoded as %q", out.Format)
	}
}

func TestImageInliner_DecodeFailurePassthrough(t *testing.T) {
	input := []byte("not an image")
	out, err := NewImageInliner(ImageOptions{}).Optimize("broken.png", input)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if out.Warning == "" {
		t.Fatal("expected a warning for undecodable input")
	}
	if !bytes.Equal(out.Data, input) || out.Format != "png" {
		t.Fatalf("passthrough = %q/%q", out.Data, out.Format)
	}
}

func TestImageInliner_SVGPassthrough(t *testing.T) {
	input := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	out, err := NewImageInliner(ImageOptions{}).Optimize("logo.svg", input)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if !strings.HasPrefix(out.DataURI(), "data:image/svg+xml;base64,") {
		t.Fatalf("DataURI() = %q", out.DataURI())
	}
}

func TestImageInliner_Inline(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "img"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	pngData := mustEncodePNG(t, makeSolidNRGBA(40, 20, color.NRGBA{R: 1, G: 2, B: 3, A: 100}))
	if err := os.WriteFile(filepath.Join(dir, "img", "a.png"), pngData, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	doc := parseTestHTML(t, `<html><body>
<div id="page1"><img id="one" src="img/a.png"><img id="two" src="img/a.png"></div>
<div id="page2"><img id="remote" src="https://example.com/b.jpg"><img id="gone" src="missing.png"><img id="inline" src="data:image/png;base64,AA=="></div>
</body></html>`)

	warnings := NewImageInliner(ImageOptions{}).Inline(doc, dir)

	one := doc.Find("#one").AttrOr("src", "")
	if !strings.HasPrefix(one, "data:image/png;base64,") {
		t.Fatalf("local image src = %.40q, want a png data URI", one)
	}
	if doc.Find("#two").AttrOr("src", "") != one {
		t.Fatal("repeated source inlined differently")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(one, "data:image/png;base64,"))
	if err != nil {
		t.Fatalf("data URI payload: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(raw)); err != nil {
		t.Fatalf("inlined payload is not a png: %v", err)
	}

	if got := doc.Find("#remote").AttrOr("src", ""); got != "https://example.com/b.jpg" {
		t.Fatalf("remote src = %q, want it kept", got)
	}
	if got := doc.Find("#gone").AttrOr("src", ""); got != "missing.png" {
		t.Fatalf("missing src = %q, want it kept", got)
	}
	if got := doc.Find("#inline").AttrOr("src", ""); got != "data:image/png;base64,AA==" {
		t.Fatalf("data URI src = %q, want it kept", got)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v, want 2 (remote and missing)", warnings)
	}
}

func TestLocalPath(t *testing.T) {
	tests := []struct {
		src  string
		want string
		ok   bool
	}{
		{"a.png", filepath.Join("base", "a.png"), true},
		{"img/a%20b.png?v=2", filepath.Join("base", "img", "a b.png"), true},
		{"http://x/a.png", "", false},
		{"//cdn/a.png", "", false},
	}
	for _, tt := range tests {
		got, ok := localPath(tt.src, "base")
		if ok != tt.ok || got != tt.want {
			t.Fatalf("localPath(%q) = %q, %v, want %q, %v", tt.src, got, ok, tt.want, tt.ok)
		}
	}
}

func makeSolidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func mustEncodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func mustEncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}
