package viewer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/disintegration/imaging"
)

const (
	defaultMaxImageWidth = 1200
	defaultJPEGQuality   = 85
	defaultMaxImageSize  = 512 * 1024
	minJPEGQuality       = 60
	defaultMaxPixels     = 50 * 1000 * 1000
)

// ImageOptions tunes image inlining. Zero values select defaults.
type ImageOptions struct {
	MaxWidth    int
	JPEGQuality int
	MaxFileSize int
	Logger      *slog.Logger
}

// ImageInliner embeds local images into an export as data URIs, downscaling
// them to a width that still prints sharply at page size.
type ImageInliner struct {
	MaxWidth       int
	JPEGQuality    int
	MaxFileSize    int
	MinJPEGQuality int
	MaxPixels      int // width * height limit for decoding

	logger *slog.Logger
}

// InlinedImage holds re-encoded image data.
// Warning is set when the source was kept as-is or a size limit was missed;
// Data is usable either way.
type InlinedImage struct {
	Data    []byte
	Width   int
	Height  int
	Format  string
	Source  string
	Warning string
}

// NewImageInliner creates an inliner with defaults applied.
func NewImageInliner(opts ImageOptions) *ImageInliner {
	maxWidth := opts.MaxWidth
	if maxWidth <= 0 {
		maxWidth = defaultMaxImageWidth
	}
	quality := opts.JPEGQuality
	if quality <= 0 {
		quality = defaultJPEGQuality
	}
	if quality > 100 {
		quality = 100
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxImageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ImageInliner{
		MaxWidth:       maxWidth,
		JPEGQuality:    quality,
		MaxFileSize:    maxSize,
		MinJPEGQuality: minJPEGQuality,
		MaxPixels:      defaultMaxPixels,
		logger:         logger,
	}
}

// Optimize decodes and re-encodes one image. Undecodable, oversized and
// animated inputs are passed through with the format guessed from the name.
func (o *ImageInliner) Optimize(source string, input []byte) (InlinedImage, error) {
	out := InlinedImage{
		Data:   input,
		Format: formatFromName(source),
		Source: source,
	}
	if out.Format == "svg+xml" {
		return out, nil
	}

	cfg, cfgFormat, cfgErr := image.DecodeConfig(bytes.NewReader(input))
	if cfgErr == nil {
		out.Width = cfg.Width
		out.Height = cfg.Height
		out.Format = strings.ToLower(cfgFormat)
		pixels := uint64(cfg.Width) * uint64(cfg.Height)
		if o.MaxPixels > 0 && pixels > uint64(o.MaxPixels) {
			out.Warning = fmt.Sprintf("image too large to decode: %dx%d (%d pixels)", cfg.Width, cfg.Height, pixels)
			return out, nil
		}
	}

	if out.Format == "gif" {
		if animated, err := isAnimatedGIF(input); err == nil && animated {
			return out, nil
		}
	}

	src, decodedFormat, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		out.Warning = fmt.Sprintf("image decode failed: %v", err)
		return out, nil
	}
	if out.Format == "" {
		out.Format = strings.ToLower(decodedFormat)
	}

	processed := src
	if o.MaxWidth > 0 && src.Bounds().Dx() > o.MaxWidth {
		processed = imaging.Resize(src, o.MaxWidth, 0, imaging.Lanczos)
	}

	var data []byte
	var qualityUsed int
	target := "jpeg"
	if hasAlpha(processed) {
		target = "png"
	}
	switch target {
	case "png":
		data, err = encodePNG(processed)
		if err != nil {
			return out, fmt.Errorf("png encode failed: %w", err)
		}
	default:
		data, qualityUsed, err = o.encodeJPEGWithSizeLimit(processed, o.JPEGQuality)
		if err != nil {
			return out, err
		}
	}

	out.Data = data
	out.Width = processed.Bounds().Dx()
	out.Height = processed.Bounds().Dy()
	out.Format = target

	if o.MaxFileSize > 0 && len(out.Data) > o.MaxFileSize {
		if target == "jpeg" {
			out.Warning = fmt.Sprintf("jpeg size %d exceeds limit %d bytes at quality %d", len(out.Data), o.MaxFileSize, qualityUsed)
		} else {
			out.Warning = fmt.Sprintf("image size %d exceeds limit %d bytes", len(out.Data), o.MaxFileSize)
		}
	}
	return out, nil
}

// DataURI encodes the image for an src attribute.
func (img InlinedImage) DataURI() string {
	return "data:image/" + img.Format + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Inline replaces the src of every local <img> in doc with a data URI.
// Relative sources resolve against dir. Remote sources, data URIs and files
// that cannot be read are left untouched; the returned warnings say why.
func (o *ImageInliner) Inline(doc *goquery.Document, dir string) []string {
	var warnings []string
	seen := make(map[string]string)

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if uri, ok := seen[src]; ok {
			s.SetAttr("src", uri)
			return
		}

		path, ok := localPath(src, dir)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("remote image kept: %s", src))
			return
		}
		input, err := os.ReadFile(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("image %s not inlined: %v", src, err))
			return
		}
		img, err := o.Optimize(src, input)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("image %s not inlined: %v", src, err))
			return
		}
		if img.Format == "" {
			warnings = append(warnings, fmt.Sprintf("image %s not inlined: unknown format", src))
			return
		}
		if img.Warning != "" {
			warnings = append(warnings, fmt.Sprintf("image %s: %s", src, img.Warning))
		}

		uri := img.DataURI()
		seen[src] = uri
		s.SetAttr("src", uri)
		o.logger.Debug("image inlined", "src", src, "format", img.Format, "bytes", len(img.Data))
	})

	for _, w := range warnings {
		o.logger.Warn(w)
	}
	return warnings
}

// localPath resolves a relative or file: URL against dir.
func localPath(src, dir string) (string, bool) {
	u, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	switch u.Scheme {
	case "":
		if u.Host != "" {
			return "", false // protocol-relative
		}
	case "file":
		return filepath.FromSlash(u.Path), true
	default:
		return "", false
	}
	p := filepath.FromSlash(u.Path)
	if filepath.IsAbs(p) {
		return p, true
	}
	return filepath.Join(dir, p), true
}

func formatFromName(name string) string {
	if u, err := url.Parse(name); err == nil {
		name = u.Path
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".gif":
		return "gif"
	case ".svg":
		return "svg+xml"
	case ".webp":
		return "webp"
	}
	return ""
}

func (o *ImageInliner) encodeJPEGWithSizeLimit(img image.Image, startQuality int) ([]byte, int, error) {
	quality := startQuality
	if quality > 100 {
		quality = 100
	}
	if quality < o.MinJPEGQuality {
		quality = o.MinJPEGQuality
	}

	best, err := encodeJPEG(img, quality)
	if err != nil {
		return nil, 0, fmt.Errorf("jpeg encode failed: %w", err)
	}
	if o.MaxFileSize <= 0 || len(best) <= o.MaxFileSize {
		return best, quality, nil
	}

	bestQuality := quality
	for q := quality - 5; q >= o.MinJPEGQuality; q -= 5 {
		candidate, encErr := encodeJPEG(img, q)
		if encErr != nil {
			return nil, 0, fmt.Errorf("jpeg re-encode failed at quality %d: %w", q, encErr)
		}
		best = candidate
		bestQuality = q
		if len(candidate) <= o.MaxFileSize {
			return candidate, q, nil
		}
	}
	return best, bestQuality, nil
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAnimatedGIF(data []byte) (bool, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return false, err
	}
	return len(g.Image) > 1, nil
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xFFFF {
				return true
			}
		}
	}
	return false
}
