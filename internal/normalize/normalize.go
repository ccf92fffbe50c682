// Package normalize converts arbitrary image bytes into a display-safe,
// size-bounded encoding before preview rendering and network transfer.
// Normalization never fails: when no conversion path works, the input is
// returned untouched and downstream consumers cope on their own.
package normalize

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lehigh-university-libraries/handscribe/internal/models"
)

const (
	// DefaultMaxDimension bounds the longest side of a normalized image.
	DefaultMaxDimension = 4096
	// DefaultJPEGQuality is the quality factor used when re-encoding.
	DefaultJPEGQuality = 85
	// DefaultDecodeTimeout bounds how long a single decode may run.
	DefaultDecodeTimeout = 3 * time.Second
)

// Converter produces a JPEG from bytes the in-process decoders cannot handle
// (camera-native containers such as HEIC). Implementations typically shell
// out to a platform image tool.
type Converter interface {
	ToJPEG(ctx context.Context, data []byte) ([]byte, error)
}

// Normalizer applies the convert-if-needed, resize-if-needed pipeline.
type Normalizer struct {
	MaxDimension  int
	JPEGQuality   int
	DecodeTimeout time.Duration
	Fallback      Converter
}

// New returns a Normalizer with default bounds and the platform fallback
// converter.
func New() *Normalizer {
	return &Normalizer{
		MaxDimension:  DefaultMaxDimension,
		JPEGQuality:   DefaultJPEGQuality,
		DecodeTimeout: DefaultDecodeTimeout,
		Fallback:      PlatformConverter(),
	}
}

var safeFormats = map[models.ImageFormat]bool{
	models.FormatJPEG: true,
	models.FormatPNG:  true,
	models.FormatGIF:  true,
	models.FormatWEBP: true,
}

// IsSafe reports whether a format is directly previewable and accepted by
// the extraction service without conversion.
func IsSafe(format models.ImageFormat) bool {
	return safeFormats[format]
}

// Normalize converts data into a safe, size-bounded (bytes, format) pair.
// On any internal failure the original pair is returned unchanged.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, format models.ImageFormat) ([]byte, models.ImageFormat) {
	safe := IsSafe(format)

	if safe && n.withinBounds(data) {
		return data, format
	}

	img, err := n.decode(ctx, data)
	if err != nil && !safe && n.Fallback != nil {
		converted, convErr := n.Fallback.ToJPEG(ctx, data)
		if convErr != nil {
			slog.Warn("Image conversion failed, keeping original bytes", "format", format, "err", convErr)
			return data, format
		}
		// The converted JPEG still needs the resize bound applied.
		if n.withinBounds(converted) {
			return converted, models.FormatJPEG
		}
		img, err = n.decode(ctx, converted)
		if err != nil {
			return converted, models.FormatJPEG
		}
	}
	if err != nil {
		slog.Warn("Image decode failed, keeping original bytes", "format", format, "err", err)
		return data, format
	}

	img = n.downscale(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.JPEGQuality}); err != nil {
		slog.Warn("JPEG re-encode failed, keeping original bytes", "format", format, "err", err)
		return data, format
	}

	slog.Debug("Image normalized", "from", format, "to", models.FormatJPEG, "bytes", buf.Len())
	return buf.Bytes(), models.FormatJPEG
}

// withinBounds reports whether the image header declares dimensions inside
// the configured bound. Undecodable headers count as within bounds since no
// resize is possible anyway.
func (n *Normalizer) withinBounds(data []byte) bool {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return true
	}
	return cfg.Width <= n.MaxDimension && cfg.Height <= n.MaxDimension
}

// decode runs the registered decoders under the configured timeout.
func (n *Normalizer) decode(ctx context.Context, data []byte) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, n.DecodeTimeout)
	defer cancel()

	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, _, err := image.Decode(bytes.NewReader(data))
		ch <- result{img, err}
	}()

	select {
	case r := <-ch:
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// downscale returns img scaled so its longest side equals MaxDimension,
// preserving aspect ratio. Images already within bounds pass through.
func (n *Normalizer) downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= n.MaxDimension {
		return img
	}

	scale := float64(n.MaxDimension) / float64(longest)
	tw := int(math.Round(float64(w) * scale))
	th := int(math.Round(float64(h) * scale))
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
