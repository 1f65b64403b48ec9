// Package transcode shrinks images to bounded dimensions and re-encodes them
// as JPEG before they are uploaded.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

const (
	DefaultMaxWidth  = 1920
	DefaultMaxHeight = 1920
	DefaultQuality   = 0.7
)

var (
	ErrDecode = errors.New("failed to load image")
	ErrEncode = errors.New("failed to compress image")
)

// Constraints bound the output image. Quality is in (0,1]; zero values
// fall back to the defaults.
type Constraints struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64
}

func DefaultConstraints() Constraints {
	return Constraints{MaxWidth: DefaultMaxWidth, MaxHeight: DefaultMaxHeight, Quality: DefaultQuality}
}

func (c Constraints) withDefaults() Constraints {
	if c.MaxWidth <= 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = DefaultMaxHeight
	}
	if c.Quality <= 0 || c.Quality > 1 {
		c.Quality = DefaultQuality
	}
	return c
}

// Transcoder turns an image payload into a smaller one. Implementations
// must not modify data.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, c Constraints) ([]byte, error)
}

// JPEG decodes any registered raster format, honoring EXIF orientation,
// scales it down to fit the constraints and encodes it as JPEG.
type JPEG struct{}

func (JPEG) Transcode(ctx context.Context, data []byte, c Constraints) ([]byte, error) {
	c = c.withDefaults()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	w, h := FitDimensions(bounds.Dx(), bounds.Dy(), c.MaxWidth, c.MaxHeight)

	// JPEG has no alpha; flatten onto white like a browser canvas export.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	if w == bounds.Dx() && h == bounds.Dy() {
		xdraw.Draw(dst, dst.Bounds(), src, bounds.Min, xdraw.Over)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality(c.Quality)}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if buf.Len() == 0 {
		return nil, ErrEncode
	}
	return buf.Bytes(), nil
}

// FitDimensions returns the output size for a w×h source. The longer side is
// scaled to its maximum when it exceeds it; images that already fit are
// never enlarged. The result always satisfies both maxima.
func FitDimensions(w, h, maxW, maxH int) (int, int) {
	nw, nh := w, h
	if w > h {
		if w > maxW {
			nh = scale(h, maxW, w)
			nw = maxW
		}
	} else if h > maxH {
		nw = scale(w, maxH, h)
		nh = maxH
	}
	// Non-square bounds can leave the shorter side over its own limit.
	if nw > maxW {
		nh = scale(nh, maxW, nw)
		nw = maxW
	}
	if nh > maxH {
		nw = scale(nw, maxH, nh)
		nh = maxH
	}
	return max(nw, 1), max(nh, 1)
}

func scale(v, num, den int) int {
	return int(math.Round(float64(v) * float64(num) / float64(den)))
}

func jpegQuality(q float64) int {
	return min(max(int(math.Round(q*100)), 1), 100)
}
