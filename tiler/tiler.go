// Package tiler splits a source image into an N×N grid of independently
// encoded tiles for transport to the recognition endpoint.
//
// Tile generation is all-or-nothing: if decoding, cropping, or encoding
// any cell fails, the whole generation fails with a wrapped error and no
// partial tile set is returned. The later recognition stage is
// partial-tolerant; this stage is not.
package tiler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"

	// Register decoders for the formats callers actually hand us.
	_ "image/gif"
	_ "image/png"

	"github.com/spotlens-io/spotlens/types"
)

// DefaultGridSize is the default grid dimension (2 means a 2×2 grid).
const DefaultGridSize = 2

// DefaultQuality is the JPEG quality used for tile re-encoding.
// Tiles travel over mobile networks; quality is traded for size.
const DefaultQuality = 70

// Config configures tile generation.
type Config struct {
	// GridSize is the grid dimension g, producing g*g tiles. Default 2.
	GridSize int
	// Quality is the JPEG encode quality in [1,100]. Default 70.
	Quality int
}

func (c Config) withDefaults() Config {
	if c.GridSize == 0 {
		c.GridSize = DefaultGridSize
	}
	if c.Quality == 0 {
		c.Quality = DefaultQuality
	}
	return c
}

// Validate checks generation parameters.
func (c Config) Validate() error {
	if c.GridSize < 1 {
		return fmt.Errorf("grid size must be >= 1, got %d", c.GridSize)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("jpeg quality must be in [1,100], got %d", c.Quality)
	}
	return nil
}

// subImager is implemented by the stdlib raster image types.
type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Generate decodes the source image from r and produces GridSize² tiles
// in row-major order (tile index = row*g + col).
//
// Tile dimensions use floor division, so a residual strip of pixels on
// the right/bottom edge is silently dropped when the image dimensions are
// not evenly divisible by the grid size. That is accepted lossy behavior,
// not an error.
func Generate(r io.Reader, cfg Config) ([]types.Tile, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tile generation: %w", err)
	}

	src, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("tile generation: decode image: %w", err)
	}

	bounds := src.Bounds()
	g := cfg.GridSize
	tileWidth := bounds.Dx() / g
	tileHeight := bounds.Dy() / g
	if tileWidth < 1 || tileHeight < 1 {
		return nil, fmt.Errorf("tile generation: image %dx%d (%s) too small for %dx%d grid",
			bounds.Dx(), bounds.Dy(), format, g, g)
	}

	tiles := make([]types.Tile, 0, g*g)
	for row := 0; row < g; row++ {
		for col := 0; col < g; col++ {
			rect := image.Rect(
				bounds.Min.X+col*tileWidth,
				bounds.Min.Y+row*tileHeight,
				bounds.Min.X+(col+1)*tileWidth,
				bounds.Min.Y+(row+1)*tileHeight,
			)

			data, err := encodeCell(src, rect, cfg.Quality)
			if err != nil {
				return nil, fmt.Errorf("tile generation: encode cell (%d,%d): %w", row, col, err)
			}

			tiles = append(tiles, types.Tile{
				Index:    row*g + col,
				Row:      row,
				Col:      col,
				Data:     data,
				MIMEType: "image/jpeg",
			})
		}
	}

	return tiles, nil
}

// encodeCell crops rect out of src and JPEG-encodes it.
func encodeCell(src image.Image, rect image.Rectangle, quality int) ([]byte, error) {
	var cell image.Image
	if si, ok := src.(subImager); ok {
		cell = si.SubImage(rect)
	} else {
		// Exotic decoders may not support SubImage; copy the pixels out.
		rgba := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, rect.Min, draw.Src)
		cell = rgba
	}

	if cell.Bounds().Empty() {
		return nil, errors.New("empty crop region")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cell, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}
