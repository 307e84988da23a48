package reconciler

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"math"

	_ "image/gif"
	_ "image/png"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

const (
	placeholderWidth = 10
	displayMaxEdge   = 1200
	displayQuality   = 75
)

// ImageInfo is the derived material for one source image: its dimensions, an
// inline low-resolution placeholder, and a size-capped display re-encode.
type ImageInfo struct {
	Width       int
	Height      int
	Placeholder string
	Display     []byte
}

// ImageProcessor turns a source image into its published derivatives.
type ImageProcessor interface {
	Process(data []byte) (ImageInfo, error)
}

// StdImageProcessor decodes jpeg, png and gif sources and re-encodes
// derivatives as jpeg.
type StdImageProcessor struct{}

func (StdImageProcessor) Process(data []byte) (ImageInfo, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, errors.Wrap(err, "decoding source image")
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return ImageInfo{}, errors.New("source image has zero dimension")
	}

	placeholder, err := encodePlaceholder(src, width, height)
	if err != nil {
		return ImageInfo{}, err
	}

	display, err := encodeDisplay(src, width, height)
	if err != nil {
		return ImageInfo{}, err
	}

	return ImageInfo{
		Width:       width,
		Height:      height,
		Placeholder: placeholder,
		Display:     display,
	}, nil
}

func encodePlaceholder(src image.Image, width, height int) (string, error) {
	aspect := float64(width) / float64(height)
	ph := int(math.Round(placeholderWidth / aspect))
	if ph < 1 {
		ph = 1
	}

	tiny := image.NewRGBA(image.Rect(0, 0, placeholderWidth, ph))
	draw.CatmullRom.Scale(tiny, tiny.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, tiny, &jpeg.Options{Quality: 60}); err != nil {
		return "", errors.Wrap(err, "encoding placeholder")
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// encodeDisplay fits the image inside displayMaxEdge square without ever
// enlarging it.
func encodeDisplay(src image.Image, width, height int) ([]byte, error) {
	dw, dh := width, height
	if dw > displayMaxEdge || dh > displayMaxEdge {
		scale := math.Min(displayMaxEdge/float64(dw), displayMaxEdge/float64(dh))
		dw = int(math.Round(float64(width) * scale))
		dh = int(math.Round(float64(height) * scale))
		if dw < 1 {
			dw = 1
		}
		if dh < 1 {
			dh = 1
		}
	}

	scaled := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: displayQuality}); err != nil {
		return nil, errors.Wrap(err, "encoding display copy")
	}
	return buf.Bytes(), nil
}
