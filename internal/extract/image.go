package extract

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var ErrUnsupportedFormat = errors.New("image format must be jpg, png, gif, or webp")

// Format is one of the accepted raster formats.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
)

func (f Format) MIME() string {
	return "image/" + string(f)
}

func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// Sniff identifies the format from the image header without decoding pixels.
func Sniff(data []byte) (Format, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	switch f := Format(name); f {
	case FormatJPEG, FormatPNG, FormatGIF, FormatWebP:
		return f, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Decode sniffs and fully decodes data.
func Decode(data []byte) (image.Image, Format, error) {
	f, err := Sniff(data)
	if err != nil {
		return nil, "", err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", f, err)
	}
	return img, f, nil
}
