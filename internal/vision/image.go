package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dpolishuk/sketch2code/internal/models"
)

var ErrUndecodableImage = errors.New("image cannot be decoded")

// DecodeImage checks that data is a PNG, JPEG or GIF with a non-empty canvas
// and returns it tagged with its media type.
func DecodeImage(data []byte) (models.Image, error) {
	if len(data) == 0 {
		return models.Image{}, fmt.Errorf("%w: empty payload", ErrUndecodableImage)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return models.Image{}, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return models.Image{}, fmt.Errorf("%w: empty canvas", ErrUndecodableImage)
	}
	return models.Image{Data: data, MIMEType: "image/" + format}, nil
}
