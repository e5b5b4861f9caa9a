package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"gocv.io/x/gocv"
)

// MaxImageSide is the longest side a still image is scaled down to before
// detection. Larger photos only slow the detector down.
const MaxImageSide = 1280

// ErrEmptyImage is returned when an image decodes to zero pixels.
var ErrEmptyImage = errors.New("empty image")

// DecodeImage decodes a JPEG, PNG, GIF, BMP or TIFF image into a BGR frame,
// honouring its EXIF orientation and scaling it down to at most maxSide
// pixels. A non-positive maxSide keeps the original size.
func DecodeImage(data []byte, maxSide int) (gocv.Mat, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("decode image: %w", err)
	}
	return toFrame(img, maxSide)
}

// LoadImage reads and decodes the image file at path like DecodeImage.
func LoadImage(path string, maxSide int) (gocv.Mat, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("open image %s: %w", path, err)
	}
	return toFrame(img, maxSide)
}

func toFrame(img image.Image, maxSide int) (gocv.Mat, error) {
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return gocv.NewMat(), ErrEmptyImage
	}
	if maxSide > 0 && (b.Dx() > maxSide || b.Dy() > maxSide) {
		img = resize.Thumbnail(uint(maxSide), uint(maxSide), img, resize.Lanczos3)
	}

	frame, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("convert image: %w", err)
	}
	return frame, nil
}
