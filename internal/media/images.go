// Package media validates image uploads before they leave the client.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"feedsync/internal/models"

	_ "golang.org/x/image/webp"
)

const (
	// MaxImagesPerPost is the most images a single post may carry.
	MaxImagesPerPost = 10
	// MaxImageBytes caps each uploaded file.
	MaxImageBytes = 10 << 20
)

var allowedFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

// Inspect decodes the image header of u and returns its format and size.
func Inspect(u models.Upload) (format string, width, height int, err error) {
	if len(u.Data) == 0 {
		return "", 0, 0, models.NewValidationError(fmt.Sprintf("image %q is empty", u.Filename))
	}
	if len(u.Data) > MaxImageBytes {
		return "", 0, 0, models.NewValidationError(fmt.Sprintf("image %q exceeds %d MB", u.Filename, MaxImageBytes>>20))
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(u.Data))
	if err != nil {
		return "", 0, 0, models.NewValidationError(fmt.Sprintf("image %q is not a supported image", u.Filename))
	}
	if !allowedFormats[format] {
		return "", 0, 0, models.NewValidationError(fmt.Sprintf("image %q has unsupported format %s", u.Filename, format))
	}
	return format, cfg.Width, cfg.Height, nil
}

// ValidateImage reports whether u is an acceptable image upload.
func ValidateImage(u models.Upload) error {
	_, _, _, err := Inspect(u)
	return err
}

// ValidatePostPayload checks that a post has content or images, that the
// image count is within bounds and that every image decodes.
func ValidatePostPayload(p models.PostPayload) error {
	if len(bytes.TrimSpace([]byte(p.Content))) == 0 && len(p.Images) == 0 {
		return models.NewValidationError("Post must have content or at least one image")
	}
	if len(p.Images) > MaxImagesPerPost {
		return models.NewValidationError(fmt.Sprintf("A post can have at most %d images", MaxImagesPerPost))
	}
	for _, img := range p.Images {
		if err := ValidateImage(img); err != nil {
			return err
		}
	}
	return nil
}
