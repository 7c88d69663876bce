package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
)

const (
	MaxImageSizeBytes = 20 * 1024 * 1024
	// Max width or height for API transmission.
	MaxImageDimension = 4096
)

type ImageInfo struct {
	Format  string
	Width   int
	Height  int
	Resized bool
}

// PrepareImageForAPI validates a raw image, downscales it when a dimension
// exceeds MaxImageDimension, and returns a data URI the model API accepts.
func PrepareImageForAPI(imageBytes []byte) (string, ImageInfo, error) {
	info := ImageInfo{}
	if len(imageBytes) == 0 {
		return "", info, fmt.Errorf("empty image")
	}
	if len(imageBytes) > MaxImageSizeBytes {
		return "", info, fmt.Errorf("image size (%.2fMB) exceeds maximum allowed size (%dMB)",
			float64(len(imageBytes))/(1024*1024), MaxImageSizeBytes/(1024*1024))
	}

	img, format, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return "", info, fmt.Errorf("decode image: %w", err)
	}
	switch format {
	case "jpeg", "png":
	default:
		return "", info, fmt.Errorf("unsupported image format: %s (supported: JPEG, PNG)", format)
	}

	bounds := img.Bounds()
	info.Format = format
	info.Width = bounds.Dx()
	info.Height = bounds.Dy()

	if info.Width > MaxImageDimension || info.Height > MaxImageDimension {
		img = downscale(img, MaxImageDimension)
		b := img.Bounds()
		info.Width = b.Dx()
		info.Height = b.Dy()
		info.Resized = true
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return "", info, fmt.Errorf("encode png: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
			return "", info, fmt.Errorf("encode jpeg: %w", err)
		}
	}

	uri := "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	return uri, info, nil
}

// DecodeBase64Image accepts either a bare base64 string or a full data URI.
func DecodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty image payload")
	}
	if strings.HasPrefix(s, "data:image/") {
		idx := strings.Index(s, ";base64,")
		if idx < 0 {
			return nil, fmt.Errorf("malformed image data URI")
		}
		s = s[idx+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return raw, nil
}

func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := float64(maxDim) / float64(w)
	if h > w {
		scale = float64(maxDim) / float64(h)
	}
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
