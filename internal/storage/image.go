// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// Supported upload types.
const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeGIF  = "image/gif"
	MimeWebP = "image/webp"
	MimeSVG  = "image/svg+xml"
)

var extByMime = map[string]string{
	MimeJPEG: ".jpg",
	MimePNG:  ".png",
	MimeGIF:  ".gif",
	MimeWebP: ".webp",
	MimeSVG:  ".svg",
}

// ProcessedImage is an upload ready to be stored.
type ProcessedImage struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

// ImagePipeline validates uploads and normalizes raster images.
type ImagePipeline struct {
	maxSize int64
	maxSide int
	quality int
}

// NewImagePipeline creates a pipeline accepting files up to maxSize bytes
// and shrinking images whose longest side exceeds maxSide (0 disables).
func NewImagePipeline(maxSize int64, maxSide int) *ImagePipeline {
	return &ImagePipeline{maxSize: maxSize, maxSide: maxSide, quality: 90}
}

// Process reads r and returns the image to store. The type is sniffed
// from content; the client's filename and Content-Type are not trusted.
func (p *ImagePipeline) Process(r io.Reader, _ string) (*ProcessedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > p.maxSize {
		return nil, ErrTooLarge
	}

	mt := mimetype.Detect(data)
	var contentType string
	for m := range extByMime {
		if mt.Is(m) {
			contentType = m
			break
		}
	}
	if contentType == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}

	out := &ProcessedImage{Data: data, ContentType: contentType, Ext: extByMime[contentType]}
	if contentType == MimeSVG {
		return out, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode image: %v", ErrUnsupportedType, err)
	}
	out.Width, out.Height = cfg.Width, cfg.Height

	switch contentType {
	case MimeJPEG:
		// Always re-encode JPEG so camera EXIF (GPS etc.) is not published
		return p.reencode(data, imaging.JPEG, out)
	case MimeGIF:
		// Re-encoding would drop animation frames
		return out, nil
	default:
		if p.exceedsMaxSide(cfg.Width, cfg.Height) {
			return p.reencode(data, formatFor(contentType), out)
		}
		return out, nil
	}
}

func (p *ImagePipeline) exceedsMaxSide(w, h int) bool {
	return p.maxSide > 0 && (w > p.maxSide || h > p.maxSide)
}

// formatFor returns the output format for a decoded image. There is no
// pure Go WebP encoder, so WebP is written as JPEG.
func formatFor(contentType string) imaging.Format {
	if contentType == MimePNG {
		return imaging.PNG
	}
	return imaging.JPEG
}

func (p *ImagePipeline) reencode(data []byte, format imaging.Format, out *ProcessedImage) (*ProcessedImage, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode image: %v", ErrUnsupportedType, err)
	}
	if out.ContentType == MimeJPEG {
		img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))
	}
	if b := img.Bounds(); p.exceedsMaxSide(b.Dx(), b.Dy()) {
		img = imaging.Fit(img, p.maxSide, p.maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}

	b := img.Bounds()
	out.Data = buf.Bytes()
	out.Width, out.Height = b.Dx(), b.Dy()
	if format == imaging.JPEG {
		out.ContentType, out.Ext = MimeJPEG, extByMime[MimeJPEG]
	}
	return out, nil
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return orientation
}

// applyOrientation applies an EXIF orientation transformation.
// 2 flip H, 3 rotate 180, 4 flip V, 5 transpose, 6 rotate 90 CW,
// 7 transverse, 8 rotate 90 CCW.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
