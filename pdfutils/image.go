package pdfutils

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

type ImageOptions struct {
	OutputPath string
	BaseName   string
	Format     string
	Quality    int
}

// RegionImagePath names the image file written for an annotation region.
func RegionImagePath(opts ImageOptions, annot *Annotation) string {
	return filepath.Join(
		opts.OutputPath,
		fmt.Sprintf(
			"%s-%d-x%d-y%d.%s",
			opts.BaseName,
			annot.Page,
			int(annot.Position.X),
			int(annot.Position.Y),
			opts.Format,
		),
	)
}

// CropRegion cuts the document-space region pos out of a rendered page.
// pageWidth is the displayed page width in document units.
func CropRegion(pageImg image.Image, pageWidth float64, pos Position) (image.Image, error) {
	if pageWidth <= 0 {
		return nil, fmt.Errorf("page width must be positive, got %v", pageWidth)
	}

	bounds := pageImg.Bounds()
	scale := float64(bounds.Dx()) / pageWidth

	crop := image.Rect(
		bounds.Min.X+int(math.Round(pos.X*scale)),
		bounds.Min.Y+int(math.Round(pos.Y*scale)),
		bounds.Min.X+int(math.Round((pos.X+pos.Width)*scale)),
		bounds.Min.Y+int(math.Round((pos.Y+pos.Height)*scale)),
	).Intersect(bounds)

	if crop.Empty() {
		return nil, fmt.Errorf("region %+v lies outside the page", pos)
	}

	return CropImage(pageImg, crop)
}

// SaveRegion crops the annotation's region out of the page image and writes
// it to disk, recording the path on the annotation.
func SaveRegion(pageImg image.Image, pageWidth float64, annot *Annotation, opts ImageOptions) error {
	if err := os.MkdirAll(opts.OutputPath, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	cropped, err := CropRegion(pageImg, pageWidth, annot.Position)
	if err != nil {
		return err
	}

	imagePath := RegionImagePath(opts, annot)

	if err := WriteImage(cropped, imagePath, opts.Format, opts.Quality); err != nil {
		return fmt.Errorf("failed to write %s: %w", imagePath, err)
	}

	annot.ImagePath = imagePath
	annot.Type = Image

	return nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func CropImage(img image.Image, crop image.Rectangle) (image.Image, error) {
	simg, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("image does not support cropping")
	}

	return simg.SubImage(crop), nil
}

func WriteImage(img image.Image, name string, format string, quality int) error {
	if format == "jpg" {
		return writeJPGImage(img, name, quality)
	}

	return writePNGImage(img, name)
}

func writeJPGImage(img image.Image, name string, quality int) error {
	fd, err := os.Create(name)
	if err != nil {
		return err
	}

	defer fd.Close()
	return jpeg.Encode(fd, img, &jpeg.Options{Quality: quality})
}

func writePNGImage(img image.Image, name string) error {
	fd, err := os.Create(name)
	if err != nil {
		return err
	}

	defer fd.Close()
	return png.Encode(fd, img)
}
