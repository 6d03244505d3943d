// Package render rasterizes PDF pages with MuPDF.
package render

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseDPI        = 72.0
	DefaultThumbnailScale = 0.2
	DefaultWorkers        = 4
)

// Config is fixed for the lifetime of a Document. At BaseDPI a scale of 1
// renders one pixel per document unit.
type Config struct {
	BaseDPI        float64 `yaml:"base_dpi"`
	ThumbnailScale float64 `yaml:"thumbnail_scale"`
	Workers        int     `yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		BaseDPI:        DefaultBaseDPI,
		ThumbnailScale: DefaultThumbnailScale,
		Workers:        DefaultWorkers,
	}
}

func (c Config) withDefaults() Config {
	if c.BaseDPI <= 0 {
		c.BaseDPI = DefaultBaseDPI
	}
	if c.ThumbnailScale <= 0 {
		c.ThumbnailScale = DefaultThumbnailScale
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	return c
}

// Surface is one rendered page.
type Surface struct {
	PageIndex int
	Image     image.Image
	Width     int
	Height    int
}

type Document struct {
	doc *fitz.Document
	cfg Config
}

func Open(path string, cfg Config) (*Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	return &Document{doc: doc, cfg: cfg.withDefaults()}, nil
}

func OpenBytes(data []byte, cfg Config) (*Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}

	return &Document{doc: doc, cfg: cfg.withDefaults()}, nil
}

func (d *Document) Close() error {
	return d.doc.Close()
}

func (d *Document) PageCount() int {
	return d.doc.NumPage()
}

func (d *Document) checkPage(i int) error {
	if i < 0 || i >= d.doc.NumPage() {
		return fmt.Errorf("page %d out of range [0, %d)", i, d.doc.NumPage())
	}
	return nil
}

// PageBounds returns the displayed size of page i in points.
func (d *Document) PageBounds(i int) (float64, float64, error) {
	if err := d.checkPage(i); err != nil {
		return 0, 0, err
	}

	b, err := d.doc.Bound(i)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read bounds of page %d: %w", i, err)
	}

	return float64(b.Dx()), float64(b.Dy()), nil
}

// PageSize is PageBounds without the error, zero for unreadable pages.
func (d *Document) PageSize(i int) (float64, float64) {
	w, h, err := d.PageBounds(i)
	if err != nil {
		return 0, 0
	}
	return w, h
}

// Render draws page i at scale, then turns it clockwise by rotation degrees.
func (d *Document) Render(i int, scale float64, rotation int) (*Surface, error) {
	if err := d.checkPage(i); err != nil {
		return nil, err
	}

	if scale <= 0 {
		scale = 1
	}

	img, err := d.doc.ImageDPI(i, d.cfg.BaseDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", i, err)
	}

	rotated := Rotate(img, rotation)
	b := rotated.Bounds()

	return &Surface{
		PageIndex: i,
		Image:     rotated,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}

// Thumbnails renders every page at the configured thumbnail scale.
func (d *Document) Thumbnails(ctx context.Context) ([]*Surface, error) {
	n := d.PageCount()
	surfaces := make([]*Surface, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			s, err := d.Render(i, d.cfg.ThumbnailScale, 0)
			if err != nil {
				return err
			}

			surfaces[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return surfaces, nil
}
