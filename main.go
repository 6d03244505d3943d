package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/mgmeyers/pdfworkspace/overlay"
	"github.com/mgmeyers/pdfworkspace/pdfutils"
	"github.com/mgmeyers/pdfworkspace/render"
	"github.com/mgmeyers/pdfworkspace/storage"
	"github.com/mgmeyers/pdfworkspace/upload"
	"github.com/mgmeyers/pdfworkspace/workspace"
)

type Globals struct {
	Config  string `short:"c" type:"path" help:"Path to config file"`
	Verbose bool   `short:"v" help:"Enable debug logging"`
}

type InspectCmd struct {
	InputPDF string `arg:"" name:"input" help:"Path to input PDF" type:"path"`
}

func (c *InspectCmd) Run(env *Env) error {
	f, err := os.Open(c.InputPDF)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := pdfutils.Inspect(f)
	if err != nil {
		return err
	}

	logOutput(info)
	return nil
}

type AnnotationsCmd struct {
	NoWrite         bool   `short:"w" help:"Do not save images to disk"`
	ImageOutputPath string `short:"o" type:"path" help:"Output path of image annotations"`
	ImageBaseName   string `short:"n" help:"Base name of saved images"`
	ImageFormat     string `short:"f" enum:"jpg,png" default:"jpg" help:"Image format. Supports png and jpg"`
	ImageDPI        int    `short:"d" default:"120" help:"Image DPI"`
	ImageQuality    int    `short:"q" default:"90" help:"Image quality. Only applies to jpg images"`

	IgnoreBefore time.Time `short:"b" help:"Ignore annotations added before this date. Must be ISO 8601 formatted"`

	InputPDF string `arg:"" name:"input" help:"Path to input PDF" type:"path"`
}

func (c *AnnotationsCmd) Run(env *Env) error {
	f, err := os.Open(c.InputPDF)
	if err != nil {
		return err
	}
	defer f.Close()

	annots, err := pdfutils.ReadAnnotations(f, pdfutils.ReadOptions{IgnoreBefore: c.IgnoreBefore})
	if err != nil {
		return err
	}

	if c.ImageBaseName != "" && c.ImageOutputPath != "" {
		if err := c.saveRegions(env, annots); err != nil {
			return err
		}
	}

	logOutput(annots)
	return nil
}

// saveRegions crops every rectangle annotation out of its rendered page.
func (c *AnnotationsCmd) saveRegions(env *Env, annots []*pdfutils.Annotation) error {
	opts := pdfutils.ImageOptions{
		OutputPath: c.ImageOutputPath,
		BaseName:   c.ImageBaseName,
		Format:     c.ImageFormat,
		Quality:    c.ImageQuality,
	}

	if c.NoWrite {
		for _, a := range annots {
			if a.Type == pdfutils.Rectangle {
				a.ImagePath = pdfutils.RegionImagePath(opts, a)
				a.Type = pdfutils.Image
			}
		}
		return nil
	}

	doc, err := render.Open(c.InputPDF, render.Config{BaseDPI: float64(c.ImageDPI)})
	if err != nil {
		return err
	}
	defer doc.Close()

	pages := map[int]*render.Surface{}

	for _, a := range annots {
		if a.Type != pdfutils.Rectangle {
			continue
		}

		surface, ok := pages[a.Page]
		if !ok {
			surface, err = doc.Render(a.Page-1, 1, 0)
			if err != nil {
				return err
			}
			pages[a.Page] = surface
		}

		width, _, err := doc.PageBounds(a.Page - 1)
		if err != nil {
			return err
		}

		if err := pdfutils.SaveRegion(surface.Image, width, a, opts); err != nil {
			env.Logger.Warn("skipping region image",
				zap.String("id", a.ID),
				zap.Error(err))
		}
	}

	return nil
}

type RenderCmd struct {
	Page     int     `short:"p" default:"1" help:"Page number, starting at 1"`
	Scale    float64 `short:"s" default:"1" help:"Zoom scale"`
	Rotation int     `short:"r" default:"0" help:"Clockwise rotation in degrees"`
	Output   string  `short:"o" type:"path" required:"" help:"Output image path"`
	Format   string  `short:"f" enum:"jpg,png" default:"png" help:"Image format. Supports png and jpg"`
	Quality  int     `short:"q" default:"90" help:"Image quality. Only applies to jpg images"`

	InputPDF string `arg:"" name:"input" help:"Path to input PDF" type:"path"`
}

func (c *RenderCmd) Run(env *Env) error {
	doc, err := render.Open(c.InputPDF, env.Config.Render)
	if err != nil {
		return err
	}
	defer doc.Close()

	surface, err := doc.Render(c.Page-1, c.Scale, c.Rotation)
	if err != nil {
		return err
	}

	if err := pdfutils.WriteImage(surface.Image, c.Output, c.Format, c.Quality); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.Output, err)
	}

	logOutput(map[string]interface{}{
		"page":   c.Page,
		"width":  surface.Width,
		"height": surface.Height,
		"path":   c.Output,
	})
	return nil
}

type ThumbsCmd struct {
	Output string `short:"o" type:"path" required:"" help:"Output directory"`

	InputPDF string `arg:"" name:"input" help:"Path to input PDF" type:"path"`
}

func (c *ThumbsCmd) Run(env *Env) error {
	doc, err := render.Open(c.InputPDF, env.Config.Render)
	if err != nil {
		return err
	}
	defer doc.Close()

	surfaces, err := doc.Thumbnails(context.Background())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.Output, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := []string{}
	base := trimExt(filepath.Base(c.InputPDF))

	for _, s := range surfaces {
		p := filepath.Join(c.Output, fmt.Sprintf("%s-%d.png", base, s.PageIndex+1))
		if err := pdfutils.WriteImage(s.Image, p, "png", 0); err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
		paths = append(paths, p)
	}

	logOutput(paths)
	return nil
}

type ReplayCmd struct {
	Import bool   `short:"i" help:"Load the PDF's own annotations before replaying"`
	Output string `short:"o" type:"path" help:"Write the final page with its overlay to this png"`

	InputPDF string `arg:"" name:"input" help:"Path to input PDF" type:"path"`
	Events   string `arg:"" name:"events" help:"Path to YAML event script" type:"path"`
}

func (c *ReplayCmd) Run(env *Env) error {
	doc, err := render.Open(c.InputPDF, env.Config.Render)
	if err != nil {
		return err
	}
	defer doc.Close()

	events, err := workspace.LoadEvents(c.Events)
	if err != nil {
		return err
	}

	ws := workspace.New(doc,
		workspace.WithLogger(env.Logger),
		workspace.WithZoomStep(env.Config.Viewer.ZoomStep),
		workspace.WithOverlayOptions(overlay.WithColor(env.Config.Viewer.DefaultColor)),
		workspace.WithSessionOptions(workspace.WithSessionComplete(func(finished workspace.Phase) {
			env.Logger.Info("study period complete", zap.Stringer("phase", finished))
		})),
	)

	if c.Import {
		f, err := os.Open(c.InputPDF)
		if err != nil {
			return err
		}
		annots, err := pdfutils.ReadAnnotations(f, pdfutils.ReadOptions{})
		f.Close()
		if err != nil {
			return err
		}
		ws.Overlay.Import(annots)
	}

	if err := ws.Replay(events); err != nil {
		return err
	}

	if c.Output != "" {
		v := ws.Controller.Snapshot()
		surface, err := doc.Render(v.PageIndex, v.Scale, v.Rotation)
		if err != nil {
			return err
		}

		frame := ws.Overlay.Frame(surface.Width, surface.Height)
		composed := workspace.Compose(surface.Image, frame, v.Pan.X, v.Pan.Y)

		if err := pdfutils.WriteImage(composed, c.Output, "png", 0); err != nil {
			return fmt.Errorf("failed to write %s: %w", c.Output, err)
		}
	}

	logOutput(replayOutput{
		Annotations: ws.Overlay.All(),
		Summary:     ws.Summary(),
	})
	return nil
}

type replayOutput struct {
	Annotations []*pdfutils.Annotation `json:"annotations"`
	Summary     workspace.Summary      `json:"summary"`
}

type UploadCmd struct {
	Title       string `short:"t" required:"" help:"Lesson title"`
	Description string `short:"D" help:"Lesson description"`

	File string `arg:"" name:"file" help:"PDF or Word document to upload" type:"path"`
}

func (c *UploadCmd) Run(env *Env) error {
	objects, err := storage.NewObjectStore(env.Config.Storage.Dir, env.Config.Storage.Bucket,
		storage.WithObjectLogger(env.Logger))
	if err != nil {
		return err
	}

	records, err := openRecords(env)
	if err != nil {
		return err
	}
	defer records.Close()

	pipeline := upload.New(objects, records,
		upload.WithOwner(env.Config.Upload.OwnerID),
		upload.WithMaxBytes(env.Config.Upload.MaxBytes),
		upload.WithTimeout(env.Config.UploadTimeout()),
		upload.WithLogger(env.Logger),
	)

	file, err := upload.FileFromPath(c.File)
	if err != nil {
		return err
	}

	if err := pipeline.ChooseFile(file); err != nil {
		return err
	}

	if _, err := pipeline.Submit(context.Background(), c.Title, c.Description); err != nil {
		return err
	}

	logOutput(pipeline.Session())
	return nil
}

type LessonsCmd struct{}

func (c *LessonsCmd) Run(env *Env) error {
	records, err := openRecords(env)
	if err != nil {
		return err
	}
	defer records.Close()

	lessons, err := records.List(context.Background(), env.Config.Upload.OwnerID)
	if err != nil {
		return err
	}

	logOutput(lessons)
	return nil
}

var cli struct {
	Globals

	Inspect     InspectCmd     `cmd:"" help:"Print page count and page sizes"`
	Annotations AnnotationsCmd `cmd:"" help:"Extract annotations as JSON"`
	Render      RenderCmd      `cmd:"" help:"Render one page to an image"`
	Thumbs      ThumbsCmd      `cmd:"" help:"Render a thumbnail of every page"`
	Replay      ReplayCmd      `cmd:"" help:"Replay viewer events and print the resulting annotations and study session"`
	Upload      UploadCmd      `cmd:"" help:"Upload a document and create its lesson record"`
	Lessons     LessonsCmd     `cmd:"" help:"List uploaded lessons"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("pdfworkspace"),
		kong.Description("View, annotate and upload PDF learning material."),
		kong.UsageOnError(),
	)

	env, err := newEnv(cli.Globals)
	endIfErr(err)

	defer env.Logger.Sync()

	endIfErr(ctx.Run(env))
}
