// Package render draws traced frames to raster images.
package render

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/signalsfoundry/refraction-simulator/core"
	"github.com/signalsfoundry/refraction-simulator/model"
)

// ErrNilFrame is returned when asked to draw nothing.
var ErrNilFrame = errors.New("render: nil frame")

var (
	skyTop       = colorful.Color{R: 0x20 / 255.0, G: 0x30 / 255.0, B: 0x80 / 255.0}
	skyBottom    = colorful.Color{R: 0x40 / 255.0, G: 0x70 / 255.0, B: 0xC0 / 255.0}
	earthColor   = colorful.Color{R: 184.0 / 255, G: 133.0 / 255, B: 38.0 / 255}
	terrainColor = colorful.Color{R: 0, G: 0.5, B: 0}
	thinLayer    = colorful.Color{R: 200.0 / 255, G: 200.0 / 255, B: 1}
	denseLayer   = colorful.Color{R: 1, G: 1, B: 1}
)

// Options control the output raster.
type Options struct {
	Width  int
	Height int
	// Labels draws altitude and index annotations.
	Labels bool
}

// DefaultOptions renders at world canvas size with labels.
func DefaultOptions() Options {
	return Options{
		Width:  int(model.CanvasWidth),
		Height: int(model.CanvasHeight),
		Labels: true,
	}
}

// Renderer draws frames.
type Renderer struct {
	opts Options
}

// New returns a Renderer; zero dimensions fall back to DefaultOptions.
func New(opts Options) *Renderer {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	return &Renderer{opts: opts}
}

// Draw renders f into a fresh context.
func (r *Renderer) Draw(f *core.Frame) (*gg.Context, error) {
	if f == nil {
		return nil, ErrNilFrame
	}
	dc := gg.NewContext(r.opts.Width, r.opts.Height)
	r.drawSky(dc)

	zoom := f.Scene.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	// Pixels scale with zoom; keep strokes one screen pixel wide.
	px := 1 / zoom

	dc.Push()
	dc.Scale(zoom, zoom)
	dc.Translate(-f.Scene.ViewX, 0)

	r.drawEnvironment(dc, f, px)
	drawRays(dc, f.Rays, px)
	drawViewVectors(dc, f, px)
	drawBodies(dc, f.Scene, px)

	dc.Pop()
	return dc, nil
}

// Image renders f and returns the raster.
func (r *Renderer) Image(f *core.Frame) (image.Image, error) {
	dc, err := r.Draw(f)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// WritePNG renders f as PNG to w.
func (r *Renderer) WritePNG(w io.Writer, f *core.Frame) error {
	dc, err := r.Draw(f)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// SavePNG renders f as PNG to path.
func (r *Renderer) SavePNG(path string, f *core.Frame) error {
	dc, err := r.Draw(f)
	if err != nil {
		return err
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("render: save %s: %w", path, err)
	}
	return nil
}

func (r *Renderer) drawSky(dc *gg.Context) {
	grad := gg.NewLinearGradient(0, 0, 0, float64(r.opts.Height))
	grad.AddColorStop(0, skyTop)
	grad.AddColorStop(1, skyBottom)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(r.opts.Width), float64(r.opts.Height))
	dc.Fill()
}

func (r *Renderer) drawEnvironment(dc *gg.Context, f *core.Frame, px float64) {
	dc.SetColor(earthColor)
	dc.DrawRectangle(0, model.GroundY, model.EarthWidth, model.EarthHeight)
	dc.Fill()

	dc.SetColor(terrainColor)
	for _, t := range f.Scene.Terrain {
		apex := t.Apex()
		dc.NewSubPath()
		dc.MoveTo(t.X, t.GroundY)
		dc.LineTo(apex.X, apex.Y)
		dc.LineTo(t.X+t.Width, t.GroundY)
		dc.ClosePath()
		dc.Fill()
	}

	for i, c := range f.Scene.Clouds {
		if i == f.Scene.MoonIndex {
			dc.SetRGBA(0.85, 0.85, 0.85, 0.9)
		} else {
			dc.SetRGBA(200.0/255, 200.0/255, 200.0/255, 0.5)
		}
		dc.DrawRoundedRectangle(c.X, c.Y, c.Width, c.Height, 5)
		dc.Fill()
	}

	lo, hi := indexBounds(f.Scene.Layers)
	dc.SetLineWidth(px)
	for _, l := range f.Scene.Layers {
		t := 0.0
		if hi > lo {
			t = (l.Index - lo) / (hi - lo)
		}
		c := thinLayer.BlendLab(denseLayer, t)
		dc.SetRGBA(c.R, c.G, c.B, 0.2)
		dc.DrawLine(0, l.Y, model.CanvasWidth, l.Y)
		dc.Stroke()

		if r.opts.Labels {
			dc.SetRGB(1, 1, 1)
			altKm := (model.GroundY - l.Y) * model.KmPerPixel
			dc.DrawString(fmt.Sprintf("%.0fkm, %.2f", altKm, l.Index), f.Scene.ViewX+10, l.Y-2)
		}
	}

	if r.opts.Labels {
		dc.SetRGB(1, 1, 1)
		altKm := (model.GroundY - f.Scene.Sun.Y) * model.KmPerPixel
		dc.DrawString(fmt.Sprintf("%.0fkm", altKm), f.Scene.ViewX+10, f.Scene.Sun.Y-2)
		dc.DrawString(fmt.Sprintf("Flat Earth width %.0fkm", model.EarthWidth*model.KmPerPixel),
			f.Scene.ViewX+10, model.GroundY+model.EarthHeight/2+5)
	}
}

func indexBounds(layers []model.RefractiveLayer) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, l := range layers {
		lo = math.Min(lo, l.Index)
		hi = math.Max(hi, l.Index)
	}
	return lo, hi
}

// reflectionLength is how far a reflection is drawn back up from its boundary.
const reflectionLength = 40.0

func drawRays(dc *gg.Context, rays []core.TraceResult, px float64) {
	dc.SetLineWidth(px)
	for _, ray := range rays {
		if ray.Discarded {
			continue
		}
		for _, seg := range ray.Segments {
			if len(seg.Points) < 2 {
				continue
			}
			if seg.Shadowed {
				dc.SetRGBA(0, 0, 0, 0.5)
			} else {
				dc.SetRGBA(1, 1, 0, 0.25)
			}
			dc.MoveTo(seg.Points[0].X, seg.Points[0].Y)
			for _, p := range seg.Points[1:] {
				dc.LineTo(p.X, p.Y)
			}
			dc.Stroke()
		}

		for _, refl := range ray.Reflections {
			end := model.Pt(
				refl.At.X+reflectionLength*math.Cos(refl.Heading),
				refl.At.Y+reflectionLength*math.Sin(refl.Heading),
			)
			dc.SetRGBA(1, 1, 0, math.Min(0.25, refl.Strength))
			dc.DrawLine(refl.At.X, refl.At.Y, end.X, end.Y)
			dc.Stroke()
		}
	}
}

func drawViewVectors(dc *gg.Context, f *core.Frame, px float64) {
	if f.Apparent == nil || len(f.Hits) < 2 {
		return
	}
	dc.SetLineWidth(px)
	dc.SetRGBA(0, 1, 1, 0.5)
	for _, v := range f.ViewVectors {
		dc.DrawLine(v.From.X, v.From.Y, v.To.X, v.To.Y)
		dc.Stroke()
	}

	first, last := f.Hits[0], f.Hits[len(f.Hits)-1]
	dc.SetRGBA(1, 0, 1, 0.5)
	dc.DrawLine((first.X+last.X)/2, (first.Y+last.Y)/2, f.Scene.Sun.X, f.Scene.Sun.Y)
	dc.Stroke()

	dc.SetRGB(0, 0, 1)
	dc.DrawCircle(f.Apparent.Position.X, f.Apparent.Position.Y, 3)
	dc.Fill()
}

func drawBodies(dc *gg.Context, scene core.SceneSnapshot, px float64) {
	dc.SetLineWidth(px)
	dc.SetRGB(0, 1, 1)
	dc.DrawCircle(scene.Observer.X, scene.Observer.Y, model.ObserverRadius)
	dc.Stroke()

	dc.SetRGB(1, 1, 0)
	dc.DrawCircle(scene.Sun.X, scene.Sun.Y, model.SunRadius)
	dc.Fill()
}
