// Package preview renders a quicklook PNG of an elevation grid.
package preview

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"

	"topofetch/core/grid"
	"topofetch/internal/errors"
)

// Stop is one colour on the elevation ramp; Position runs from 0 (lowest) to 1 (highest)
type Stop struct {
	Position float64
	Color    colorful.Color
}

// Options carry the rendering configuration explicitly
type Options struct {
	Ramp []Stop

	// ShadeWeight is how strongly the hillshade darkens the ramp, 0..1
	ShadeWeight float64
}

func hex(s string) colorful.Color {
	c, _ := colorful.Hex(s)
	return c
}

// DefaultOptions is a hypsometric ramp from lowland green to summit white
func DefaultOptions() Options {
	return Options{
		Ramp: []Stop{
			{0.00, hex("#2f6b3a")},
			{0.25, hex("#8fb569")},
			{0.50, hex("#e8d48a")},
			{0.75, hex("#a0703c")},
			{1.00, hex("#f5f5f5")},
		},
		ShadeWeight: 0.6,
	}
}

// Color interpolates the ramp in HCL space at t in [0, 1]
func (o Options) Color(t float64) colorful.Color {
	r := o.Ramp
	if len(r) == 0 {
		return colorful.Color{R: t, G: t, B: t}
	}
	if t <= r[0].Position {
		return r[0].Color
	}
	for i := 1; i < len(r); i++ {
		if t <= r[i].Position {
			span := r[i].Position - r[i-1].Position
			if span <= 0 {
				return r[i].Color
			}
			return r[i-1].Color.BlendHcl(r[i].Color, (t-r[i-1].Position)/span).Clamped()
		}
	}
	return r[len(r)-1].Color
}

// Range returns the minimum and maximum valid elevation
func Range(g *grid.Grid) (min, max float64, ok bool) {
	vals := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !g.IsNoData(v) {
			vals = append(vals, float64(v))
		}
	}
	if len(vals) == 0 {
		return 0, 0, false
	}
	return floats.Min(vals), floats.Max(vals), true
}

// Render draws g, shaded by hs when it is non-nil. No-data is transparent.
func Render(g, hs *grid.Grid, opts Options) (*image.NRGBA, error) {
	if hs != nil && (hs.Cols != g.Cols || hs.Rows != g.Rows) {
		return nil, errors.Newf(errors.TypeFormat, "hillshade is %dx%d but grid is %dx%d", hs.Cols, hs.Rows, g.Cols, g.Rows)
	}
	img := image.NewNRGBA(image.Rect(0, 0, g.Cols, g.Rows))

	lo, hi, ok := Range(g)
	if !ok {
		return img, nil
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			v := g.At(c, r)
			if g.IsNoData(v) {
				continue
			}
			col := opts.Color((float64(v) - lo) / span)
			if hs != nil {
				if s := hs.At(c, r); !hs.IsNoData(s) {
					k := 1 - opts.ShadeWeight + opts.ShadeWeight*float64(s)/255
					col = colorful.Color{R: col.R * k, G: col.G * k, B: col.B * k}.Clamped()
				}
			}
			cr, cg, cb := col.RGB255()
			img.SetNRGBA(c, r, color.NRGBA{R: cr, G: cg, B: cb, A: 255})
		}
	}
	return img, nil
}

// Write renders g and saves it as a PNG at path
func Write(g, hs *grid.Grid, path string, opts Options) error {
	img, err := Render(g, hs, opts)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Internal("cannot create preview", err).WithContext("path", path)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Internal("cannot encode preview", err).WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.Internal("cannot close preview", err).WithContext("path", path)
	}
	return nil
}
