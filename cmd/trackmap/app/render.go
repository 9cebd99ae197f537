package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/golang/geo/r2"
	"github.com/lucasb-eyer/go-colorful"
)

const (
	pixelsPerLabel = 80.0
	maxDimension   = 10_000
	trackWidth     = 2
	markerSize     = 5

	// Default border sizes in pixels
	defaultTopBorder    = 30
	defaultLeftBorder   = 60
	defaultBottomBorder = 30
	defaultRightBorder  = 30
)

var ErrImageTooLarge = errors.New("track map exceeds the maximum image size")

// BorderConfig defines the sizes of white space around the map
type BorderConfig struct {
	Top    int // Space for the east scale
	Left   int // Space for the north scale
	Bottom int // Space above the info block
	Right  int // Right padding
}

// RenderConfig holds all configuration options for the track map
type RenderConfig struct {
	Scale         float64 // Pixels per meter
	SafetyMargin  float64 // Ring drawn around every obstacle, meters
	FontSize      float64 // Font size in points
	NoAnnotations bool

	BorderConfig BorderConfig
}

// TrackRenderer draws a flown mission onto a raster map. North is up.
type TrackRenderer struct {
	config RenderConfig
}

// NewTrackRenderer creates a new renderer, zero values take the defaults
func NewTrackRenderer(config RenderConfig) (*TrackRenderer, error) {
	if config.Scale <= 0 {
		return nil, fmt.Errorf("scale must be positive: %g", config.Scale)
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &TrackRenderer{config: config}, nil
}

// mapArea translates local north/east coordinates into image pixels.
type mapArea struct {
	rect   image.Rectangle
	bounds r2.Rect
	scale  float64
}

func (m mapArea) project(p r2.Point) (float64, float64) {
	x := float64(m.rect.Min.X) + (p.Y-m.bounds.Y.Lo)*m.scale
	y := float64(m.rect.Min.Y) + (m.bounds.X.Hi-p.X)*m.scale
	return x, y
}

func (m mapArea) pixel(p r2.Point) image.Point {
	x, y := m.project(p)
	return image.Pt(int(math.Round(x)), int(math.Round(y)))
}

// Render creates an image of the track with annotations
func (r *TrackRenderer) Render(track *TrackData) (*image.RGBA, error) {
	width := int(math.Ceil(track.Bounds.Y.Length() * r.config.Scale))
	height := int(math.Ceil(track.Bounds.X.Length() * r.config.Scale))

	var ann *annotator
	infoHeight := 0
	if !r.config.NoAnnotations {
		var err error
		if ann, err = newAnnotator(r.config.FontSize); err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		infoHeight = ann.lineHeight() * len(infoLines(track))
	}

	borders := r.config.BorderConfig
	fullWidth := width + borders.Left + borders.Right
	fullHeight := height + borders.Top + borders.Bottom + infoHeight
	if fullWidth > maxDimension || fullHeight > maxDimension {
		return nil, fmt.Errorf("%w: %dx%d pixels, try a smaller scale", ErrImageTooLarge, fullWidth, fullHeight)
	}

	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	area := mapArea{
		rect:   image.Rect(borders.Left, borders.Top, borders.Left+width, borders.Top+height),
		bounds: track.Bounds,
		scale:  r.config.Scale,
	}

	step := gridStep(r.config.Scale)
	r.drawGrid(img, area, step)
	r.drawObstacles(img, area, track)
	r.drawTrack(img, area, track)
	r.drawMarkers(img, area, track)

	if ann != nil {
		if err := ann.annotate(img, area, step, track); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	return img, nil
}

func (r *TrackRenderer) drawGrid(img *image.RGBA, area mapArea, step float64) {
	for n := math.Ceil(area.bounds.X.Lo/step) * step; n <= area.bounds.X.Hi; n += step {
		_, y := area.project(r2.Point{X: n})
		for x := area.rect.Min.X; x < area.rect.Max.X; x++ {
			img.Set(x, int(math.Round(y)), gridColor)
		}
	}
	for e := math.Ceil(area.bounds.Y.Lo/step) * step; e <= area.bounds.Y.Hi; e += step {
		x, _ := area.project(r2.Point{Y: e})
		for y := area.rect.Min.Y; y < area.rect.Max.Y; y++ {
			img.Set(int(math.Round(x)), y, gridColor)
		}
	}
}

func (r *TrackRenderer) drawObstacles(img *image.RGBA, area mapArea, track *TrackData) {
	ring := tint(safetyColor, 0.75)
	for _, o := range track.Obstacles {
		if r.config.SafetyMargin > 0 {
			fillCircle(img, area, o.Center(), o.Radius()+r.config.SafetyMargin, ring)
			strokeCircle(img, area, o.Center(), o.Radius()+r.config.SafetyMargin, safetyColor)
		}
	}
	// separate pass so rings never cover a neighbouring obstacle
	for _, o := range track.Obstacles {
		fillCircle(img, area, o.Center(), o.Radius(), obstacleColor)
	}
}

func (r *TrackRenderer) drawTrack(img *image.RGBA, area mapArea, track *TrackData) {
	ramp := NewSpeedRamp(track.Report.MaxSpeed, defaultRampSize)
	for _, s := range track.Segments {
		drawLine(img, area, s.From, s.To, ramp.Color(s.Speed))
	}
}

func (r *TrackRenderer) drawMarkers(img *image.RGBA, area mapArea, track *TrackData) {
	half := markerSize / 2
	for _, e := range track.Events {
		c := area.pixel(e.Position.Horizontal())
		rect := image.Rect(c.X-half, c.Y-half, c.X+half+1, c.Y+half+1)
		draw.Draw(img, rect, image.NewUniform(markerColor(e.Kind)), image.Point{}, draw.Src)
	}
}

func fillCircle(img *image.RGBA, area mapArea, center r2.Point, radius float64, c color.Color) {
	cx, cy := area.project(center)
	rpx := radius * area.scale

	for y := int(math.Floor(cy - rpx)); y <= int(math.Ceil(cy+rpx)); y++ {
		for x := int(math.Floor(cx - rpx)); x <= int(math.Ceil(cx+rpx)); x++ {
			if math.Hypot(float64(x)-cx, float64(y)-cy) <= rpx {
				img.Set(x, y, c)
			}
		}
	}
}

func strokeCircle(img *image.RGBA, area mapArea, center r2.Point, radius float64, c colorful.Color) {
	cx, cy := area.project(center)
	rpx := radius * area.scale
	if rpx <= 0 {
		return
	}

	step := 0.5 / rpx
	for a := 0.0; a < 2*math.Pi; a += step {
		img.Set(int(math.Round(cx+rpx*math.Cos(a))), int(math.Round(cy+rpx*math.Sin(a))), c)
	}
}

func drawLine(img *image.RGBA, area mapArea, from, to r2.Point, c color.Color) {
	x0, y0 := area.project(from)
	x1, y1 := area.project(to)

	steps := int(math.Ceil(2 * math.Max(math.Abs(x1-x0), math.Abs(y1-y0))))
	for i := 0; i <= steps; i++ {
		t := 0.0
		if steps > 0 {
			t = float64(i) / float64(steps)
		}

		x := int(math.Round(x0 + (x1-x0)*t))
		y := int(math.Round(y0 + (y1-y0)*t))
		for dy := 0; dy < trackWidth; dy++ {
			for dx := 0; dx < trackWidth; dx++ {
				img.Set(x+dx, y+dy, c)
			}
		}
	}
}

// gridStep picks a round grid spacing in meters that keeps labels readable.
func gridStep(scale float64) float64 {
	steps := []float64{0.5, 1, 2, 5, 10, 20, 50, 100, 200, 500}
	for _, step := range steps {
		if step*scale >= pixelsPerLabel {
			return step
		}
	}
	return steps[len(steps)-1]
}
