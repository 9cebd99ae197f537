package app

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/golang/geo/r2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 96.0
	fontSize       = 10.0
	spacing        = 1.4
	tickMarkLength = 5
)

type annotator struct {
	context  *freetype.Context
	fontFace font.Face
	size     float64
}

func newAnnotator(size float64) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.NewUniform(textColor))

	return &annotator{
		context: ctx,
		size:    size,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) lineHeight() int {
	return a.context.PointToFixed(a.size * spacing).Ceil()
}

func (a *annotator) annotate(img *image.RGBA, area mapArea, step float64, track *TrackData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	if err := a.drawEastScale(img, area, step); err != nil {
		return fmt.Errorf("drawing east scale: %w", err)
	}
	if err := a.drawNorthScale(img, area, step); err != nil {
		return fmt.Errorf("drawing north scale: %w", err)
	}
	if err := a.drawInfo(img, area, track); err != nil {
		return fmt.Errorf("drawing info: %w", err)
	}
	return nil
}

func (a *annotator) drawEastScale(img *image.RGBA, area mapArea, step float64) error {
	metrics := a.fontFace.Metrics()
	textY := area.rect.Min.Y - tickMarkLength - metrics.Descent.Round() - 2

	for e := math.Ceil(area.bounds.Y.Lo/step) * step; e <= area.bounds.Y.Hi; e += step {
		fx, _ := area.project(r2.Point{Y: e})
		x := int(math.Round(fx))

		for y := area.rect.Min.Y - tickMarkLength; y < area.rect.Min.Y; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatMeters(e)
		width := font.MeasureString(a.fontFace, label)
		if _, err := a.context.DrawString(label, freetype.Pt(x-width.Round()/2, textY)); err != nil {
			return fmt.Errorf("drawing label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawNorthScale(img *image.RGBA, area mapArea, step float64) error {
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for n := math.Ceil(area.bounds.X.Lo/step) * step; n <= area.bounds.X.Hi; n += step {
		_, fy := area.project(r2.Point{X: n})
		y := int(math.Round(fy))

		for x := area.rect.Min.X - tickMarkLength; x < area.rect.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := formatMeters(n)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(area.rect.Min.X-tickMarkLength-3-width.Round(), y+fontHeight/2-metrics.Descent.Round())
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfo(img *image.RGBA, area mapArea, track *TrackData) error {
	lines := infoLines(track)
	pt := freetype.Pt(area.rect.Min.X, img.Bounds().Max.Y-a.lineHeight()*len(lines))
	for _, line := range lines {
		pt.Y += a.context.PointToFixed(a.size * spacing)
		if _, err := a.context.DrawString(line, pt); err != nil {
			return fmt.Errorf("drawing info text: %w", err)
		}
	}
	return nil
}

func infoLines(track *TrackData) []string {
	report := track.Report

	lines := []string{
		fmt.Sprintf("Mission: %s; start: %s", track.Name, track.StartTime.Format(time.DateTime)),
		fmt.Sprintf("Samples: %s; flight time: %s; distance: %s m; max speed: %s m/s",
			humanize.Comma(int64(report.Samples)),
			report.TotalTime.Round(time.Millisecond),
			humanize.FtoaWithDigits(report.TotalDistance, 2),
			humanize.FtoaWithDigits(report.MaxSpeed, 2)),
		fmt.Sprintf("Avoidances: %d; smoothness: %s m²/s⁴",
			report.AvoidanceCount,
			humanize.FtoaWithDigits(report.Smoothness, 3)),
	}
	for _, o := range report.Obstacles {
		lines = append(lines, fmt.Sprintf("%s: closest %s m, clearance %s m",
			o.Obstacle,
			humanize.FtoaWithDigits(o.MinDistance, 2),
			humanize.FtoaWithDigits(o.Clearance, 2)))
	}
	return lines
}

func formatMeters(v float64) string {
	return humanize.FtoaWithDigits(v, 1) + " m"
}
