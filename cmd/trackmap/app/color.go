package app

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/roman-kulish/drone-navigator/internal/mission"
)

const (
	hueSlow = 236.0
	hueFast = 0.0

	defaultRampSize = 64
)

var (
	backgroundColor = color.White
	textColor       = color.Black
	gridColor       = color.RGBA{R: 0xe6, G: 0xe6, B: 0xe6, A: 0xff}
	obstacleColor   = colorful.Color{R: 0.55, G: 0.55, B: 0.55}
	safetyColor     = colorful.Color{R: 0.91, G: 0.64, B: 0.24}
)

var markerColors = map[mission.EventKind]color.Color{
	mission.EventPreWaypointCheck: color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff},
	mission.EventAvoidedAtStart:   color.RGBA{R: 0xd0, G: 0x1c, B: 0x8b, A: 0xff},
	mission.EventReachedWaypoint:  color.RGBA{R: 0x1a, G: 0x98, B: 0x50, A: 0xff},
}

// speedColor maps a speed onto a blue to red hue ramp.
func speedColor(speed, maxSpeed float64) color.Color {
	if maxSpeed <= 0 {
		return colorful.Hsv(hueSlow, 1, 0.9)
	}

	hue := hueSlow - (speed/maxSpeed)*(hueSlow-hueFast)
	hue = math.Min(math.Max(hue, hueFast), hueSlow)

	return colorful.Hsv(hue, 1, 0.9)
}

// SpeedRamp is a pre-computed speed to color lookup table
type SpeedRamp struct {
	colors   []color.Color
	maxSpeed float64
}

func NewSpeedRamp(maxSpeed float64, size int) *SpeedRamp {
	if size < 2 {
		size = defaultRampSize
	}

	r := &SpeedRamp{colors: make([]color.Color, size), maxSpeed: maxSpeed}
	for i := range r.colors {
		r.colors[i] = speedColor(float64(i)/float64(size-1)*maxSpeed, maxSpeed)
	}
	return r
}

func (r *SpeedRamp) Color(speed float64) color.Color {
	if r.maxSpeed <= 0 {
		return r.colors[0]
	}

	i := int(math.Round(speed / r.maxSpeed * float64(len(r.colors)-1)))
	i = min(max(i, 0), len(r.colors)-1)
	return r.colors[i]
}

// tint blends c towards the background, t = 0 keeps c.
func tint(c colorful.Color, t float64) color.Color {
	bg, _ := colorful.MakeColor(backgroundColor)
	return c.BlendLab(bg, t).Clamped()
}

func markerColor(kind mission.EventKind) color.Color {
	if c, ok := markerColors[kind]; ok {
		return c
	}
	return textColor
}
