package compute

import (
	"math"

	"github.com/paulmach/orb"
)

// Raster yields a pixel value at a point; ok is false where the raster is
// masked or has no coverage.
type Raster interface {
	At(p orb.Point) (float64, bool)
}

// ConstantRaster covers the whole globe with one value.
type ConstantRaster float64

func (c ConstantRaster) At(orb.Point) (float64, bool) { return float64(c), true }

// RasterFunc adapts a function to Raster.
type RasterFunc func(p orb.Point) (float64, bool)

func (f RasterFunc) At(p orb.Point) (float64, bool) { return f(p) }

// Grid is a north-up raster anchored at its north-west corner. NaN cells
// are masked.
type Grid struct {
	West, North float64
	PixelDeg    float64
	Width       int
	Height      int
	Values      []float64
}

func NewGrid(west, north, pixelDeg float64, width, height int) *Grid {
	values := make([]float64, width*height)
	for i := range values {
		values[i] = math.NaN()
	}
	return &Grid{West: west, North: north, PixelDeg: pixelDeg, Width: width, Height: height, Values: values}
}

func (g *Grid) Set(col, row int, v float64) {
	g.Values[row*g.Width+col] = v
}

func (g *Grid) At(p orb.Point) (float64, bool) {
	col := int(math.Floor((p.Lon() - g.West) / g.PixelDeg))
	row := int(math.Floor((g.North - p.Lat()) / g.PixelDeg))
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return 0, false
	}
	v := g.Values[row*g.Width+col]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// metersPerDegree returns the length in metres of one degree of latitude
// and of longitude at the given latitude.
func metersPerDegree(lat float64) (latM, lonM float64) {
	phi := lat * math.Pi / 180
	latM = 111132.92 - 559.82*math.Cos(2*phi)
	lonM = 111412.84 * math.Cos(phi)
	return latM, lonM
}

// pixelStep converts a ground scale in metres into degree steps at lat.
func pixelStep(scale, lat float64) (dLat, dLon float64) {
	latM, lonM := metersPerDegree(lat)
	if lonM < 1 {
		lonM = 1
	}
	return scale / latM, scale / lonM
}

// pixelCenters lays a grid of pixel centres at the given scale over b.
func pixelCenters(b orb.Bound, scale float64) []orb.Point {
	midLat := (b.Min.Lat() + b.Max.Lat()) / 2
	dLat, dLon := pixelStep(scale, midLat)

	var pts []orb.Point
	for lat := b.Min.Lat() + dLat/2; lat < b.Max.Lat(); lat += dLat {
		for lon := b.Min.Lon() + dLon/2; lon < b.Max.Lon(); lon += dLon {
			pts = append(pts, orb.Point{lon, lat})
		}
	}
	return pts
}

// pixelCount estimates the number of pixel centres pixelCenters would lay.
func pixelCount(b orb.Bound, scale float64) float64 {
	midLat := (b.Min.Lat() + b.Max.Lat()) / 2
	dLat, dLon := pixelStep(scale, midLat)
	return math.Ceil((b.Max.Lat()-b.Min.Lat())/dLat) * math.Ceil((b.Max.Lon()-b.Min.Lon())/dLon)
}
