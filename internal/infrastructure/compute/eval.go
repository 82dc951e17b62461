package compute

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"

	"geostack_service/internal/domain/model"
)

const (
	qaBand         = "QA60"
	cloudBitMask   = 1 << 10
	cirrusBitMask  = 1 << 11
	reflectanceDiv = 10000
)

// evaluator walks an expression graph per pixel. Callers hold the
// backend's read lock for its whole lifetime.
type evaluator struct {
	backend *MemoryBackend
	bound   orb.Bound
	scale   float64
	scenes  map[*model.Composite][]Scene
}

func newEvaluator(b *MemoryBackend, bound orb.Bound, scale float64) *evaluator {
	return &evaluator{backend: b, bound: bound, scale: scale, scenes: make(map[*model.Composite][]Scene)}
}

// row evaluates every band; pixels where any band is masked are dropped.
func (ev *evaluator) row(stack model.FeatureStack, p orb.Point) (model.SampleRow, bool) {
	values := make(map[string]float64, len(stack.Bands))
	for _, b := range stack.Bands {
		v, ok := ev.eval(b.Expr, p)
		if !ok {
			return model.SampleRow{}, false
		}
		values[b.Name] = v
	}
	return model.SampleRow{Values: values, Point: p}, true
}

func (ev *evaluator) eval(e *model.Expr, p orb.Point) (float64, bool) {
	if e == nil {
		return 0, false
	}
	switch e.Op {
	case model.OpConstant:
		return e.Value, true
	case model.OpComposite:
		return ev.composite(e.Composite, e.Band, p)
	case model.OpBandMean:
		return ev.bandMean(e.Composite, p)
	case model.OpAdd, model.OpSubtract, model.OpMultiply, model.OpDivide:
		return ev.binary(e, p)
	case model.OpAbs:
		v, ok := ev.arg(e, p)
		return math.Abs(v), ok
	case model.OpMaxZero:
		v, ok := ev.arg(e, p)
		return math.Max(v, 0), ok
	case model.OpClamp:
		v, ok := ev.arg(e, p)
		return math.Min(math.Max(v, e.Min), e.Max), ok
	case model.OpSlope:
		dx, dy, ok := ev.gradient(e, p)
		if !ok {
			return 0, false
		}
		return math.Atan(math.Hypot(dx, dy)) * 180 / math.Pi, true
	case model.OpAspect:
		dx, dy, ok := ev.gradient(e, p)
		if !ok {
			return 0, false
		}
		return aspectDegrees(dx, dy), true
	}
	return 0, false
}

func (ev *evaluator) arg(e *model.Expr, p orb.Point) (float64, bool) {
	if len(e.Args) != 1 {
		return 0, false
	}
	return ev.eval(e.Args[0], p)
}

func (ev *evaluator) binary(e *model.Expr, p orb.Point) (float64, bool) {
	if len(e.Args) != 2 {
		return 0, false
	}
	a, okA := ev.eval(e.Args[0], p)
	b, okB := ev.eval(e.Args[1], p)
	if !okA || !okB {
		return 0, false
	}
	switch e.Op {
	case model.OpAdd:
		return a + b, true
	case model.OpSubtract:
		return a - b, true
	case model.OpMultiply:
		return a * b, true
	default:
		if b == 0 {
			return 0, true
		}
		return a / b, true
	}
}

// gradient returns the east and north elevation gradients (m/m) of the
// single argument using central differences one pixel apart.
func (ev *evaluator) gradient(e *model.Expr, p orb.Point) (dx, dy float64, ok bool) {
	if len(e.Args) != 1 {
		return 0, 0, false
	}
	dLat, dLon := pixelStep(ev.scale, p.Lat())
	east, okE := ev.eval(e.Args[0], orb.Point{p.Lon() + dLon, p.Lat()})
	west, okW := ev.eval(e.Args[0], orb.Point{p.Lon() - dLon, p.Lat()})
	north, okN := ev.eval(e.Args[0], orb.Point{p.Lon(), p.Lat() + dLat})
	south, okS := ev.eval(e.Args[0], orb.Point{p.Lon(), p.Lat() - dLat})
	if !okE || !okW || !okN || !okS {
		return 0, 0, false
	}
	return (east - west) / (2 * ev.scale), (north - south) / (2 * ev.scale), true
}

// aspectDegrees is the downslope bearing clockwise from north in [0, 360).
// Flat terrain reports 0.
func aspectDegrees(dx, dy float64) float64 {
	if dx == 0 && dy == 0 {
		return 0
	}
	deg := math.Atan2(-dx, -dy) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

func (ev *evaluator) filtered(c *model.Composite) []Scene {
	if scenes, ok := ev.scenes[c]; ok {
		return scenes
	}
	scenes, err := ev.backend.filter(c.Query, ev.bound)
	if err != nil {
		scenes = nil
	}
	ev.scenes[c] = scenes
	return scenes
}

// pixelValues collects the per-scene values of one band at p after
// preprocessing.
func (ev *evaluator) pixelValues(c *model.Composite, band string, p orb.Point) []float64 {
	var vals []float64
	for _, s := range ev.filtered(c) {
		r, ok := s.Bands[band]
		if !ok {
			continue
		}
		v, ok := r.At(p)
		if !ok {
			continue
		}
		if c.Query.Preprocess == model.PreprocessS2CloudMask {
			if cloudy(s, p) {
				continue
			}
			v /= reflectanceDiv
		}
		vals = append(vals, v)
	}
	return vals
}

func cloudy(s Scene, p orb.Point) bool {
	qa, ok := s.Bands[qaBand]
	if !ok {
		return false
	}
	v, ok := qa.At(p)
	if !ok {
		return true
	}
	bits := int64(v)
	return bits&cloudBitMask != 0 || bits&cirrusBitMask != 0
}

func (ev *evaluator) composite(c *model.Composite, band string, p orb.Point) (float64, bool) {
	if c == nil {
		return 0, false
	}
	return reduce(c.Reducer, ev.pixelValues(c, band, p))
}

func (ev *evaluator) bandMean(c *model.Composite, p orb.Point) (float64, bool) {
	if c == nil {
		return 0, false
	}
	names := make(map[string]struct{})
	for _, s := range ev.filtered(c) {
		for name := range s.Bands {
			names[name] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var per []float64
	for _, name := range sorted {
		if v, ok := reduce(c.Reducer, ev.pixelValues(c, name, p)); ok {
			per = append(per, v)
		}
	}
	if len(per) == 0 {
		return 0, false
	}
	return stat.Mean(per, nil), true
}

func reduce(r model.Reducer, vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	switch r {
	case model.ReducerMean:
		return stat.Mean(vals, nil), true
	case model.ReducerStdDev:
		return stat.PopStdDev(vals, nil), true
	default:
		return median(vals), true
	}
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
