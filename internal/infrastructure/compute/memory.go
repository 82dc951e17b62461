package compute

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"gonum.org/v1/gonum/stat"

	"geostack_service/internal/domain/model"
)

// DefaultMaxPixels caps the pixel grid a single plan may lay over its region.
const DefaultMaxPixels = 4_000_000

// Scene is one image of a collection.
type Scene struct {
	ID         string
	Date       time.Time
	Footprint  orb.Bound
	Properties map[string]any
	Bands      map[string]Raster
}

func (s Scene) global() bool {
	return s.Footprint == orb.Bound{}
}

// Collection is a catalog entry. Static collections hold one image and
// ignore date windows.
type Collection struct {
	ID     string
	Static bool
	Scenes []Scene
}

// MemoryBackend evaluates deferred plans against in-process rasters. It
// implements the same surface as the remote client.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]Collection
	vectors     map[string]*geojson.FeatureCollection
	failures    map[string]error
	maxPixels   float64
	executed    int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		collections: make(map[string]Collection),
		vectors:     make(map[string]*geojson.FeatureCollection),
		failures:    make(map[string]error),
		maxPixels:   DefaultMaxPixels,
	}
}

func (m *MemoryBackend) AddCollection(c Collection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[c.ID] = c
}

// AddVector registers a feature collection under a dataset or asset id.
func (m *MemoryBackend) AddVector(id string, fc *geojson.FeatureCollection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = fc
}

// FailOn makes every catalog call touching id return err.
func (m *MemoryBackend) FailOn(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = err
}

// Executed returns how many plans were realized.
func (m *MemoryBackend) Executed() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.executed
}

func (m *MemoryBackend) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.failures[id]; ok {
		return false, err
	}
	_, isCollection := m.collections[id]
	_, isVector := m.vectors[id]
	return isCollection || isVector, nil
}

func (m *MemoryBackend) Describe(ctx context.Context, q model.CollectionQuery) (model.CollectionInfo, error) {
	if err := ctx.Err(); err != nil {
		return model.CollectionInfo{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.failures[q.Collection]; ok {
		return model.CollectionInfo{}, err
	}
	region, err := m.region(q.Region)
	if err != nil {
		return model.CollectionInfo{}, err
	}
	scenes, err := m.filter(q, region.Bound())
	if err != nil {
		return model.CollectionInfo{}, err
	}

	seen := make(map[string]struct{})
	var bands []string
	for _, s := range scenes {
		for name := range s.Bands {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				bands = append(bands, name)
			}
		}
	}
	sort.Strings(bands)
	return model.CollectionInfo{Count: len(scenes), Bands: bands}, nil
}

func (m *MemoryBackend) Features(ctx context.Context, q model.FeatureQuery) (*geojson.FeatureCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.failures[q.Dataset]; ok {
		return nil, err
	}
	fc, ok := m.vectors[q.Dataset]
	if !ok {
		return nil, fmt.Errorf("dataset %s not found", q.Dataset)
	}

	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if matchAll(f.Properties, q.Filters) {
			out.Append(f)
		}
	}
	return out, nil
}

func (m *MemoryBackend) Execute(ctx context.Context, plan model.Plan) (model.PlanResult, error) {
	m.mu.Lock()
	m.executed++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	region, err := m.region(plan.Region)
	if err != nil {
		return model.PlanResult{}, err
	}
	result := model.PlanResult{RegionMeans: make(map[string]float64)}
	if len(region) == 0 {
		return result, nil
	}
	result.AreaSqKm = geo.Area(region) / 1e6

	bound := region.Bound()
	if n := pixelCount(bound, plan.Sample.Scale); n > m.maxPixels {
		return model.PlanResult{}, fmt.Errorf("region needs %.0f pixels at %gm, limit is %.0f", n, plan.Sample.Scale, m.maxPixels)
	}

	var inside []orb.Point
	for _, p := range pixelCenters(bound, plan.Sample.Scale) {
		if planar.MultiPolygonContains(region, p) {
			inside = append(inside, p)
		}
	}

	ev := newEvaluator(m, bound, plan.Sample.Scale)
	for _, name := range plan.RegionMeans {
		band, ok := plan.Stack.Band(name)
		if !ok {
			continue
		}
		var vals []float64
		for _, p := range inside {
			if err := ctx.Err(); err != nil {
				return model.PlanResult{}, err
			}
			if v, ok := ev.eval(band.Expr, p); ok {
				vals = append(vals, v)
			}
		}
		if len(vals) > 0 {
			result.RegionMeans[name] = stat.Mean(vals, nil)
		}
	}

	rng := rand.New(rand.NewSource(plan.Sample.Seed))
	order := rng.Perm(len(inside))
	for _, idx := range order {
		if len(result.Rows) >= plan.Sample.Count {
			break
		}
		if err := ctx.Err(); err != nil {
			return model.PlanResult{}, err
		}
		p := inside[idx]
		row, ok := ev.row(plan.Stack, p)
		if ok {
			result.Rows = append(result.Rows, row)
		}
	}
	return result, nil
}

// region resolves the AOI geometry, looking remote assets up among the
// registered vectors.
func (m *MemoryBackend) region(aoi model.AOI) (orb.MultiPolygon, error) {
	if aoi.Asset != "" && !aoi.HasGeometry() {
		fc, ok := m.vectors[aoi.Asset]
		if !ok {
			return nil, fmt.Errorf("asset %s not found", aoi.Asset)
		}
		aoi.Features = fc
	}
	return aoi.MultiPolygon(), nil
}

func (m *MemoryBackend) filter(q model.CollectionQuery, bound orb.Bound) ([]Scene, error) {
	c, ok := m.collections[q.Collection]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", q.Collection)
	}
	var scenes []Scene
	for _, s := range c.Scenes {
		if !s.global() && !s.Footprint.Intersects(bound) {
			continue
		}
		if !c.Static && !q.Static {
			if s.Date.Before(q.Window.Start) || !s.Date.Before(q.Window.End) {
				continue
			}
		}
		if !matchAll(s.Properties, q.Filters) {
			continue
		}
		scenes = append(scenes, s)
	}
	return scenes, nil
}

func matchAll(props map[string]any, filters []model.PropertyFilter) bool {
	for _, f := range filters {
		if !match(props[f.Property], f) {
			return false
		}
	}
	return true
}

func match(v any, f model.PropertyFilter) bool {
	switch f.Op {
	case model.FilterEq:
		s, ok := v.(string)
		return ok && s == f.Value
	case model.FilterListContains:
		switch list := v.(type) {
		case []string:
			return slices.Contains(list, f.Value)
		case []any:
			for _, item := range list {
				if s, ok := item.(string); ok && s == f.Value {
					return true
				}
			}
		}
	}
	return false
}
