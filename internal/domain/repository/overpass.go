package repository

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/serjvanilla/go-overpass"

	"geostack_service/internal/domain/model"
)

// osmAdminLevels maps GAUL-style levels onto OSM admin_level patterns.
// Countries split their first tier between levels 3 and 4.
var osmAdminLevels = map[int]string{
	0: "^2$",
	1: "^[34]$",
	2: "^[5-8]$",
}

// OverpassRepository looks administrative boundaries up in OpenStreetMap.
type OverpassRepository struct {
	client  *overpass.Client
	timeout time.Duration
}

func NewOverpassRepository(endpoint string, timeout time.Duration) *OverpassRepository {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &OverpassRepository{
		client:  &client,
		timeout: timeout,
	}
}

func (r *OverpassRepository) Boundaries(ctx context.Context, q model.BoundaryQuery) (*geojson.FeatureCollection, error) {
	query, err := boundaryQuery(q, r.timeout)
	if err != nil {
		return nil, err
	}

	result, err := r.executeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute boundary query: %w", err)
	}

	return convertToFeatures(result, q), nil
}

func boundaryQuery(q model.BoundaryQuery, timeout time.Duration) (string, error) {
	levels, ok := osmAdminLevels[q.Level]
	if !ok {
		return "", &model.ConfigurationError{Field: "aoi.level", Reason: fmt.Sprintf("unsupported admin level %d", q.Level)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n", int(timeout.Seconds()))
	if q.Level > 0 && q.Country != "" {
		fmt.Fprintf(&b, "area[\"boundary\"=\"administrative\"][\"admin_level\"=\"2\"][\"name\"=\"%s\"]->.country;\n", escape(q.Country))
		fmt.Fprintf(&b, "relation[\"boundary\"=\"administrative\"][\"admin_level\"~\"%s\"][\"name\"=\"%s\"](area.country);\n", levels, escape(q.Name))
	} else {
		fmt.Fprintf(&b, "relation[\"boundary\"=\"administrative\"][\"admin_level\"~\"%s\"][\"name\"=\"%s\"];\n", levels, escape(q.Name))
	}
	b.WriteString("out body;\n>;\nout skel qt;\n")
	return b.String(), nil
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func (r *OverpassRepository) executeQuery(ctx context.Context, query string) (*overpass.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		result overpass.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := r.client.Query(query)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("overpass query aborted: %w", ctx.Err())
	case o := <-done:
		if o.err != nil {
			return nil, fmt.Errorf("overpass query failed: %w", o.err)
		}
		return &o.result, nil
	}
}

func convertToFeatures(result *overpass.Result, q model.BoundaryQuery) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	ids := make([]int64, 0, len(result.Relations))
	for id := range result.Relations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		rel := result.Relations[id]
		var outer, inner [][]orb.Point
		for _, m := range rel.Members {
			if m.Way == nil {
				continue
			}
			line := wayPoints(m.Way)
			if len(line) < 2 {
				continue
			}
			if m.Role == "inner" {
				inner = append(inner, line)
			} else {
				outer = append(outer, line)
			}
		}

		mp := buildMultiPolygon(assembleRings(outer), assembleRings(inner))
		if len(mp) == 0 {
			continue
		}
		f := geojson.NewFeature(mp)
		f.ID = rel.ID
		f.Properties["name"] = rel.Tags["name"]
		f.Properties["admin_level"] = rel.Tags["admin_level"]
		if q.Country != "" {
			f.Properties["country"] = q.Country
		}
		fc.Append(f)
	}
	return fc
}

func wayPoints(way *overpass.Way) []orb.Point {
	pts := make([]orb.Point, 0, len(way.Nodes))
	for _, n := range way.Nodes {
		if n == nil {
			continue
		}
		pts = append(pts, orb.Point{n.Lon, n.Lat})
	}
	return pts
}

// assembleRings joins way segments end to end into closed rings. Segments
// that never close are dropped.
func assembleRings(segments [][]orb.Point) []orb.Ring {
	remaining := append([][]orb.Point(nil), segments...)
	var rings []orb.Ring

	for len(remaining) > 0 {
		ring := append([]orb.Point(nil), remaining[0]...)
		remaining = remaining[1:]

		for !isClosed(ring) {
			idx, joined := -1, []orb.Point(nil)
			tail := ring[len(ring)-1]
			for i, seg := range remaining {
				if seg[0] == tail {
					idx, joined = i, seg[1:]
					break
				}
				if seg[len(seg)-1] == tail {
					idx, joined = i, reversed(seg)[1:]
					break
				}
			}
			if idx < 0 {
				break
			}
			ring = append(ring, joined...)
			remaining = append(remaining[:idx], remaining[idx+1:]...)
		}

		if isClosed(ring) && len(ring) >= 4 {
			rings = append(rings, orb.Ring(ring))
		}
	}
	return rings
}

func isClosed(pts []orb.Point) bool {
	return len(pts) > 2 && pts[0] == pts[len(pts)-1]
}

func reversed(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}

// buildMultiPolygon attaches every inner ring to the first outer ring
// containing it.
func buildMultiPolygon(outer, inner []orb.Ring) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(outer))
	for _, o := range outer {
		mp = append(mp, orb.Polygon{o})
	}
	for _, hole := range inner {
		for i := range mp {
			if planar.RingContains(mp[i][0], hole[0]) {
				mp[i] = append(mp[i], hole)
				break
			}
		}
	}
	return mp
}
