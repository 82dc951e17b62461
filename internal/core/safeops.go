package core

import (
	"fmt"
	"strings"

	"geostack_service/internal/domain/model"
)

const ratioEpsilon = 1e-6

// Result is the outcome of a safe feature operation: either the band was
// computed from its inputs or a default stands in for it. Callers always
// read Band; the tag only feeds logging and tests.
type Result struct {
	Band      model.Band
	Defaulted bool
	Reason    string
}

func Computed(band model.Band) Result {
	return Result{Band: band}
}

func Defaulted(band model.Band, reason string) Result {
	return Result{Band: band, Defaulted: true, Reason: reason}
}

func constantBand(name, source string, value float64) model.Band {
	return model.Band{Name: name, Source: source, Expr: model.Constant(value)}
}

func missingReason(img model.Image, names ...string) string {
	var missing []string
	for _, n := range names {
		if !img.Has(n) {
			missing = append(missing, n)
		}
	}
	return fmt.Sprintf("missing input band(s) %s", strings.Join(missing, ", "))
}

// SafeBand returns the named band when present, otherwise a constant band
// of the same name set to def.
func SafeBand(img model.Image, name string, def float64) Result {
	if b, ok := img.Band(name); ok {
		return Computed(b)
	}
	return Defaulted(constantBand(name, img.Source, def), missingReason(img, name))
}

// SafeNormalizedDifference computes (A-B)/(A+B) rescaled to [0,1] as
// output. A missing input yields an all-zero band.
func SafeNormalizedDifference(img model.Image, pair [2]string, output string) Result {
	a, okA := img.Band(pair[0])
	b, okB := img.Band(pair[1])
	if !okA || !okB {
		return Defaulted(constantBand(output, img.Source, 0), missingReason(img, pair[0], pair[1]))
	}
	nd := a.Expr.Subtract(b.Expr).Divide(a.Expr.Add(b.Expr))
	return Computed(model.Band{Name: output, Source: img.Source, Expr: rescaleUnit(nd)})
}

// SafeRatio computes (num-den)/(num+den+1e-6) rescaled to [0,1] as
// output. A missing input yields an all-zero band.
func SafeRatio(img model.Image, num, den, output string) Result {
	n, okN := img.Band(num)
	d, okD := img.Band(den)
	if !okN || !okD {
		return Defaulted(constantBand(output, img.Source, 0), missingReason(img, num, den))
	}
	ratio := n.Expr.Subtract(d.Expr).Divide(n.Expr.Add(d.Expr).Add(model.Constant(ratioEpsilon)))
	return Computed(model.Band{Name: output, Source: img.Source, Expr: rescaleUnit(ratio)})
}

// rescaleUnit maps [-1,1] onto [0,1].
func rescaleUnit(e *model.Expr) *model.Expr {
	return e.Add(model.Constant(1)).Divide(model.Constant(2))
}
