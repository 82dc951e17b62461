package model

// Reducer collapses a filtered collection into a single composite image.
type Reducer string

const (
	ReducerMedian Reducer = "median"
	ReducerMean   Reducer = "mean"
	ReducerStdDev Reducer = "stdDev"
)

// Preprocess names a per-image transform applied before reduction.
type Preprocess string

const (
	PreprocessNone Preprocess = ""
	// PreprocessS2CloudMask drops pixels flagged as cloud (QA60 bit 10) or
	// cirrus (QA60 bit 11) and scales reflectance by 1/10000.
	PreprocessS2CloudMask Preprocess = "s2_cloud_mask"
)

const (
	FilterEq           = "eq"
	FilterListContains = "list_contains"
)

type PropertyFilter struct {
	Property string `json:"property"`
	Op       string `json:"op"`
	Value    string `json:"value"`
}

// CollectionQuery selects images of one catalog entry over a region and
// date window. Static sources are single images and ignore the window.
type CollectionQuery struct {
	Collection string           `json:"collection"`
	Static     bool             `json:"static,omitempty"`
	Region     AOI              `json:"region"`
	Window     DateWindow       `json:"window"`
	Filters    []PropertyFilter `json:"filters,omitempty"`
	Preprocess Preprocess       `json:"preprocess,omitempty"`
}

// CollectionInfo is the lightweight metadata of a filtered collection.
type CollectionInfo struct {
	Count int      `json:"count"`
	Bands []string `json:"bands"`
}

type Composite struct {
	Query   CollectionQuery `json:"query"`
	Reducer Reducer         `json:"reducer"`
}

// Op is a node kind of the deferred band-algebra graph.
type Op string

const (
	OpConstant  Op = "constant"
	OpComposite Op = "composite"
	OpBandMean  Op = "band_mean"
	OpAdd       Op = "add"
	OpSubtract  Op = "subtract"
	OpMultiply  Op = "multiply"
	OpDivide    Op = "divide"
	OpAbs       Op = "abs"
	OpClamp     Op = "clamp"
	OpMaxZero   Op = "max_zero"
	OpSlope     Op = "slope"
	OpAspect    Op = "aspect"
)

// Expr is one node of a deferred per-pixel computation. Nothing is
// evaluated locally; the graph is shipped to a compute backend.
type Expr struct {
	Op        Op         `json:"op"`
	Value     float64    `json:"value,omitempty"`
	Composite *Composite `json:"composite,omitempty"`
	Band      string     `json:"band,omitempty"`
	Args      []*Expr    `json:"args,omitempty"`
	Min       float64    `json:"min,omitempty"`
	Max       float64    `json:"max,omitempty"`
}

func Constant(v float64) *Expr {
	return &Expr{Op: OpConstant, Value: v}
}

// CompositeBand reads one band of a reduced collection.
func CompositeBand(c Composite, band string) *Expr {
	return &Expr{Op: OpComposite, Composite: &c, Band: band}
}

// BandMean averages every band of a reduced collection per pixel.
func BandMean(c Composite) *Expr {
	return &Expr{Op: OpBandMean, Composite: &c}
}

func (e *Expr) Add(o *Expr) *Expr      { return &Expr{Op: OpAdd, Args: []*Expr{e, o}} }
func (e *Expr) Subtract(o *Expr) *Expr { return &Expr{Op: OpSubtract, Args: []*Expr{e, o}} }
func (e *Expr) Multiply(o *Expr) *Expr { return &Expr{Op: OpMultiply, Args: []*Expr{e, o}} }

// Divide yields 0 where the divisor is 0.
func (e *Expr) Divide(o *Expr) *Expr { return &Expr{Op: OpDivide, Args: []*Expr{e, o}} }

func (e *Expr) Abs() *Expr     { return &Expr{Op: OpAbs, Args: []*Expr{e}} }
func (e *Expr) MaxZero() *Expr { return &Expr{Op: OpMaxZero, Args: []*Expr{e}} }

func (e *Expr) Clamp(lo, hi float64) *Expr {
	return &Expr{Op: OpClamp, Args: []*Expr{e}, Min: lo, Max: hi}
}

// Slope is the terrain slope in degrees of an elevation expression.
func (e *Expr) Slope() *Expr { return &Expr{Op: OpSlope, Args: []*Expr{e}} }

// Aspect is the terrain aspect in degrees clockwise from north.
func (e *Expr) Aspect() *Expr { return &Expr{Op: OpAspect, Args: []*Expr{e}} }

// IsConstant reports whether the expression is a literal and returns its value.
func (e *Expr) IsConstant() (float64, bool) {
	if e == nil || e.Op != OpConstant {
		return 0, false
	}
	return e.Value, true
}

// Band is a uniquely named layer of an image together with the source
// that contributed it.
type Band struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Expr   *Expr  `json:"expr"`
}

// Image is an ordered set of bands whose names are known up front.
type Image struct {
	Source string `json:"source"`
	Bands  []Band `json:"bands"`
}

// CompositeImage describes the reduced collection as an image exposing the
// given band names.
func CompositeImage(c Composite, source string, bands []string) Image {
	img := Image{Source: source}
	for _, name := range bands {
		img.Bands = append(img.Bands, Band{Name: name, Source: source, Expr: CompositeBand(c, name)})
	}
	return img
}

func (img Image) Band(name string) (Band, bool) {
	for _, b := range img.Bands {
		if b.Name == name {
			return b, true
		}
	}
	return Band{}, false
}

func (img Image) Has(names ...string) bool {
	for _, name := range names {
		if _, ok := img.Band(name); !ok {
			return false
		}
	}
	return true
}

func (img Image) Names() []string {
	names := make([]string, 0, len(img.Bands))
	for _, b := range img.Bands {
		names = append(names, b.Name)
	}
	return names
}
