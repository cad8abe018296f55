package mesh

// Config collects every tolerance and threshold used by the analysis.
// All values are explicit so tests can pin them independently of the
// algorithms that consume them.
type Config struct {
	// ContactTolMM is how far above z_min a vertex may sit while its
	// face still counts as touching the bed.
	ContactTolMM float64 `yaml:"contact_tol_mm" json:"contact_tol_mm"`

	// NormalEps rejects near-vertical faces whose nz is only negative
	// through floating-point noise.
	NormalEps float64 `yaml:"normal_eps" json:"normal_eps"`

	// DegenerateAreaEps is the triangle area at or below which a face
	// counts as degenerate.
	DegenerateAreaEps float64 `yaml:"degenerate_area_eps" json:"degenerate_area_eps"`

	// OverhangThresholdDeg marks a downward face support-worthy once its
	// angle from vertical reaches this value.
	OverhangThresholdDeg float64 `yaml:"overhang_threshold_deg" json:"overhang_threshold_deg"`

	// SevereOverhangMarginDeg is added to the threshold to detect a
	// single severe overhang even when the overall percent stays low.
	SevereOverhangMarginDeg float64 `yaml:"severe_overhang_margin_deg" json:"severe_overhang_margin_deg"`

	// OverhangPercentTrigger is the support-worthy percentage at which
	// supports become likely.
	OverhangPercentTrigger float64 `yaml:"overhang_percent_trigger" json:"overhang_percent_trigger"`

	// OpenTopTolMM is how close to max z a boundary edge's midpoint must
	// lie to count as part of a top rim.
	OpenTopTolMM float64 `yaml:"open_top_tol_mm" json:"open_top_tol_mm"`

	// OpenTopBoundaryRatio is the fraction of boundary edges that must
	// sit at the rim before an open top is assumed intentional.
	OpenTopBoundaryRatio float64 `yaml:"open_top_boundary_ratio" json:"open_top_boundary_ratio"`
}

// DefaultConfig returns the production tolerances.
func DefaultConfig() Config {
	return Config{
		ContactTolMM:            0.3,
		NormalEps:               1e-6,
		DegenerateAreaEps:       1e-10,
		OverhangThresholdDeg:    55.0,
		SevereOverhangMarginDeg: 10.0,
		OverhangPercentTrigger:  2.0,
		OpenTopTolMM:            0.5,
		OpenTopBoundaryRatio:    0.70,
	}
}
