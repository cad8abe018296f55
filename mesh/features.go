package mesh

import "math"

// FeatureRecord is the flat, immutable output of one analysis call.
// It is created once per mesh snapshot and consumed read-only by the
// planner, the HTTP API, and the cache.
type FeatureRecord struct {
	BBoxMM           [3]float64    `json:"bbox_mm"`
	FootprintBBoxMM2 float64       `json:"footprint_bbox_mm2"` // bbox x*y; overstates non-rectangular footprints
	ContactAreaMM2   float64       `json:"contact_area_mm2"`
	ContactRatio     float64       `json:"contact_ratio"`
	HeightMM         float64       `json:"height_mm"`
	AspectRatio      float64       `json:"aspect_ratio"`
	VolumeMM3        float64       `json:"volume_mm3"`
	SurfaceAreaMM2   float64       `json:"surface_area_mm2"`
	Watertight       bool          `json:"watertight"`
	IsVolume         bool          `json:"is_volume"`
	OverhangPercent  float64       `json:"overhang_percent"`
	MaxOverhangDeg   float64       `json:"max_overhang_deg"`
	LikelySupports   bool          `json:"likely_supports"`
	BoundaryEdges    int           `json:"boundary_edges"`
	NonManifoldEdges int           `json:"nonmanifold_edges"`
	OpenEdges        int           `json:"open_edges"`
	DegenerateFaces  int           `json:"degenerate_faces"`
	LikelyOpenTop    bool          `json:"likely_open_top"`
	MeshIssue        string        `json:"mesh_issue"`
	BoundsMM         [2][3]float64 `json:"bounds_mm"`
}

// Analyze runs the full feature extraction on one mesh snapshot. It is
// a pure function: identical input and config yield a bit-identical
// record. Degenerate-but-valid geometry (zero footprint, zero contact,
// no downward faces) produces zero/false values, not errors.
func Analyze(m *Mesh, cfg Config) FeatureRecord {
	min, max := m.Bounds()
	ext := max.Sub(min)

	footprint := ext.X * ext.Y
	height := ext.Z

	// Division-by-zero policy: a flat or degenerate footprint uses a
	// denominator of 1.0 instead of raising.
	denom := math.Max(ext.X, ext.Y)
	if denom <= 0 {
		denom = 1.0
	}
	aspect := height / denom

	contact := ContactArea(m, cfg)
	contactRatio := 0.0
	if footprint > 0 {
		contactRatio = contact / footprint
	}

	overhang := AnalyzeOverhangs(m, cfg)

	usage := BuildEdgeUsage(m)
	integrity := Diagnose(m, usage, cfg)

	// Volume is only trustworthy on a closed, consistently wound mesh;
	// otherwise report an explicit zero rather than a meaningless value.
	volume := 0.0
	if integrity.IsVolume {
		volume = math.Abs(m.SignedVolume())
	}

	return FeatureRecord{
		BBoxMM:           [3]float64{ext.X, ext.Y, ext.Z},
		FootprintBBoxMM2: footprint,
		ContactAreaMM2:   contact,
		ContactRatio:     contactRatio,
		HeightMM:         height,
		AspectRatio:      aspect,
		VolumeMM3:        volume,
		SurfaceAreaMM2:   m.SurfaceArea(),
		Watertight:       integrity.Watertight,
		IsVolume:         integrity.IsVolume,
		OverhangPercent:  overhang.Percent,
		MaxOverhangDeg:   overhang.MaxAngleDeg,
		LikelySupports:   overhang.LikelySupports,
		BoundaryEdges:    integrity.BoundaryEdges,
		NonManifoldEdges: integrity.NonManifoldEdges,
		OpenEdges:        integrity.OpenEdges,
		DegenerateFaces:  integrity.DegenerateFaces,
		LikelyOpenTop:    integrity.LikelyOpenTop,
		MeshIssue:        integrity.Issue,
		BoundsMM:         [2][3]float64{{min.X, min.Y, min.Z}, {max.X, max.Y, max.Z}},
	}
}
