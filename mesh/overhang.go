package mesh

import "math"

// OverhangReport summarizes the downward-facing geometry.
type OverhangReport struct {
	// Percent of downward faces at or past the support threshold.
	// The denominator is the downward subset, not the whole mesh.
	Percent float64

	// MaxAngleDeg is the largest normal angle among downward faces:
	// 0° for a purely floor-facing normal, approaching 90° for a
	// near-vertical face tilted downward.
	MaxAngleDeg float64

	// LikelySupports is true for widespread shallow overhangs or a
	// single severe one.
	LikelySupports bool
}

// AnalyzeOverhangs classifies downward-facing triangles by normal
// angle. A face counts as downward when nz < -cfg.NormalEps. A mesh
// with no downward faces (e.g. a plain upright prism) yields the zero
// report, which is a valid outcome rather than an error.
func AnalyzeOverhangs(m *Mesh, cfg Config) OverhangReport {
	var (
		downward      int
		supportWorthy int
		maxAngle      float64
	)

	for i := range m.Faces {
		nz := m.FaceNormal(i).Z
		if nz >= -cfg.NormalEps {
			continue
		}
		downward++

		// arccos(|nz|): 0° when the normal points straight down,
		// approaching 90° for a near-vertical wall tilted downward.
		abs := math.Abs(nz)
		if abs > 1 {
			abs = 1
		}
		angle := math.Acos(abs) * 180.0 / math.Pi
		if angle > maxAngle {
			maxAngle = angle
		}
		if angle >= cfg.OverhangThresholdDeg {
			supportWorthy++
		}
	}

	if downward == 0 {
		return OverhangReport{}
	}

	pct := 100.0 * float64(supportWorthy) / float64(downward)
	return OverhangReport{
		Percent:     round(pct, 2),
		MaxAngleDeg: round(maxAngle, 1),
		LikelySupports: pct >= cfg.OverhangPercentTrigger ||
			maxAngle >= cfg.OverhangThresholdDeg+cfg.SevereOverhangMarginDeg,
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
