package config

import "github.com/slicewise/slicewise/mesh"

// MeshConfig converts the loaded tolerances into the analysis config
// consumed by the mesh package.
func (a AnalysisConfig) MeshConfig() mesh.Config {
	return mesh.Config{
		ContactTolMM:            a.ContactTolMM,
		NormalEps:               a.NormalEps,
		DegenerateAreaEps:       a.DegenerateAreaEps,
		OverhangThresholdDeg:    a.OverhangThresholdDeg,
		SevereOverhangMarginDeg: a.SevereOverhangMarginDeg,
		OverhangPercentTrigger:  a.OverhangPercentTrigger,
		OpenTopTolMM:            a.OpenTopTolMM,
		OpenTopBoundaryRatio:    a.OpenTopBoundaryRatio,
	}
}
