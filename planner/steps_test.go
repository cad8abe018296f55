package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slicewise/slicewise/mesh"
)

func runStep(t *testing.T, step Step, s *State) {
	t.Helper()
	require.NoError(t, step.Run(context.Background(), s))
}

func normalized(desc string, h, w float64) *State {
	s := &State{Request: Request{Description: desc, HeightMM: h, WidthMM: w}}
	_ = NormalizeInput().Run(context.Background(), s)
	return s
}

func TestIntentGuard(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		rejected bool
	}{
		{"description and dims", Request{Description: "bracket mount", HeightMM: 120, WidthMM: 30}, false},
		{"description and mesh", Request{Description: "vase", MeshData: []byte("solid")}, false},
		{"description too short", Request{Description: "ab", HeightMM: 10, WidthMM: 10}, true},
		{"no dims no mesh", Request{Description: "a nice bracket"}, true},
		{"zero height", Request{Description: "bracket", HeightMM: 0, WidthMM: 30}, true},
		{"negative width", Request{Description: "bracket", HeightMM: 30, WidthMM: -5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &State{Request: tt.req}
			runStep(t, IntentGuard(), s)
			assert.Equal(t, tt.rejected, s.Rejected)
			if tt.rejected {
				assert.NotEmpty(t, s.RejectedReason)
			}
		})
	}
}

func TestNormalizeInput(t *testing.T) {
	t.Run("negative dims become absolute with warnings", func(t *testing.T) {
		s := normalized("bracket", -120, -30)
		assert.Equal(t, 120.0, s.Input.HeightMM)
		assert.Equal(t, 30.0, s.Input.WidthMM)
		assert.Len(t, s.Warnings, 2)
	})

	t.Run("empty description assumption", func(t *testing.T) {
		s := normalized("   ", 10, 10)
		assert.Equal(t, "Unknown model", s.Input.Description)
		require.Len(t, s.Assumptions, 1)
		assert.Contains(t, s.Assumptions[0], "Unknown model")
	})

	t.Run("oversized dims warn", func(t *testing.T) {
		s := normalized("big panel", 300, 260)
		assert.Contains(t, s.Warnings[0], "Z height")
		assert.Contains(t, s.Warnings[1], "bed size")
	})

	t.Run("high aspect ratio warns", func(t *testing.T) {
		s := normalized("antenna", 200, 40)
		require.Len(t, s.Warnings, 1)
		assert.Contains(t, s.Warnings[0], "tall vs. wide")
	})

	t.Run("rounds to two decimals", func(t *testing.T) {
		s := normalized("part", 10.006, 20.014)
		assert.InDelta(t, 10.01, s.Input.HeightMM, 1e-9)
		assert.InDelta(t, 20.01, s.Input.WidthMM, 1e-9)
	})
}

func TestSelectMaterial(t *testing.T) {
	tests := []struct {
		name string
		desc string
		h, w float64
		want string
	}{
		{"default PLA", "desk organizer", 50, 80, "PLA"},
		{"flexible keywords pick TPU", "flexible phone bumper", 20, 70, "TPU"},
		{"outdoor keywords pick ASA", "garden hose bracket for outdoor use", 60, 40, "ASA"},
		{"heat keywords pick ABS", "mount near the engine bay", 40, 40, "ABS"},
		{"tall print picks PETG", "tall vase", 150, 60, "PETG"},
		{"flex beats height", "flexible tall gasket", 150, 60, "TPU"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := normalized(tt.desc, tt.h, tt.w)
			runStep(t, SelectMaterial(), s)
			assert.Equal(t, tt.want, s.Material.Recommended)
			assert.NotEmpty(t, s.Material.Reason)
			assert.NotEmpty(t, s.Material.Alternatives)
		})
	}
}

func TestOrientation(t *testing.T) {
	t.Run("default lay flat", func(t *testing.T) {
		s := normalized("organizer box", 40, 100)
		runStep(t, Orientation(), s)
		assert.Equal(t, "Lay flat on the largest face", s.Orientation.Recommended)
		assert.Equal(t, 0.4, s.Orientation.AspectRatio)
	})

	t.Run("tall part prioritizes footprint", func(t *testing.T) {
		s := normalized("antenna mast", 180, 30)
		runStep(t, Orientation(), s)
		assert.Contains(t, s.Orientation.Recommended, "widest footprint")
		assert.Contains(t, s.Warnings[len(s.Warnings)-1], "tipping")
	})

	t.Run("small footprint adds adhesion tip", func(t *testing.T) {
		s := normalized("thin pin", 30, 15)
		runStep(t, Orientation(), s)
		found := false
		for _, tip := range s.Orientation.BedAdhesionTips {
			if tip == "Consider brim or mouse-ears due to small footprint." {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("visible face keyword adds assumption", func(t *testing.T) {
		s := normalized("plaque with engraved logo", 10, 100)
		runStep(t, Orientation(), s)
		require.NotEmpty(t, s.Assumptions)
		assert.Contains(t, s.Assumptions[0], "face")
	})
}

func TestGenerateSlicerSettings(t *testing.T) {
	prepare := func(desc string, h, w float64, features *mesh.FeatureRecord) *State {
		s := normalized(desc, h, w)
		s.Features = features
		runStep(t, SelectMaterial(), s)
		runStep(t, GenerateSlicerSettings(), s)
		return s
	}

	t.Run("defaults", func(t *testing.T) {
		s := prepare("desk organizer tray", 40, 100, nil)
		assert.Equal(t, 0.2, s.Slicer.LayerHeightMM)
		assert.Equal(t, "grid", s.Slicer.InfillPattern)
		assert.Equal(t, "off (unknown geometry)", s.Slicer.Supports)
		assert.Equal(t, 0.0, s.Slicer.BrimMM)
	})

	t.Run("abs gets brim and extra walls", func(t *testing.T) {
		s := prepare("engine bay clip mount", 40, 40, nil)
		require.Equal(t, "ABS", s.Material.Recommended)
		assert.Equal(t, 4, s.Slicer.Walls)
		assert.GreaterOrEqual(t, s.Slicer.BrimMM, 6.0)
	})

	t.Run("tall aspect raises walls and brim", func(t *testing.T) {
		s := prepare("plain mast", 180, 30, nil)
		assert.GreaterOrEqual(t, s.Slicer.Walls, 4)
		assert.GreaterOrEqual(t, s.Slicer.BrimMM, 6.0)
		assert.Equal(t, "gyroid", s.Slicer.InfillPattern)
	})

	t.Run("mesh overhang turns supports on", func(t *testing.T) {
		s := prepare("weird sculpture thing", 60, 60, &mesh.FeatureRecord{
			LikelySupports: true, ContactAreaMM2: 2000, ContactRatio: 0.5,
		})
		assert.Equal(t, "on (mesh overhang detected)", s.Slicer.Supports)
	})

	t.Run("small contact area forces brim", func(t *testing.T) {
		s := prepare("weird sculpture thing", 60, 60, &mesh.FeatureRecord{
			ContactAreaMM2: 300, ContactRatio: 0.4,
		})
		assert.GreaterOrEqual(t, s.Slicer.BrimMM, 8.0)
	})

	t.Run("pointy base forces bigger brim", func(t *testing.T) {
		s := prepare("weird sculpture thing", 60, 60, &mesh.FeatureRecord{
			ContactAreaMM2: 600, ContactRatio: 0.1,
		})
		assert.GreaterOrEqual(t, s.Slicer.BrimMM, 10.0)
	})

	t.Run("overhang keywords force supports", func(t *testing.T) {
		s := prepare("shelf bracket with a big overhang", 60, 60, nil)
		assert.Equal(t, "on (overhang hints detected)", s.Slicer.Supports)
	})

	t.Run("functional part raises strength", func(t *testing.T) {
		s := prepare("wall mount bracket", 60, 60, nil)
		assert.GreaterOrEqual(t, s.Slicer.Walls, 4)
		assert.GreaterOrEqual(t, s.Slicer.InfillPercent, 20)
	})

	t.Run("decorative part lowers infill", func(t *testing.T) {
		s := prepare("dragon figurine", 60, 60, nil)
		assert.LessOrEqual(t, s.Slicer.InfillPercent, 12)
	})
}

func TestAnalyzeRisks(t *testing.T) {
	prepare := func(desc string, h, w float64) *State {
		s := normalized(desc, h, w)
		runStep(t, SelectMaterial(), s)
		runStep(t, GenerateSlicerSettings(), s)
		runStep(t, AnalyzeRisks(), s)
		return s
	}

	riskIDs := func(s *State) []string {
		ids := make([]string, 0, len(s.Risks.Items))
		for _, r := range s.Risks.Items {
			ids = append(ids, r.ID)
		}
		return ids
	}

	t.Run("tall print stability risk", func(t *testing.T) {
		s := prepare("plain mast", 180, 30)
		assert.Contains(t, riskIDs(s), "stability_tall")
	})

	t.Run("small footprint is high severity", func(t *testing.T) {
		s := prepare("thin pin", 40, 12)
		assert.Contains(t, riskIDs(s), "adhesion_small_footprint")
		assert.Equal(t, SeverityHigh, s.Risks.HighestSeverity)
	})

	t.Run("abs warping risk", func(t *testing.T) {
		s := prepare("engine bay cover", 40, 40)
		assert.Contains(t, riskIDs(s), "warping_abs_asa")
	})

	t.Run("tpu feeding risk", func(t *testing.T) {
		s := prepare("flexible gasket", 20, 60)
		assert.Contains(t, riskIDs(s), "tpu_printing")
	})

	t.Run("overhang keywords with supports off", func(t *testing.T) {
		s := normalized("part with a hanging ledge", 50, 50)
		runStep(t, SelectMaterial(), s)
		s.Slicer = SlicerSettings{Supports: "off (unknown geometry)"}
		runStep(t, AnalyzeRisks(), s)
		assert.Contains(t, riskIDs(s), "supports_maybe_needed")
	})

	t.Run("no risks reports low severity", func(t *testing.T) {
		s := prepare("desk organizer", 40, 100)
		assert.Equal(t, 0, s.Risks.Count)
		assert.Equal(t, SeverityLow, s.Risks.HighestSeverity)
	})

	t.Run("mitigations accompany risks", func(t *testing.T) {
		s := prepare("plain mast", 180, 30)
		assert.Equal(t, s.Risks.Count, len(s.Risks.Mitigations))
	})
}

func TestModelOverview(t *testing.T) {
	t.Run("categorizes from keywords", func(t *testing.T) {
		s := normalized("headphone stand for my desk", 150, 80)
		runStep(t, ModelOverview(), s)
		assert.Contains(t, s.ModelOverview, "holder / mount")
	})

	t.Run("mesh signals drive shape labels", func(t *testing.T) {
		s := normalized("mystery shape", 100, 20)
		s.Features = &mesh.FeatureRecord{
			BBoxMM:         [3]float64{20, 20, 100},
			ContactAreaMM2: 100,
			ContactRatio:   0.1,
			Watertight:     false,
			LikelySupports: true,
		}
		runStep(t, ModelOverview(), s)
		assert.Contains(t, s.ModelOverview, "tall & skinny")
		assert.Contains(t, s.ModelOverview, "very small bed contact")
		assert.Contains(t, s.ModelOverview, "supports may be needed")
		assert.Contains(t, s.ModelOverview, "repair recommended")
	})

	t.Run("no mesh stays neutral", func(t *testing.T) {
		s := normalized("something", 50, 50)
		runStep(t, ModelOverview(), s)
		assert.Contains(t, s.ModelOverview, "general-purpose print")
		assert.Contains(t, s.ModelOverview, "unknown bed contact")
		assert.Contains(t, s.ModelOverview, "mesh looks healthy")
	})
}

func TestMeshAnalyze(t *testing.T) {
	record := &mesh.FeatureRecord{BBoxMM: [3]float64{30, 40, 120}}

	t.Run("fills dimensions from bbox", func(t *testing.T) {
		s := &State{Request: Request{Description: "vase", MeshData: []byte("stl bytes")}}
		step := MeshAnalyze(func(_ context.Context, data []byte) (*mesh.FeatureRecord, error) {
			assert.Equal(t, []byte("stl bytes"), data)
			return record, nil
		})
		runStep(t, step, s)
		assert.Equal(t, record, s.Features)
		assert.Equal(t, 120.0, s.Request.HeightMM)
		assert.Equal(t, 40.0, s.Request.WidthMM)
	})

	t.Run("skipped without mesh data", func(t *testing.T) {
		s := &State{Request: Request{Description: "vase", HeightMM: 10, WidthMM: 10}}
		called := false
		step := MeshAnalyze(func(context.Context, []byte) (*mesh.FeatureRecord, error) {
			called = true
			return record, nil
		})
		runStep(t, step, s)
		assert.False(t, called)
		assert.Nil(t, s.Features)
	})
}
