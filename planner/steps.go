package planner

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/slicewise/slicewise/mesh"
)

func hasAny(desc string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(desc, w) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// IntentGuard rejects requests that cannot produce a meaningful plan:
// a plan needs a description plus either positive dimensions or a mesh.
func IntentGuard() Step {
	return NewStep("intent_guard", func(_ context.Context, s *State) error {
		descOK := len(strings.TrimSpace(s.Request.Description)) >= 3
		dimsOK := s.Request.HeightMM > 0 && s.Request.WidthMM > 0
		hasMesh := len(s.Request.MeshData) > 0

		if descOK && (dimsOK || hasMesh) {
			return nil
		}
		s.Rejected = true
		s.RejectedReason = "That doesn't look like a print-plan request. " +
			"Send a description plus an STL file, or a description plus height and width in mm " +
			"(e.g. bracket mount, height 120, width 30)."
		return nil
	})
}

// MeshAnalyze runs mesh analysis when STL bytes were uploaded, then fills
// height/width from the bounding box so the dimension rules keep working.
func MeshAnalyze(analyze func(ctx context.Context, data []byte) (*mesh.FeatureRecord, error)) Step {
	return NewStep("mesh_analyze", func(ctx context.Context, s *State) error {
		if len(s.Request.MeshData) == 0 {
			return nil
		}
		record, err := analyze(ctx, s.Request.MeshData)
		if err != nil {
			return fmt.Errorf("mesh analysis: %w", err)
		}
		s.Features = record
		s.Request.HeightMM = record.BBoxMM[2]
		s.Request.WidthMM = math.Max(record.BBoxMM[0], record.BBoxMM[1])
		return nil
	})
}

// NormalizeInput cleans the raw input into a predictable shape, recording
// assumptions for anything it had to fill in and warnings for suspect values.
func NormalizeInput() Step {
	return NewStep("normalize_input", func(_ context.Context, s *State) error {
		desc := strings.TrimSpace(s.Request.Description)
		if desc == "" {
			desc = "Unknown model"
			s.Assumptions = append(s.Assumptions, "No description provided. Using 'Unknown model'.")
		}

		h, w := s.Request.HeightMM, s.Request.WidthMM
		if h < 0 {
			s.Warnings = append(s.Warnings, fmt.Sprintf("Height was negative (%gmm). Converting to absolute value.", h))
			h = -h
		}
		if w < 0 {
			s.Warnings = append(s.Warnings, fmt.Sprintf("Width was negative (%gmm). Converting to absolute value.", w))
			w = -w
		}

		if h > 250 {
			s.Warnings = append(s.Warnings, "Height is over ~250mm. Make sure your printer's Z height can handle it.")
		}
		if w > 250 {
			s.Warnings = append(s.Warnings, "Width is over ~250mm. Make sure your printer's bed size can handle it.")
		}
		if h > 0 && w > 0 && h/w >= 4 {
			s.Warnings = append(s.Warnings, "Model looks tall vs. wide (high aspect ratio). Stability risk; consider brim/supports.")
		}

		s.Input = NormalizedInput{
			Description: desc,
			HeightMM:    round2(h),
			WidthMM:     round2(w),
		}
		return nil
	})
}

// ModelOverview writes a beginner-friendly one-liner about what the model
// probably is, without echoing the user's sentence back.
func ModelOverview() Step {
	return NewStep("model_overview", func(_ context.Context, s *State) error {
		desc := strings.ToLower(s.Input.Description)

		tallSkinny := false
		bedContact := "unknown bed contact"
		supportsVibe := "supports probably not needed"
		meshVibe := "mesh looks healthy"

		if f := s.Features; f != nil {
			base := math.Max(f.BBoxMM[0], f.BBoxMM[1])
			if base <= 0 {
				base = 1.0
			}
			tallSkinny = f.BBoxMM[2]/base >= 1.8

			switch {
			case f.ContactAreaMM2 <= 0:
				bedContact = "unknown bed contact"
			case f.ContactAreaMM2 < 300 || f.ContactRatio < 0.15:
				bedContact = "very small bed contact"
			case f.ContactAreaMM2 < 600 || f.ContactRatio < 0.30:
				bedContact = "small bed contact"
			default:
				bedContact = "good bed contact"
			}

			if f.LikelySupports {
				supportsVibe = "supports may be needed"
			}
			if !f.Watertight {
				meshVibe = "mesh has openings (repair recommended)"
			}
		}

		category := "a general-purpose print"
		switch {
		case hasAny(desc, "box", "container", "bin", "tray", "organizer", "case"):
			category = "a small container / organizer"
		case hasAny(desc, "stand", "holder", "dock", "mount", "bracket"):
			category = "a holder / mount type part"
		case hasAny(desc, "toy", "figurine", "statue", "model"):
			category = "a decorative model"
		case hasAny(desc, "clip", "hook", "hanger"):
			category = "a clip / hook style part"
		}

		shape := "normal proportions"
		if tallSkinny {
			shape = "tall & skinny"
		}
		s.ModelOverview = fmt.Sprintf("Looks like %s. Shape check: %s, %s, %s. Model health: %s.",
			category, shape, bedContact, supportsVibe, meshVibe)
		return nil
	})
}

// Orientation recommends how to place the part on the bed from the
// normalized dimensions.
func Orientation() Step {
	return NewStep("plan_orientation", func(_ context.Context, s *State) error {
		desc := strings.ToLower(s.Input.Description)
		h, w := s.Input.HeightMM, s.Input.WidthMM

		aspect := 0.0
		if h > 0 && w > 0 {
			aspect = h / w
		}

		o := OrientationPlan{
			Recommended: "Lay flat on the largest face",
			Reason:      "Maximizes bed contact and reduces the chance of tipping.",
			AspectRatio: round2(aspect),
			Tradeoffs: []string{
				"May show the best surface on the top face depending on geometry.",
				"May increase support needs if the model has overhangs.",
			},
			BedAdhesionTips: []string{"Clean bed and use appropriate bed temp for your material."},
		}

		if aspect >= 3.0 {
			o.Recommended = "Lay flat (prioritize the widest footprint)"
			o.Reason = "High aspect ratio suggests instability if printed upright."
			o.Tradeoffs = []string{
				"Better stability and lower failure risk.",
				"May change which surfaces look best (aesthetic trade-off).",
			}
			o.BedAdhesionTips = append(o.BedAdhesionTips, "Use a brim (5-10mm) for extra stability.")
			s.Warnings = append(s.Warnings, "Orientation chosen to reduce tipping risk (tall vs. wide).")
		}

		if w > 0 && w <= 20 {
			o.BedAdhesionTips = append(o.BedAdhesionTips, "Consider brim or mouse-ears due to small footprint.")
			s.Warnings = append(s.Warnings, "Small footprint detected. Bed adhesion may be critical.")
		}

		if hasAny(desc, "logo", "text", "engrave", "face", "front") {
			s.Assumptions = append(s.Assumptions,
				"Description suggests a visible 'face' (logo/text). Consider orienting to keep that face clean and support-free.")
		}

		s.Orientation = o
		return nil
	})
}

// SelectMaterial picks a filament from description keywords and dimensions.
func SelectMaterial() Step {
	return NewStep("select_material", func(_ context.Context, s *State) error {
		desc := strings.ToLower(s.Input.Description)
		h, w := s.Input.HeightMM, s.Input.WidthMM

		m := MaterialPlan{
			Recommended:  "PLA",
			Reason:       "PLA is easy to print and suitable for most decorative or general-purpose models.",
			Alternatives: []string{"PETG"},
		}

		switch {
		case hasAny(desc, "tpu", "flex", "flexible", "rubber", "gasket", "seal", "phone case", "bumper"):
			m = MaterialPlan{
				Recommended:  "TPU",
				Reason:       "Description suggests flexibility/elasticity. TPU is the go-to flexible filament.",
				Alternatives: []string{"PETG (semi-flex depending on part)", "PLA (not flexible)"},
			}
			s.Assumptions = append(s.Assumptions, "Assuming you want a flexible part based on description keywords.")

		case hasAny(desc, "outdoor", "sun", "uv", "weather", "rain", "garden", "car", "roof"):
			m = MaterialPlan{
				Recommended:  "ASA",
				Reason:       "Outdoor/UV exposure suggested. ASA is preferred for UV and weather resistance.",
				Alternatives: []string{"PETG", "ABS"},
			}
			s.Warnings = append(s.Warnings, "ASA/ABS typically prints best with an enclosure and good ventilation.")

		case hasAny(desc, "heat", "hot", "engine", "motor", "high temp", "kitchen", "dishwasher"):
			m = MaterialPlan{
				Recommended:  "ABS",
				Reason:       "Heat exposure suggested. ABS offers better temperature resistance than PLA/PETG.",
				Alternatives: []string{"ASA", "PETG"},
			}
			s.Warnings = append(s.Warnings, "ABS commonly needs an enclosure to avoid warping; ventilate due to fumes.")

		default:
			if h >= 120 {
				m = MaterialPlan{
					Recommended:  "PETG",
					Reason:       "Taller prints often benefit from PETG's improved toughness and layer adhesion.",
					Alternatives: []string{"PLA", "ASA"},
				}
				s.Warnings = append(s.Warnings, "Tall print detected. Consider a brim and slower speeds for stability.")
			}
			if w > 0 && w <= 20 {
				s.Assumptions = append(s.Assumptions, "Small footprint detected. Bed adhesion may be critical; consider brim.")
			}
		}

		s.Material = m
		return nil
	})
}

// GenerateSlicerSettings derives the slicer knobs from the material choice,
// dimensions, description keywords, and mesh signals when present. Mesh
// integrity warnings belong to AnalyzeRisks, not here.
func GenerateSlicerSettings() Step {
	return NewStep("generate_slicer_settings", func(_ context.Context, s *State) error {
		desc := strings.ToLower(s.Input.Description)
		h, w := s.Input.HeightMM, s.Input.WidthMM
		aspect := 0.0
		if h > 0 && w > 0 {
			aspect = h / w
		}

		set := SlicerSettings{
			LayerHeightMM:   0.2,
			Walls:           3,
			TopBottomLayers: 4,
			InfillPercent:   15,
			InfillPattern:   "gyroid",
			InfillReason:    "Good all-around strength and supports top layers well without harsh direction bias.",
			Supports:        "off (unknown geometry)",
			BrimMM:          0,
		}

		switch s.Material.Recommended {
		case "PLA":
			set.Notes = append(set.Notes, "PLA: easy printing; good for prototypes/decor.")
		case "PETG":
			set.TopBottomLayers = 5
			set.InfillPercent = 18
			set.Notes = append(set.Notes, "PETG: tougher than PLA; watch stringing.")
			s.Assumptions = append(s.Assumptions, "Assuming PETG benefits from extra top/bottom for stiffness.")
		case "ABS", "ASA":
			set.Walls = 4
			set.TopBottomLayers = 5
			set.InfillPercent = 20
			set.BrimMM = 6
			set.Notes = append(set.Notes, "ABS/ASA: brim helps; enclosure recommended.")
			s.Warnings = append(s.Warnings, "ABS/ASA warping risk: consider enclosure and stable ambient temperature.")
		case "TPU":
			set.LayerHeightMM = 0.24
			set.Walls = 2
			set.InfillPercent = 12
			set.Supports = "off unless absolutely necessary"
			set.Notes = append(set.Notes, "TPU: print slowly; avoid aggressive retraction.")
			s.Assumptions = append(s.Assumptions, "Assuming TPU printed slowly with conservative retraction settings.")
		}

		switch {
		case hasAny(desc, "functional", "bracket", "mount", "holder", "clip", "tool", "hinge"):
			set.InfillPattern = "gyroid"
			set.InfillReason = "Balanced strength in all directions for functional parts."
		case hasAny(desc, "box", "container", "bin", "organizer", "tray"):
			set.InfillPattern = "grid"
			set.InfillReason = "Fast, predictable, and plenty strong for simple containers."
		case hasAny(desc, "figurine", "statue", "decor", "ornament", "model"):
			set.InfillPattern = "gyroid"
			set.InfillReason = "Keeps strength consistent without needing high infill."
		}

		if aspect >= 3.0 {
			set.InfillPattern = "gyroid"
			set.InfillReason = "More uniform internal support can help tall parts behave better."
			set.BrimMM = math.Max(set.BrimMM, 6)
			if set.Walls < 4 {
				set.Walls = 4
			}
			set.Notes = append(set.Notes, "Tall model: increased walls + brim for stability.")
			s.Warnings = append(s.Warnings, "Tall aspect ratio: consider slowing down and using a brim.")
		}

		if s.Features != nil && s.Features.LikelySupports {
			set.Supports = "on (mesh overhang detected)"
			s.Warnings = append(s.Warnings, "Mesh overhang detected. Supports likely needed.")
		}

		if hasAny(desc, "overhang", "bridge", "cantilever", "hanging") {
			set.Supports = "on (overhang hints detected)"
			set.Notes = append(set.Notes, "Overhang-related keywords: supports likely needed unless re-oriented.")
			s.Warnings = append(s.Warnings, "Overhang hints detected. Supports may be needed.")
		}

		if f := s.Features; f != nil {
			if f.ContactAreaMM2 > 0 && f.ContactAreaMM2 <= 500 {
				set.BrimMM = math.Max(set.BrimMM, 8)
				set.Notes = append(set.Notes, "Very small bed contact: brim strongly recommended.")
				s.Warnings = append(s.Warnings, "Very small bed contact area detected. High adhesion failure risk.")
			}
			if f.ContactRatio > 0 && f.ContactRatio < 0.15 {
				set.BrimMM = math.Max(set.BrimMM, 10)
				set.Notes = append(set.Notes, "Pointy base contact: consider re-orienting or adding raft/brim.")
				s.Warnings = append(s.Warnings, "Pointy base contact detected. Consider changing orientation or adding a raft/brim.")
			}
		}

		if hasAny(desc, "functional", "bracket", "mount", "holder", "clip") {
			if set.Walls < 4 {
				set.Walls = 4
			}
			if set.InfillPercent < 20 {
				set.InfillPercent = 20
			}
			set.Notes = append(set.Notes, "Functional part: increased walls/infill for strength.")
		}
		if hasAny(desc, "figurine", "statue", "decor", "ornament") {
			if set.InfillPercent > 12 {
				set.InfillPercent = 12
			}
			set.Notes = append(set.Notes, "Decorative part: lower infill usually fine.")
		}

		s.Slicer = set
		return nil
	})
}

// AnalyzeRisks inspects the assembled plan for common print risks. It adds
// warnings and mitigations only; it never changes settings.
func AnalyzeRisks() Step {
	return NewStep("analyze_risks", func(_ context.Context, s *State) error {
		desc := strings.ToLower(s.Input.Description)
		h, w := s.Input.HeightMM, s.Input.WidthMM
		aspect := 0.0
		if h > 0 && w > 0 {
			aspect = h / w
		}

		var report RiskReport
		addRisk := func(id, severity, why, fix string) {
			report.Items = append(report.Items, Risk{ID: id, Severity: severity, Why: why})
			if fix != "" {
				report.Mitigations = append(report.Mitigations, fix)
			}
		}

		if aspect >= 3.0 {
			addRisk("stability_tall", SeverityMedium,
				fmt.Sprintf("High aspect ratio (~%.2f). Tall prints are more likely to wobble or fail.", round2(aspect)),
				"Use a brim (5-10mm), reduce speed, and ensure strong bed adhesion.")
			if s.Slicer.BrimMM < 5 {
				s.Warnings = append(s.Warnings, "Tall model detected but brim is small/zero. Consider adding a brim.")
			}
			if s.Slicer.Walls < 3 {
				s.Warnings = append(s.Warnings, "Tall model detected but walls are low. Consider 3-4 walls.")
			}
		}

		if w > 0 && w <= 20 {
			addRisk("adhesion_small_footprint", SeverityHigh,
				fmt.Sprintf("Small footprint (width ~%gmm) can detach from bed easily.", w),
				"Add brim/mouse-ears, clean bed, and consider slower first layer.")
			if s.Slicer.BrimMM < 5 {
				s.Warnings = append(s.Warnings, "Small footprint detected but brim is small/zero. Brim is strongly recommended.")
			}
		}

		switch s.Material.Recommended {
		case "ABS", "ASA":
			addRisk("warping_abs_asa", SeverityHigh,
				fmt.Sprintf("%s has higher warping risk without stable ambient temperature.", s.Material.Recommended),
				"Use an enclosure, avoid drafts, and use a brim. Consider ASA for outdoor UV needs.")
			s.Assumptions = append(s.Assumptions, "Assuming enclosure/ventilation considerations for ABS/ASA.")
		case "TPU":
			addRisk("tpu_printing", SeverityMedium,
				"TPU is flexible and can be harder to feed; stringing and jams are more likely.",
				"Print slowly, minimize retractions, and ensure filament path is constrained.")
			if !strings.Contains(strings.ToLower(s.Slicer.Supports), "off") {
				s.Warnings = append(s.Warnings, "TPU selected: supports can be messy; avoid supports unless necessary.")
			}
		}

		if strings.Contains(strings.ToLower(s.Slicer.Supports), "off") &&
			hasAny(desc, "overhang", "bridge", "hanging", "cantilever") {
			addRisk("supports_maybe_needed", SeverityMedium,
				"Description suggests overhangs/bridges but supports are off.",
				"Enable supports (tree/organic if available) or re-orient to reduce overhangs.")
			s.Warnings = append(s.Warnings, "Overhang-related keywords detected. Supports might be needed.")
		}

		report.Count = len(report.Items)
		report.HighestSeverity = SeverityLow
		for _, r := range report.Items {
			if r.Severity == SeverityHigh {
				report.HighestSeverity = SeverityHigh
				break
			}
			report.HighestSeverity = SeverityMedium
		}

		s.Risks = report
		return nil
	})
}
