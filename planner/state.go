package planner

import "github.com/slicewise/slicewise/mesh"

// Request is the raw plan input as received from the caller.
type Request struct {
	Description string  `json:"description"`
	HeightMM    float64 `json:"height_mm,omitempty"`
	WidthMM     float64 `json:"width_mm,omitempty"`
	// MeshData holds raw STL bytes when the caller uploaded a model.
	MeshData []byte `json:"-"`
}

// NormalizedInput is the cleaned input the rule steps operate on.
type NormalizedInput struct {
	Description string  `json:"description"`
	HeightMM    float64 `json:"height_mm"`
	WidthMM     float64 `json:"width_mm"`
}

// MaterialPlan is the filament recommendation.
type MaterialPlan struct {
	Recommended  string   `json:"recommended"`
	Reason       string   `json:"reason"`
	Alternatives []string `json:"alternatives"`
}

// OrientationPlan is the orientation recommendation.
type OrientationPlan struct {
	Recommended     string   `json:"recommended"`
	Reason          string   `json:"reason"`
	AspectRatio     float64  `json:"aspect_ratio"`
	Tradeoffs       []string `json:"tradeoffs"`
	BedAdhesionTips []string `json:"bed_adhesion_tips"`
}

// SlicerSettings are the concrete slicer knobs.
type SlicerSettings struct {
	LayerHeightMM   float64  `json:"layer_height_mm"`
	Walls           int      `json:"walls"`
	TopBottomLayers int      `json:"top_bottom_layers"`
	InfillPercent   int      `json:"infill_percent"`
	InfillPattern   string   `json:"infill_pattern"`
	InfillReason    string   `json:"infill_reason"`
	Supports        string   `json:"supports"`
	BrimMM          float64  `json:"brim_mm"`
	Notes           []string `json:"notes"`
}

// Risk severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Risk is one identified print risk.
type Risk struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Why      string `json:"why"`
}

// RiskReport lists risks with their mitigations.
type RiskReport struct {
	Count           int      `json:"count"`
	HighestSeverity string   `json:"highest_severity"`
	Items           []Risk   `json:"items"`
	Mitigations     []string `json:"mitigations"`
}

// KnowledgeContext is the retrieved guidance used to ground the explanation.
type KnowledgeContext struct {
	Context string   `json:"context,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// State carries the plan through the step chain. Steps read earlier fields
// and write their own; the mesh feature record is never modified after the
// analyze step sets it.
type State struct {
	Request Request

	// Rejected marks a request the intent guard refused, with the message
	// the caller should see.
	Rejected       bool
	RejectedReason string

	Input       NormalizedInput
	Assumptions []string
	Warnings    []string

	Features *mesh.FeatureRecord

	ModelOverview string
	Material      MaterialPlan
	Orientation   OrientationPlan
	Slicer        SlicerSettings
	Risks         RiskReport
	Knowledge     KnowledgeContext
	Explanation   string
}

// Plan is the assembled result returned to callers.
type Plan struct {
	Summary       string              `json:"summary"`
	Rejected      bool                `json:"rejected,omitempty"`
	ModelOverview string              `json:"model_overview,omitempty"`
	Input         NormalizedInput     `json:"input"`
	Material      MaterialPlan        `json:"material"`
	Orientation   OrientationPlan     `json:"orientation"`
	Slicer        SlicerSettings      `json:"slicer_settings"`
	Risks         RiskReport          `json:"risks"`
	Features      *mesh.FeatureRecord `json:"mesh_features,omitempty"`
	Explanation   string              `json:"explanation,omitempty"`
	Assumptions   []string            `json:"assumptions"`
	Warnings      []string            `json:"warnings"`
	Sources       []string            `json:"knowledge_sources,omitempty"`
}

func (s *State) assemble() *Plan {
	if s.Rejected {
		return &Plan{
			Summary:     "Not a print-plan request",
			Rejected:    true,
			Explanation: s.RejectedReason,
		}
	}
	return &Plan{
		Summary:       "Print plan for: " + s.Input.Description,
		ModelOverview: s.ModelOverview,
		Input:         s.Input,
		Material:      s.Material,
		Orientation:   s.Orientation,
		Slicer:        s.Slicer,
		Risks:         s.Risks,
		Features:      s.Features,
		Explanation:   s.Explanation,
		Assumptions:   s.Assumptions,
		Warnings:      s.Warnings,
		Sources:       s.Knowledge.Sources,
	}
}
