package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/slicewise/slicewise/knowledge"
	"github.com/slicewise/slicewise/llm"
)

const systemPrompt = `You are a 3D printing assistant. Explain print plans to
beginners in plain language. Be concrete, short, and honest about risks. Use
the provided plan, warnings, risks, and reference snippets; do not invent
settings that are not in the plan.`

// KnowledgeRetriever is the subset of knowledge.Retriever the pipeline needs.
type KnowledgeRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]knowledge.Snippet, error)
}

// RetrieveKnowledge pulls the top reference snippets for the request. The
// query stays aligned with the knowledge-base headings so keyword overlap is
// enough even with the fallback embedder. Retrieval failures degrade to an
// empty context rather than failing the plan.
func RetrieveKnowledge(retriever KnowledgeRetriever, topK int, logger *zap.Logger) Step {
	return NewStep("knowledge_retrieve", func(ctx context.Context, s *State) error {
		if retriever == nil {
			return nil
		}
		query := fmt.Sprintf(
			"%s. height %gmm width %gmm. brim supports tall print walls infill bed adhesion materials PLA PETG ABS ASA TPU.",
			s.Input.Description, s.Input.HeightMM, s.Input.WidthMM)

		snippets, err := retriever.Retrieve(ctx, query, topK)
		if err != nil {
			logger.Warn("knowledge retrieval failed", zap.Error(err))
			return nil
		}
		s.Knowledge = KnowledgeContext{
			Context: knowledge.FormatContext(snippets),
			Sources: knowledge.Sources(snippets),
		}
		return nil
	})
}

// ExplainPlan generates the natural-language explanation. With a provider it
// streams tokens through the context emitter when one is attached; without a
// provider (or on provider failure) it falls back to a deterministic summary.
// The mesh features section is always appended verbatim.
func ExplainPlan(provider llm.Provider, model string, maxPromptTokens int, logger *zap.Logger) Step {
	var counter llm.MessageCounter
	if provider != nil {
		counter = llm.NewTokenizer(model)
	}

	return NewStep("explain_plan", func(ctx context.Context, s *State) error {
		var text string
		if provider != nil {
			generated, err := generateExplanation(ctx, provider, counter, model, maxPromptTokens, s)
			if err != nil {
				logger.Warn("explanation generation failed, using fallback", zap.Error(err))
				text = fallbackExplanation(s)
			} else {
				text = generated
			}
		} else {
			text = fallbackExplanation(s)
		}

		s.Explanation = strings.TrimSpace(text) + renderMeshSection(s)
		return nil
	})
}

func generateExplanation(ctx context.Context, provider llm.Provider, counter llm.MessageCounter, model string, maxPromptTokens int, s *State) (string, error) {
	planJSON, err := json.MarshalIndent(s.assemble(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}
	risksJSON, err := json.MarshalIndent(s.Risks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal risks: %w", err)
	}

	warningsText := "- (none)"
	if len(s.Warnings) > 0 {
		warningsText = "- " + strings.Join(s.Warnings, "\n- ")
	}

	userPrompt := fmt.Sprintf(
		"Explain this print plan to a beginner.\n\nPLAN:\n%s\n\nWARNINGS:\n%s\n\nRISKS:\n%s\n\nREFERENCE SNIPPETS:\n%s\n",
		planJSON, warningsText, risksJSON, s.Knowledge.Context)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userPrompt},
	}
	messages, err = llm.BoundMessages(counter, messages, maxPromptTokens)
	if err != nil {
		return "", fmt.Errorf("bound prompt: %w", err)
	}

	req := &llm.ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.2,
	}

	emit, streaming := emitterFromContext(ctx)
	if !streaming {
		resp, err := provider.Completion(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	ch, err := provider.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		if chunk.Delta != "" {
			sb.WriteString(chunk.Delta)
			emit(Event{Type: EventToken, Step: "explain_plan", Data: chunk.Delta})
		}
	}
	return sb.String(), nil
}

func fallbackExplanation(s *State) string {
	var sb strings.Builder
	sb.WriteString(s.ModelOverview)
	sb.WriteString(fmt.Sprintf(" Recommended material: %s (%s)", s.Material.Recommended, s.Material.Reason))
	sb.WriteString(fmt.Sprintf(" Orientation: %s.", s.Orientation.Recommended))
	sb.WriteString(fmt.Sprintf(" Print with %d walls, %d%% %s infill, supports %s",
		s.Slicer.Walls, s.Slicer.InfillPercent, s.Slicer.InfillPattern, s.Slicer.Supports))
	if s.Slicer.BrimMM > 0 {
		sb.WriteString(fmt.Sprintf(", and a %gmm brim", s.Slicer.BrimMM))
	}
	sb.WriteString(".")
	if len(s.Warnings) > 0 {
		sb.WriteString(" Watch out for: ")
		sb.WriteString(strings.Join(s.Warnings, "; "))
		sb.WriteString(".")
	}
	return sb.String()
}

// renderMeshSection formats the feature record as a markdown block appended
// to every explanation. The numbers come straight from analysis, so the text
// stays trustworthy even when the generated prose is not.
func renderMeshSection(s *State) string {
	f := s.Features
	if f == nil {
		return ""
	}

	var lines []string
	lines = append(lines, "", "### Model Checks (from STL)")
	lines = append(lines, fmt.Sprintf("- **Dimensions (mm)**: %.2f x %.2f x %.2f", f.BBoxMM[0], f.BBoxMM[1], f.BBoxMM[2]))
	lines = append(lines, fmt.Sprintf("- **Height (mm)**: %.2f", f.BBoxMM[2]))

	if f.Watertight {
		lines = append(lines, "- **Watertight**: Yes")
	} else {
		lines = append(lines, "- **Watertight**: No")
		if f.LikelyOpenTop {
			lines = append(lines, "- **Likely open-top (intentional)**: Yes")
		} else {
			lines = append(lines, "- **Likely open-top (intentional)**: No")
		}
		lines = append(lines, fmt.Sprintf("- **Open edges (boundary edge count)**: %d", f.BoundaryEdges))
	}

	lines = append(lines, fmt.Sprintf("- **Estimated bed contact area (mm²)**: %.2f", f.ContactAreaMM2))
	lines = append(lines, fmt.Sprintf("- **Contact ratio (contact / bbox footprint)**: %.3f", f.ContactRatio))
	lines = append(lines, fmt.Sprintf("- **Aspect ratio (height / max(x,y))**: %.3f", f.AspectRatio))
	lines = append(lines, fmt.Sprintf("- **Overhang faces ≥ threshold (%%)**: %.2f%%", f.OverhangPercent))
	lines = append(lines, fmt.Sprintf("- **Max overhang angle (deg)**: %.1f", f.MaxOverhangDeg))
	if f.LikelySupports {
		lines = append(lines, "- **Supports likely needed**: Yes")
	} else {
		lines = append(lines, "- **Supports likely needed**: No")
	}
	lines = append(lines, fmt.Sprintf("- **Volume (mm³)**: %.2f", f.VolumeMM3))
	lines = append(lines, fmt.Sprintf("- **Surface area (mm²)**: %.2f", f.SurfaceAreaMM2))

	return "\n" + strings.Join(lines, "\n")
}
