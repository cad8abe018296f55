package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/slicewise/slicewise/knowledge"
	"github.com/slicewise/slicewise/llm"
	"github.com/slicewise/slicewise/mesh"
)

// stubProvider returns a canned completion and streams it word by word.
type stubProvider struct {
	content string
	err     error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Completion(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.content}, nil
}

func (s *stubProvider) Stream(_ context.Context, _ *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for _, word := range strings.SplitAfter(s.content, " ") {
			ch <- llm.StreamChunk{Delta: word}
		}
		ch <- llm.StreamChunk{Done: true}
	}()
	return ch, nil
}

func (s *stubProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

type stubRetriever struct {
	snippets []knowledge.Snippet
	err      error
	queries  []string
}

func (r *stubRetriever) Retrieve(_ context.Context, query string, _ int) ([]knowledge.Snippet, error) {
	r.queries = append(r.queries, query)
	return r.snippets, r.err
}

func analyzeStub(record *mesh.FeatureRecord) AnalyzeFunc {
	return func(context.Context, []byte) (*mesh.FeatureRecord, error) {
		return record, nil
	}
}

func newTestPlanner(t *testing.T, retriever KnowledgeRetriever, provider llm.Provider, analyze AnalyzeFunc) *Planner {
	t.Helper()
	if analyze == nil {
		analyze = func(context.Context, []byte) (*mesh.FeatureRecord, error) {
			return nil, errors.New("no mesh expected")
		}
	}
	return New(analyze, retriever, provider, Config{Model: "gpt-4o-mini", TopK: 3}, zaptest.NewLogger(t))
}

func TestPlan_EndToEndWithoutProvider(t *testing.T) {
	p := newTestPlanner(t, nil, nil, nil)

	plan, err := p.Plan(context.Background(), Request{
		Description: "tall vase for the garden",
		HeightMM:    180,
		WidthMM:     40,
	})
	require.NoError(t, err)

	assert.Equal(t, "Print plan for: tall vase for the garden", plan.Summary)
	assert.Equal(t, "ASA", plan.Material.Recommended)
	assert.GreaterOrEqual(t, plan.Slicer.BrimMM, 6.0)
	assert.NotEmpty(t, plan.Explanation)
	assert.NotEmpty(t, plan.Warnings)
	assert.GreaterOrEqual(t, plan.Risks.Count, 1)
}

func TestPlan_RejectedRequestShortCircuits(t *testing.T) {
	p := newTestPlanner(t, nil, nil, nil)

	plan, err := p.Plan(context.Background(), Request{Description: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Not a print-plan request", plan.Summary)
	assert.Contains(t, plan.Explanation, "height and width in mm")
	assert.Empty(t, plan.Material.Recommended)
}

func TestPlan_MeshFeaturesFlowThroughRules(t *testing.T) {
	record := &mesh.FeatureRecord{
		BBoxMM:         [3]float64{30, 30, 150},
		ContactAreaMM2: 200,
		ContactRatio:   0.1,
		HeightMM:       150,
		AspectRatio:    5,
		Watertight:     true,
		IsVolume:       true,
		LikelySupports: true,
		MeshIssue:      "ok",
	}
	p := newTestPlanner(t, nil, nil, analyzeStub(record))

	plan, err := p.Plan(context.Background(), Request{
		Description: "mystery sculpture",
		MeshData:    []byte("fake stl"),
	})
	require.NoError(t, err)

	assert.Equal(t, record, plan.Features)
	// bbox z=150 → PETG via tall-print rule
	assert.Equal(t, "PETG", plan.Material.Recommended)
	assert.Equal(t, "on (mesh overhang detected)", plan.Slicer.Supports)
	assert.GreaterOrEqual(t, plan.Slicer.BrimMM, 10.0)
	assert.Contains(t, plan.Explanation, "### Model Checks (from STL)")
	assert.Contains(t, plan.Explanation, "150.00")
}

func TestPlan_ProviderExplanationWithKnowledge(t *testing.T) {
	retriever := &stubRetriever{snippets: []knowledge.Snippet{
		{Source: "adhesion.md", Content: "use a brim", Score: 0.9},
	}}
	provider := &stubProvider{content: "Here is why these settings fit your part."}
	p := newTestPlanner(t, retriever, provider, nil)

	plan, err := p.Plan(context.Background(), Request{
		Description: "bracket mount", HeightMM: 120, WidthMM: 30,
	})
	require.NoError(t, err)

	assert.Contains(t, plan.Explanation, "Here is why these settings fit your part.")
	assert.Equal(t, []string{"adhesion.md"}, plan.Sources)
	require.Len(t, retriever.queries, 1)
	assert.Contains(t, retriever.queries[0], "bracket mount")
	assert.Contains(t, retriever.queries[0], "height 120mm")
}

func TestPlan_ProviderFailureFallsBack(t *testing.T) {
	provider := &stubProvider{err: errors.New("upstream down")}
	p := newTestPlanner(t, nil, provider, nil)

	plan, err := p.Plan(context.Background(), Request{
		Description: "bracket mount", HeightMM: 120, WidthMM: 30,
	})
	require.NoError(t, err)
	assert.Contains(t, plan.Explanation, "Recommended material:")
}

func TestPlan_RetrieverFailureDegrades(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("store offline")}
	p := newTestPlanner(t, retriever, nil, nil)

	plan, err := p.Plan(context.Background(), Request{
		Description: "bracket mount", HeightMM: 120, WidthMM: 30,
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Sources)
	assert.NotEmpty(t, plan.Explanation)
}

func TestPlan_EmitterReceivesEventsAndTokens(t *testing.T) {
	provider := &stubProvider{content: "short answer"}
	p := newTestPlanner(t, nil, provider, nil)

	var events []Event
	ctx := WithEmitter(context.Background(), func(e Event) {
		events = append(events, e)
	})

	_, err := p.Plan(ctx, Request{Description: "bracket mount", HeightMM: 120, WidthMM: 30})
	require.NoError(t, err)

	var starts, completes, tokens, plans int
	for _, e := range events {
		switch e.Type {
		case EventStepStart:
			starts++
		case EventStepComplete:
			completes++
		case EventToken:
			tokens++
		case EventPlan:
			plans++
		}
	}
	assert.Equal(t, len(p.Steps()), starts)
	assert.Equal(t, starts, completes)
	assert.Greater(t, tokens, 0)
	assert.Equal(t, 1, plans)
}

func TestPlan_RejectionSkipsLaterSteps(t *testing.T) {
	called := false
	p := newTestPlanner(t, nil, nil, func(context.Context, []byte) (*mesh.FeatureRecord, error) {
		called = true
		return nil, nil
	})

	var started []string
	ctx := WithEmitter(context.Background(), func(e Event) {
		if e.Type == EventStepStart {
			started = append(started, e.Step)
		}
	})

	_, err := p.Plan(ctx, Request{Description: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"intent_guard"}, started)
	assert.False(t, called)
}

func TestPlan_ContextCancellation(t *testing.T) {
	p := newTestPlanner(t, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Plan(ctx, Request{Description: "bracket mount", HeightMM: 100, WidthMM: 30})
	assert.ErrorIs(t, err, context.Canceled)
}
