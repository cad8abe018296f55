package planner

import (
	"context"

	"go.uber.org/zap"

	"github.com/slicewise/slicewise/llm"
	"github.com/slicewise/slicewise/mesh"
)

// AnalyzeFunc produces a feature record from raw STL bytes.
type AnalyzeFunc func(ctx context.Context, data []byte) (*mesh.FeatureRecord, error)

// Config are the pipeline knobs that come from the application config.
type Config struct {
	Model           string
	MaxPromptTokens int
	TopK            int
}

// Planner runs the plan pipeline.
type Planner struct {
	chain  *Chain
	logger *zap.Logger
}

// New assembles the pipeline. analyze is required; retriever and provider
// may be nil, in which case the knowledge and explanation steps degrade to
// their deterministic behaviour.
func New(analyze AnalyzeFunc, retriever KnowledgeRetriever, provider llm.Provider, cfg Config, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "planner"))

	// mesh analysis runs before normalization so bbox-derived dimensions
	// flow through the same rules as user-supplied ones
	chain := NewChain("print-plan",
		IntentGuard(),
		MeshAnalyze(analyze),
		NormalizeInput(),
		ModelOverview(),
		Orientation(),
		SelectMaterial(),
		GenerateSlicerSettings(),
		AnalyzeRisks(),
		RetrieveKnowledge(retriever, cfg.TopK, logger),
		ExplainPlan(provider, cfg.Model, cfg.MaxPromptTokens, logger),
	)
	return &Planner{chain: chain, logger: logger}
}

// Plan executes the pipeline for one request. Progress events go to the
// emitter attached to ctx via WithEmitter, if any.
func (p *Planner) Plan(ctx context.Context, req Request) (*Plan, error) {
	state := &State{Request: req}
	if err := p.chain.Execute(ctx, state); err != nil {
		return nil, err
	}
	plan := state.assemble()

	if emit, ok := emitterFromContext(ctx); ok {
		emit(Event{Type: EventPlan, Data: plan})
	}
	p.logger.Debug("plan complete",
		zap.Bool("rejected", state.Rejected),
		zap.String("material", plan.Material.Recommended),
		zap.Int("risks", plan.Risks.Count))
	return plan, nil
}

// Steps exposes the chain's step names, in order, for diagnostics.
func (p *Planner) Steps() []string {
	names := make([]string, len(p.chain.steps))
	for i, step := range p.chain.steps {
		names[i] = step.Name()
	}
	return names
}
