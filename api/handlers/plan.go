package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/slicewise/slicewise/internal/metrics"
	"github.com/slicewise/slicewise/planner"
	"github.com/slicewise/slicewise/types"
)

// PlanHandler serves POST /api/v1/plan.
type PlanHandler struct {
	planner   *planner.Planner
	collector *metrics.Collector
	maxBytes  int64
	logger    *zap.Logger
}

func NewPlanHandler(p *planner.Planner, collector *metrics.Collector, maxBytes int64, logger *zap.Logger) *PlanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanHandler{
		planner:   p,
		collector: collector,
		maxBytes:  maxBytes,
		logger:    logger.With(zap.String("handler", "plan")),
	}
}

// planRequestBody is the JSON form of a plan request.
type planRequestBody struct {
	Description string  `json:"description"`
	HeightMM    float64 `json:"height_mm"`
	WidthMM     float64 `json:"width_mm"`
}

// HandlePlan accepts either a JSON body (description + dimensions) or a
// multipart form with description/height_mm/width_mm fields and an optional
// STL "file" part.
func (h *PlanHandler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, r, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	req, terr := h.decodePlanRequest(r)
	if terr != nil {
		WriteError(w, r, terr, h.logger)
		return
	}

	start := time.Now()
	ctx := r.Context()
	if h.collector != nil {
		stepStarts := make(map[string]time.Time)
		ctx = planner.WithEmitter(ctx, func(e planner.Event) {
			switch e.Type {
			case planner.EventStepStart:
				stepStarts[e.Step] = time.Now()
			case planner.EventStepComplete:
				if t0, ok := stepStarts[e.Step]; ok {
					h.collector.RecordPlanStep(e.Step, time.Since(t0))
				}
			}
		})
	}

	plan, err := h.planner.Plan(ctx, *req)
	if err != nil {
		if h.collector != nil {
			h.collector.RecordPlan("error", time.Since(start))
		}
		WriteErrorMessage(w, r, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
		return
	}

	if h.collector != nil {
		outcome := "ok"
		if plan.Rejected {
			outcome = "rejected"
		}
		h.collector.RecordPlan(outcome, time.Since(start))
		for _, risk := range plan.Risks.Items {
			h.collector.RecordPlanRisk(risk.ID)
		}
	}

	WriteSuccess(w, r, plan)
}

func (h *PlanHandler) decodePlanRequest(r *http.Request) (*planner.Request, *types.Error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return h.decodeMultipart(r)
	}

	if !ValidateContentType(r, "application/json") {
		return nil, types.NewError(types.ErrInvalidRequest,
			"plan requests must be application/json or multipart/form-data")
	}
	var body planRequestBody
	if err := DecodeJSONBody(r, &body); err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, err.Error()).WithCause(err)
	}
	return &planner.Request{
		Description: body.Description,
		HeightMM:    body.HeightMM,
		WidthMM:     body.WidthMM,
	}, nil
}

func (h *PlanHandler) decodeMultipart(r *http.Request) (*planner.Request, *types.Error) {
	maxBytes := h.maxBytes
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if isBodyTooLarge(err) {
			return nil, meshTooLarge(maxBytes)
		}
		return nil, types.NewError(types.ErrInvalidRequest, "malformed multipart body").WithCause(err)
	}

	req := &planner.Request{Description: r.FormValue("description")}
	if v := r.FormValue("height_mm"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "height_mm is not a number")
		}
		req.HeightMM = f
	}
	if v := r.FormValue("width_mm"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "width_mm is not a number")
		}
		req.WidthMM = f
	}

	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "failed to read uploaded file").WithCause(err)
		}
		req.MeshData = data
	}
	return req, nil
}
