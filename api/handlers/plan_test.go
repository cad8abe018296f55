package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/slicewise/slicewise/mesh"
	"github.com/slicewise/slicewise/planner"
)

func newTestPlanner(t *testing.T) *planner.Planner {
	t.Helper()
	analyze := func(ctx context.Context, data []byte) (*mesh.FeatureRecord, error) {
		m, err := mesh.LoadSTL(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		rec := mesh.Analyze(m, mesh.DefaultConfig())
		return &rec, nil
	}
	return planner.New(analyze, nil, nil, planner.Config{Model: "gpt-4o-mini"}, zaptest.NewLogger(t))
}

func newTestPlanHandler(t *testing.T) *PlanHandler {
	t.Helper()
	return NewPlanHandler(newTestPlanner(t), nil, 1<<20, zaptest.NewLogger(t))
}

func decodePlan(t *testing.T, rr *httptest.ResponseRecorder) planner.Plan {
	t.Helper()
	envelope := decodeResponse(t, rr)
	require.True(t, envelope.Success)
	raw, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var plan planner.Plan
	require.NoError(t, json.Unmarshal(raw, &plan))
	return plan
}

func TestHandlePlan_JSONBody(t *testing.T) {
	h := newTestPlanHandler(t)
	body := `{"description":"bracket mount","height_mm":120,"width_mm":30}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.HandlePlan(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	plan := decodePlan(t, rr)
	assert.False(t, plan.Rejected)
	assert.Equal(t, "PETG", plan.Material.Recommended)
	assert.Equal(t, "Print plan for: bracket mount", plan.Summary)
	assert.NotEmpty(t, plan.Explanation)
}

func TestHandlePlan_MultipartWithMesh(t *testing.T) {
	h := newTestPlanHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("description", "flat tray for the workshop"))
	fw, err := mw.CreateFormFile("file", "tray.stl")
	require.NoError(t, err)
	_, err = fw.Write([]byte(asciiTriangle))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()

	h.HandlePlan(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	plan := decodePlan(t, rr)
	assert.False(t, plan.Rejected)
	require.NotNil(t, plan.Features)
	assert.Equal(t, [3]float64{10, 10, 0}, plan.Features.BBoxMM)
	assert.Contains(t, plan.Explanation, "### Model Checks (from STL)")
}

func TestHandlePlan_MultipartDimensionFields(t *testing.T) {
	h := newTestPlanHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("description", "phone case bumper"))
	require.NoError(t, mw.WriteField("height_mm", "12"))
	require.NoError(t, mw.WriteField("width_mm", "75"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()

	h.HandlePlan(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	plan := decodePlan(t, rr)
	assert.Equal(t, "TPU", plan.Material.Recommended)
	assert.InDelta(t, 12, plan.Input.HeightMM, 1e-9)
}

func TestHandlePlan_MultipartBadDimension(t *testing.T) {
	h := newTestPlanHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("description", "small bracket"))
	require.NoError(t, mw.WriteField("height_mm", "tall"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()

	h.HandlePlan(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	envelope := decodeResponse(t, rr)
	assert.Contains(t, envelope.Error.Message, "height_mm")
}

func TestHandlePlan_WrongContentType(t *testing.T) {
	h := newTestPlanHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", strings.NewReader("description=x"))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()

	h.HandlePlan(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlePlan_UnknownJSONField(t *testing.T) {
	h := newTestPlanHandler(t)
	body := `{"description":"bracket mount","height_mm":120,"nozzle":0.4}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.HandlePlan(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	envelope := decodeResponse(t, rr)
	assert.Contains(t, envelope.Error.Message, "nozzle")
}

func TestHandlePlan_MethodNotAllowed(t *testing.T) {
	h := newTestPlanHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/plan", nil)
	rr := httptest.NewRecorder()

	h.HandlePlan(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandlePlan_RejectedRequest(t *testing.T) {
	h := newTestPlanHandler(t)
	body := `{"description":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/plan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.HandlePlan(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	plan := decodePlan(t, rr)
	assert.True(t, plan.Rejected)
	assert.Equal(t, "Not a print-plan request", plan.Summary)
}
