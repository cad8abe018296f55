package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/slicewise/slicewise/internal/cache"
	"github.com/slicewise/slicewise/internal/metrics"
	"github.com/slicewise/slicewise/mesh"
	"github.com/slicewise/slicewise/types"
)

// Analyzer runs mesh analysis with an optional feature cache in front.
// Analysis is pure, so the content hash of the bytes plus the tolerance
// config is a sound cache key.
type Analyzer struct {
	cfg       mesh.Config
	cache     *cache.FeatureCache
	collector *metrics.Collector
	logger    *zap.Logger
}

func NewAnalyzer(cfg mesh.Config, featureCache *cache.FeatureCache, collector *metrics.Collector, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		cfg:       cfg,
		cache:     featureCache,
		collector: collector,
		logger:    logger.With(zap.String("component", "analyzer")),
	}
}

// AnalyzeBytes loads and analyzes raw STL bytes. source tags the metrics
// ("upload", "file").
func (a *Analyzer) AnalyzeBytes(ctx context.Context, data []byte, source string) (*mesh.FeatureRecord, error) {
	start := time.Now()

	var key string
	if a.cache != nil {
		key = cache.FeatureKey(data, a.cfg)
		if rec, ok := a.cache.Get(ctx, key); ok {
			if a.collector != nil {
				a.collector.RecordCacheHit("features")
				a.collector.RecordAnalysis("cached", "cache", 0, time.Since(start))
			}
			return &rec, nil
		}
		if a.collector != nil {
			a.collector.RecordCacheMiss("features")
		}
	}

	m, err := mesh.LoadSTL(bytes.NewReader(data))
	if err != nil {
		if a.collector != nil {
			a.collector.RecordAnalysis("load_error", source, 0, time.Since(start))
		}
		return nil, types.NewError(types.ErrMeshLoad, err.Error()).WithCause(err)
	}

	rec := mesh.Analyze(m, a.cfg)
	if a.cache != nil {
		a.cache.Put(ctx, key, rec)
	}
	if a.collector != nil {
		a.collector.RecordAnalysis("ok", source, m.FaceCount(), time.Since(start))
	}
	a.logger.Debug("mesh analyzed",
		zap.Int("faces", m.FaceCount()),
		zap.Bool("watertight", rec.Watertight),
		zap.Duration("took", time.Since(start)))
	return &rec, nil
}

// AnalyzeFunc adapts the analyzer to the planner's analyze hook, tagging
// results with the given source label.
func (a *Analyzer) AnalyzeFunc(source string) func(ctx context.Context, data []byte) (*mesh.FeatureRecord, error) {
	return func(ctx context.Context, data []byte) (*mesh.FeatureRecord, error) {
		return a.AnalyzeBytes(ctx, data, source)
	}
}

// AnalyzeHandler serves POST /api/v1/analyze.
type AnalyzeHandler struct {
	analyzer *Analyzer
	maxBytes int64
	logger   *zap.Logger
}

func NewAnalyzeHandler(analyzer *Analyzer, maxBytes int64, logger *zap.Logger) *AnalyzeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyzeHandler{
		analyzer: analyzer,
		maxBytes: maxBytes,
		logger:   logger.With(zap.String("handler", "analyze")),
	}
}

// HandleAnalyze accepts an STL either as a multipart "file" field or as the
// raw request body and responds with the feature record.
func (h *AnalyzeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteErrorMessage(w, r, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}

	data, terr := ReadMeshUpload(r, h.maxBytes)
	if terr != nil {
		WriteError(w, r, terr, h.logger)
		return
	}

	rec, err := h.analyzer.AnalyzeBytes(r.Context(), data, "upload")
	if err != nil {
		var typed *types.Error
		if errors.As(err, &typed) {
			WriteError(w, r, typed, h.logger)
			return
		}
		WriteErrorMessage(w, r, http.StatusInternalServerError, types.ErrInternalError, err.Error(), h.logger)
		return
	}

	WriteSuccess(w, r, rec)
}

// ReadMeshUpload extracts STL bytes from a request, enforcing the size cap.
// Multipart bodies must carry the mesh in a "file" part; any other body is
// treated as raw STL.
func ReadMeshUpload(r *http.Request, maxBytes int64) ([]byte, *types.Error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			if isBodyTooLarge(err) {
				return nil, meshTooLarge(maxBytes)
			}
			return nil, types.NewError(types.ErrInvalidRequest, "malformed multipart body").WithCause(err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, `multipart upload must include a "file" part`).WithCause(err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "failed to read uploaded file").WithCause(err)
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, meshTooLarge(maxBytes)
		}
		return nil, types.NewError(types.ErrInvalidRequest, "failed to read request body").WithCause(err)
	}
	if len(data) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "request body is empty")
	}
	return data, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func meshTooLarge(maxBytes int64) *types.Error {
	return types.NewError(types.ErrMeshTooLarge,
		fmt.Sprintf("mesh upload exceeds the %d byte limit", maxBytes)).
		WithHTTPStatus(http.StatusRequestEntityTooLarge)
}
