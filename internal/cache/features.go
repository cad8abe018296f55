package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/slicewise/slicewise/mesh"
)

// FeatureCache caches feature records keyed by a content hash of the
// raw mesh bytes. Analysis is a pure function of mesh and config, so
// identical bytes always map to the identical record; the config
// digest is folded into the key so tolerance changes invalidate
// naturally.
type FeatureCache struct {
	manager *Manager
	ttl     time.Duration
	logger  *zap.Logger
}

// NewFeatureCache wraps a Manager for feature-record storage.
func NewFeatureCache(manager *Manager, ttl time.Duration, logger *zap.Logger) *FeatureCache {
	return &FeatureCache{
		manager: manager,
		ttl:     ttl,
		logger:  logger.With(zap.String("component", "feature_cache")),
	}
}

// FeatureKey derives the cache key for one mesh snapshot under one
// analysis config.
func FeatureKey(meshBytes []byte, cfg mesh.Config) string {
	h := sha256.New()
	h.Write(meshBytes)
	// Tolerances change rarely; folding them in beats a manual flush.
	if data, err := cfgBytes(cfg); err == nil {
		h.Write(data)
	}
	return "features:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached record for the key, or ok=false on a miss.
// Redis failures degrade to a miss so analysis always proceeds.
func (c *FeatureCache) Get(ctx context.Context, key string) (mesh.FeatureRecord, bool) {
	var rec mesh.FeatureRecord
	err := c.manager.GetJSON(ctx, key, &rec)
	if err != nil {
		if !IsCacheMiss(err) {
			c.logger.Warn("feature cache read failed", zap.Error(err))
		}
		return mesh.FeatureRecord{}, false
	}
	return rec, true
}

// Put stores the record; failures are logged, never surfaced.
func (c *FeatureCache) Put(ctx context.Context, key string, rec mesh.FeatureRecord) {
	if err := c.manager.SetJSON(ctx, key, rec, c.ttl); err != nil {
		c.logger.Warn("feature cache write failed", zap.Error(err))
	}
}

func cfgBytes(cfg mesh.Config) ([]byte, error) {
	return json.Marshal(cfg)
}
