package knowledge

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/slicewise/slicewise/internal/database"
)

// ChunkRecord is the persisted form of an embedded chunk.
type ChunkRecord struct {
	ID      uint   `gorm:"primaryKey"`
	Source  string `gorm:"index;size:512"`
	Content string `gorm:"type:text"`
	Vector  []byte `gorm:"type:blob"`
}

func (ChunkRecord) TableName() string { return "knowledge_chunks" }

// Store persists embedded chunks through the shared GORM pool.
type Store struct {
	pool *database.PoolManager
}

func NewStore(pool *database.PoolManager) *Store {
	return &Store{pool: pool}
}

// Migrate creates the chunk table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	return s.pool.DB().WithContext(ctx).AutoMigrate(&ChunkRecord{})
}

// Replace atomically swaps the stored chunks for the given source.
func (s *Store) Replace(ctx context.Context, source string, chunks []Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	records := make([]ChunkRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = ChunkRecord{
			Source:  chunk.Source,
			Content: chunk.Content,
			Vector:  encodeVector(vectors[i]),
		}
	}
	return s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("source = ?", source).Delete(&ChunkRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Create(&records).Error
	})
}

// All loads every stored chunk with its vector decoded.
func (s *Store) All(ctx context.Context) ([]ChunkRecord, error) {
	var records []ChunkRecord
	if err := s.pool.DB().WithContext(ctx).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.DB().WithContext(ctx).Model(&ChunkRecord{}).Count(&n).Error
	return n, err
}

func encodeVector(v []float64) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(v)*8))
	for _, x := range v {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(x))
		buf.Write(b[:])
	}
	return buf.Bytes()
}

func decodeVector(data []byte) []float64 {
	v := make([]float64, len(data)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return v
}
