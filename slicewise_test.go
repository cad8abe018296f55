package slicewise

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flatTriangle = `solid tri
 facet normal 0 0 1
  outer loop
   vertex 0 0 0
   vertex 10 0 0
   vertex 0 10 0
  endloop
 endfacet
endsolid tri
`

func TestAnalyzeSTL(t *testing.T) {
	rec, err := AnalyzeSTL(strings.NewReader(flatTriangle))
	require.NoError(t, err)
	assert.Equal(t, [3]float64{10, 10, 0}, rec.BBoxMM)
	assert.False(t, rec.Watertight)
}

func TestAnalyzeSTLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tri.stl")
	require.NoError(t, os.WriteFile(path, []byte(flatTriangle), 0o644))

	rec, err := AnalyzeSTLFile(path)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{10, 10, 0}, rec.BBoxMM)

	_, err = AnalyzeSTLFile(filepath.Join(t.TempDir(), "missing.stl"))
	assert.Error(t, err)
}
