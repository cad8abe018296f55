package mesh

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binarySTL assembles a binary STL body from triangles given as flat
// 9-float vertex triples. The header may be anything, including text
// that starts with "solid".
func binarySTL(header string, tris [][9]float32) []byte {
	var buf bytes.Buffer
	h := make([]byte, 80)
	copy(h, header)
	buf.Write(h)
	binary.Write(&buf, binary.LittleEndian, uint32(len(tris)))
	for _, tri := range tris {
		binary.Write(&buf, binary.LittleEndian, [3]float32{0, 0, 0}) // normal, ignored
		binary.Write(&buf, binary.LittleEndian, tri)
		binary.Write(&buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

func TestLoadSTL_Binary(t *testing.T) {
	// Two triangles sharing the edge (0,0,0)-(1,1,0).
	data := binarySTL("test", [][9]float32{
		{0, 0, 0, 1, 0, 0, 1, 1, 0},
		{0, 0, 0, 1, 1, 0, 0, 1, 0},
	})

	m, err := LoadSTL(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, 2, m.FaceCount())
	assert.Len(t, m.Vertices, 4, "shared positions intern to shared indices")

	usage := BuildEdgeUsage(m)
	assert.Equal(t, 2, usage[CanonicalEdge(m.Faces[0][0], m.Faces[0][2])],
		"the shared diagonal must be seen by both faces")
}

func TestLoadSTL_BinaryWithSolidHeader(t *testing.T) {
	// A binary file whose header begins with "solid" must still be
	// recognized as binary via the size check.
	data := binarySTL("solid exported-part", [][9]float32{
		{0, 0, 0, 1, 0, 0, 0, 1, 0},
	})

	m, err := LoadSTL(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1, m.FaceCount())
}

func TestLoadSTL_BinaryTruncated(t *testing.T) {
	data := binarySTL("test", [][9]float32{
		{0, 0, 0, 1, 0, 0, 0, 1, 0},
	})
	_, err := LoadSTL(bytes.NewReader(data[:len(data)-10]))

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Reason, "truncated")
}

const asciiTwoSolids = `solid left
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
endsolid left
solid right
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 1 1 0
    endloop
  endfacet
endsolid right
`

func TestLoadSTL_ASCIIMultiSolid(t *testing.T) {
	m, err := LoadSTL(strings.NewReader(asciiTwoSolids))
	require.NoError(t, err)

	assert.Equal(t, 2, m.FaceCount())
	// (0,0,0) and (1,0,0) appear in both solids but interning is
	// per-group, so the flattened mesh keeps six distinct vertices.
	assert.Len(t, m.Vertices, 6)

	// No index may cross into the other group's vertex range.
	for i := 0; i < 3; i++ {
		assert.Less(t, m.Faces[0][i], int32(3))
		assert.GreaterOrEqual(t, m.Faces[1][i], int32(3))
	}
}

func TestLoadSTL_ASCIIVertexReuseWithinSolid(t *testing.T) {
	const src = `solid s
facet normal 0 0 1
outer loop
vertex 0 0 0
vertex 1 0 0
vertex 1 1 0
endloop
endfacet
facet normal 0 0 1
outer loop
vertex 0 0 0
vertex 1 1 0
vertex 0 1 0
endloop
endfacet
endsolid s
`
	m, err := LoadSTL(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 2, m.FaceCount())
	assert.Len(t, m.Vertices, 4)
}

func TestLoadSTL_ASCIIBadCoordinate(t *testing.T) {
	const src = `solid s
facet normal 0 0 1
outer loop
vertex 0 0 zero
vertex 1 0 0
vertex 1 1 0
endloop
endfacet
endsolid s
`
	_, err := LoadSTL(strings.NewReader(src))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Reason, "bad coordinate")
	assert.Error(t, errors.Unwrap(loadErr))
}

func TestLoadSTL_EmptySolid(t *testing.T) {
	_, err := LoadSTL(strings.NewReader("solid empty\nendsolid empty\n"))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Reason, "no triangles")
}

func TestLoadSTL_Garbage(t *testing.T) {
	_, err := LoadSTL(strings.NewReader("this is not an stl file"))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadSTL_BinaryZeroTriangles(t *testing.T) {
	data := binarySTL("empty body", nil)
	_, err := LoadSTL(bytes.NewReader(data))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadSTLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part.stl")
	require.NoError(t, os.WriteFile(path, []byte(asciiTwoSolids), 0o644))

	m, err := LoadSTLFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, m.FaceCount())

	_, err = LoadSTLFile(filepath.Join(dir, "missing.stl"))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadSTL_BinaryRoundTripAnalysis(t *testing.T) {
	// Write the unit cube to binary STL and make sure the loaded copy
	// diagnoses identically to the in-memory fixture.
	cube := unitCube()
	tris := make([][9]float32, 0, cube.FaceCount())
	for _, f := range cube.Faces {
		a, b, c := cube.Vertices[f[0]], cube.Vertices[f[1]], cube.Vertices[f[2]]
		tris = append(tris, [9]float32{
			float32(a.X), float32(a.Y), float32(a.Z),
			float32(b.X), float32(b.Y), float32(b.Z),
			float32(c.X), float32(c.Y), float32(c.Z),
		})
	}

	m, err := LoadSTL(bytes.NewReader(binarySTL("cube", tris)))
	require.NoError(t, err)
	require.Equal(t, 12, m.FaceCount())
	require.Len(t, m.Vertices, 8)

	rec := Analyze(m, DefaultConfig())
	assert.True(t, rec.Watertight)
	assert.True(t, rec.IsVolume)
	assert.InDelta(t, 1.0, rec.VolumeMM3, 1e-6)
}

func TestBinaryZeroTriangleCountDetection(t *testing.T) {
	// 84 bytes with count 0 is a valid binary envelope.
	data := binarySTL("header", nil)
	require.Len(t, data, 84)
	assert.True(t, isBinarySTL(data))
}
