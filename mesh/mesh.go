package mesh

import "fmt"

// Mesh is an indexed triangle mesh laid out as a vertex buffer plus a
// face-index buffer. Faces may reference repeated vertex indices; such
// faces are reported as degenerate by the integrity diagnostics rather
// than rejected at construction.
type Mesh struct {
	Vertices []Vec3
	Faces    [][3]int32
}

// New validates the face-index buffer against the vertex buffer and
// returns the mesh. A zero-face mesh is legal.
func New(vertices []Vec3, faces [][3]int32) (*Mesh, error) {
	n := int32(len(vertices))
	for i, f := range faces {
		for _, idx := range f {
			if idx < 0 || idx >= n {
				return nil, fmt.Errorf("face %d references vertex %d, mesh has %d vertices", i, idx, n)
			}
		}
	}
	return &Mesh{Vertices: vertices, Faces: faces}, nil
}

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int { return len(m.Faces) }

// FaceVertices returns the three corner positions of face i.
func (m *Mesh) FaceVertices(i int) (a, b, c Vec3) {
	f := m.Faces[i]
	return m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
}

// FaceNormal returns the unit normal of face i, following the
// counter-clockwise winding convention. Degenerate faces yield the
// zero vector.
func (m *Mesh) FaceNormal(i int) Vec3 {
	a, b, c := m.FaceVertices(i)
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}

// FaceArea returns the area of face i (half the cross-product magnitude).
func (m *Mesh) FaceArea(i int) float64 {
	a, b, c := m.FaceVertices(i)
	return 0.5 * b.Sub(a).Cross(c.Sub(a)).Length()
}

// Bounds returns the axis-aligned bounding box over all vertices.
// A mesh with no vertices yields two zero vectors.
func (m *Mesh) Bounds() (min, max Vec3) {
	if len(m.Vertices) == 0 {
		return Vec3{}, Vec3{}
	}
	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		min = min.Min(v)
		max = max.Max(v)
	}
	return min, max
}

// Extents returns the per-axis size of the bounding box.
func (m *Mesh) Extents() Vec3 {
	min, max := m.Bounds()
	return max.Sub(min)
}

// SurfaceArea returns the total triangle area.
func (m *Mesh) SurfaceArea() float64 {
	var total float64
	for i := range m.Faces {
		total += m.FaceArea(i)
	}
	return total
}

// SignedVolume computes the enclosed volume via the divergence theorem.
// The result is only meaningful for watertight, consistently wound
// meshes; callers gate on IsVolume before trusting it.
func (m *Mesh) SignedVolume() float64 {
	var total float64
	for i := range m.Faces {
		a, b, c := m.FaceVertices(i)
		total += a.Dot(b.Cross(c)) / 6.0
	}
	return total
}
