package mesh

import "math"

// ContactArea estimates the true bed-contact area in mm². It selects
// faces whose three vertices all lie within cfg.ContactTolMM of the
// lowest z and sums their XY-projected areas. This is distinct from the
// bbox footprint, which overstates contact for chamfered or pointed
// bases. Zero is a legitimate result meaning point or edge contact.
func ContactArea(m *Mesh, cfg Config) float64 {
	if m.FaceCount() == 0 {
		return 0
	}

	zMin := math.Inf(1)
	for _, v := range m.Vertices {
		if v.Z < zMin {
			zMin = v.Z
		}
	}
	limit := zMin + cfg.ContactTolMM

	var total float64
	for i := range m.Faces {
		a, b, c := m.FaceVertices(i)
		if a.Z > limit || b.Z > limit || c.Z > limit {
			continue
		}
		// 2D cross product of two edge vectors projected onto XY.
		ab := b.Sub(a)
		ac := c.Sub(a)
		cross := ab.X*ac.Y - ab.Y*ac.X
		total += 0.5 * math.Abs(cross)
	}
	return total
}
