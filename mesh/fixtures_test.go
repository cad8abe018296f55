package mesh

// Shared geometry fixtures. The box is wound counter-clockwise viewed
// from outside, so every shared edge is traversed once in each
// direction and the signed volume comes out positive.

// boxVertices returns the 8 corners of an axis-aligned box from the
// origin to (sx, sy, sz).
func boxVertices(sx, sy, sz float64) []Vec3 {
	return []Vec3{
		{0, 0, 0}, {sx, 0, 0}, {sx, sy, 0}, {0, sy, 0},
		{0, 0, sz}, {sx, 0, sz}, {sx, sy, sz}, {0, sy, sz},
	}
}

var boxFaces = [][3]int32{
	{0, 2, 1}, {0, 3, 2}, // bottom, normal -z
	{4, 5, 6}, {4, 6, 7}, // top, normal +z
	{0, 1, 5}, {0, 5, 4}, // front, normal -y
	{2, 3, 7}, {2, 7, 6}, // back, normal +y
	{0, 4, 7}, {0, 7, 3}, // left, normal -x
	{1, 2, 6}, {1, 6, 5}, // right, normal +x
}

// closedBox builds a watertight box of the given size.
func closedBox(sx, sy, sz float64) *Mesh {
	faces := make([][3]int32, len(boxFaces))
	copy(faces, boxFaces)
	return &Mesh{Vertices: boxVertices(sx, sy, sz), Faces: faces}
}

// unitCube is the 12-triangle closed unit cube.
func unitCube() *Mesh { return closedBox(1, 1, 1) }

// openTopBox is a box missing its top: 5 of 6 quad faces, with the
// boundary edges forming the top rim.
func openTopBox(sx, sy, sz float64) *Mesh {
	faces := make([][3]int32, 0, 10)
	for i, f := range boxFaces {
		if i == 2 || i == 3 { // skip top
			continue
		}
		faces = append(faces, f)
	}
	return &Mesh{Vertices: boxVertices(sx, sy, sz), Faces: faces}
}

// wallsAndTop is a box missing its bottom: four vertical walls plus a
// top, so no face points downward at all.
func wallsAndTop() *Mesh {
	faces := make([][3]int32, 0, 10)
	for i, f := range boxFaces {
		if i == 0 || i == 1 { // skip bottom
			continue
		}
		faces = append(faces, f)
	}
	return &Mesh{Vertices: boxVertices(1, 1, 1), Faces: faces}
}
