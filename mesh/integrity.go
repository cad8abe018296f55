package mesh

import (
	"fmt"
	"strings"
)

// Edge is an unordered vertex-index pair canonicalized to (min,max).
// Edges are transient: they exist only inside the integrity pass.
type Edge struct {
	A, B int32
}

// CanonicalEdge orders the pair so (i,j) and (j,i) map to the same key.
func CanonicalEdge(a, b int32) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// EdgeUsage maps each canonical edge to the number of faces using it.
// Invariant: the counts sum to 3 × FaceCount.
type EdgeUsage map[Edge]int

// BuildEdgeUsage enumerates the three edges of every face.
func BuildEdgeUsage(m *Mesh) EdgeUsage {
	usage := make(EdgeUsage, m.FaceCount()*3/2)
	for _, f := range m.Faces {
		usage[CanonicalEdge(f[0], f[1])]++
		usage[CanonicalEdge(f[1], f[2])]++
		usage[CanonicalEdge(f[2], f[0])]++
	}
	return usage
}

// IntegrityReport holds the topology diagnostics for one mesh.
type IntegrityReport struct {
	BoundaryEdges    int    // edges used by exactly one face (holes, open seams)
	NonManifoldEdges int    // edges used by three or more faces
	OpenEdges        int    // boundary + non-manifold
	DegenerateFaces  int    // faces with area at or below the epsilon
	Watertight       bool   // no boundary and no non-manifold edges
	IsVolume         bool   // watertight and consistently wound
	LikelyOpenTop    bool   // boundary edges cluster at the top rim
	Issue            string // human-readable summary; logic must branch on the flags
}

// Diagnose classifies the mesh topology from its edge-usage map. A
// well-formed closed surface uses every edge exactly twice; deviations
// either way are the raw signal for the printability flags.
func Diagnose(m *Mesh, usage EdgeUsage, cfg Config) IntegrityReport {
	var rep IntegrityReport

	for _, count := range usage {
		switch {
		case count == 1:
			rep.BoundaryEdges++
		case count >= 3:
			rep.NonManifoldEdges++
		}
	}
	rep.OpenEdges = rep.BoundaryEdges + rep.NonManifoldEdges

	for i := range m.Faces {
		if m.FaceArea(i) <= cfg.DegenerateAreaEps {
			rep.DegenerateFaces++
		}
	}

	rep.Watertight = rep.BoundaryEdges == 0 && rep.NonManifoldEdges == 0 && m.FaceCount() > 0
	rep.IsVolume = rep.Watertight && consistentlyWound(m, usage)
	if !rep.Watertight {
		rep.LikelyOpenTop = likelyOpenTop(m, usage, cfg)
	}
	rep.Issue = issueSummary(rep)
	return rep
}

// consistentlyWound verifies that every shared edge is traversed once
// in each direction, which is what makes the enclosed volume well
// defined. Each directed edge must appear exactly once overall.
func consistentlyWound(m *Mesh, usage EdgeUsage) bool {
	directed := make(map[[2]int32]int, len(usage)*2)
	for _, f := range m.Faces {
		directed[[2]int32{f[0], f[1]}]++
		directed[[2]int32{f[1], f[2]}]++
		directed[[2]int32{f[2], f[0]}]++
	}
	for e, count := range usage {
		if count != 2 {
			return false
		}
		if directed[[2]int32{e.A, e.B}] != 1 || directed[[2]int32{e.B, e.A}] != 1 {
			return false
		}
	}
	return true
}

// likelyOpenTop distinguishes an intentional open-top container from a
// broken mesh: a container's boundary edges cluster at the top rim,
// whereas damage scatters them at arbitrary heights.
func likelyOpenTop(m *Mesh, usage EdgeUsage, cfg Config) bool {
	if len(m.Vertices) == 0 {
		return false
	}
	zMax := m.Vertices[0].Z
	for _, v := range m.Vertices[1:] {
		if v.Z > zMax {
			zMax = v.Z
		}
	}

	var boundary, nearTop int
	for e, count := range usage {
		if count != 1 {
			continue
		}
		boundary++
		mid := (m.Vertices[e.A].Z + m.Vertices[e.B].Z) / 2.0
		if mid >= zMax-cfg.OpenTopTolMM {
			nearTop++
		}
	}
	if boundary == 0 {
		return false
	}
	return float64(nearTop)/float64(boundary) >= cfg.OpenTopBoundaryRatio
}

// issueSummary renders the diagnostics for human display, in a fixed
// order. Downstream logic branches on the flags, never on this text.
func issueSummary(rep IntegrityReport) string {
	if rep.Watertight && rep.IsVolume {
		return "ok"
	}

	var parts []string
	if rep.BoundaryEdges > 0 {
		parts = append(parts, fmt.Sprintf("%d boundary edges", rep.BoundaryEdges))
	}
	if rep.NonManifoldEdges > 0 {
		parts = append(parts, fmt.Sprintf("%d non-manifold edges", rep.NonManifoldEdges))
	}
	if rep.DegenerateFaces > 0 {
		parts = append(parts, fmt.Sprintf("%d degenerate faces", rep.DegenerateFaces))
	}
	if !rep.IsVolume {
		parts = append(parts, "not a valid closed volume")
	}
	if len(parts) == 0 {
		return "possible self-intersections/overlaps"
	}
	return strings.Join(parts, "; ")
}
