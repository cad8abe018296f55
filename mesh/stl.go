package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// LoadError reports an unparseable or empty mesh source. Analysis never
// starts on a mesh that failed to load; there is no partial record.
type LoadError struct {
	Reason string
	Cause  error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("mesh load failed: %s: %v", e.Reason, e.Cause)
	}
	return "mesh load failed: " + e.Reason
}

func (e *LoadError) Unwrap() error { return e.Cause }

// group is one parsed geometry group (a binary body or one ASCII solid).
type group struct {
	vertices []Vec3
	faces    [][3]int32
}

// LoadSTLFile reads an STL file fully into memory and parses it.
// The file handle is released before any analysis runs.
func LoadSTLFile(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Reason: "read " + path, Cause: err}
	}
	return LoadSTL(bytes.NewReader(data))
}

// LoadSTL parses STL data in binary or ASCII form. ASCII sources may
// contain multiple solids; all groups are flattened into a single mesh
// by vertex-index remapping, without cross-group deduplication.
func LoadSTL(r io.Reader) (*Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Reason: "read source", Cause: err}
	}

	var groups []group
	if isBinarySTL(data) {
		g, err := parseBinarySTL(data)
		if err != nil {
			return nil, err
		}
		groups = []group{g}
	} else {
		groups, err = parseASCIISTL(data)
		if err != nil {
			return nil, err
		}
	}

	m := flatten(groups)
	if m.FaceCount() == 0 {
		return nil, &LoadError{Reason: "source contains no triangles"}
	}
	return m, nil
}

// flatten concatenates groups into one mesh, offsetting each group's
// face indices by the vertices already emitted.
func flatten(groups []group) *Mesh {
	var nv, nf int
	for _, g := range groups {
		nv += len(g.vertices)
		nf += len(g.faces)
	}
	vertices := make([]Vec3, 0, nv)
	faces := make([][3]int32, 0, nf)
	for _, g := range groups {
		offset := int32(len(vertices))
		vertices = append(vertices, g.vertices...)
		for _, f := range g.faces {
			faces = append(faces, [3]int32{f[0] + offset, f[1] + offset, f[2] + offset})
		}
	}
	return &Mesh{Vertices: vertices, Faces: faces}
}

// isBinarySTL decides between the two STL encodings. Binary files carry
// an 80-byte header plus a 4-byte triangle count; ASCII files begin with
// "solid". A binary file whose header happens to start with "solid" is
// detected by checking the declared size against the actual size.
func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("solid")) {
		triCount := binary.LittleEndian.Uint32(data[80:84])
		return uint64(len(data)) == 84+uint64(triCount)*50
	}
	return true
}

func parseBinarySTL(data []byte) (group, error) {
	triCount := binary.LittleEndian.Uint32(data[80:84])
	expected := 84 + uint64(triCount)*50
	if uint64(len(data)) < expected {
		return group{}, &LoadError{Reason: fmt.Sprintf("binary STL truncated: want %d bytes, have %d", expected, len(data))}
	}

	g := group{faces: make([][3]int32, 0, triCount)}
	seen := make(map[Vec3]int32)

	offset := 84
	for t := uint32(0); t < triCount; t++ {
		offset += 12 // facet normal is recomputed from geometry, skip it
		var face [3]int32
		for v := 0; v < 3; v++ {
			pos := Vec3{
				X: float64(readFloat32LE(data[offset:])),
				Y: float64(readFloat32LE(data[offset+4:])),
				Z: float64(readFloat32LE(data[offset+8:])),
			}
			offset += 12
			face[v] = g.internVertex(pos, seen)
		}
		offset += 2 // attribute byte count
		g.faces = append(g.faces, face)
	}
	return g, nil
}

// parseASCIISTL parses one or more "solid ... endsolid" blocks. Each
// block becomes its own group so flatten can remap indices.
func parseASCIISTL(data []byte) ([]group, error) {
	var (
		groups  []group
		current *group
		seen    map[Vec3]int32
		facet   []Vec3
		line    int
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			groups = append(groups, group{})
			current = &groups[len(groups)-1]
			seen = make(map[Vec3]int32)
		case "vertex":
			if current == nil {
				return nil, &LoadError{Reason: fmt.Sprintf("line %d: vertex outside solid block", line)}
			}
			if len(fields) != 4 {
				return nil, &LoadError{Reason: fmt.Sprintf("line %d: vertex needs 3 coordinates", line)}
			}
			var coords [3]float64
			for i := 0; i < 3; i++ {
				f, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, &LoadError{Reason: fmt.Sprintf("line %d: bad coordinate %q", line, fields[i+1]), Cause: err}
				}
				coords[i] = f
			}
			facet = append(facet, Vec3{coords[0], coords[1], coords[2]})
		case "endfacet":
			if current == nil || len(facet) != 3 {
				return nil, &LoadError{Reason: fmt.Sprintf("line %d: facet does not have exactly 3 vertices", line)}
			}
			var face [3]int32
			for i, pos := range facet {
				face[i] = current.internVertex(pos, seen)
			}
			current.faces = append(current.faces, face)
			facet = facet[:0]
		case "endsolid":
			current = nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &LoadError{Reason: "scan ASCII STL", Cause: err}
	}
	if len(groups) == 0 {
		return nil, &LoadError{Reason: "no solid blocks found"}
	}
	return groups, nil
}

// internVertex deduplicates exactly-equal positions within a group so
// shared edges resolve to shared indices for the topology diagnostics.
func (g *group) internVertex(pos Vec3, seen map[Vec3]int32) int32 {
	if idx, ok := seen[pos]; ok {
		return idx
	}
	idx := int32(len(g.vertices))
	g.vertices = append(g.vertices, pos)
	seen[pos] = idx
	return idx
}

func readFloat32LE(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
