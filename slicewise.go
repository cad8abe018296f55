// Package slicewise provides a top-level convenience entry point for mesh
// analysis with minimal boilerplate.
//
// Usage:
//
//	import "github.com/slicewise/slicewise"
//
//	rec, err := slicewise.AnalyzeSTLFile("bracket.stl")
//	rec, err := slicewise.AnalyzeSTL(bytes.NewReader(data))
//
// This is a thin wrapper around [mesh.LoadSTL] and [mesh.Analyze] with the
// production default tolerances. Use the mesh package directly when the
// thresholds need tuning.
package slicewise

import (
	"io"

	"github.com/slicewise/slicewise/mesh"
)

// AnalyzeSTL parses STL data from r and returns its feature record.
func AnalyzeSTL(r io.Reader) (mesh.FeatureRecord, error) {
	m, err := mesh.LoadSTL(r)
	if err != nil {
		return mesh.FeatureRecord{}, err
	}
	return mesh.Analyze(m, mesh.DefaultConfig()), nil
}

// AnalyzeSTLFile reads path and returns its feature record.
func AnalyzeSTLFile(path string) (mesh.FeatureRecord, error) {
	m, err := mesh.LoadSTLFile(path)
	if err != nil {
		return mesh.FeatureRecord{}, err
	}
	return mesh.Analyze(m, mesh.DefaultConfig()), nil
}
