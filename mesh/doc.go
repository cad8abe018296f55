// Package mesh implements triangle-mesh loading and printability
// analysis. It turns raw STL data into a flat FeatureRecord (bounding
// geometry, bed-contact estimate, overhang metrics, integrity
// diagnostics) consumed by the planner and the HTTP API.
//
// Analysis is pure: the same mesh and config always produce the same
// record, and nothing here performs I/O beyond the loader.
package mesh
