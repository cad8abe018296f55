// Package planner turns a model description, dimensions, and optional mesh
// features into a print plan: material, orientation, slicer settings, and
// risks. Every step except the final explanation is rule-based and
// deterministic; the explanation step calls an llm.Provider when one is
// configured and degrades to a template otherwise.
package planner
