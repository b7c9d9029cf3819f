// Package geom provides fixed-point 2D geometry for the wall generator.
//
// All coordinates are int64 micrometers. Derived quantities that need
// sub-micrometer precision (angles, parabola evaluation, predicates) are
// computed in float64 and rounded back at the boundary.
package geom
