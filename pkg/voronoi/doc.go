// Package voronoi computes the Voronoi diagram of a shape's boundary,
// restricted to the shape's filled interior.
//
// The input sites are the boundary segments of a polygon-with-holes plus
// the polygon vertices as point sites. Only reflex vertices own interior
// area; convex vertex cells come out empty. The diagram is built cell by
// cell as the lower envelope of per-feature bisector thresholds along
// perpendicular rays (segment cells) and wedge rays (reflex vertex cells).
// Output is a half-edge structure: one cell per site, twinned directed
// edges ordered counter-clockwise around each cell, and shared vertex
// objects.
//
// Edges between a segment and one of its own endpoints are "secondary";
// they delimit the region whose nearest boundary feature is the endpoint
// rather than the segment interior. All other edges are primary.
//
// Thresholds are evaluated in float64 with closed forms. Input coordinates
// are integer micrometers; diagram vertices closer together than a
// micrometer merge, which is what stitches neighbouring cells together.
// Inputs whose cells cannot be stitched consistently are rejected with
// ErrDegenerateShape rather than repaired.
package voronoi
