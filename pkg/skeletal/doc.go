// Package skeletal generates variable-width wall toolpaths for a shape.
//
// The shape's boundary is fed to the voronoi package and the diagram is
// reworked into a half-edge skeleton graph whose quads each span one
// boundary feature. Edges where the part's width changes slowly are marked
// central; the bead count along the central skeleton follows a
// beading.Strategy, with count changes stretched out into transition zones
// so neighbouring beads taper rather than jump. Finally one extrusion
// junction is placed per bead per rib and the junctions are connected into
// polylines per perimeter index.
//
// All coordinates are integer micrometers. Outer contours wind
// counter-clockwise, holes clockwise.
package skeletal
