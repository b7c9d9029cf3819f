// Package graph holds the half-edge graph the skeletal trapezoidation is
// built on: nodes on the medial axis and on the polygon boundary, twinned
// directed edges between them, and the structural surgery (node insertion,
// short-edge collapse, pointy-end separation) the later phases need.
package graph
