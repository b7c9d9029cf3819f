package beading

import (
	"testing"

	"github.com/chazu/beadwork/pkg/geom"
)

var (
	_ Strategy = (*Distributed)(nil)
	_ Strategy = (*Widening)(nil)
)

func testDistributed() *Distributed {
	return NewDistributed(400, 400, 0.5, 0.75, 2)
}

func TestDistributedOptimalBeadCount(t *testing.T) {
	d := testDistributed()
	prev := 0
	for thickness := geom.Coord(0); thickness <= 4000; thickness += 10 {
		n := d.OptimalBeadCount(thickness)
		if n < prev {
			t.Fatalf("bead count not monotonic: %d beads at %dum after %d", n, thickness, prev)
		}
		prev = n
	}
}

func TestDistributedTransitionThickness(t *testing.T) {
	d := testDistributed()
	for lower := 0; lower < 6; lower++ {
		tt := d.TransitionThickness(lower)
		if got := d.OptimalBeadCount(tt); got != lower {
			t.Errorf("at transition thickness %d: got %d beads, want %d", tt, got, lower)
		}
		if got := d.OptimalBeadCount(tt + 2); got != lower+1 {
			t.Errorf("just past transition thickness %d: got %d beads, want %d", tt, got, lower+1)
		}
	}
}

func TestDistributedComputeCoversThickness(t *testing.T) {
	d := testDistributed()
	for _, count := range []int{1, 2, 3, 4, 5} {
		thickness := d.OptimalThickness(count) + 111
		b := d.Compute(thickness, count)
		if len(b.BeadWidths) != count || len(b.ToolpathLocations) != count {
			t.Fatalf("count %d: got %d widths, %d locations", count, len(b.BeadWidths), len(b.ToolpathLocations))
		}
		var sum geom.Coord
		for _, w := range b.BeadWidths {
			sum += w
		}
		slack := geom.Coord(count) + 111 // rounding plus the surplus beads 1 and 2 ignore
		if diff := thickness - sum; diff < -slack || diff > slack {
			t.Errorf("count %d: widths sum %d for thickness %d", count, sum, thickness)
		}
		for i, loc := range b.ToolpathLocations {
			if loc < 0 || loc > thickness {
				t.Errorf("count %d: location %d out of range: %d", count, i, loc)
			}
			if i > 0 && loc < b.ToolpathLocations[i-1] {
				t.Errorf("count %d: locations not ordered", count)
			}
		}
	}
}

func TestDistributedAnchorPosInRange(t *testing.T) {
	d := testDistributed()
	for lower := 1; lower < 6; lower++ {
		pos := d.TransitionAnchorPos(lower)
		if pos < 0 || pos > 1 {
			t.Errorf("anchor position %v out of [0,1] for lower count %d", pos, lower)
		}
	}
}

func TestWideningThinParts(t *testing.T) {
	w := NewWidening(testDistributed(), 100, 300)

	if got := w.OptimalBeadCount(50); got != 0 {
		t.Errorf("below min input: got %d beads, want 0", got)
	}
	b := w.Compute(50, 0)
	if len(b.BeadWidths) != 0 || b.LeftOver != 50 {
		t.Errorf("below min input: want all left over, got %+v", b)
	}

	if got := w.OptimalBeadCount(150); got != 1 {
		t.Errorf("thin part: got %d beads, want 1", got)
	}
	b = w.Compute(150, 1)
	if len(b.BeadWidths) != 1 || b.BeadWidths[0] != 300 {
		t.Errorf("thin part: want one widened bead of 300, got %+v", b)
	}
	if b.ToolpathLocations[0] != 75 {
		t.Errorf("thin part: bead should stay centered, got %+v", b.ToolpathLocations)
	}

	// At and above the optimal width the parent takes over.
	b = w.Compute(400, 1)
	if len(b.BeadWidths) != 1 || b.BeadWidths[0] != 400 {
		t.Errorf("normal part: parent should compute, got %+v", b)
	}
}
