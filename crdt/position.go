package crdt

// positionBias places a fresh position 40% into the gap between its
// neighbors, leaving more room at the tail where appends dominate.
const positionBias = 0.4

// jitterSpan bounds the random spread around the biased point to ±0.005 of
// the gap, so two replicas inserting into the same gap rarely collide while
// the position can never cross a neighbor.
const jitterSpan = 0.005

// allocPosition computes a virtual position for a node entering the child
// list of parentID directly after refID; an empty refID means the head of the
// list. The neighbors' positions bound the result in an open interval whose
// virtual endpoints are 0 and 1.
//
// Once a gap shrinks below float64 resolution (about 1e-16 of the neighbor
// magnitude) a fresh position can no longer be distinguished from a neighbor.
// Ordering then falls back to the timestamp tie-break, which keeps replicas
// convergent; no rebalancing is attempted.
func (t *Tree) allocPosition(parentID, refID string) float64 {
	siblings := t.children.Get(parentID)

	target := 0
	if refID != "" {
		if i := indexOfChild(siblings, refID); i >= 0 {
			target = i + 1
		}
	}

	prev, next := 0.0, 1.0
	if target > 0 {
		prev = siblings[target-1].VPos
	}
	if target < len(siblings) {
		next = siblings[target].VPos
	}

	gap := next - prev
	jitter := (t.rng.Float64()*2 - 1) * jitterSpan * gap
	return prev + positionBias*gap + jitter
}
