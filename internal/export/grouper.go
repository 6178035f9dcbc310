package export

import "sort"

// SortSegments orders segments by start time, keeping input order for ties.
func SortSegments(segs []Segment) []Segment {
	out := make([]Segment, len(segs))
	copy(out, segs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}

// GroupSegments partitions start-sorted segments into groups separated by
// pauses longer than threshold. The input is not re-sorted; callers sort
// first with SortSegments. Overlapping segments (negative pause) merge like
// any other pause within the threshold.
func GroupSegments(segs []Segment, threshold float64) ([]Group, []CutPause) {
	var (
		groups  []Group
		pauses  []CutPause
		current []Segment
	)

	for _, seg := range segs {
		if len(current) == 0 {
			current = append(current, seg)
			continue
		}

		lastEnd := current[len(current)-1].End
		pause := seg.Start - lastEnd

		if pause <= threshold {
			current = append(current, seg)
			if pause > 0 {
				pauses = append(pauses, CutPause{
					Start:    lastEnd,
					End:      seg.Start,
					Duration: pause,
					Group:    len(groups),
				})
			}
			continue
		}

		groups = append(groups, Group{Index: len(groups), Segments: current})
		current = []Segment{seg}
	}

	if len(current) > 0 {
		groups = append(groups, Group{Index: len(groups), Segments: current})
	}

	return groups, pauses
}
