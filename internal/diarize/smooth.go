package diarize

import "sort"

// Smooth assigns speaker labels to raw transcription segments using pause and
// duration heuristics, merges isolated single-segment blips, and renumbers
// labels by first appearance. The result is deterministic for a given input
// and set of thresholds.
func Smooth(segments []Segment, opts Options) []LabeledSegment {
	if len(segments) == 0 {
		return []LabeledSegment{}
	}
	labeled := provisionalLabels(segments, opts)
	mergeIsolatedBlips(labeled, opts.MergeThreshold)
	renumberByFirstAppearance(labeled)
	return labeled
}

// provisionalLabels performs a single left-to-right sweep. A pause longer
// than PauseThreshold starts a new speaker, unless the segment is too short
// to stand on its own: a brief utterance never triggers a change, whatever
// the pause said.
func provisionalLabels(segments []Segment, opts Options) []LabeledSegment {
	labeled := make([]LabeledSegment, len(segments))
	currentLabel := 0
	lastEnd := segments[0].End
	labeled[0] = LabeledSegment{Segment: segments[0], Label: currentLabel}
	for i := 1; i < len(segments); i++ {
		seg := segments[i]
		pause := seg.Start - lastEnd
		wantsChange := pause > opts.PauseThreshold
		if seg.Duration() < opts.ShortSegmentThreshold {
			wantsChange = false
		}
		if wantsChange {
			currentLabel++
		}
		labeled[i] = LabeledSegment{Segment: seg, Label: currentLabel}
		lastEnd = seg.End
	}
	return labeled
}

// mergeIsolatedBlips reassigns an interior segment to its neighbors' label
// when both neighbors agree on a different label and the segment is shorter
// than the merge threshold. Boundary segments are never reassigned.
func mergeIsolatedBlips(labeled []LabeledSegment, mergeThreshold float64) {
	for i := 1; i < len(labeled)-1; i++ {
		prev, next := labeled[i-1].Label, labeled[i+1].Label
		if prev == next && labeled[i].Label != prev && labeled[i].Duration() < mergeThreshold {
			labeled[i].Label = prev
		}
	}
}

// renumberByFirstAppearance rewrites labels into a contiguous 0..k-1 range
// ordered by first appearance.
func renumberByFirstAppearance(labeled []LabeledSegment) {
	remap := make(map[int]int)
	for i := range labeled {
		final, ok := remap[labeled[i].Label]
		if !ok {
			final = len(remap)
			remap[labeled[i].Label] = final
		}
		labeled[i].Label = final
	}
}

// Aggregate groups labeled segments into per-speaker tracks ordered by
// ascending label. Durations are floored to whole seconds.
func Aggregate(segments []LabeledSegment) []SpeakerTrack {
	if len(segments) == 0 {
		return nil
	}

	counts := make(map[int]int)
	sums := make(map[int]float64)
	order := make([]int, 0)
	for _, seg := range segments {
		if _, ok := counts[seg.Label]; !ok {
			order = append(order, seg.Label)
		}
		counts[seg.Label]++
		sums[seg.Label] += seg.Duration()
	}

	sort.Ints(order)
	tracks := make([]SpeakerTrack, 0, len(order))
	for _, label := range order {
		tracks = append(tracks, SpeakerTrack{
			Label:           label,
			SegmentCount:    counts[label],
			DurationSeconds: int64(sums[label]),
		})
	}
	return tracks
}
