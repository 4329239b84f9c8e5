package diarize

import "testing"

func TestMergeIsolatedBlip(t *testing.T) {
	labeled := []LabeledSegment{
		{Segment: Segment{Start: 0, End: 4, Text: "one"}, Label: 0},
		{Segment: Segment{Start: 4.5, End: 5.5, Text: "blip"}, Label: 1},
		{Segment: Segment{Start: 6, End: 10, Text: "three"}, Label: 0},
	}
	mergeIsolatedBlips(labeled, 2.0)
	for i, seg := range labeled {
		if seg.Label != 0 {
			t.Fatalf("segment %d label = %d, want 0", i, seg.Label)
		}
	}
}

func TestMergeSkipsLongMiddleSegment(t *testing.T) {
	labeled := []LabeledSegment{
		{Segment: Segment{Start: 0, End: 4}, Label: 0},
		{Segment: Segment{Start: 4.5, End: 7.5}, Label: 1},
		{Segment: Segment{Start: 8, End: 10}, Label: 0},
	}
	mergeIsolatedBlips(labeled, 2.0)
	if labeled[1].Label != 1 {
		t.Fatalf("3s segment should keep its label, got %d", labeled[1].Label)
	}
}

func TestMergeSkipsDisagreeingNeighbors(t *testing.T) {
	labeled := []LabeledSegment{
		{Segment: Segment{Start: 0, End: 4}, Label: 0},
		{Segment: Segment{Start: 4.5, End: 5}, Label: 1},
		{Segment: Segment{Start: 6, End: 10}, Label: 2},
	}
	mergeIsolatedBlips(labeled, 2.0)
	if labeled[1].Label != 1 {
		t.Fatalf("segment between different speakers should keep its label, got %d", labeled[1].Label)
	}
}

func TestRenumberClosesGaps(t *testing.T) {
	labeled := []LabeledSegment{
		{Label: 3},
		{Label: 3},
		{Label: 7},
		{Label: 3},
		{Label: 9},
	}
	renumberByFirstAppearance(labeled)
	want := []int{0, 0, 1, 0, 2}
	for i, seg := range labeled {
		if seg.Label != want[i] {
			t.Fatalf("segment %d label = %d, want %d", i, seg.Label, want[i])
		}
	}
}
