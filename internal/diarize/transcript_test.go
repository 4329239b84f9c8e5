package diarize_test

import (
	"strings"
	"testing"

	"recap/internal/diarize"
)

func sampleTranscript() diarize.Transcript {
	return diarize.Transcript{
		FullText:    "hello there welcome back thanks",
		Language:    "en",
		Duration:    3725,
		NumSpeakers: 2,
		Segments: []diarize.LabeledSegment{
			{Segment: diarize.Segment{Start: 0, End: 2, Text: "hello there"}, Label: 0},
			{Segment: diarize.Segment{Start: 2.5, End: 4, Text: "welcome back"}, Label: 0},
			{Segment: diarize.Segment{Start: 8, End: 10, Text: "thanks"}, Label: 1},
		},
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{65.9, "01:05"},
		{3599, "59:59"},
		{3725, "01:02:05"},
	}
	for _, tc := range cases {
		if got := diarize.FormatTimestamp(tc.seconds); got != tc.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestFormatTranscriptGroupsRuns(t *testing.T) {
	out := diarize.FormatTranscript(sampleTranscript(), nil)
	if !strings.Contains(out, "Speaker 0:\n[00:00] hello there welcome back") {
		t.Fatalf("missing grouped run:\n%s", out)
	}
	if !strings.Contains(out, "Speaker 1:\n[00:08] thanks") {
		t.Fatalf("missing second speaker:\n%s", out)
	}
	if !strings.Contains(out, "Total Speakers: 2") {
		t.Fatalf("missing stats:\n%s", out)
	}
	if !strings.Contains(out, "Total Duration: 01:02:05") {
		t.Fatalf("missing duration:\n%s", out)
	}
}

func TestFormatTranscriptUsesDisplayNames(t *testing.T) {
	names := map[int]string{0: "Alex"}
	out := diarize.FormatTranscript(sampleTranscript(), names)
	if !strings.Contains(out, "Alex:") {
		t.Fatalf("display name not applied:\n%s", out)
	}
	if !strings.Contains(out, "Speaker 1:") {
		t.Fatalf("unnamed speaker should fall back to default:\n%s", out)
	}
}

func TestFormatTranscriptEmpty(t *testing.T) {
	out := diarize.FormatTranscript(diarize.Transcript{}, nil)
	if out != "No transcript available." {
		t.Fatalf("out = %q", out)
	}
}

func TestFormatForSummary(t *testing.T) {
	out := diarize.FormatForSummary(sampleTranscript(), nil)
	want := "Speaker 0: hello there welcome back\n\nSpeaker 1: thanks"
	if out != want {
		t.Fatalf("out = %q, want %q", out, want)
	}
}

func TestFormatForSummaryEmpty(t *testing.T) {
	// Unlike the display formatter, prompt input must stay empty so the
	// summarize stage can refuse a transcript with no speech.
	if out := diarize.FormatForSummary(diarize.Transcript{}, nil); out != "" {
		t.Fatalf("out = %q, want empty", out)
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	raw, err := diarize.MarshalTranscript(sampleTranscript())
	if err != nil {
		t.Fatalf("MarshalTranscript: %v", err)
	}
	got, err := diarize.UnmarshalTranscript(raw)
	if err != nil {
		t.Fatalf("UnmarshalTranscript: %v", err)
	}
	if got.NumSpeakers != 2 || len(got.Segments) != 3 || got.Segments[2].Label != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestUnmarshalTranscriptEmpty(t *testing.T) {
	got, err := diarize.UnmarshalTranscript("")
	if err != nil {
		t.Fatalf("UnmarshalTranscript: %v", err)
	}
	if len(got.Segments) != 0 {
		t.Fatalf("expected zero transcript, got %+v", got)
	}
}
