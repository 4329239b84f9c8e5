package diarize

import "fmt"

// Segment is one raw transcription segment, time-ordered and speaker-unaware.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// LabeledSegment is a Segment with a smoothed speaker label.
type LabeledSegment struct {
	Segment
	Label int `json:"speaker"`
}

// SpeakerTrack summarizes one speaker's contribution to a transcript.
type SpeakerTrack struct {
	Label           int
	SegmentCount    int
	DurationSeconds int64
}

// SpeakerName renders a label for presentation.
func SpeakerName(label int) string {
	return fmt.Sprintf("Speaker %d", label)
}

// Options holds smoothing thresholds, all in seconds.
type Options struct {
	// PauseThreshold is the silence gap that suggests a speaker change.
	PauseThreshold float64
	// ShortSegmentThreshold suppresses speaker changes for brief utterances.
	ShortSegmentThreshold float64
	// MergeThreshold caps the duration of an isolated blip absorbed by its
	// neighbors.
	MergeThreshold float64
}

// DefaultOptions returns the thresholds used when none are configured.
func DefaultOptions() Options {
	return Options{
		PauseThreshold:        2.0,
		ShortSegmentThreshold: 1.0,
		MergeThreshold:        2.0,
	}
}
