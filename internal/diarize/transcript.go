package diarize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Transcript is the persisted result of transcription plus smoothing.
type Transcript struct {
	FullText    string           `json:"full_text"`
	Language    string           `json:"language"`
	Duration    float64          `json:"duration"`
	NumSpeakers int              `json:"num_speakers"`
	Segments    []LabeledSegment `json:"segments"`
}

// MarshalTranscript encodes a transcript for storage.
func MarshalTranscript(t Transcript) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}
	return string(data), nil
}

// UnmarshalTranscript decodes a stored transcript.
func UnmarshalTranscript(raw string) (Transcript, error) {
	var t Transcript
	if strings.TrimSpace(raw) == "" {
		return t, nil
	}
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Transcript{}, fmt.Errorf("unmarshal transcript: %w", err)
	}
	return t, nil
}

// FormatTimestamp renders seconds as MM:SS, or HH:MM:SS past the first hour.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

func speakerDisplay(label int, names map[int]string) string {
	if name, ok := names[label]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return SpeakerName(label)
}

// FormatTranscript renders a transcript for human reading, grouping
// consecutive segments per speaker and appending per-speaker statistics.
// names maps labels to user-assigned display names and may be nil.
func FormatTranscript(t Transcript, names map[int]string) string {
	if len(t.Segments) == 0 {
		return "No transcript available."
	}

	divider := strings.Repeat("=", 80)
	var b strings.Builder
	b.WriteString(divider)
	b.WriteString("\nMEETING TRANSCRIPT WITH SPEAKER IDENTIFICATION\n")
	b.WriteString(divider)
	b.WriteString("\n")

	currentLabel := -1
	var run []string
	flush := func() {
		if currentLabel >= 0 && len(run) > 0 {
			fmt.Fprintf(&b, "\n%s:\n%s\n", speakerDisplay(currentLabel, names), strings.Join(run, " "))
		}
	}
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if seg.Label != currentLabel {
			flush()
			currentLabel = seg.Label
			run = []string{fmt.Sprintf("[%s] %s", FormatTimestamp(seg.Start), text)}
		} else {
			run = append(run, text)
		}
	}
	flush()

	b.WriteString("\n")
	b.WriteString(divider)
	fmt.Fprintf(&b, "\nTotal Speakers: %d\n", t.NumSpeakers)
	fmt.Fprintf(&b, "Total Duration: %s\n", FormatTimestamp(t.Duration))
	for _, track := range Aggregate(t.Segments) {
		fmt.Fprintf(&b, "  %s: %d segments, %s total\n",
			speakerDisplay(track.Label, names), track.SegmentCount, FormatTimestamp(float64(track.DurationSeconds)))
	}
	b.WriteString(divider)

	return b.String()
}

// FormatForSummary renders a transcript as prompt input, one paragraph per
// speaker run with no timestamps. An empty transcript yields "" so callers
// can refuse to summarize it.
func FormatForSummary(t Transcript, names map[int]string) string {
	if len(t.Segments) == 0 {
		return ""
	}

	var paragraphs []string
	currentLabel := -1
	var run []string
	flush := func() {
		if currentLabel >= 0 && len(run) > 0 {
			paragraphs = append(paragraphs, fmt.Sprintf("%s: %s", speakerDisplay(currentLabel, names), strings.Join(run, " ")))
		}
	}
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		if seg.Label != currentLabel {
			flush()
			currentLabel = seg.Label
			run = []string{text}
		} else {
			run = append(run, text)
		}
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}
