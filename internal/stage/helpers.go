package stage

import (
	"recap/internal/diarize"
	"recap/internal/services"
)

// ParseTranscript parses a stored transcript JSON payload. On failure it
// returns a services.ErrValidation suitable for stage Execute methods.
func ParseTranscript(raw string) (diarize.Transcript, error) {
	transcript, err := diarize.UnmarshalTranscript(raw)
	if err != nil {
		return diarize.Transcript{}, services.Wrap(
			services.ErrValidation, "stage", "parse transcript",
			"Stored transcript missing or invalid; rerun transcription", err)
	}
	return transcript, nil
}
