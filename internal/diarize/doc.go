// Package diarize turns raw speaker-unaware transcription segments into
// speaker-labeled transcripts.
//
// Smooth applies a three-pass heuristic: pause-based provisional labeling,
// isolated-blip merging, and first-appearance renumbering. Aggregate derives
// per-speaker statistics from the smoothed output. Both are pure functions;
// persistence belongs to the pipeline.
package diarize
