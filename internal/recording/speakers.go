package recording

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ReplaceSpeakers swaps the speaker rows of a recording for the provided set
// in one transaction. Rerunning transcription therefore never leaves stale
// tracks behind.
func (s *Store) ReplaceSpeakers(ctx context.Context, recordingID int64, speakers []Speaker) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin speakers tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM speakers WHERE recording_id = ?`, recordingID); err != nil {
		return fmt.Errorf("clear speakers: %w", err)
	}
	for _, speaker := range speakers {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO speakers (recording_id, speaker_label, display_name, segment_count, duration_seconds)
             VALUES (?, ?, ?, ?, ?)`,
			recordingID,
			speaker.Label,
			nullableString(speaker.DisplayName),
			speaker.SegmentCount,
			speaker.DurationSeconds,
		); err != nil {
			return fmt.Errorf("insert speaker %d: %w", speaker.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit speakers: %w", err)
	}
	return nil
}

// SpeakersFor returns the speaker tracks of a recording in ascending label order.
func (s *Store) SpeakersFor(ctx context.Context, recordingID int64) ([]Speaker, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, recording_id, speaker_label, display_name, segment_count, duration_seconds
         FROM speakers WHERE recording_id = ? ORDER BY speaker_label`,
		recordingID,
	)
	if err != nil {
		return nil, fmt.Errorf("query speakers: %w", err)
	}
	defer rows.Close()

	var speakers []Speaker
	for rows.Next() {
		var (
			speaker     Speaker
			displayName sql.NullString
		)
		if err := rows.Scan(&speaker.ID, &speaker.RecordingID, &speaker.Label, &displayName, &speaker.SegmentCount, &speaker.DurationSeconds); err != nil {
			return nil, err
		}
		speaker.DisplayName = displayName.String
		speakers = append(speakers, speaker)
	}
	return speakers, rows.Err()
}

// RenameSpeaker assigns a display name to one speaker track. Returns false
// when the recording has no such speaker label.
func (s *Store) RenameSpeaker(ctx context.Context, recordingID int64, label int, displayName string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE speakers SET display_name = ? WHERE recording_id = ? AND speaker_label = ?`,
		nullableString(displayName),
		recordingID,
		label,
	)
	if err != nil {
		return false, fmt.Errorf("rename speaker: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ErrNoSpeaker is returned by helpers when a speaker lookup misses.
var ErrNoSpeaker = errors.New("speaker not found")
