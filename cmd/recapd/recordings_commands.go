package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"recap/internal/api"
	"recap/internal/diarize"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			recs, err := newAPIClient(cfg).list(cmd.Context(), strings.TrimSpace(statusFilter))
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recordings found.")
				return nil
			}

			rows := make([][]string, 0, len(recs))
			for _, rec := range recs {
				rows = append(rows, []string{
					strconv.FormatInt(rec.ID, 10),
					rec.Title,
					rec.Status,
					formatDuration(rec.DurationSeconds),
					fmt.Sprintf("%.1f", rec.FileSizeMB),
					boolMark(rec.HasTranscript),
					boolMark(rec.HasSummary),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Status", "Duration", "Size MB", "Transcript", "Summary"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show recordings with this status")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withSummary bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for one recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			detail, err := newAPIClient(cfg).get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printRecordingDetail(cmd, detail, withSummary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withSummary, "summary", false, "Include the generated summary text")
	return cmd
}

func printRecordingDetail(cmd *cobra.Command, detail api.RecordingDetail, withSummary bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Recording %d: %s\n", detail.ID, detail.Title)
	fmt.Fprintf(out, "  Status:    %s\n", detail.Status)
	if detail.Progress.Stage != "" {
		fmt.Fprintf(out, "  Stage:     %s (%s)\n", detail.Progress.Stage, detail.Progress.Message)
	}
	if detail.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:     %s\n", detail.ErrorMessage)
	}
	if detail.LanguageName != "" {
		fmt.Fprintf(out, "  Language:  %s\n", detail.LanguageName)
	}
	fmt.Fprintf(out, "  Duration:  %s\n", formatDuration(detail.DurationSeconds))
	fmt.Fprintf(out, "  Size:      %.1f MB\n", detail.FileSizeMB)
	if detail.Repaired {
		fmt.Fprintln(out, "  Repaired:  yes")
	}
	if len(detail.Speakers) > 0 {
		fmt.Fprintf(out, "  Speakers:  %d\n", len(detail.Speakers))
		for _, speaker := range detail.Speakers {
			name := speaker.DisplayName
			if name == "" {
				name = diarize.SpeakerName(speaker.Label)
			}
			fmt.Fprintf(out, "    [%d] %s (%d segments, %s)\n",
				speaker.Label, name, speaker.SegmentCount,
				formatDuration(float64(speaker.DurationSeconds)))
		}
	}
	if withSummary && detail.Summary != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, detail.Summary)
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Upload a recording for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rec, err := newAPIClient(cfg).upload(cmd.Context(), args[0], strings.TrimSpace(title))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued recording %d: %s\n", rec.ID, rec.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Title for the recording (defaults to the file name)")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a recording and its artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := newAPIClient(cfg).remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed recording %d\n", id)
			return nil
		},
	}
}

func newTranscriptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <id>",
		Short: "Print the formatted transcript of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			text, err := newAPIClient(cfg).transcript(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newRenameSpeakerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename-speaker <id> <label> <name>",
		Short: "Assign a display name to a diarized speaker",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordingID(args[0])
			if err != nil {
				return err
			}
			label, err := strconv.Atoi(args[1])
			if err != nil || label < 0 {
				return fmt.Errorf("invalid speaker label %q", args[1])
			}
			name := strings.TrimSpace(args[2])
			if name == "" {
				return fmt.Errorf("speaker name must not be empty")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := newAPIClient(cfg).renameSpeaker(cmd.Context(), id, label, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Speaker %d is now %q\n", label, name)
			return nil
		},
	}
}

func parseRecordingID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid recording id %q", value)
	}
	return id, nil
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return diarize.FormatTimestamp(seconds)
}

func boolMark(v bool) string {
	if v {
		return "yes"
	}
	return "-"
}
