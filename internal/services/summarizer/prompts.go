package summarizer

import "fmt"

// meetingPrompt guides analysis of multi-speaker recordings.
const meetingPrompt = `You are an expert meeting analyst. Analyze this meeting transcript with %d identified speakers.

TRANSCRIPT:
%s

Provide a comprehensive analysis in the following structure:

1. EXECUTIVE SUMMARY
Write a concise 2-3 sentence overview of the meeting's purpose and outcomes.

2. KEY DISCUSSION POINTS
List the main topics discussed in order of importance. For each point, indicate which speaker(s) were primarily involved.

3. SPEAKER CONTRIBUTIONS
For each speaker identified in the transcript:
- Speaker 0: Summarize their main points and role in the discussion
- Speaker 1: Summarize their main points and role in the discussion
(Continue for all speakers)

4. DECISIONS MADE
List any decisions, agreements, or conclusions reached during the meeting.

5. ACTION ITEMS
Extract all action items, tasks, or follow-ups mentioned. Format as:
- Task description [Owner if mentioned] [Deadline if mentioned]

6. OPEN QUESTIONS
List any unresolved questions or topics that require further discussion.

7. NEXT STEPS
Summarize what should happen after this meeting.

Format your response with clear headers and bullet points.`

// monologuePrompt covers single-speaker recordings such as dictated
// notes or lectures.
const monologuePrompt = `You are an expert content analyst. Analyze this audio transcript.

TRANSCRIPT:
%s

Provide a comprehensive analysis in the following structure:

1. EXECUTIVE SUMMARY
Write a concise 2-3 sentence overview of the content.

2. KEY POINTS
List the main topics or themes discussed in order of importance.

3. IMPORTANT HIGHLIGHTS
Extract the most significant statements, insights, or information.

4. ACTION ITEMS (if any)
List any tasks, follow-ups, or actionable items mentioned.

5. CONCLUSIONS
Summarize the main takeaways or conclusions.

Format your response with clear headers and bullet points.`

// BuildPrompt selects the analysis prompt for the speaker count and
// embeds the formatted transcript.
func BuildPrompt(transcript string, numSpeakers int) string {
	if numSpeakers > 1 {
		return fmt.Sprintf(meetingPrompt, numSpeakers, transcript)
	}
	return fmt.Sprintf(monologuePrompt, transcript)
}
