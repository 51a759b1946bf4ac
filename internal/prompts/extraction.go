package prompts

import "fmt"

// factExtractionTemplate is the prompt sent to the LLM when a session
// expires, to mine the transcript for durable personal facts. The single
// format verb is the rendered conversation transcript.
const factExtractionTemplate = `Analyze the following conversation and extract any personal facts that were learned about the user. Return a JSON object with facts.

Categories to look for:
- user_name: The user's name
- family_members: Names of family members mentioned
- preferences: Temperature preferences, favorite settings, routines
- device_nicknames: Custom names for devices
- locations: Room names, locations of devices
- routines: Regular patterns (wake time, bedtime, etc.)

Only include facts that were explicitly stated or clearly implied. If no facts were learned, return an empty object {}.

Conversation:
%s

Return ONLY valid JSON, no explanation.`

// FactExtractionPrompt returns the fully interpolated prompt for
// end-of-session fact extraction.
func FactExtractionPrompt(transcript string) string {
	return fmt.Sprintf(factExtractionTemplate, transcript)
}
