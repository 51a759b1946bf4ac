package agent

import "strings"

// fullwidthQuestionMark sounds identical when spoken but does not
// trigger the voice pipeline's keep-listening heuristic, which watches
// for a trailing ASCII question mark.
const fullwidthQuestionMark = "？"

// ProcessForListening removes the continue marker from a response and
// decides whether the satellite should keep listening.
//
// Marker present: strip it, make sure the text ends with "?" so the
// pipeline reopens the microphone, keep listening. No marker with
// auto-continue on: the pipeline decides on its own, so report what it
// will do. No marker with auto-continue off: listening must stop, so a
// trailing "?" is swapped for its fullwidth twin.
func ProcessForListening(text, marker string, autoContinue bool) (string, bool) {
	if marker != "" && strings.Contains(text, marker) {
		cleaned := strings.TrimSpace(strings.ReplaceAll(text, marker, ""))
		if !strings.HasSuffix(cleaned, "?") {
			cleaned += "?"
		}
		return cleaned, true
	}

	cleaned := strings.TrimSpace(text)
	if autoContinue {
		return cleaned, strings.HasSuffix(cleaned, "?")
	}

	if strings.HasSuffix(cleaned, "?") {
		cleaned = strings.TrimSuffix(cleaned, "?") + fullwidthQuestionMark
	}
	return cleaned, false
}
