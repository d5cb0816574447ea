package answer

import "strings"

// subjectMaxRunes caps the question excerpt embedded in suggestions.
const subjectMaxRunes = 40

// SuggestFollowups derives up to three next-question prompts from the
// question text. The subject is the whitespace-collapsed question clipped
// to 40 runes, falling back to a generic topic for blank input.
func SuggestFollowups(questionText string) []string {
	subject := strings.Join(strings.Fields(questionText), " ")
	if r := []rune(subject); len(r) > subjectMaxRunes {
		subject = string(r[:subjectMaxRunes])
	}
	if subject == "" {
		subject = "這個主題"
	}
	return []string{
		"若聚焦「" + subject + "」，最關鍵的原因是什麼？",
		"延續「" + subject + "」，下一步最有效的行動是什麼？",
		"針對「" + subject + "」，目前最大的風險與避坑建議是什麼？",
	}
}
