package utils

// Token counts are estimated at 4 runes per token.
const runesPerToken = 4

// CountTokens estimates the number of tokens in text. Any non-empty text
// counts as at least one token.
func CountTokens(text string) int {
	n := len([]rune(text))
	if n == 0 {
		return 0
	}
	return max(n/runesPerToken, 1)
}

// PromptSize is the estimated token cost of one generation request.
type PromptSize struct {
	System int
	User   int
}

func (p PromptSize) Total() int { return p.System + p.User }

// MeasurePrompt estimates the token cost of a system and user prompt pair.
func MeasurePrompt(system, user string) PromptSize {
	return PromptSize{System: CountTokens(system), User: CountTokens(user)}
}

// FitUserPrompt cuts user so that system and user together stay within
// limit tokens. The system prompt is never cut. A limit <= 0 disables the
// check. The second result reports whether user was shortened.
func FitUserPrompt(system, user string, limit int) (string, bool) {
	if limit <= 0 {
		return user, false
	}
	size := MeasurePrompt(system, user)
	if size.Total() <= limit {
		return user, false
	}
	budget := max(limit-size.System, 0) * runesPerToken
	runes := []rune(user)
	if budget >= len(runes) {
		return user, false
	}
	return string(runes[:budget]), true
}
