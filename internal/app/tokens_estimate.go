package app

import "unicode/utf8"

// EstimateTokens gives a rough token count for a piece of text, used for the
// usage line before the backend reports real numbers. Deliberately
// over-estimates: showing too many tokens is harmless, too few is
// misleading. Not a tokenizer.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	b := len(text)
	r := utf8.RuneCountInString(text)
	byBytes := b / 3
	byRunes := r / 2
	if byBytes < byRunes {
		return byRunes
	}
	return byBytes
}
