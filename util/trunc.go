package util

// TruncateRightWithSuffix keeps the first n runes of text, appending the suffix
// only if truncation happens.
func TruncateRightWithSuffix(text string, n int, suffix string) string {
	if n <= 0 {
		return suffix
	}

	rs := make([]rune, 0, n)
	for i, r := range text {
		if i >= n {
			return string(append(rs, []rune(suffix)...))
		}

		rs = append(rs, r)
	}

	return text
}
