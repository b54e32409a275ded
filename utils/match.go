package utils

// MatchLike checks a value against a SQL LIKE pattern:
//   - '%' matches any sequence of characters (including none).
//   - '_' matches exactly one character.
//
// The memory stores use it so that `like` rules behave the same with and
// without a SQL backend.
func MatchLike(value, pattern string) bool {
	return matchLike(value, pattern, 0, 0)
}

func matchLike(value, pattern string, vIndex, pIndex int) bool {
	vLen, pLen := len(value), len(pattern)

	for pIndex < pLen {
		switch pattern[pIndex] {
		case '%':
			// collapse consecutive wildcards
			for pIndex < pLen && pattern[pIndex] == '%' {
				pIndex++
			}
			if pIndex == pLen {
				return true
			}
			// try every suffix of the remaining value
			for i := vIndex; i <= vLen; i++ {
				if matchLike(value, pattern, i, pIndex) {
					return true
				}
			}
			return false
		case '_':
			if vIndex >= vLen {
				return false
			}
			vIndex++
			pIndex++
		default:
			if vIndex >= vLen || value[vIndex] != pattern[pIndex] {
				return false
			}
			vIndex++
			pIndex++
		}
	}
	return vIndex == vLen
}
