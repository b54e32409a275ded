package utils

import "testing"

func TestMatchLike(t *testing.T) {
	cases := []struct {
		value, pattern string
		want           bool
	}{
		{"Jane", "Jane", true},
		{"Jane", "J%", true},
		{"Jane", "%ne", true},
		{"Jane", "%a%", true},
		{"Jane", "_ane", true},
		{"Jane", "J_ne", true},
		{"Jane", "J__", false},
		{"Jane", "K%", false},
		{"", "%", true},
		{"", "_", false},
		{"abc", "a%%c", true},
		{"abc", "", false},
	}
	for _, c := range cases {
		if got := MatchLike(c.value, c.pattern); got != c.want {
			t.Fatalf("MatchLike(%q, %q) = %v, want %v", c.value, c.pattern, got, c.want)
		}
	}
}
