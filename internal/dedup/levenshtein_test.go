package dedup

import "testing"

func TestDistance(t *testing.T) {
	t.Parallel()

	cases := []struct {
		left     string
		right    string
		expected int
	}{
		{left: "", right: "", expected: 0},
		{left: "abc", right: "", expected: 3},
		{left: "", right: "abc", expected: 3},
		{left: "kitten", right: "sitting", expected: 3},
		{left: "flaw", right: "lawn", expected: 2},
		{left: "same", right: "same", expected: 0},
		{left: "caf\u00e9", right: "cafe", expected: 1},
		{left: "abc", right: "cab", expected: 2},
	}
	for _, testCase := range cases {
		if actual := Distance(testCase.left, testCase.right); actual != testCase.expected {
			t.Fatalf("Distance(%q, %q): expected %d, got %d", testCase.left, testCase.right, testCase.expected, actual)
		}
		if actual := Distance(testCase.right, testCase.left); actual != testCase.expected {
			t.Fatalf("Distance is not symmetric for %q, %q", testCase.left, testCase.right)
		}
	}
}

func TestRatio(t *testing.T) {
	t.Parallel()

	if ratio := Ratio("", ""); ratio != 0 {
		t.Fatalf("expected 0 for two empty strings, got %v", ratio)
	}
	if ratio := Ratio("kitten", "sitting"); ratio != 3.0/7.0 {
		t.Fatalf("expected 3/7, got %v", ratio)
	}
	if ratio := Ratio("abcd", "wxyz"); ratio != 1 {
		t.Fatalf("expected 1 for disjoint strings, got %v", ratio)
	}
}

func TestLengthBoundExceeds(t *testing.T) {
	t.Parallel()

	if !lengthBoundExceeds(10, 5, 0.2) {
		t.Fatalf("length 10 vs 5 cannot be within 0.2")
	}
	if lengthBoundExceeds(100, 95, 0.2) {
		t.Fatalf("length 100 vs 95 may still be within 0.2")
	}
	if lengthBoundExceeds(0, 0, 0.2) {
		t.Fatalf("empty strings are never excluded by length")
	}
}
