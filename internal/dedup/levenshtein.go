package dedup

// Distance is the Levenshtein distance between left and right, counted in
// runes.
func Distance(left string, right string) int {
	return runeDistance([]rune(left), []rune(right))
}

func runeDistance(left []rune, right []rune) int {
	if len(left) < len(right) {
		left, right = right, left
	}
	if len(right) == 0 {
		return len(left)
	}

	previous := make([]int, len(right)+1)
	current := make([]int, len(right)+1)
	for column := range previous {
		previous[column] = column
	}
	for row := 1; row <= len(left); row++ {
		current[0] = row
		for column := 1; column <= len(right); column++ {
			cost := 1
			if left[row-1] == right[column-1] {
				cost = 0
			}
			current[column] = min(previous[column]+1, current[column-1]+1, previous[column-1]+cost)
		}
		previous, current = current, previous
	}
	return previous[len(right)]
}

// Ratio is the edit distance normalized by the longer length, in [0, 1].
// Two empty strings have ratio 0.
func Ratio(left string, right string) float64 {
	leftRunes := []rune(left)
	rightRunes := []rune(right)
	longest := max(len(leftRunes), len(rightRunes))
	if longest == 0 {
		return 0
	}
	return float64(runeDistance(leftRunes, rightRunes)) / float64(longest)
}

// lengthBoundExceeds reports whether the length difference alone already
// forces Ratio(left, right) >= threshold.
func lengthBoundExceeds(leftLength int, rightLength int, threshold float64) bool {
	longest := max(leftLength, rightLength)
	if longest == 0 {
		return false
	}
	difference := leftLength - rightLength
	if difference < 0 {
		difference = -difference
	}
	return float64(difference)/float64(longest) >= threshold
}
