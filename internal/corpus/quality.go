package corpus

import (
	"strings"
	"unicode"
)

// QualityScore rates extracted page text from 0 (garbage) to 100 (clean).
// The score blends printable-rune and alphanumeric ratios with two word
// shape signals: the fraction of alphabetic tokens containing a vowel and
// the mean token length. Replacement characters from the extractor subtract
// directly. Scores below the configured quality threshold mark a page as a
// candidate for a vision re-check.
func QualityScore(text string) float64 {
	var (
		total        int
		printable    int
		alnum        int
		nonSpace     int
		replacements int
	)
	for _, r := range text {
		total++
		switch {
		case r == unicode.ReplacementChar:
			replacements++
			continue
		case unicode.IsSpace(r):
			printable++
			continue
		}
		nonSpace++
		if unicode.IsPrint(r) {
			printable++
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 || nonSpace+replacements == 0 {
		return 0
	}

	var (
		alphaTokens int
		vowelTokens int
		alphaRunes  int
	)
	for _, tok := range strings.Fields(text) {
		letters := 0
		hasVowel := false
		for _, r := range tok {
			if unicode.IsLetter(r) {
				letters++
				if strings.ContainsRune("aeiouyAEIOUYàâéèêëîïôûùüÀÂÉÈÊËÎÏÔÛÙÜ", r) {
					hasVowel = true
				}
			}
		}
		if letters == 0 {
			continue
		}
		alphaTokens++
		alphaRunes += letters
		if hasVowel {
			vowelTokens++
		}
	}

	printableRatio := float64(printable) / float64(total)
	alnumRatio := 0.0
	if nonSpace > 0 {
		alnumRatio = float64(alnum) / float64(nonSpace)
	}
	vowelRatio := 0.0
	lengthScore := 0.0
	if alphaTokens > 0 {
		vowelRatio = float64(vowelTokens) / float64(alphaTokens)
		mean := float64(alphaRunes) / float64(alphaTokens)
		switch {
		case mean >= 3 && mean <= 10:
			lengthScore = 1
		case mean < 3:
			lengthScore = mean / 3
		default:
			lengthScore = max(0, 1-(mean-10)/10)
		}
	}

	score := 35*printableRatio + 20*alnumRatio + 30*vowelRatio + 15*lengthScore
	score -= 100 * float64(replacements) / float64(total)
	return min(100, max(0, score))
}
