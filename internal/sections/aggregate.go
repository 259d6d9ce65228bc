package sections

import (
	"errors"
	"fmt"
)

// ErrInvariant marks states the pipeline must never emit, such as section
// lists with gaps or overlaps. Callers treat it as fatal.
var ErrInvariant = errors.New("section invariant violated")

// Section is a maximal run of pages sharing one category. StartPage and
// EndPage are 0-indexed and inclusive; the emitter converts to 1-indexed
// output. Sections are always derived from labels, never edited in place.
type Section struct {
	Category      Category
	StartPage     int
	EndPage       int
	AvgConfidence float64
}

// NumPages returns the page count of the section.
func (s Section) NumPages() int {
	return s.EndPage - s.StartPage + 1
}

func (s Section) String() string {
	return fmt.Sprintf("%s [%d-%d]", s.Category, s.StartPage+1, s.EndPage+1)
}

// Aggregate folds labels, which must be in page order, into maximal runs of
// equal category. AvgConfidence is the arithmetic mean of the member page
// confidences. The result is deterministic for a given input; Unknown runs
// are kept so later stages can target them.
func Aggregate(labels []PageLabel) []Section {
	if len(labels) == 0 {
		return nil
	}
	var out []Section
	start := 0
	sum := labels[0].Confidence
	for i := 1; i <= len(labels); i++ {
		if i < len(labels) && labels[i].Category == labels[start].Category {
			sum += labels[i].Confidence
			continue
		}
		out = append(out, Section{
			Category:      labels[start].Category,
			StartPage:     labels[start].Page,
			EndPage:       labels[i-1].Page,
			AvgConfidence: sum / float64(i-start),
		})
		if i < len(labels) {
			start = i
			sum = labels[i].Confidence
		}
	}
	return out
}

// ValidateCover checks that sections are ordered, non-empty, non-overlapping
// and jointly cover pages [0, pageCount-1]. Any violation wraps
// ErrInvariant.
func ValidateCover(secs []Section, pageCount int) error {
	if pageCount == 0 && len(secs) == 0 {
		return nil
	}
	if len(secs) == 0 {
		return fmt.Errorf("no sections for %d pages: %w", pageCount, ErrInvariant)
	}
	if secs[0].StartPage != 0 {
		return fmt.Errorf("first section starts at page %d: %w", secs[0].StartPage, ErrInvariant)
	}
	for i, s := range secs {
		if s.EndPage < s.StartPage {
			return fmt.Errorf("section %d (%s) is empty: %w", i, s.Category, ErrInvariant)
		}
		if i > 0 && s.StartPage != secs[i-1].EndPage+1 {
			return fmt.Errorf("gap or overlap between %s and %s: %w", secs[i-1], s, ErrInvariant)
		}
	}
	if last := secs[len(secs)-1]; last.EndPage != pageCount-1 {
		return fmt.Errorf("last section ends at page %d of %d: %w", last.EndPage+1, pageCount, ErrInvariant)
	}
	return nil
}

// FillUnknown reassigns every maximal Unknown run to the flanking known
// section with the higher average confidence, keeping page confidences at
// zero so the uncertainty stays visible in section averages. Labels with no
// known flank anywhere (a fully Unknown document) are returned unchanged;
// ValidateCover output checks catch that case. The input is not mutated.
func FillUnknown(labels []PageLabel) []PageLabel {
	out := make([]PageLabel, len(labels))
	copy(out, labels)
	secs := Aggregate(out)
	for i, s := range secs {
		if s.Category != Unknown {
			continue
		}
		var left, right *Section
		if i > 0 {
			left = &secs[i-1]
		}
		if i < len(secs)-1 {
			right = &secs[i+1]
		}
		adopt := Unknown
		switch {
		case left != nil && right != nil:
			if left.AvgConfidence >= right.AvgConfidence {
				adopt = left.Category
			} else {
				adopt = right.Category
			}
		case left != nil:
			adopt = left.Category
		case right != nil:
			adopt = right.Category
		}
		if adopt == Unknown {
			continue
		}
		for p := s.StartPage; p <= s.EndPage; p++ {
			out[p].Category = adopt
			out[p].Confidence = 0
		}
	}
	return out
}
