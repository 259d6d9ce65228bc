package sections

import (
	"errors"
	"reflect"
	"testing"
)

func TestAggregate(t *testing.T) {
	labels := []PageLabel{
		{Page: 0, Category: ArticlesAmendments, Confidence: 90},
		{Page: 1, Category: ArticlesAmendments, Confidence: 80},
		{Page: 2, Category: ByLaws, Confidence: 70},
		{Page: 3, Category: Unknown, Confidence: 0},
		{Page: 4, Category: ByLaws, Confidence: 60},
	}
	got := Aggregate(labels)
	want := []Section{
		{Category: ArticlesAmendments, StartPage: 0, EndPage: 1, AvgConfidence: 85},
		{Category: ByLaws, StartPage: 2, EndPage: 2, AvgConfidence: 70},
		{Category: Unknown, StartPage: 3, EndPage: 3, AvgConfidence: 0},
		{Category: ByLaws, StartPage: 4, EndPage: 4, AvgConfidence: 60},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}

	t.Run("deterministic", func(t *testing.T) {
		again := Aggregate(labels)
		if !reflect.DeepEqual(got, again) {
			t.Error("same labels produced different sections")
		}
	})

	t.Run("empty", func(t *testing.T) {
		if secs := Aggregate(nil); secs != nil {
			t.Errorf("Aggregate(nil) = %v", secs)
		}
	})
}

func TestValidateCover(t *testing.T) {
	ok := []Section{
		{Category: ArticlesAmendments, StartPage: 0, EndPage: 3},
		{Category: ByLaws, StartPage: 4, EndPage: 9},
	}
	tests := []struct {
		name      string
		secs      []Section
		pageCount int
		wantErr   bool
	}{
		{"valid", ok, 10, false},
		{"empty empty", nil, 0, false},
		{"no sections", nil, 10, true},
		{"starts late", []Section{{Category: ByLaws, StartPage: 1, EndPage: 9}}, 10, true},
		{"gap", []Section{
			{Category: ArticlesAmendments, StartPage: 0, EndPage: 3},
			{Category: ByLaws, StartPage: 5, EndPage: 9},
		}, 10, true},
		{"overlap", []Section{
			{Category: ArticlesAmendments, StartPage: 0, EndPage: 4},
			{Category: ByLaws, StartPage: 4, EndPage: 9},
		}, 10, true},
		{"short", ok, 12, true},
		{"inverted", []Section{{Category: ByLaws, StartPage: 0, EndPage: -1}}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCover(tt.secs, tt.pageCount)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvariant) {
				t.Errorf("error %v does not wrap ErrInvariant", err)
			}
		})
	}
}

func TestFillUnknown(t *testing.T) {
	t.Run("adopts higher confidence flank", func(t *testing.T) {
		labels := []PageLabel{
			{Page: 0, Category: ArticlesAmendments, Confidence: 60},
			{Page: 1, Category: Unknown},
			{Page: 2, Category: ByLaws, Confidence: 90},
		}
		got := FillUnknown(labels)
		if got[1].Category != ByLaws {
			t.Errorf("label(1) = %v, want ByLaws", got[1].Category)
		}
		if labels[1].Category != Unknown {
			t.Error("input was mutated")
		}
	})

	t.Run("leading run adopts right flank", func(t *testing.T) {
		labels := []PageLabel{
			{Page: 0, Category: Unknown},
			{Page: 1, Category: Unknown},
			{Page: 2, Category: MinutesResolutions, Confidence: 75},
		}
		got := FillUnknown(labels)
		for i := 0; i < 2; i++ {
			if got[i].Category != MinutesResolutions {
				t.Fatalf("label(%d) = %v, want MinutesResolutions", i, got[i].Category)
			}
		}
	})

	t.Run("fully unknown unchanged", func(t *testing.T) {
		labels := []PageLabel{{Page: 0, Category: Unknown}, {Page: 1, Category: Unknown}}
		got := FillUnknown(labels)
		if got[0].Category != Unknown || got[1].Category != Unknown {
			t.Errorf("fully unknown labels were rewritten: %+v", got)
		}
	})
}
