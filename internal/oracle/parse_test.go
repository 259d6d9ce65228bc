package oracle

import (
	"testing"

	"github.com/jackzampolin/binder/internal/planner"
	"github.com/jackzampolin/binder/internal/sections"
)

func TestParseReplyTolerance(t *testing.T) {
	reply := "Here are the classifications you asked for:\n" +
		"```\n" +
		"page, category, confidence\n" +
		"1, 1, 95\n" +
		"2, Articles & Amendments, 90.5\n" +
		"Page 3, 2, 88\n" +
		"4, 250\n" +
		"not a data line\n" +
		"5, 13, 70\n" +
		"6, 2, 140\n" +
		"```\n" +
		"Let me know if you need anything else."

	got := ParseReply(reply)
	want := []sections.PageLabel{
		{Page: 0, Category: sections.ArticlesAmendments, Confidence: 95},
		{Page: 1, Category: sections.ArticlesAmendments, Confidence: 90.5},
		{Page: 2, Category: sections.ByLaws, Confidence: 88},
		{Page: 5, Category: sections.ByLaws, Confidence: 100},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d labels %+v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseReplyDuplicatesLastWins(t *testing.T) {
	got := ParseReply("3, 1, 50\n3, 2, 80")
	if len(got) != 1 {
		t.Fatalf("got %d labels", len(got))
	}
	if got[0].Category != sections.ByLaws || got[0].Confidence != 80 {
		t.Errorf("label = %+v", got[0])
	}
}

func TestParseReplyEmpty(t *testing.T) {
	for _, text := range []string{"", "sorry, I cannot help with that", "```\n```"} {
		if got := ParseReply(text); len(got) != 0 {
			t.Errorf("ParseReply(%q) = %+v, want empty", text, got)
		}
	}
}

func TestNormalizeBatch(t *testing.T) {
	b := planner.Batch{Lo: 10, Hi: 13, CtxLo: 8, CtxHi: 15}
	parsed := []sections.PageLabel{
		{Page: 8, Category: sections.ByLaws, Confidence: 90},  // context, dropped
		{Page: 10, Category: sections.ByLaws, Confidence: 92}, // primary
		{Page: 12, Category: sections.MinutesResolutions, Confidence: 77},
		{Page: 15, Category: sections.ByLaws, Confidence: 88}, // context, dropped
	}
	got := NormalizeBatch(b, parsed)
	if len(got) != 4 {
		t.Fatalf("got %d labels, want one per primary page", len(got))
	}
	if got[0].Page != 10 || got[0].Category != sections.ByLaws {
		t.Errorf("label[0] = %+v", got[0])
	}
	if got[1].Page != 11 || got[1].Category != sections.Unknown || got[1].Confidence != 0 {
		t.Errorf("missing primary page not Unknown: %+v", got[1])
	}
	if got[3].Page != 13 || got[3].Category != sections.Unknown {
		t.Errorf("label[3] = %+v", got[3])
	}
}

func TestParseVisionReply(t *testing.T) {
	tests := []struct {
		name string
		text string
		want sections.PageLabel
	}{
		{"triple", "6, 9, 77", sections.PageLabel{Page: 5, Category: sections.ShareCertificates, Confidence: 77}},
		{"triple wrong page echoed", "2, 9, 77", sections.PageLabel{Page: 5, Category: sections.ShareCertificates, Confidence: 77}},
		{"pair", "9, 77", sections.PageLabel{Page: 5, Category: sections.ShareCertificates, Confidence: 77}},
		{"pair with name", "Share Certificates, 81", sections.PageLabel{Page: 5, Category: sections.ShareCertificates, Confidence: 81}},
		{"garbage", "no idea", sections.PageLabel{Page: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseVisionReply(5, tt.text); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
