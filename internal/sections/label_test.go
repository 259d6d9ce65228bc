package sections

import "testing"

const testFinal = 85.0

func TestLabelMapMerge(t *testing.T) {
	m := NewLabelMap(5)
	if m.Version() != 0 || m.Len() != 5 {
		t.Fatalf("fresh map: version %d len %d", m.Version(), m.Len())
	}
	if got := len(m.UnknownPages()); got != 5 {
		t.Fatalf("fresh map has %d unknown pages, want 5", got)
	}

	m1 := m.Merge([]PageLabel{
		{Page: 0, Category: ByLaws, Confidence: 90},
		{Page: 1, Category: ByLaws, Confidence: 70},
		{Page: 2, Category: MinutesResolutions, Confidence: 40},
	}, testFinal)

	t.Run("immutable snapshots", func(t *testing.T) {
		if m.Label(0).Category != Unknown {
			t.Error("merge mutated the previous snapshot")
		}
		if m1.Version() != 1 {
			t.Errorf("version = %d, want 1", m1.Version())
		}
	})

	t.Run("newest wins", func(t *testing.T) {
		m2 := m1.Merge([]PageLabel{{Page: 2, Category: ShareCertificates, Confidence: 60}}, testFinal)
		if got := m2.Label(2); got.Category != ShareCertificates || got.Confidence != 60 {
			t.Errorf("label(2) = %+v", got)
		}
	})

	t.Run("unknown never replaces known", func(t *testing.T) {
		m2 := m1.Merge([]PageLabel{{Page: 1, Category: Unknown, Confidence: 0}}, testFinal)
		if got := m2.Label(1); got.Category != ByLaws {
			t.Errorf("label(1) = %+v, unknown overwrote a known label", got)
		}
	})

	t.Run("final label needs strictly higher confidence", func(t *testing.T) {
		m2 := m1.Merge([]PageLabel{{Page: 0, Category: MinutesResolutions, Confidence: 90}}, testFinal)
		if got := m2.Label(0); got.Category != ByLaws {
			t.Errorf("label(0) = %+v, equal confidence replaced a final label", got)
		}
		m3 := m1.Merge([]PageLabel{{Page: 0, Category: MinutesResolutions, Confidence: 95}}, testFinal)
		if got := m3.Label(0); got.Category != MinutesResolutions || got.Confidence != 95 {
			t.Errorf("label(0) = %+v, higher confidence should replace", got)
		}
	})

	t.Run("out of range dropped", func(t *testing.T) {
		m2 := m1.Merge([]PageLabel{{Page: 99, Category: ByLaws, Confidence: 50}, {Page: -1, Category: ByLaws}}, testFinal)
		if m2.Len() != 5 {
			t.Errorf("len = %d, want 5", m2.Len())
		}
	})
}

func TestLabelMapReplace(t *testing.T) {
	m := NewLabelMap(3).Merge([]PageLabel{
		{Page: 0, Category: ByLaws, Confidence: 90},
		{Page: 1, Category: MinutesResolutions, Confidence: 20},
		{Page: 2, Category: ByLaws, Confidence: 88},
	}, testFinal)
	smoothed := Smooth(m.Labels(), SmoothConfig{Window: 3, MinRun: 2, HighConfidence: 85})
	next := m.Replace(smoothed)
	if next.Version() != m.Version()+1 {
		t.Fatalf("version = %d, want %d", next.Version(), m.Version()+1)
	}
	if got := next.Label(1).Category; got != ByLaws {
		t.Errorf("label(1) = %v after replace, want ByLaws", got)
	}
	if m.Label(1).Category != MinutesResolutions {
		t.Error("replace mutated the previous snapshot")
	}
}
