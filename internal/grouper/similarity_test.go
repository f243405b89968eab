package grouper

import "testing"

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Country", "Country", 1.0},
		{"case and separators ignored", "Brand_Name", "brand name", 1.0},
		{"containment", "Country", "CountryCode", 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NameSimilarity(tt.a, tt.b); got != tt.want {
				t.Errorf("NameSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNameSimilarityCloseNames(t *testing.T) {
	if got := NameSimilarity("Ctry", "Country"); got < 0.5 {
		t.Errorf("NameSimilarity(Ctry, Country) = %v, want >= 0.5", got)
	}
	if got := NameSimilarity("Country", "Amount"); got >= nameThreshold {
		t.Errorf("NameSimilarity(Country, Amount) = %v, want below threshold", got)
	}
}

func TestLevenshteinRatio(t *testing.T) {
	tests := []struct {
		s1, s2 string
		want   float64
	}{
		{"abc", "abc", 1.0},
		{"", "", 1.0},
		{"abc", "abd", 1.0 - 1.0/3.0},
		{"abc", "xyz", 0.0},
	}
	for _, tt := range tests {
		if got := LevenshteinRatio(tt.s1, tt.s2); got != tt.want {
			t.Errorf("LevenshteinRatio(%q, %q) = %v, want %v", tt.s1, tt.s2, got, tt.want)
		}
	}
}

func TestTrigramJaccard(t *testing.T) {
	if got := TrigramJaccard("country", "country"); got != 1.0 {
		t.Errorf("identical strings = %v, want 1.0", got)
	}
	if got := TrigramJaccard("abc", "xyz"); got != 0.0 {
		t.Errorf("disjoint strings = %v, want 0.0", got)
	}
	if got := TrigramJaccard("", "abc"); got != 0.0 {
		t.Errorf("empty string = %v, want 0.0", got)
	}
}

func TestValueOverlap(t *testing.T) {
	a := []string{"US", "UK", "FR"}
	b := []string{"us", "uk", "DE"}
	// Intersection {us, uk}, union {us, uk, fr, de}.
	want := 2.0 / 4.0
	if got := ValueOverlap(a, b); got != want {
		t.Errorf("ValueOverlap = %v, want %v", got, want)
	}
	if got := ValueOverlap(nil, b); got != 0.0 {
		t.Errorf("ValueOverlap(nil, b) = %v, want 0", got)
	}
}
