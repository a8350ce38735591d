package dialogue

import (
	"slices"
	"testing"
)

func TestSplitSymptoms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"fever, cough", []string{"fever", "cough"}},
		{"fever; cough and headache", []string{"fever", "cough", "headache"}},
		{"Fever AND chills", []string{"Fever", "chills"}},
		{"hand pain and sandy eyes", []string{"hand pain", "sandy eyes"}},
		{" , ;and ", []string{}},
		{"", []string{}},
		{"fever", []string{"fever"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SplitSymptoms(tt.in); !slices.Equal(got, tt.want) {
				t.Errorf("SplitSymptoms(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitStored(t *testing.T) {
	got := SplitStored(" fever,chills, ,and aches ")
	want := []string{"fever", "chills", "and aches"}
	if !slices.Equal(got, want) {
		t.Errorf("SplitStored = %q, want %q", got, want)
	}
}

func TestMaxSimilarity(t *testing.T) {
	v := []float32{1, 0}
	if got := maxSimilarity(v, nil); got != 0 {
		t.Errorf("empty refs = %v, want 0", got)
	}
	if got := maxSimilarity(v, [][]float32{{-1, 0}}); got != 0 {
		t.Errorf("negative similarity floored = %v, want 0", got)
	}
	if got := maxSimilarity(v, [][]float32{{0, 1}, {1, 0}}); got < 0.999 {
		t.Errorf("best match = %v, want 1", got)
	}
}
