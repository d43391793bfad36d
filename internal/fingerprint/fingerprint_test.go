package fingerprint

import "testing"

func TestOf_Deterministic(t *testing.T) {
	data := []byte("%PDF-1.4 some bytes")
	a := Of(data, "report.pdf")
	b := Of(append([]byte(nil), data...), "report.pdf")
	if a != b {
		t.Fatalf("identical input produced different fingerprints: %v vs %v", a, b)
	}
	if a.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", a.Size, len(data))
	}
}

func TestOf_Distinguishes(t *testing.T) {
	base := Of([]byte("content-a"), "a.pdf")
	tests := []struct {
		name string
		fp   Fingerprint
	}{
		{"different bytes", Of([]byte("content-b"), "a.pdf")},
		{"different name", Of([]byte("content-a"), "b.pdf")},
		{"prefix bytes", Of([]byte("content-"), "a.pdf")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.fp == base {
				t.Fatalf("fingerprints collide: %v", tt.fp)
			}
		})
	}
}

func TestFingerprint_Formatting(t *testing.T) {
	fp := Of(nil, "empty.pdf")
	if len(fp.Hex()) != 64 {
		t.Errorf("Hex length = %d, want 64", len(fp.Hex()))
	}
	if len(fp.Short()) != 12 {
		t.Errorf("Short length = %d, want 12", len(fp.Short()))
	}
	want := fp.Hex() + ":0:empty.pdf"
	if fp.String() != want {
		t.Errorf("String() = %q, want %q", fp.String(), want)
	}
}
