package textutil

import (
	"strings"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint("Hallo")
	b := Fingerprint("Hallo")
	if a != b {
		t.Errorf("identical input produced different fingerprints: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("fingerprint length = %d, want 32 hex chars", len(a))
	}
}

func TestFingerprintByteExact(t *testing.T) {
	if Fingerprint("Hallo") == Fingerprint("hallo") {
		t.Error("case variants should not collide")
	}
	if Fingerprint("Hallo") == Fingerprint("Hallo ") {
		t.Error("trailing whitespace should change the fingerprint")
	}
	if Fingerprint("") == Fingerprint(" ") {
		t.Error("empty and whitespace input should differ")
	}
}

func TestNormalizeWord(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Haus", "haus"},
		{"umlaut folded", "Bäcker", "backer"},
		{"decomposed umlaut", "Bäcker", "backer"},
		{"eszett replaced", "Straße", "stra_e"},
		{"spaces and punctuation", "der Hund!", "der_hund"},
		{"hyphen kept", "e-mail", "e-mail"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"punctuation only", "!?.", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeWord(tt.in); got != tt.want {
				t.Errorf("NormalizeWord(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeWordFilesystemSafe(t *testing.T) {
	got := NormalizeWord(`a/b\c:d*e?f"g<h>i|j`)
	if strings.ContainsAny(got, `/\:*?"<>|`) {
		t.Errorf("normalized word %q still contains unsafe characters", got)
	}
}
