package language

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain english", "I need to check my booking", English},
		{"devanagari", "मुझे मदद चाहिए", Hindi},
		{"romanized hindi", "haan theek hai", Hindi},
		{"hinglish mix", "mera booking cancel karna hai please", Hinglish},
		{"devanagari with english majority", "please cancel my booking अभी", Hinglish},
		{"empty", "", Unknown},
		{"digits and punctuation", "1234 !!!", Unknown},
		{"single english word", "hello", English},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.text); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
