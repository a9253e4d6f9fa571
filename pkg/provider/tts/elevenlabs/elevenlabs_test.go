package elevenlabs

import (
	"strings"
	"testing"
)

func TestNewValidation(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
	p, err := New("key", WithModel("eleven_turbo_v2"), WithOutputFormat("pcm_24000"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.model != "eleven_turbo_v2" {
		t.Errorf("model = %q", p.model)
	}
	if p.outputFormat != "pcm_24000" {
		t.Errorf("outputFormat = %q", p.outputFormat)
	}
}

func TestDecodeVoices(t *testing.T) {
	body := `{
		"voices": [
			{"voice_id": "v1", "name": "Rachel", "category": "premade", "labels": {"accent": "american"}},
			{"voice_id": "v2", "name": "Custom", "labels": {}}
		]
	}`
	voices, err := decodeVoices(strings.NewReader(body))
	if err != nil {
		t.Fatalf("decodeVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(voices))
	}
	if voices[0].ID != "v1" || voices[0].Name != "Rachel" {
		t.Errorf("voices[0] = %+v", voices[0])
	}
	if voices[0].Metadata["category"] != "premade" || voices[0].Metadata["accent"] != "american" {
		t.Errorf("voices[0].Metadata = %v", voices[0].Metadata)
	}
	if voices[1].Provider != "elevenlabs" {
		t.Errorf("voices[1].Provider = %q", voices[1].Provider)
	}
}

func TestOutputSampleRate(t *testing.T) {
	tests := []struct {
		format string
		want   int
	}{
		{"pcm_16000", 16000},
		{"pcm_22050", 22050},
		{"pcm_24000", 24000},
		{"pcm_44100", 44100},
		{"pcm_8000", 8000},
		{"unknown", 16000},
	}
	for _, tt := range tests {
		if got := outputSampleRate(tt.format); got != tt.want {
			t.Errorf("outputSampleRate(%q) = %d, want %d", tt.format, got, tt.want)
		}
	}
}
