package deepgram

import (
	"net/url"
	"testing"

	"github.com/sonara-ai/sonara/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cfg := stt.StreamConfig{
		SampleRate: 16000,
		Channels:   1,
		Language:   "en",
	}

	rawURL, err := p.buildURL(cfg)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-2", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "interim_results", "false", q.Get("interim_results"))
	assertEqual(t, "utterance_end_ms", "1000", q.Get("utterance_end_ms"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
}

func TestBuildURL_CustomOptions(t *testing.T) {
	p, err := New("key", WithModel("base"), WithLanguage("hi"), WithUtteranceEnd(1500))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "hi", q.Get("language"))
	assertEqual(t, "utterance_end_ms", "1500", q.Get("utterance_end_ms"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
}

func TestBuildURL_LanguageOverriddenByCfg(t *testing.T) {
	// cfg.Language takes precedence over the provider-level default.
	p, err := New("key", WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{Language: "hi", SampleRate: 16000})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	assertEqual(t, "language", "hi", u.Query().Get("language"))
}

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty api key")
	}
}

// ---- JSON parsing tests ----

func TestParseResponse_Final(t *testing.T) {
	raw := []byte(`{
		"type": "Results",
		"is_final": true,
		"duration": 1.2,
		"channel": {
			"alternatives": [{
				"transcript": "I need to check my booking",
				"confidence": 0.95
			}]
		}
	}`)

	tr, ok := parseResponse(raw)
	if !ok {
		t.Fatal("expected ok=true for valid final Results message")
	}
	assertEqual(t, "text", "I need to check my booking", tr.Text)
	if tr.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", tr.Confidence)
	}
}

func TestParseResponse_IgnoresPartial(t *testing.T) {
	raw := []byte(`{
		"type": "Results",
		"is_final": false,
		"channel": {
			"alternatives": [{"transcript": "I need", "confidence": 0.7}]
		}
	}`)

	if _, ok := parseResponse(raw); ok {
		t.Error("expected partial result to be ignored")
	}
}

func TestParseResponse_NonResultsType(t *testing.T) {
	raw := []byte(`{"type":"Metadata","request_id":"abc"}`)
	if _, ok := parseResponse(raw); ok {
		t.Error("expected Metadata message to be ignored")
	}
}

func TestParseResponse_NoAlternatives(t *testing.T) {
	raw := []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`)
	if _, ok := parseResponse(raw); ok {
		t.Error("expected message with no alternatives to be ignored")
	}
}

func TestParseResponse_BadJSON(t *testing.T) {
	if _, ok := parseResponse([]byte("{nope")); ok {
		t.Error("expected malformed JSON to be ignored")
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
