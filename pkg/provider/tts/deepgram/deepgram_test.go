package deepgram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestBuildURL(t *testing.T) {
	p, err := New("key", WithSampleRate(16000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	u, err := url.Parse(p.buildURL("aura-asteria-en"))
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	if got := q.Get("model"); got != "aura-asteria-en" {
		t.Errorf("model = %q", got)
	}
	if got := q.Get("encoding"); got != "linear16" {
		t.Errorf("encoding = %q", got)
	}
	if got := q.Get("sample_rate"); got != "16000" {
		t.Errorf("sample_rate = %q", got)
	}
	if got := q.Get("container"); got != "none" {
		t.Errorf("container = %q", got)
	}
}

func TestSynthesize(t *testing.T) {
	wantPCM := []byte{0x01, 0x02, 0x03, 0x04}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token key" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["text"] != "Hello there" {
			t.Errorf("text = %q", body["text"])
		}
		if got := r.URL.Query().Get("model"); got != "aura-asteria-en" {
			t.Errorf("model = %q", got)
		}
		w.Write(wantPCM)
	}))
	defer srv.Close()

	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.endpoint = srv.URL

	pcm, err := p.Synthesize(context.Background(), "Hello there", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(pcm) != string(wantPCM) {
		t.Errorf("pcm = %v, want %v", pcm, wantPCM)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Synthesize(context.Background(), "", ""); err == nil {
		t.Error("expected error for empty text")
	}
}

func TestSynthesize_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err_code":"INVALID_AUTH"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New("bad-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.endpoint = srv.URL

	if _, err := p.Synthesize(context.Background(), "Hello", ""); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error for empty api key")
	}
}
