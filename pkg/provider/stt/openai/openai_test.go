package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/voicememo/pkg/provider/stt"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "note.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestDetectedLanguage(t *testing.T) {
	tests := []struct {
		name   string
		pinned string
		raw    string
		want   string
	}{
		{"from body", "", `{"text":"hi","language":"german"}`, "german"},
		{"pinned fallback", "fr", `{"text":"hi"}`, "fr"},
		{"default", "", `{"text":"hi"}`, "en"},
		{"empty body", "", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Provider{language: tt.pinned}
			if got := p.detectedLanguage(tt.raw); got != tt.want {
				t.Errorf("detectedLanguage = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestTranscribe_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			http.Error(w, "bad format "+got, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":" Buy milk and eggs ","language":"english","duration":2.5}`))
	}))
	defer srv.Close()

	p, err := New("sk-test", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := p.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if gotPath != "/v1/audio/transcriptions" {
		t.Errorf("path = %q", gotPath)
	}
	if res.Text != "Buy milk and eggs" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Language != "english" {
		t.Errorf("Language = %q", res.Language)
	}
}

func TestTranscribe_InsufficientQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota, please check your plan and billing details.","type":"insufficient_quota","code":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	p, _ := New("sk-test", WithBaseURL(srv.URL+"/v1/"))
	_, err := p.Transcribe(context.Background(), writeAudio(t))
	if !errors.Is(err, stt.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	p, _ := New("sk-test", WithBaseURL("http://127.0.0.1:1/v1/"))
	if _, err := p.Transcribe(context.Background(), "/nonexistent/file.wav"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
