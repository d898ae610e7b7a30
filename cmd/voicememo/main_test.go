package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/voicememo/internal/config"
	"github.com/MrWong99/voicememo/internal/notes"
	"github.com/MrWong99/voicememo/internal/recording"
)

// ── helpers ───────────────────────────────────────────────────────────────────

// whisperServer fakes a whisper.cpp /inference endpoint.
func whisperServer(t *testing.T, text string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/inference" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"text": %q, "language": "en"}`, text)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeTestConfig(t *testing.T, sttURL string) (cfgPath, dataDir string) {
	t.Helper()
	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	cfgPath = filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`server:
  log_level: error
providers:
  stt:
    name: whisper
    base_url: %s
storage:
  data_dir: %s
recording:
  temp_dir: %s
transcription:
  retry_delays: [1ms, 1ms, 1ms]
`, sttURL, dataDir, dir)
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, dataDir
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, strings.NewReader(""), &out, &errOut)
	return code, out.String(), errOut.String()
}

func writeAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memo.m4a")
	if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ── end to end ────────────────────────────────────────────────────────────────

func TestRun_AddListShowEditDelete(t *testing.T) {
	srv, calls := whisperServer(t, "Remember to buy groceries from the store")
	cfgPath, dataDir := writeTestConfig(t, srv.URL)
	src := writeAudioFile(t)

	code, out, errOut := runCLI(t, "-config", cfgPath, "add", src)
	if code != 0 {
		t.Fatalf("add exit = %d, stderr = %s", code, errOut)
	}
	if calls.Load() != 1 {
		t.Errorf("transcription calls = %d, want 1", calls.Load())
	}
	if !strings.Contains(out, "Remember to buy groceries") || !strings.Contains(out, "category:  shopping") {
		t.Errorf("add output missing transcript or category:\n%s", out)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("imported file was consumed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, config.DefaultStoreKey+".json")); err != nil {
		t.Errorf("note snapshot not written: %v", err)
	}

	code, out, _ = runCLI(t, "-config", cfgPath, "list", "-category", "shopping")
	if code != 0 || !strings.Contains(out, config.DefaultPlaceholderTitle) || !strings.Contains(out, "completed") {
		t.Fatalf("list exit = %d, output:\n%s", code, out)
	}
	id := strings.Fields(strings.Split(out, "\n")[1])[0]

	code, out, _ = runCLI(t, "-config", cfgPath, "list", "-category", "meeting")
	if code != 0 || !strings.Contains(out, "no notes") {
		t.Errorf("filtered list exit = %d, output:\n%s", code, out)
	}

	code, _, errOut = runCLI(t, "-config", cfgPath, "edit", id, "-title", "Groceries")
	if code != 0 {
		t.Fatalf("edit exit = %d, stderr = %s", code, errOut)
	}
	code, out, _ = runCLI(t, "-config", cfgPath, "show", id)
	if code != 0 || !strings.Contains(out, "Groceries") {
		t.Errorf("show exit = %d, output:\n%s", code, out)
	}

	code, _, errOut = runCLI(t, "-config", cfgPath, "delete", id)
	if code != 0 {
		t.Fatalf("delete exit = %d, stderr = %s", code, errOut)
	}
	_, out, _ = runCLI(t, "-config", cfgPath, "list")
	if !strings.Contains(out, "no notes") {
		t.Errorf("list after delete:\n%s", out)
	}
	entries, _ := os.ReadDir(filepath.Join(dataDir, "audio"))
	if len(entries) != 0 {
		t.Errorf("audio left behind after delete: %d files", len(entries))
	}
}

func TestRun_RetryFailedNote(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"text": "Standup meeting notes", "language": "en"}`)
	}))
	defer srv.Close()
	cfgPath, _ := writeTestConfig(t, srv.URL)

	if code, _, errOut := runCLI(t, "-config", cfgPath, "add", writeAudioFile(t)); code != 0 {
		t.Fatalf("add exit = %d, stderr = %s", code, errOut)
	}
	_, out, _ := runCLI(t, "-config", cfgPath, "list", "-failed")
	if !strings.Contains(out, string(notes.StatusFailed)) {
		t.Fatalf("expected a failed note:\n%s", out)
	}

	fail.Store(false)
	code, out, errOut := runCLI(t, "-config", cfgPath, "retry")
	if code != 0 {
		t.Fatalf("retry exit = %d, stderr = %s", code, errOut)
	}
	if !strings.Contains(out, "completed") {
		t.Errorf("retry output:\n%s", out)
	}
	_, out, _ = runCLI(t, "-config", cfgPath, "list", "-failed")
	if !strings.Contains(out, "no notes") {
		t.Errorf("failed notes remain:\n%s", out)
	}
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "no command", args: nil, want: 2},
		{name: "unknown command", args: []string{"frobnicate"}, want: 2},
		{name: "bad flag", args: []string{"-nope"}, want: 2},
		{name: "missing config", args: []string{"-config", filepath.Join(t.TempDir(), "absent.yaml"), "list"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, tt.args...); code != tt.want {
				t.Errorf("exit = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestRun_Status(t *testing.T) {
	srv, _ := whisperServer(t, "")
	cfgPath, _ := writeTestConfig(t, srv.URL)

	code, out, errOut := runCLI(t, "-config", cfgPath, "status")
	if code != 0 {
		t.Fatalf("status exit = %d, stderr = %s", code, errOut)
	}
	for _, want := range []string{"store: ok", "transcription: ok", "breaker whisper: closed", "notes: 0 (0 failed)"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

// ── helpers under test ────────────────────────────────────────────────────────

func TestResolveID(t *testing.T) {
	list := []notes.Note{{ID: "abc123"}, {ID: "abd456"}, {ID: "xyz"}}
	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{arg: "abc123", want: "abc123"},
		{arg: "abc", want: "abc123"},
		{arg: "x", want: "xyz"},
		{arg: "ab", wantErr: true},
		{arg: "nope", wantErr: true},
		{arg: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := resolveID(list, tt.arg)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("resolveID(%q) = %q, %v; want %q (err %v)", tt.arg, got, err, tt.want, tt.wantErr)
		}
	}
	if _, err := resolveID(list, ""); !errors.Is(err, errUsage) {
		t.Errorf("empty id err = %v, want errUsage", err)
	}
}

func TestSplitID(t *testing.T) {
	id, rest := splitID([]string{"abc", "-title", "x"})
	if id != "abc" || len(rest) != 2 {
		t.Errorf("splitID = %q %v", id, rest)
	}
	id, rest = splitID([]string{"-title", "x", "abc"})
	if id != "" || len(rest) != 3 {
		t.Errorf("splitID = %q %v", id, rest)
	}
}

func TestIntersect(t *testing.T) {
	a := []notes.Note{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	b := []notes.Note{{ID: "3"}, {ID: "1"}}
	c := []notes.Note{{ID: "1"}}

	got := intersect(a, b, c)
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("intersect = %v", got)
	}
	if len(a) != 3 {
		t.Error("intersect modified its input")
	}
}

func TestWriteNoteTable(t *testing.T) {
	cat := "task"
	var buf bytes.Buffer
	err := writeNoteTable(&buf, []notes.Note{{
		ID:              "0123456789abcdef",
		Title:           "Call the plumber",
		CreatedAt:       time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC),
		DurationSeconds: 75,
		Category:        &cat,
		Status:          notes.StatusCompleted,
	}})
	if err != nil {
		t.Fatal(err)
	}
	row := strings.Split(buf.String(), "\n")[1]
	for _, want := range []string{"01234567", "Mar 14, 2025", "1m 15s", "completed", "task", "Call the plumber"} {
		if !strings.Contains(row, want) {
			t.Errorf("row %q missing %q", row, want)
		}
	}
}

func TestLevelBar(t *testing.T) {
	tests := []struct {
		db   float64
		want string
	}{
		{db: -160, want: ".........."},
		{db: -60, want: ".........."},
		{db: -30, want: "#####....."},
		{db: 0, want: "##########"},
		{db: 6, want: "##########"},
	}
	for _, tt := range tests {
		if got := levelBar(tt.db, 10); got != tt.want {
			t.Errorf("levelBar(%v) = %q, want %q", tt.db, got, tt.want)
		}
	}
}

func TestStatusLine_Paused(t *testing.T) {
	line := statusLine(recording.Snapshot{State: recording.Paused, Elapsed: 65 * time.Second}, -10)
	if !strings.Contains(line, "01:05") || !strings.Contains(line, "paused") {
		t.Errorf("statusLine = %q", line)
	}
	if strings.Contains(line, "#") {
		t.Errorf("paused meter should be empty: %q", line)
	}
}

func TestOptDuration(t *testing.T) {
	entry := config.ProviderEntry{Name: "openai", Options: map[string]any{"timeout": "45s", "bad": "soon"}}
	if d, err := optDuration(entry, "timeout"); err != nil || d != 45*time.Second {
		t.Errorf("timeout = %v, %v", d, err)
	}
	if d, err := optDuration(entry, "absent"); err != nil || d != 0 {
		t.Errorf("absent = %v, %v", d, err)
	}
	if _, err := optDuration(entry, "bad"); err == nil {
		t.Error("expected parse error")
	}
}

func TestFallbackName(t *testing.T) {
	if got := fallbackName(config.ProviderEntry{Name: "openai", Model: "whisper-1"}, 0); got != "openai/whisper-1#1" {
		t.Errorf("got %q", got)
	}
	if got := fallbackName(config.ProviderEntry{Name: "whisper"}, 1); got != "whisper#2" {
		t.Errorf("got %q", got)
	}
}
