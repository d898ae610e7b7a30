package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/MrWong99/voicememo/internal/app"
	"github.com/MrWong99/voicememo/internal/config"
	"github.com/MrWong99/voicememo/internal/notes"
	"github.com/MrWong99/voicememo/pkg/audio/capture"
)

// env is what a subcommand gets to work with.
type env struct {
	app        *app.App
	cfg        *config.Config
	configPath string
	in         io.Reader
	out        io.Writer
	errOut     io.Writer
}

type command struct {
	summary       string
	observability bool
	run           func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"serve":  {summary: "run the metrics and health endpoints and reload config on change", observability: true, run: cmdServe},
	"record": {summary: "record a memo from the microphone (Enter pauses, s submits, d discards)", run: cmdRecord},
	"add":    {summary: "import an audio file as a new note: add <file> [-title t]", run: cmdAdd},
	"list":   {summary: "list notes: list [-category c] [-search q] [-failed]", run: cmdList},
	"show":   {summary: "print one note: show <id>", run: cmdShow},
	"edit":   {summary: "change a note: edit <id> [-title t] [-transcript text]", run: cmdEdit},
	"delete": {summary: "delete a note and its audio: delete <id>", run: cmdDelete},
	"retry":  {summary: "retry a failed note, or all failed notes: retry [id]", run: cmdRetry},
	"status": {summary: "report provider and store health", run: cmdStatus},
}

var commandOrder = []string{"record", "add", "list", "show", "edit", "delete", "retry", "status", "serve"}

var errUsage = errors.New("invalid arguments")

func newFlagSet(e *env, name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.errOut)
	fs.Usage = func() {
		fmt.Fprintf(e.errOut, "Usage: voicememo %s\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// splitID lets the note id come before or after the flags.
func splitID(args []string) (id string, rest []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

// resolveID finds the note whose id equals arg or starts with it. A prefix
// must be unambiguous.
func resolveID(all []notes.Note, arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("%w: note id required", errUsage)
	}
	var matches []string
	for _, n := range all {
		if n.ID == arg {
			return n.ID, nil
		}
		if strings.HasPrefix(n.ID, arg) {
			matches = append(matches, n.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no note with id %q", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("id prefix %q is ambiguous (%d notes)", arg, len(matches))
	}
}

func noteID(e *env, fs *flag.FlagSet, args []string) (string, error) {
	id, rest := splitID(args)
	if err := fs.Parse(rest); err != nil {
		return "", err
	}
	if id == "" {
		id = fs.Arg(0)
	}
	return resolveID(e.app.Notes().Notes(), id)
}

// ── serve ─────────────────────────────────────────────────────────────────────

func cmdServe(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "serve", "serve")
	if err := fs.Parse(args); err != nil {
		return err
	}
	watcher, err := config.NewWatcher(e.configPath, e.app.ApplyConfig)
	if err != nil {
		return err
	}
	printStartupSummary(e.out, e.cfg, len(e.app.Notes().Notes()))
	return e.app.Serve(ctx, nil, watcher.Run)
}

// ── add ───────────────────────────────────────────────────────────────────────

func cmdAdd(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "add", "add <file> [-title t] [-no-wait]")
	title := fs.String("title", "", "note title; generated from the transcript when empty")
	noWait := fs.Bool("no-wait", false, "return without waiting for the transcription")
	path, rest := splitID(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if path == "" {
		path = fs.Arg(0)
	}
	if path == "" {
		fs.Usage()
		return fmt.Errorf("%w: audio file required", errUsage)
	}

	seconds := 0
	if d, err := capture.Duration(path); err == nil {
		seconds = int(d.Seconds())
	} else if !errors.Is(err, capture.ErrNotWAV) {
		return err
	} else {
		slog.Debug("unknown audio format, duration left at zero", "path", path)
	}

	// The controller moves submitted audio into its vault, so hand it a copy.
	tmp, err := copyToTemp(path, e.cfg.Recording.TempDir)
	if err != nil {
		return err
	}

	ctl := e.app.Notes()
	n := ctl.Submit(ctx, notes.Draft{Title: *title, DurationSeconds: seconds, AudioLocation: tmp})
	fmt.Fprintf(e.out, "added %s (%s)\n", n.ID, notes.FormatDuration(n.DurationSeconds))
	if *noWait {
		return nil
	}
	return awaitNote(ctx, e, n.ID)
}

func copyToTemp(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, "voicememo-import-*"+filepath.Ext(src))
	if err != nil {
		return "", fmt.Errorf("create import copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("copy %q: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("copy %q: %w", src, err)
	}
	return out.Name(), nil
}

// awaitNote blocks until the background transcription of id settles and
// prints the result.
func awaitNote(ctx context.Context, e *env, id string) error {
	ctl := e.app.Notes()
	fmt.Fprintln(e.out, "transcribing…")
	select {
	case <-ctl.Done(id):
	case <-ctx.Done():
		return ctx.Err()
	}
	n, ok := ctl.Get(id)
	if !ok {
		return fmt.Errorf("note %s disappeared", id)
	}
	writeNoteDetail(e.out, n)
	return nil
}

// ── list ──────────────────────────────────────────────────────────────────────

func cmdList(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "list", "list [-category c] [-search q] [-failed]")
	category := fs.String("category", notes.AllCategories, "category filter: "+strings.Join(notes.Categories(), ", "))
	search := fs.String("search", "", "only notes whose title or transcript contains this text")
	failed := fs.Bool("failed", false, "only failed notes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !slices.Contains(notes.Categories(), *category) {
		return fmt.Errorf("%w: unknown category %q", errUsage, *category)
	}

	ctl := e.app.Notes()
	sets := [][]notes.Note{ctl.ByCategory(*category), ctl.Search(*search)}
	if *failed {
		sets = append(sets, ctl.FailedNotes())
	}
	list := intersect(sets...)
	if len(list) == 0 {
		fmt.Fprintln(e.out, "no notes")
		return nil
	}
	return writeNoteTable(e.out, list)
}

// intersect keeps the notes of the first set whose id appears in every
// other set. Order follows the first set.
func intersect(sets ...[]notes.Note) []notes.Note {
	if len(sets) == 0 {
		return nil
	}
	out := sets[0]
	for _, set := range sets[1:] {
		ids := make(map[string]struct{}, len(set))
		for _, n := range set {
			ids[n.ID] = struct{}{}
		}
		out = slices.DeleteFunc(slices.Clone(out), func(n notes.Note) bool {
			_, ok := ids[n.ID]
			return !ok
		})
	}
	return out
}

func writeNoteTable(w io.Writer, list []notes.Note) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tLENGTH\tSTATUS\tCATEGORY\tTITLE")
	for _, n := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(n.ID),
			notes.FormatDate(n.CreatedAt),
			notes.FormatDuration(n.DurationSeconds),
			n.Status,
			valueOr(n.Category, "-"),
			n.Title,
		)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func valueOr(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}

// ── show ──────────────────────────────────────────────────────────────────────

func cmdShow(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "show", "show <id>")
	id, err := noteID(e, fs, args)
	if err != nil {
		return err
	}
	n, _ := e.app.Notes().Get(id)
	writeNoteDetail(e.out, n)
	return nil
}

func writeNoteDetail(w io.Writer, n notes.Note) {
	fmt.Fprintln(w, n.Title)
	fmt.Fprintf(w, "  id:        %s\n", n.ID)
	fmt.Fprintf(w, "  created:   %s\n", notes.FormatDate(n.CreatedAt))
	fmt.Fprintf(w, "  length:    %s\n", notes.FormatDuration(n.DurationSeconds))
	fmt.Fprintf(w, "  status:    %s\n", n.Status)
	if n.Category != nil {
		fmt.Fprintf(w, "  category:  %s (%s)\n", *n.Category, n.IconRef)
	}
	if n.Language != "" {
		fmt.Fprintf(w, "  language:  %s\n", n.Language)
	}
	if n.AudioLocation != nil {
		fmt.Fprintf(w, "  audio:     %s\n", *n.AudioLocation)
	}
	if n.Error != nil {
		fmt.Fprintf(w, "  error:     %s (attempts %d)\n", *n.Error, n.RetryCount)
	}
	if n.Transcript != nil {
		fmt.Fprintf(w, "\n%s\n", *n.Transcript)
	}
}

// ── edit ──────────────────────────────────────────────────────────────────────

func cmdEdit(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "edit", "edit <id> [-title t] [-transcript text]")
	title := fs.String("title", "", "new title")
	transcript := fs.String("transcript", "", "new transcript")
	id, err := noteID(e, fs, args)
	if err != nil {
		return err
	}

	var edits notes.Edits
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			edits.Title = title
		case "transcript":
			edits.Transcript = transcript
		}
	})
	if edits.Title == nil && edits.Transcript == nil {
		return fmt.Errorf("%w: nothing to change, pass -title or -transcript", errUsage)
	}
	e.app.Notes().UpdateNote(ctx, id, edits)
	fmt.Fprintf(e.out, "updated %s\n", id)
	return nil
}

// ── delete ────────────────────────────────────────────────────────────────────

func cmdDelete(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "delete", "delete <id>")
	id, err := noteID(e, fs, args)
	if err != nil {
		return err
	}
	e.app.Notes().DeleteNote(ctx, id)
	fmt.Fprintf(e.out, "deleted %s\n", id)
	return nil
}

// ── retry ─────────────────────────────────────────────────────────────────────

func cmdRetry(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "retry", "retry [id]")
	id, rest := splitID(args)
	if err := fs.Parse(rest); err != nil {
		return err
	}
	ctl := e.app.Notes()

	if id == "" {
		failed := ctl.FailedNotes()
		if len(failed) == 0 {
			fmt.Fprintln(e.out, "no failed notes")
			return nil
		}
		fmt.Fprintf(e.out, "retrying %d failed notes…\n", len(failed))
		ctl.RetryAllFailed(ctx)
		return writeNoteTable(e.out, pick(ctl, failed))
	}

	resolved, err := resolveID(ctl.Notes(), id)
	if err != nil {
		return err
	}
	n, _ := ctl.Get(resolved)
	if n.Status != notes.StatusFailed {
		return fmt.Errorf("note %s is %s, only failed notes can be retried", resolved, n.Status)
	}
	ctl.Retry(ctx, resolved)
	n, _ = ctl.Get(resolved)
	writeNoteDetail(e.out, n)
	return nil
}

// pick returns the current version of each note in list that still exists.
func pick(ctl *notes.Controller, list []notes.Note) []notes.Note {
	out := make([]notes.Note, 0, len(list))
	for _, n := range list {
		if cur, ok := ctl.Get(n.ID); ok {
			out = append(out, cur)
		}
	}
	return out
}

// ── status ────────────────────────────────────────────────────────────────────

func cmdStatus(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "status", "status")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, line := range e.app.Health().Summary(ctx) {
		fmt.Fprintln(e.out, line)
	}
	states := e.app.BreakerStates()
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(e.out, "breaker %s: %s\n", name, states[name])
	}
	ctl := e.app.Notes()
	fmt.Fprintf(e.out, "notes: %d (%d failed)\n", len(ctl.Notes()), len(ctl.FailedNotes()))
	return nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config, noteCount int) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║       voicememo — startup summary     ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "STT", providerLabel(cfg.Providers.STT))
	printRow(w, "Fallbacks", fmt.Sprint(len(cfg.Providers.STTFallbacks)))
	printRow(w, "Titles", providerLabel(cfg.Providers.LLM))
	printRow(w, "Storage", string(cfg.Storage.Backend))
	printRow(w, "Notes", fmt.Sprint(noteCount))
	printRow(w, "Alerts", fmt.Sprintf("%d targets", len(cfg.Alerts.URLs)))
	printRow(w, "Listen addr", cfg.Server.ListenAddr)
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func providerLabel(p config.ProviderEntry) string {
	switch {
	case p.Name == "":
		return "(not configured)"
	case p.Model != "":
		return p.Name + " / " + p.Model
	default:
		return p.Name
	}
}

func printRow(w io.Writer, label, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", label, value)
}
