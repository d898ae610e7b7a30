package notes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/voicememo/internal/classify"
	"github.com/MrWong99/voicememo/internal/gateway"
	"github.com/MrWong99/voicememo/internal/observe"
	"github.com/MrWong99/voicememo/internal/store"
	"github.com/MrWong99/voicememo/pkg/types"
)

const (
	// DefaultMaxRetries bounds the retry count of a single transcription
	// chain.
	DefaultMaxRetries = 3

	// DefaultLongRecordingSeconds is the duration above which only an
	// excerpt of the transcript is sent for title generation.
	DefaultLongRecordingSeconds = 120

	// DefaultTitleExcerptChars is the excerpt length used for long
	// recordings.
	DefaultTitleExcerptChars = 300

	// QuotaMessage is the diagnostic stored on notes failed by a quota or
	// billing error.
	QuotaMessage = "Transcription quota exceeded. Check your billing details."

	// InterruptedMessage is the diagnostic stored on notes whose
	// transcription was cut short by a restart.
	InterruptedMessage = "Transcription interrupted"

	quotaAlertTitle = "Transcription quota exceeded"
)

// DefaultRetryDelays is the backoff schedule. Retry n waits entry n-1; retries
// past the end of the table wait the last entry.
var DefaultRetryDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Transcriber is the remote service used to turn audio into text and text
// into a title. *gateway.Gateway satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (types.Transcription, error)
	GenerateTitle(ctx context.Context, text, language string) string
	Placeholder() string
}

// Classifier labels transcripts. *classify.Classifier satisfies it.
type Classifier interface {
	Classify(text string) types.CategoryResult
}

// AudioVault moves recordings into durable storage and removes them again.
// *store.AudioVault satisfies it.
type AudioVault interface {
	Persist(src, name string) (string, error)
	Delete(path string) error
}

// Alerter delivers blocking user-facing notifications.
type Alerter interface {
	Alert(ctx context.Context, title, message string) error
}

var (
	_ Transcriber = (*gateway.Gateway)(nil)
	_ Classifier  = (*classify.Classifier)(nil)
	_ AudioVault  = (*store.AudioVault)(nil)
)

// Option configures a [Controller].
type Option func(*Controller)

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c Classifier) Option {
	return func(ctl *Controller) { ctl.classifier = c }
}

// WithAudioVault moves submitted audio into v and deletes it from there.
// Without a vault audio stays at its capture location.
func WithAudioVault(v AudioVault) Option {
	return func(ctl *Controller) { ctl.vault = v }
}

// WithAlerter delivers quota alerts through a.
func WithAlerter(a Alerter) Option {
	return func(ctl *Controller) { ctl.alerter = a }
}

// WithRetryPolicy overrides [DefaultMaxRetries] and [DefaultRetryDelays].
func WithRetryPolicy(maxRetries int, delays []time.Duration) Option {
	return func(ctl *Controller) {
		if maxRetries >= 0 {
			ctl.maxRetries = maxRetries
		}
		if len(delays) > 0 {
			ctl.delays = append([]time.Duration(nil), delays...)
		}
	}
}

// WithTitleExcerpt sets the recording length above which titles are
// generated from the first chars characters of the transcript only.
func WithTitleExcerpt(longSeconds, chars int) Option {
	return func(ctl *Controller) {
		if longSeconds > 0 {
			ctl.longSeconds = longSeconds
		}
		if chars > 0 {
			ctl.excerptChars = chars
		}
	}
}

// WithStoreKey overrides [DefaultStoreKey].
func WithStoreKey(key string) Option {
	return func(ctl *Controller) {
		if key != "" {
			ctl.key = key
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(ctl *Controller) { ctl.now = now }
}

// WithSleep replaces the backoff wait. sleep must return ctx.Err() when ctx
// ends first.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(ctl *Controller) { ctl.sleep = sleep }
}

// WithIDGenerator replaces uuid-based note ids.
func WithIDGenerator(gen func() string) Option {
	return func(ctl *Controller) { ctl.newID = gen }
}

// WithMetrics records into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// Controller is the note repository and lifecycle controller. All methods
// are safe for concurrent use.
type Controller struct {
	store      store.Store
	gw         Transcriber
	classifier Classifier
	vault      AudioVault
	alerter    Alerter
	metrics    *observe.Metrics

	key          string
	maxRetries   int
	delays       []time.Duration
	longSeconds  int
	excerptChars int
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	newID        func() string

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	notes    []*Note // newest first
	active   string
	inflight map[string]bool
	tasks    map[string]chan struct{}

	// persistMu orders snapshot writes so an older snapshot never lands
	// after a newer one.
	persistMu sync.Mutex

	wg sync.WaitGroup
}

// NewController creates a controller persisting through s and transcribing
// through gw. The collection starts empty; call [Controller.Load] to restore
// the persisted one.
func NewController(s store.Store, gw Transcriber, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:        s,
		gw:           gw,
		classifier:   classify.New(),
		key:          DefaultStoreKey,
		maxRetries:   DefaultMaxRetries,
		delays:       DefaultRetryDelays,
		longSeconds:  DefaultLongRecordingSeconds,
		excerptChars: DefaultTitleExcerptChars,
		now:          time.Now,
		sleep:        sleepCtx,
		newID:        uuid.NewString,
		baseCtx:      ctx,
		cancel:       cancel,
		inflight:     make(map[string]bool),
		tasks:        make(map[string]chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryDelay returns the wait before retry number n (1-based).
func (c *Controller) RetryDelay(n int) time.Duration {
	if len(c.delays) == 0 {
		return 0
	}
	if n < 1 {
		n = 1
	}
	if n > len(c.delays) {
		return c.delays[len(c.delays)-1]
	}
	return c.delays[n-1]
}

// MaxRetries returns the configured retry bound.
func (c *Controller) MaxRetries() int { return c.maxRetries }

// ---- loading & reconciliation ----

// Load reads the persisted collection, normalises every note and reconciles
// interrupted work. A missing snapshot yields an empty collection. A
// snapshot that cannot be decoded is an error and leaves the collection
// untouched so it is not overwritten.
func (c *Controller) Load(ctx context.Context) error {
	data, err := c.store.Get(ctx, c.key)
	if err != nil {
		return fmt.Errorf("notes: load: %w", err)
	}
	persisted, err := Decode(data)
	if err != nil {
		return err
	}
	c.Reconcile(ctx, persisted)
	return nil
}

// Reconcile replaces the collection with persisted after normalising it and
// failing every note left pending or transcribing with
// [InterruptedMessage]. Other notes are kept as they are.
func (c *Controller) Reconcile(ctx context.Context, persisted []Note) {
	now := c.now()
	fixed, interrupted := ReconcileNotes(persisted, c.maxRetries, now)

	c.mu.Lock()
	c.notes = make([]*Note, 0, len(fixed))
	for i := range fixed {
		n := fixed[i]
		c.notes = append(c.notes, &n)
	}
	c.active = ""
	c.mu.Unlock()

	if interrupted > 0 {
		slog.Info("reconciled interrupted transcriptions", "count", interrupted)
		for range interrupted {
			c.metrics.RecordOutcome(ctx, "interrupted")
		}
		c.persist(ctx)
	}
}

// ReconcileNotes returns normalised copies of notes in which every pending
// or transcribing note is failed with [InterruptedMessage], plus the number
// of notes changed that way.
func ReconcileNotes(notes []Note, maxRetries int, now time.Time) ([]Note, int) {
	out := make([]Note, 0, len(notes))
	interrupted := 0
	seen := make(map[string]bool, len(notes))
	for i := range notes {
		n := notes[i].clone()
		if n.ID == "" || seen[n.ID] {
			slog.Warn("dropping persisted note with missing or duplicate id", "note_id", n.ID)
			continue
		}
		seen[n.ID] = true
		Normalize(&n, maxRetries, now)
		if n.Status.InFlight() {
			n.Status = StatusFailed
			n.Error = ptr(InterruptedMessage)
			interrupted++
		}
		out = append(out, n)
	}
	return out, interrupted
}

// ---- submission & transcription ----

// Submit inserts a note for a finished recording at the head of the
// collection, marks it active and returns a copy of it. A draft without
// audio is completed on the spot. Otherwise a background task moves the
// audio into the vault and runs the transcription chain; use
// [Controller.Done] or [Controller.Wait] to await it.
func (c *Controller) Submit(ctx context.Context, d Draft) Note {
	now := c.now()
	created := d.CreatedAt
	if created.IsZero() {
		created = now
	}
	title := d.Title
	if title == "" {
		title = c.gw.Placeholder()
	}
	n := &Note{
		ID:              c.newID(),
		Title:           title,
		CreatedAt:       created,
		LastModified:    created,
		DurationSeconds: max(d.DurationSeconds, 0),
		IconRef:         classify.DefaultIcon,
		ColorStyle:      classify.DraftStyle,
		Status:          StatusPending,
		RetryCount:      0,
	}
	if d.AudioLocation != "" {
		n.AudioLocation = ptr(d.AudioLocation)
	}

	c.mu.Lock()
	c.notes = append([]*Note{n}, c.notes...)
	c.active = n.ID
	if !n.HasAudio() {
		n.Status = StatusCompleted
		c.active = ""
	}
	snap := n.clone()
	c.mu.Unlock()

	c.persist(ctx)
	slog.Info("note submitted", "note_id", n.ID, "duration_s", n.DurationSeconds, "has_audio", n.HasAudio())

	if !snap.HasAudio() {
		c.metrics.RecordOutcome(ctx, "completed")
		return snap
	}

	c.spawn(snap.ID, func(ctx context.Context) {
		c.secureAudio(ctx, snap.ID)
		c.runChain(ctx, snap.ID)
	})
	return snap
}

// spawn runs fn in a goroutine tracked under id.
func (c *Controller) spawn(id string, fn func(ctx context.Context)) {
	done := make(chan struct{})
	c.mu.Lock()
	c.tasks[id] = done
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			if c.tasks[id] == done {
				delete(c.tasks, id)
			}
			c.mu.Unlock()
			close(done)
		}()
		fn(c.baseCtx)
	}()
}

// Done returns a channel closed when the background task for id settles. If
// no task is running the channel is already closed.
func (c *Controller) Done(id string) <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.tasks[id]; ok {
		return ch
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Wait blocks until every background task has settled.
func (c *Controller) Wait() { c.wg.Wait() }

// Shutdown cancels background tasks and waits for them or for ctx. Notes
// left transcribing are failed by the next [Controller.Load].
func (c *Controller) Shutdown(ctx context.Context) error {
	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notes: shutdown: %w", ctx.Err())
	}
}

// secureAudio moves the note's audio into the vault and marks the note
// transcribing. A failed move is logged and the original location kept.
func (c *Controller) secureAudio(ctx context.Context, id string) {
	c.mu.Lock()
	n := c.find(id)
	if n == nil || !n.HasAudio() {
		c.mu.Unlock()
		return
	}
	src := *n.AudioLocation
	c.mu.Unlock()

	if c.vault != nil {
		dst, err := c.vault.Persist(src, id)
		if err != nil {
			slog.Warn("keeping audio at capture location", "note_id", id, "path", src, "err", err)
		} else if dst != src {
			c.mu.Lock()
			if n := c.find(id); n != nil {
				n.AudioLocation = ptr(dst)
			}
			c.mu.Unlock()
			slog.Debug("audio moved to vault", "note_id", id, "path", dst)
		}
	}

	c.mu.Lock()
	if n := c.find(id); n != nil {
		n.Status = StatusTranscribing
	}
	c.mu.Unlock()
	c.persist(ctx)
}

// AttemptTranscription runs the transcription chain for id and returns once
// it settles. A missing note or one without audio only clears the active
// marker. If a chain for id is already running the call returns at once.
// Errors never escape; the outcome is recorded on the note.
func (c *Controller) AttemptTranscription(ctx context.Context, id string) {
	c.runChain(ctx, id)
}

// Retry resets the retry count of a failed note and runs its chain. Notes
// in any other state are left alone.
func (c *Controller) Retry(ctx context.Context, id string) {
	c.mu.Lock()
	n := c.find(id)
	if n == nil || n.Status != StatusFailed {
		c.mu.Unlock()
		return
	}
	n.RetryCount = 0
	c.mu.Unlock()
	c.runChain(ctx, id)
}

// RetryAllFailed retries every failed note one after another, awaiting each
// chain before starting the next. One note failing again does not stop the
// loop.
func (c *Controller) RetryAllFailed(ctx context.Context) {
	for _, n := range c.FailedNotes() {
		if ctx.Err() != nil {
			return
		}
		c.Retry(ctx, n.ID)
	}
}

func (c *Controller) runChain(ctx context.Context, id string) {
	c.mu.Lock()
	if c.inflight[id] {
		c.mu.Unlock()
		slog.Debug("transcription already running", "note_id", id)
		return
	}
	c.inflight[id] = true
	c.mu.Unlock()

	c.metrics.ActiveTranscriptions.Add(ctx, 1)
	defer func() {
		c.metrics.ActiveTranscriptions.Add(context.WithoutCancel(ctx), -1)
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
	}()

	for {
		path, ok := c.beginAttempt(ctx, id)
		if !ok {
			return
		}

		log := observe.Logger(ctx).With("note_id", id)
		res, err := c.gw.Transcribe(ctx, path)
		if err == nil {
			c.complete(ctx, id, res)
			return
		}
		if ctx.Err() != nil {
			log.Info("transcription abandoned", "err", ctx.Err())
			c.interrupt(ctx, id)
			return
		}
		if gateway.IsQuotaError(err) {
			c.failQuota(ctx, id, err)
			return
		}

		delay, again := c.scheduleRetry(ctx, id, err)
		if !again {
			return
		}
		log.Warn("transcription failed, retrying", "err", err, "delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			log.Info("retry backoff interrupted", "err", err)
			c.interrupt(ctx, id)
			return
		}
	}
}

// beginAttempt marks id transcribing and active and returns its audio
// location. It reports false, clearing the active marker, when the note is
// gone or has no audio. A completed note never re-enters transcribing.
func (c *Controller) beginAttempt(ctx context.Context, id string) (string, bool) {
	c.mu.Lock()
	n := c.find(id)
	if n == nil || !n.HasAudio() {
		c.active = ""
		c.mu.Unlock()
		return "", false
	}
	if n.Status == StatusCompleted {
		c.clearActive(id)
		c.mu.Unlock()
		slog.Debug("note already transcribed", "note_id", id)
		return "", false
	}
	n.Status = StatusTranscribing
	n.Error = nil
	c.active = id
	path := *n.AudioLocation
	c.mu.Unlock()

	c.persist(ctx)
	return path, true
}

// complete classifies the transcript, names the note if it still carries
// the placeholder title and marks it completed.
func (c *Controller) complete(ctx context.Context, id string, res types.Transcription) {
	cat := c.classifier.Classify(res.Text)

	c.mu.Lock()
	n := c.find(id)
	if n == nil {
		c.clearActive(id)
		c.mu.Unlock()
		return
	}
	placeholder := c.gw.Placeholder()
	needsTitle := n.Title == placeholder || n.Title == ""
	duration := n.DurationSeconds
	c.mu.Unlock()

	title := ""
	if needsTitle {
		input := res.Text
		if duration > c.longSeconds {
			input = excerpt(input, c.excerptChars)
		}
		title = c.gw.GenerateTitle(ctx, input, res.Language)
	}

	c.mu.Lock()
	n = c.find(id)
	if n == nil {
		c.clearActive(id)
		c.mu.Unlock()
		return
	}
	n.Transcript = ptr(res.Text)
	n.Language = res.Language
	n.Category = ptr(cat.Category)
	n.IconRef = cat.Icon
	n.ColorStyle = cat.Color
	if title != "" && (n.Title == placeholder || n.Title == "") {
		n.Title = title
	}
	n.Status = StatusCompleted
	n.Error = nil
	n.LastModified = c.now()
	c.clearActive(id)
	c.mu.Unlock()

	c.persist(ctx)
	c.metrics.RecordOutcome(ctx, "completed")
	slog.Info("note transcribed", "note_id", id, "category", cat.Category, "language", res.Language)
}

// failQuota fails id with [QuotaMessage] without touching its retry count
// and raises one alert.
func (c *Controller) failQuota(ctx context.Context, id string, cause error) {
	c.mu.Lock()
	n := c.find(id)
	if n != nil {
		n.Status = StatusFailed
		n.Error = ptr(QuotaMessage)
	}
	c.clearActive(id)
	c.mu.Unlock()

	c.persist(ctx)
	c.metrics.RecordOutcome(ctx, "quota")
	slog.Error("transcription quota exceeded", "note_id", id, "err", cause)

	if c.alerter == nil {
		return
	}
	if err := c.alerter.Alert(context.WithoutCancel(ctx), quotaAlertTitle, QuotaMessage); err != nil {
		slog.Warn("quota alert not delivered", "note_id", id, "err", err)
	}
}

// scheduleRetry bumps the retry count of id and returns the backoff delay.
// Once the count has reached the maximum the note is failed with the raw
// error instead and false is returned. A vanished note also returns false.
func (c *Controller) scheduleRetry(ctx context.Context, id string, cause error) (time.Duration, bool) {
	c.mu.Lock()
	n := c.find(id)
	if n == nil {
		c.clearActive(id)
		c.mu.Unlock()
		return 0, false
	}
	if n.RetryCount < c.maxRetries {
		n.RetryCount++
		delay := c.RetryDelay(n.RetryCount)
		c.mu.Unlock()
		c.persist(ctx)
		c.metrics.RecordOutcome(ctx, "retry")
		return delay, true
	}
	n.Status = StatusFailed
	n.Error = ptr(cause.Error())
	c.clearActive(id)
	c.mu.Unlock()

	c.persist(ctx)
	c.metrics.RecordOutcome(ctx, "failed")
	slog.Warn("transcription failed permanently", "note_id", id, "retries", c.maxRetries, "err", cause)
	return 0, false
}

// interrupt fails id with [InterruptedMessage] after the caller's context
// ended mid-chain. On shutdown the note is left transcribing for the next
// [Controller.Load] to reconcile.
func (c *Controller) interrupt(ctx context.Context, id string) {
	if c.baseCtx.Err() != nil {
		return
	}
	c.mu.Lock()
	n := c.find(id)
	if n != nil && n.Status == StatusTranscribing {
		n.Status = StatusFailed
		n.Error = ptr(InterruptedMessage)
	}
	c.clearActive(id)
	c.mu.Unlock()

	c.persist(ctx)
	c.metrics.RecordOutcome(context.WithoutCancel(ctx), "interrupted")
}

// clearActive drops the active marker if it still points at id. It must be
// called with c.mu held.
func (c *Controller) clearActive(id string) {
	if c.active == id {
		c.active = ""
	}
}

// excerpt returns the first n runes of s.
func excerpt(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// ---- edits ----

// UpdateNote applies e to the note and stamps LastModified. The status is
// never changed. It reports whether the note exists; unknown ids are a
// silent no-op.
func (c *Controller) UpdateNote(ctx context.Context, id string, e Edits) bool {
	c.mu.Lock()
	n := c.find(id)
	if n == nil {
		c.mu.Unlock()
		return false
	}
	if e.Title != nil {
		n.Title = *e.Title
	}
	if e.Transcript != nil {
		n.Transcript = ptr(*e.Transcript)
	}
	n.LastModified = c.now()
	c.mu.Unlock()

	c.persist(ctx)
	return true
}

// DeleteNote removes the note and, best effort, its audio. It reports
// whether the note existed. A transcription still running for the note
// cannot bring it back.
func (c *Controller) DeleteNote(ctx context.Context, id string) bool {
	c.mu.Lock()
	idx := c.index(id)
	if idx < 0 {
		c.mu.Unlock()
		return false
	}
	n := c.notes[idx]
	c.notes = append(c.notes[:idx:idx], c.notes[idx+1:]...)
	if c.active == id {
		c.active = ""
	}
	audio := deref(n.AudioLocation)
	c.mu.Unlock()

	c.persist(ctx)
	if audio != "" {
		c.deleteAudio(id, audio)
	}
	slog.Info("note deleted", "note_id", id)
	return true
}

func (c *Controller) deleteAudio(id, path string) {
	var err error
	if c.vault != nil {
		err = c.vault.Delete(path)
	} else if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		err = rmErr
	}
	if err != nil {
		slog.Warn("could not delete note audio", "note_id", id, "path", path, "err", err)
	}
}

// ---- selectors ----

// Notes returns copies of all notes, newest first.
func (c *Controller) Notes() []Note {
	return c.filter(func(*Note) bool { return true })
}

// FailedNotes returns copies of the failed notes, newest first.
func (c *Controller) FailedNotes() []Note {
	return c.filter(func(n *Note) bool { return n.Status == StatusFailed })
}

// ByCategory returns the notes labelled category. [AllCategories] and the
// empty string match every note.
func (c *Controller) ByCategory(category string) []Note {
	if category == "" || category == AllCategories {
		return c.Notes()
	}
	return c.filter(func(n *Note) bool { return deref(n.Category) == category })
}

// Search returns the notes whose title or transcript contains query,
// ignoring case. An empty query matches every note.
func (c *Controller) Search(query string) []Note {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.Notes()
	}
	return c.filter(func(n *Note) bool {
		return strings.Contains(strings.ToLower(n.Title), q) ||
			strings.Contains(strings.ToLower(deref(n.Transcript)), q)
	})
}

// Get returns a copy of the note with id.
func (c *Controller) Get(id string) (Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.find(id); n != nil {
		return n.clone(), true
	}
	return Note{}, false
}

// Active returns the note currently being submitted or transcribed.
func (c *Controller) Active() (Note, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == "" {
		return Note{}, false
	}
	if n := c.find(c.active); n != nil {
		return n.clone(), true
	}
	return Note{}, false
}

func (c *Controller) filter(keep func(*Note) bool) []Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Note, 0, len(c.notes))
	for _, n := range c.notes {
		if keep(n) {
			out = append(out, n.clone())
		}
	}
	return out
}

// find must be called with c.mu held.
func (c *Controller) find(id string) *Note {
	if i := c.index(id); i >= 0 {
		return c.notes[i]
	}
	return nil
}

// index must be called with c.mu held.
func (c *Controller) index(id string) int {
	for i, n := range c.notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// ---- persistence ----

// persist writes the current collection. Failures are logged; the
// in-memory state stays authoritative until the next successful write.
func (c *Controller) persist(ctx context.Context) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	snap := make([]Note, len(c.notes))
	for i, n := range c.notes {
		snap[i] = n.clone()
	}
	c.mu.Unlock()

	data, err := Encode(snap)
	if err != nil {
		slog.Error("encode notes", "err", err)
		return
	}
	if err := c.store.Set(context.WithoutCancel(ctx), c.key, data); err != nil {
		slog.Error("persist notes", "key", c.key, "err", err)
	}
}
