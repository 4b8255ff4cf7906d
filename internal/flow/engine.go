package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/BTreeMap/ResumePipe/internal/genai"
	"github.com/BTreeMap/ResumePipe/internal/metrics"
	"github.com/BTreeMap/ResumePipe/internal/models"
	"github.com/BTreeMap/ResumePipe/internal/render"
	"github.com/BTreeMap/ResumePipe/internal/store"
)

// Transport delivers replies to one messaging channel.
type Transport interface {
	SendMessage(ctx context.Context, to string, msg models.OutboundMessage) error
	DownloadAttachment(ctx context.Context, att models.Attachment) (io.ReadCloser, error)
	// NativeButtons reports whether buttons are shown as tappable options
	// rather than a numbered text list.
	NativeButtons() bool
}

// Assistant is the best-effort AI layer.
type Assistant interface {
	EnhanceSummary(ctx context.Context, text, style string) genai.Result
	EnhanceExperiences(ctx context.Context, entries []string) genai.ListResult
	GenerateAboutMe(ctx context.Context, r models.Resume) genai.Result
	TailorForJob(ctx context.Context, r models.Resume, jobDescription string) (genai.Tailoring, bool)
	ParseResumeForm(ctx context.Context, form string) (models.Resume, error)
}

// Localizer renders English text in the session language.
type Localizer interface {
	Localize(ctx context.Context, text, lang string) string
}

// LanguageDetector identifies the language of user input.
type LanguageDetector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// PhotoStore keeps profile photos.
type PhotoStore interface {
	Save(userID string, src io.Reader) (string, error)
	Remove(path string) error
}

// Deps are the collaborators the engine needs. Renderer and Catalog are
// required; the rest may be nil.
type Deps struct {
	Renderer  render.Renderer
	Catalog   *render.Catalog
	Assistant Assistant
	Localizer Localizer
	Detector  LanguageDetector
	Photos    PhotoStore
	Codes     store.CodeStore
	Usage     store.UsageLog
	Metrics   metrics.Recorder
	Timer     Timer
}

// Opts holds configuration options for the engine.
type Opts struct {
	IdleTimeout         time.Duration
	MaxGenerations      int
	MaxVerifications    int
	MaxLanguageWarnings int
	RequireVerification bool
	// MinDetectLength skips language detection for shorter inputs.
	MinDetectLength int
	AdminIDs        []string
}

// Option defines a configuration option for the engine.
type Option func(*Opts)

// WithIdleTimeout sets how long a silent session lives.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Opts) { o.IdleTimeout = d }
}

// WithMaxGenerations sets the per-session PDF quota.
func WithMaxGenerations(n int) Option {
	return func(o *Opts) { o.MaxGenerations = n }
}

// WithMaxVerifications sets how many wrong codes end a session.
func WithMaxVerifications(n int) Option {
	return func(o *Opts) { o.MaxVerifications = n }
}

// WithMaxLanguageWarnings sets the warning that terminates the session.
func WithMaxLanguageWarnings(n int) Option {
	return func(o *Opts) { o.MaxLanguageWarnings = n }
}

// WithRequireVerification toggles the verification-code gate.
func WithRequireVerification(required bool) Option {
	return func(o *Opts) { o.RequireVerification = required }
}

// WithAdminIDs lists user ids allowed to run /users.
func WithAdminIDs(ids ...string) Option {
	return func(o *Opts) { o.AdminIDs = append(o.AdminIDs, ids...) }
}

// WithMinDetectLength sets the shortest input checked for language.
func WithMinDetectLength(n int) Option {
	return func(o *Opts) { o.MinDetectLength = n }
}

// Engine runs conversations for every user and transport.
type Engine struct {
	deps      Deps
	cfg       Opts
	lifecycle *Lifecycle
	locks     *keyedMutex
	routes    map[State][]Route
	admins    map[string]bool

	mu         sync.RWMutex
	transports map[models.Channel]Transport
}

// NewEngine creates an engine.
func NewEngine(deps Deps, opts ...Option) (*Engine, error) {
	if deps.Renderer == nil || deps.Catalog == nil || deps.Catalog.Len() == 0 {
		return nil, errors.New("flow: renderer and a non-empty template catalog are required")
	}
	cfg := Opts{
		IdleTimeout:         DefaultIdleTimeout,
		MaxGenerations:      DefaultMaxGenerations,
		MaxVerifications:    DefaultMaxVerifications,
		MaxLanguageWarnings: DefaultMaxLanguageWarns,
		RequireVerification: true,
		MinDetectLength:     15,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.RequireVerification && deps.Codes == nil {
		return nil, errors.New("flow: verification is required but no code store is configured")
	}
	if deps.Assistant == nil {
		deps.Assistant = genai.NewEnhancer(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if deps.Timer == nil {
		deps.Timer = NewSimpleTimer()
	}

	e := &Engine{
		deps:       deps,
		cfg:        cfg,
		locks:      newKeyedMutex(),
		admins:     make(map[string]bool),
		transports: make(map[models.Channel]Transport),
	}
	for _, id := range cfg.AdminIDs {
		if id = strings.TrimSpace(id); id != "" {
			e.admins[id] = true
		}
	}
	var remover PhotoRemover
	if deps.Photos != nil {
		remover = deps.Photos
	}
	e.lifecycle = newLifecycle(deps.Timer, remover, deps.Metrics, cfg.IdleTimeout, cfg.MaxVerifications, cfg.MaxGenerations)
	e.lifecycle.onExpire = e.expire
	e.routes = e.transitionTable()

	slog.Info("NewEngine: configured", "idle_timeout", cfg.IdleTimeout, "max_generations", cfg.MaxGenerations,
		"require_verification", cfg.RequireVerification, "templates", deps.Catalog.Len(), "admins", len(e.admins))
	return e, nil
}

// RegisterTransport attaches the transport used to reply on channel.
func (e *Engine) RegisterTransport(channel models.Channel, t Transport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transports[channel] = t
}

func (e *Engine) transport(channel models.Channel) (Transport, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.transports[channel]
	return t, ok
}

// Lifecycle exposes session bookkeeping for admin endpoints.
func (e *Engine) Lifecycle() *Lifecycle {
	return e.lifecycle
}

// Stop disarms all idle timers.
func (e *Engine) Stop() {
	e.lifecycle.Stop()
}

// InputKind classifies an inbound event.
type InputKind int

const (
	KindText InputKind = iota
	KindButton
	KindCommand
	KindPhoto
)

func (k InputKind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindCommand:
		return "command"
	case KindPhoto:
		return "photo"
	}
	return "text"
}

// Input is a decoded user event as handlers see it.
type Input struct {
	Kind       InputKind
	Text       string
	Data       string
	Command    string
	Attachment *models.Attachment
}

func classify(msg models.InboundMessage) Input {
	in := Input{Text: strings.TrimSpace(msg.Text), Data: msg.Data, Attachment: msg.Attachment}
	switch {
	case msg.Data != "":
		in.Kind = KindButton
	case msg.Attachment != nil:
		in.Kind = KindPhoto
	case msg.IsCommand():
		in.Kind = KindCommand
		in.Command = msg.Command()
	default:
		in.Kind = KindText
	}
	return in
}

// HandleMessage processes one inbound event. Events from the same user are
// handled one at a time.
func (e *Engine) HandleMessage(ctx context.Context, msg models.InboundMessage) error {
	tr, ok := e.transport(msg.Channel)
	if !ok {
		return fmt.Errorf("no transport registered for channel %q", msg.Channel)
	}
	if msg.UserID == "" {
		return models.ErrEmptyRecipient
	}

	key := SessionKey(msg.Channel, msg.UserID)
	unlock := e.locks.Lock(key)
	defer unlock()

	in := classify(msg)
	e.deps.Metrics.ObserveInbound(string(msg.Channel), in.Kind.String())
	s, hasSession := e.lifecycle.Get(key)

	if in.Kind == KindCommand {
		switch in.Command {
		case "start":
			s = e.lifecycle.Start(msg.Channel, msg.UserID, msg.Username)
			t := e.newTurn(tr, s, in)
			return t.Reply(ctx, msgChooseLanguage, languageButtons())
		case "cancel":
			t := e.newTurn(tr, s, in)
			t.to = msg.UserID
			if hasSession {
				e.lifecycle.Clear(s, ReasonCancelled)
			}
			return t.Reply(ctx, msgCancelled)
		case "users":
			t := e.newTurn(tr, s, in)
			t.to = msg.UserID
			return e.handleUsers(ctx, t, msg.UserID)
		}
	}

	if !hasSession {
		if in.Kind == KindButton {
			t := e.newTurn(tr, nil, in)
			t.to = msg.UserID
			return t.Reply(ctx, msgInactiveButton)
		}
		s = e.lifecycle.Start(msg.Channel, msg.UserID, msg.Username)
		return e.newTurn(tr, s, in).Reply(ctx, msgChooseLanguage, languageButtons())
	}

	if msg.Username != "" {
		s.Username = msg.Username
	}
	e.lifecycle.Touch(s)
	in = s.resolveButton(in, tr.NativeButtons())
	t := e.newTurn(tr, s, in)
	return e.dispatch(ctx, t)
}

func (e *Engine) dispatch(ctx context.Context, t *Turn) error {
	s := t.Session
	prev := s.State

	var handler HandlerFunc = e.reject
	if s.Verified || prev.PreVerification() {
		for _, r := range e.routes[prev] {
			if r.Match(t.Input) {
				handler = r.Handle
				break
			}
		}
	} else {
		slog.Error("Engine.dispatch: unverified session outside verification states", "user_id", s.UserID, "state", prev)
	}

	next, err := handler(ctx, t)
	if err != nil {
		slog.Error("Engine.dispatch: handler failed", "user_id", s.UserID, "state", prev, "input", t.Input.Kind, "error", err)
		if next == "" {
			next = prev
		}
	}

	if next.Terminal() {
		reason := t.endReason
		if reason == "" {
			reason = ReasonCompleted
		}
		e.lifecycle.Clear(s, reason)
		return err
	}
	if next != prev {
		slog.Debug("Engine.dispatch: transition", "user_id", s.UserID, "from", prev, "to", next)
		if !t.buttonsSent {
			s.pendingButtons = nil
		}
	}
	s.State = next
	return err
}

// reject answers input the current state does not accept.
func (e *Engine) reject(ctx context.Context, t *Turn) (State, error) {
	return t.Session.State, t.Reply(ctx, msgUnexpectedInput)
}

func (e *Engine) handleUsers(ctx context.Context, t *Turn, userID string) error {
	if !e.admins[userID] {
		slog.Warn("Engine.handleUsers: non-admin requested usage log", "user_id", userID)
		return t.Reply(ctx, msgAdminOnly)
	}
	if e.deps.Usage == nil {
		return t.Reply(ctx, msgNoUsers)
	}
	records, err := e.deps.Usage.List(ctx)
	if err != nil {
		return fmt.Errorf("list usage log: %w", err)
	}
	if len(records) == 0 {
		return t.Reply(ctx, msgNoUsers)
	}
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Username
	}
	return t.sendRaw(ctx, models.OutboundMessage{Text: fmt.Sprintf(msgUsersHeaderFmt, len(names), strings.Join(names, "\n"))})
}

// expire runs on the timer goroutine.
func (e *Engine) expire(key, sessionID string) {
	unlock := e.locks.Lock(key)
	defer unlock()

	s, ok := e.lifecycle.Get(key)
	if !ok || s.ID != sessionID {
		return
	}
	if !e.lifecycle.Clear(s, ReasonTimeout) {
		return
	}
	tr, ok := e.transport(s.Channel)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.newTurn(tr, s, Input{}).Reply(ctx, msgSessionExpired); err != nil {
		slog.Warn("Engine.expire: failed to notify user", "user_id", s.UserID, "error", err)
	}
}

// Turn is the context of one handled event.
type Turn struct {
	engine    *Engine
	transport Transport
	Session   *Session
	Input     Input

	to          string
	lang        string
	buttonsSent bool
	endReason   ClearReason
}

func (e *Engine) newTurn(tr Transport, s *Session, in Input) *Turn {
	t := &Turn{engine: e, transport: tr, Session: s, Input: in, lang: "en"}
	if s != nil {
		t.to = s.UserID
		t.lang = s.Language
	}
	return t
}

// End finishes the conversation.
func (t *Turn) End(reason ClearReason) State {
	t.endReason = reason
	return StateEnded
}

// Reply sends localized text with optional button rows.
func (t *Turn) Reply(ctx context.Context, text string, rows ...[]models.Button) error {
	msg := models.OutboundMessage{Text: t.localize(ctx, text)}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		localized := make([]models.Button, len(row))
		for i, b := range row {
			localized[i] = models.Button{Label: t.localizeLabel(ctx, b.Label), Data: b.Data, Key: b.Key}
		}
		msg.Buttons = append(msg.Buttons, localized)
	}
	if msg.HasButtons() && t.Session != nil {
		t.Session.rememberButtons(rows, msg.Buttons)
		t.buttonsSent = true
	}
	return t.sendRaw(ctx, msg)
}

// Replyf formats, localizes and sends text.
func (t *Turn) Replyf(ctx context.Context, format string, args ...any) error {
	return t.Reply(ctx, fmt.Sprintf(format, args...))
}

// SendDocument delivers a file with a localized caption.
func (t *Turn) SendDocument(ctx context.Context, path, filename, caption string) error {
	return t.sendRaw(ctx, models.OutboundMessage{Text: t.localize(ctx, caption), DocumentPath: path, Filename: filename})
}

// SendPhoto delivers an image with a caption.
func (t *Turn) SendPhoto(ctx context.Context, path, caption string) error {
	return t.sendRaw(ctx, models.OutboundMessage{Text: caption, PhotoPath: path})
}

func (t *Turn) sendRaw(ctx context.Context, msg models.OutboundMessage) error {
	if t.to == "" {
		return models.ErrEmptyRecipient
	}
	msg.Text = truncate(msg.Text, models.MaxMessageLength)
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid outbound message: %w", err)
	}
	if err := t.transport.SendMessage(ctx, t.to, msg); err != nil {
		return fmt.Errorf("send to %s: %w", t.to, err)
	}
	return nil
}

// truncate shortens s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	const ellipsis = "..."
	cut := limit - len(ellipsis)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}

func (t *Turn) localize(ctx context.Context, text string) string {
	if t.engine.deps.Localizer == nil {
		return text
	}
	return t.engine.deps.Localizer.Localize(ctx, text, t.lang)
}

func (t *Turn) localizeLabel(ctx context.Context, label string) string {
	switch label {
	case labelDone, labelEnglish, labelSinhala:
		return label
	}
	out := t.localize(ctx, label)
	if len(out) > models.MaxButtonLabelLength {
		return label
	}
	return out
}

func (s *Session) rememberButtons(english, shown [][]models.Button) {
	s.pendingButtons = s.pendingButtons[:0]
	for i, row := range shown {
		for j, b := range row {
			labels := []string{b.Label}
			if en := english[i][j].Label; en != b.Label {
				labels = append(labels, en)
			}
			s.pendingButtons = append(s.pendingButtons, pendingButton{data: b.Data, key: b.Key, labels: labels})
		}
	}
}

// resolveButton maps a typed reply onto one of the last offered buttons: an
// exact label, or its number or key when buttons were rendered as a list.
// Numbers are only taken as options in states that read no free text.
func (s *Session) resolveButton(in Input, native bool) Input {
	if in.Kind != KindText || len(s.pendingButtons) == 0 {
		return in
	}
	for _, b := range s.pendingButtons {
		for _, l := range b.labels {
			if in.Text == l {
				in.Kind, in.Data = KindButton, b.data
				return in
			}
		}
	}
	if native {
		return in
	}
	text := strings.TrimSpace(in.Text)
	for _, b := range s.pendingButtons {
		if b.key != "" && strings.EqualFold(text, b.key) {
			in.Kind, in.Data = KindButton, b.data
			return in
		}
	}
	if !s.State.numberedChoice() {
		return in
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 {
		return in
	}
	for _, b := range s.pendingButtons {
		if b.key != "" {
			continue
		}
		if n--; n == 0 {
			in.Kind, in.Data = KindButton, b.data
			break
		}
	}
	return in
}

// keyedMutex serializes work per key and forgets idle keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
