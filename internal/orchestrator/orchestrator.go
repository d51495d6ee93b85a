// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jeranaias/repochat/internal/codeblock"
	"github.com/jeranaias/repochat/internal/commands"
	"github.com/jeranaias/repochat/internal/logging"
	"github.com/jeranaias/repochat/internal/model"
	"github.com/jeranaias/repochat/internal/pending"
	"github.com/jeranaias/repochat/internal/provider"
	"github.com/jeranaias/repochat/internal/repo"
	"github.com/jeranaias/repochat/internal/storage"
)

// DefaultContextWindow is the number of log messages sent to the provider.
const DefaultContextWindow = 20

var (
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("orchestrator: closed")

	// ErrEmptyInput is returned for blank input. Nothing is appended.
	ErrEmptyInput = errors.New("orchestrator: empty input")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Repository is the subset of *repo.Client the orchestrator drives.
type Repository interface {
	FullName() string
	HasToken() bool
	Fetch(ctx context.Context, path string) (repo.FileContent, error)
	FileExists(ctx context.Context, path string) (bool, error)
	ListDirectory(ctx context.Context, path string) ([]repo.File, error)
	Tree(ctx context.Context, path string) ([]repo.File, error)
	RecentChanges(ctx context.Context, limit int) ([]repo.Change, error)
	TestWriteAccess(ctx context.Context) (bool, error)
	CreateFile(ctx context.Context, path, content, message string) (repo.CommitResult, error)
	UpdateFile(ctx context.Context, path, content, message string) (repo.CommitResult, error)
	DeleteFile(ctx context.Context, path, message string) (repo.CommitResult, error)
}

var _ Repository = (*repo.Client)(nil)

// Deps are the collaborators and settings of an Orchestrator. Provider is
// required; a nil Repository leaves repository commands unavailable and a
// nil Store keeps the conversation in memory only.
type Deps struct {
	Provider   provider.Provider
	Repository Repository
	Store      storage.Store
	Tracker    *pending.Tracker
	Validator  codeblock.Validator
	Registry   *commands.Registry
	Logger     *zap.Logger
	Registerer prometheus.Registerer

	// ProviderLabel is persisted with each message. Defaults to Provider.Name().
	ProviderLabel string

	// ContextWindow is the number of log messages sent per turn.
	ContextWindow int

	// CommandPrefix marks command input. Defaults to "/".
	CommandPrefix string

	// Retention prunes persisted messages older than this on LoadHistory.
	// Zero disables pruning.
	Retention time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// =============================================================================
// STATE
// =============================================================================

// State is a point-in-time copy of the conversation.
type State struct {
	Messages      []model.Message
	HistoryLoaded bool
	LastError     error
	Busy          bool
	Pending       []pending.Operation
	LoadedFiles   []string
}

// Turn reports what a single SendMessage or HandleCommand call did.
type Turn struct {
	// Appended holds the messages added to the log, in order.
	Appended []model.Message

	// Cleared is true when the call cleared the conversation.
	Cleared bool
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator owns one conversation: the message log, the pending
// operations, and the turn protocol that turns AI replies into commits.
//
// A process is expected to construct exactly one, hand it to its host, and
// Close it at shutdown. Turns are serialized; ordering between concurrent
// callers is undefined.
type Orchestrator struct {
	provider  provider.Provider
	repo      Repository
	store     storage.Store
	tracker   *pending.Tracker
	validator codeblock.Validator
	registry  *commands.Registry
	parser    *commands.Parser
	logger    *zap.Logger
	metrics   *Metrics

	label     string
	window    int
	prefix    string
	retention time.Duration
	now       func() time.Time

	// turnMu serializes turns.
	turnMu sync.Mutex

	// mu guards the fields below.
	mu            sync.RWMutex
	log           []model.Message
	historyLoaded bool
	lastErr       error
	busy          bool
	loaded        map[string]bool
	closed        bool
}

// New creates an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Provider == nil {
		return nil, errors.New("orchestrator: provider is required")
	}

	o := &Orchestrator{
		provider:  deps.Provider,
		repo:      deps.Repository,
		store:     deps.Store,
		tracker:   deps.Tracker,
		validator: deps.Validator,
		registry:  deps.Registry,
		logger:    logging.OrNop(deps.Logger).Named("orchestrator"),
		metrics:   NewMetrics(deps.Registerer),
		label:     deps.ProviderLabel,
		window:    deps.ContextWindow,
		prefix:    deps.CommandPrefix,
		retention: deps.Retention,
		now:       deps.Now,
		loaded:    make(map[string]bool),
	}

	if o.tracker == nil {
		o.tracker = pending.NewTracker()
	}
	if o.validator == nil {
		o.validator = codeblock.NewKeywordValidator(nil, nil)
	}
	if o.registry == nil {
		o.registry = commands.NewRegistry()
	}
	if o.label == "" {
		o.label = o.provider.Name()
	}
	if o.window <= 0 {
		o.window = DefaultContextWindow
	}
	if o.prefix == "" {
		o.prefix = commands.DefaultPrefix
	}
	if o.now == nil {
		o.now = time.Now
	}
	o.parser = commands.NewParser(o.registry, o.prefix)

	return o, nil
}

// Metrics returns the orchestrator's collectors.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// Prefix returns the command prefix.
func (o *Orchestrator) Prefix() string {
	return o.prefix
}

// ProviderName returns the provider label persisted with messages.
func (o *Orchestrator) ProviderName() string {
	return o.label
}

// Snapshot returns a copy of the conversation state.
func (o *Orchestrator) Snapshot() State {
	o.mu.RLock()
	defer o.mu.RUnlock()

	files := make([]string, 0, len(o.loaded))
	for p := range o.loaded {
		files = append(files, p)
	}
	sort.Strings(files)

	return State{
		Messages:      append([]model.Message(nil), o.log...),
		HistoryLoaded: o.historyLoaded,
		LastError:     o.lastErr,
		Busy:          o.busy,
		Pending:       o.tracker.All(),
		LoadedFiles:   files,
	}
}

// Messages returns a copy of the message log.
func (o *Orchestrator) Messages() []model.Message {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]model.Message(nil), o.log...)
}

// Pending returns the pending operations sorted by path.
func (o *Orchestrator) Pending() []pending.Operation {
	return o.tracker.All()
}

// Busy reports whether a turn is in progress.
func (o *Orchestrator) Busy() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.busy
}

// LastError returns the most recent provider or repository failure of the
// latest turn, or nil.
func (o *Orchestrator) LastError() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}

// =============================================================================
// TURNS
// =============================================================================

// begin starts a turn. The returned func ends it.
func (o *Orchestrator) begin(kind string) (func(), error) {
	o.turnMu.Lock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.turnMu.Unlock()
		return nil, ErrClosed
	}
	o.busy = true
	o.lastErr = nil
	o.mu.Unlock()

	start := o.now()
	return func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()

		o.metrics.TurnsTotal.WithLabelValues(kind).Inc()
		o.metrics.TurnDuration.WithLabelValues(kind).Observe(o.now().Sub(start).Seconds())
		o.metrics.PendingOperations.Set(float64(o.tracker.Len()))
		o.turnMu.Unlock()
	}, nil
}

// SendMessage handles one line of user input. Command input is routed to
// HandleCommand; anything else is a chat turn. Provider, repository and
// store failures never surface as errors: they become system messages or
// log entries. The returned error is ErrEmptyInput, ErrClosed, or the
// context's error when ctx is already done.
func (o *Orchestrator) SendMessage(ctx context.Context, input string) (Turn, error) {
	if strings.TrimSpace(input) == "" {
		return Turn{}, ErrEmptyInput
	}
	if o.parser.IsCommand(input) {
		return o.HandleCommand(ctx, input)
	}
	if err := ctx.Err(); err != nil {
		return Turn{}, err
	}

	end, err := o.begin(turnChat)
	if err != nil {
		return Turn{}, err
	}
	defer end()

	var turn Turn
	turn.Appended = append(turn.Appended, o.appendMessage(ctx, model.RoleUser, strings.TrimSpace(input)))

	window := o.contextWindow()
	reply, err := o.provider.Converse(ctx, window)
	if err != nil {
		o.metrics.ProviderFailuresTotal.Inc()
		o.setLastError(err)
		o.logger.Warn("provider call failed", zap.String("provider", o.label), zap.Error(err))
		turn.Appended = append(turn.Appended, o.appendMessage(ctx, model.RoleSystem, describeProviderError(err)))
		return turn, nil
	}

	turn.Appended = append(turn.Appended, o.appendMessage(ctx, model.RoleAssistant, reply))
	turn.Appended = append(turn.Appended, o.commitPending(ctx, reply)...)
	return turn, nil
}

// appendMessage adds a message to the log and persists it. A store failure
// is logged and the message keeps a locally generated id.
func (o *Orchestrator) appendMessage(ctx context.Context, role model.Role, content string) model.Message {
	msg := model.NewMessage(role, content, o.now())

	id := ""
	if o.store != nil {
		var err error
		id, err = o.store.Append(ctx, msg, o.label)
		if err != nil {
			o.persistenceFailed("append", err)
			id = ""
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	msg = msg.WithID(id)

	o.mu.Lock()
	o.log = append(o.log, msg)
	o.mu.Unlock()

	return msg
}

func (o *Orchestrator) persistenceFailed(op string, err error) {
	o.metrics.PersistenceFailuresTotal.Inc()
	o.logger.Warn("message store failure", zap.String("op", op), zap.Error(err))
}

func (o *Orchestrator) setLastError(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
}

// =============================================================================
// HISTORY
// =============================================================================

// LoadHistory loads the persisted log once. Messages older than the
// retention period are pruned first. Store failures are logged and leave
// HistoryLoaded false so a later call can retry.
func (o *Orchestrator) LoadHistory(ctx context.Context) error {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	o.mu.RLock()
	closed, done := o.closed, o.historyLoaded
	o.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if done || o.store == nil {
		o.mu.Lock()
		o.historyLoaded = true
		o.mu.Unlock()
		return nil
	}

	if o.retention > 0 {
		cutoff := o.now().Add(-o.retention)
		if n, err := o.store.DeleteOlderThan(ctx, cutoff); err != nil {
			o.persistenceFailed("prune", err)
		} else if n > 0 {
			o.logger.Info("pruned old messages", zap.Int("count", n), zap.Time("cutoff", cutoff))
		}
	}

	stored, err := o.store.LoadAll(ctx)
	if err != nil {
		o.persistenceFailed("load", err)
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// Messages appended before the load are already in the store unless
	// their append failed; keep only those.
	seen := make(map[string]bool, len(stored))
	for _, m := range stored {
		seen[m.ID] = true
	}
	merged := append([]model.Message(nil), stored...)
	for _, m := range o.log {
		if !seen[m.ID] {
			merged = append(merged, m)
		}
	}
	o.log = merged
	o.historyLoaded = true

	o.logger.Debug("history loaded", zap.Int("messages", len(stored)))
	return nil
}

// ClearConversation empties the log, the pending operations, the loaded
// files and the persisted store.
func (o *Orchestrator) ClearConversation(ctx context.Context) error {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	o.mu.RLock()
	closed := o.closed
	o.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	o.clear(ctx)
	o.metrics.PendingOperations.Set(0)
	return nil
}

// clear does the work of ClearConversation. The caller holds turnMu.
func (o *Orchestrator) clear(ctx context.Context) {
	o.tracker.Clear()

	o.mu.Lock()
	o.log = nil
	o.loaded = make(map[string]bool)
	o.lastErr = nil
	o.mu.Unlock()

	if o.store != nil {
		if err := o.store.Clear(ctx); err != nil {
			o.persistenceFailed("clear", err)
		}
	}
	o.logger.Info("conversation cleared")
}

// Close releases the provider and the store. Further calls fail with
// ErrClosed.
func (o *Orchestrator) Close() error {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	var errs []error
	if err := o.provider.Close(); err != nil {
		errs = append(errs, err)
	}
	if o.store != nil {
		if err := o.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
