// Package session drives the interactive scan flow: select pages, queue and
// reorder them, run one batched extraction, and preview or report the
// result. A session owns its pages and their preview handles; everything is
// released when the session closes, regardless of outcome.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/handscribe/internal/batch"
	"github.com/lehigh-university-libraries/handscribe/internal/config"
	"github.com/lehigh-university-libraries/handscribe/internal/models"
	"github.com/lehigh-university-libraries/handscribe/internal/normalize"
	"github.com/lehigh-university-libraries/handscribe/internal/pagequeue"
	"github.com/lehigh-university-libraries/handscribe/internal/providers"
)

// Inserter is the host insertion point. The session calls it exactly once,
// at the moment the user confirms insertion.
type Inserter interface {
	ReplaceSelection(text string) error
}

// SettingsSource returns the current settings. The session takes one
// snapshot per extraction attempt.
type SettingsSource func() config.Settings

// Session is the live state of one scan operation.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	phase        models.Phase
	queue        *pagequeue.Queue
	normalizer   *normalize.Normalizer
	provider     providers.Provider
	settings     SettingsSource
	resultText   string
	errorMessage string
	generation   int
	closed       bool
}

// New creates a session in the select phase.
func New(provider providers.Provider, settings SettingsSource, previewer pagequeue.Previewer) *Session {
	n := normalize.New()
	return &Session{
		ID:         models.NewSessionID(),
		CreatedAt:  time.Now(),
		phase:      models.PhaseSelect,
		queue:      pagequeue.New(n, previewer),
		normalizer: n,
		provider:   provider,
		settings:   settings,
	}
}

func (s *Session) Phase() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Pages returns the queued pages in order.
func (s *Session) Pages() []*models.PageItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.SnapshotOrder()
}

// ResultText returns the extracted (possibly user-edited) text.
func (s *Session) ResultText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resultText
}

// ErrorMessage returns the message surfaced for the error phase.
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorMessage
}

// AddPage appends a page from any source. Valid while selecting or queueing;
// the session moves to (or stays in) the queue phase.
func (s *Session) AddPage(data []byte, format models.ImageFormat, sourceName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.phase != models.PhaseSelect && s.phase != models.PhaseQueue {
		return fmt.Errorf("cannot add pages while %s", s.phase)
	}
	s.queue.AddFromSource(data, format, sourceName)
	s.phase = models.PhaseQueue
	return nil
}

// EnsurePreviews renders preview handles for queued pages. No-op outside the
// queue phase.
func (s *Session) EnsurePreviews(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != models.PhaseQueue {
		return
	}
	s.queue.EnsurePreviews(ctx)
}

// MovePage swaps two pages by position. Only valid while queueing.
func (s *Session) MovePage(i, j int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.phase != models.PhaseQueue {
		return fmt.Errorf("cannot reorder pages while %s", s.phase)
	}
	s.queue.Move(i, j)
	return nil
}

// RemovePage deletes a page and releases its preview. Removing the last page
// returns the session to the select phase.
func (s *Session) RemovePage(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.phase != models.PhaseQueue {
		return fmt.Errorf("cannot remove pages while %s", s.phase)
	}
	s.queue.Remove(i)
	if s.queue.Len() == 0 {
		s.phase = models.PhaseSelect
	}
	return nil
}

// Confirm dispatches the batched extraction for the queued pages.
func (s *Session) Confirm(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.phase != models.PhaseQueue {
		return fmt.Errorf("cannot start extraction while %s", s.phase)
	}
	return s.extract(ctx)
}

// ScanDirect is the single pre-loaded image path (e.g. clipboard): it queues
// one page and goes straight to processing, skipping the queue phase.
func (s *Session) ScanDirect(ctx context.Context, data []byte, format models.ImageFormat, sourceName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.phase != models.PhaseSelect {
		return fmt.Errorf("cannot scan directly while %s", s.phase)
	}
	s.queue.AddFromSource(data, format, sourceName)
	return s.extract(ctx)
}

// Retry resends the identical batch after a failure.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.phase != models.PhaseError {
		return fmt.Errorf("cannot retry while %s", s.phase)
	}
	if s.queue.Len() == 0 {
		return fmt.Errorf("nothing to retry, no pages queued")
	}
	return s.extract(ctx)
}

// ReExtract re-runs the batch from the preview phase, discarding the current
// result text.
func (s *Session) ReExtract(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.phase != models.PhasePreview {
		return fmt.Errorf("cannot re-extract while %s", s.phase)
	}
	return s.extract(ctx)
}

// Back abandons a failed attempt and returns to selection, dropping all
// pages.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.phase != models.PhaseError {
		return fmt.Errorf("cannot go back while %s", s.phase)
	}
	s.queue.Clear()
	s.resultText = ""
	s.errorMessage = ""
	s.phase = models.PhaseSelect
	return nil
}

// EditResult replaces the result text. Once edited, the text buffer is the
// only truth; edits never propagate back into the pages.
func (s *Session) EditResult(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.phase != models.PhasePreview {
		return fmt.Errorf("cannot edit the result while %s", s.phase)
	}
	s.resultText = text
	return nil
}

// Insert delivers the result text to the host insertion point and ends the
// session.
func (s *Session) Insert(inserter Inserter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if s.phase != models.PhasePreview {
		return fmt.Errorf("cannot insert while %s", s.phase)
	}
	if err := inserter.ReplaceSelection(s.resultText); err != nil {
		return fmt.Errorf("failed to insert text: %w", err)
	}
	s.closeLocked()
	return nil
}

// Close ends the session, releasing every preview handle and dropping all
// pages. Safe to call more than once. An extraction still in flight has its
// late response discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	s.queue.Clear()
	slog.Debug("Session closed", "id", s.ID)
}

func (s *Session) ensureOpen() error {
	if s.closed {
		return fmt.Errorf("session is closed")
	}
	return nil
}

// extract runs one attempt: credential preflight, settings snapshot, batch
// build, provider call, and the transition to preview or error. Called with
// the session lock held; the lock is dropped for the network call so the
// session stays readable, but no state-changing action is accepted while the
// phase is processing.
func (s *Session) extract(ctx context.Context) error {
	snap := s.settings()

	if snap.MissingCredential() {
		err := &providers.ConfigurationError{Message: "no API key configured, add one in settings"}
		s.phase = models.PhaseError
		s.errorMessage = err.Message
		s.resultText = ""
		s.queue.MarkAll(models.StatusError, err.Message)
		return err
	}

	s.phase = models.PhaseProcessing
	s.resultText = ""
	s.errorMessage = ""
	s.queue.MarkAll(models.StatusProcessing, "")
	pages := s.queue.SnapshotOrder()
	generation := s.generation

	parts, prompt := batch.Build(ctx, s.normalizer, pages, snap.Prompt, batch.Options{
		Separator:   snap.PageSeparator,
		PageNumbers: snap.PageNumbers,
	})
	cfg := providers.Config{
		APIKey:      snap.APIKey,
		Model:       snap.Model,
		Temperature: snap.Temperature,
	}

	slog.Info("Dispatching extraction", "session", s.ID, "pages", len(parts), "model", cfg.Model)

	s.mu.Unlock()
	text, err := s.provider.ExtractText(ctx, cfg, prompt, parts)
	s.mu.Lock()

	if s.closed || generation != s.generation {
		// The session ended while the request was in flight; drop the
		// late response.
		slog.Debug("Discarding late extraction response", "session", s.ID)
		return nil
	}

	if err != nil {
		// One request covers the whole batch, so a failure marks every
		// page uniformly.
		s.phase = models.PhaseError
		s.errorMessage = err.Error()
		s.resultText = ""
		s.queue.MarkAll(models.StatusError, s.errorMessage)
		return err
	}

	s.phase = models.PhasePreview
	s.errorMessage = ""
	s.resultText = text
	s.queue.MarkAll(models.StatusDone, "")
	return nil
}
