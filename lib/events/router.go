// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"log/slog"
	"sync"
)

// Router is a Sink that appends each event to the journal of its
// workspace, opening journals on first use. Events without a
// workspace id are dropped.
type Router struct {
	path    func(workspaceID string) string
	options JournalOptions
	logger  *slog.Logger

	mu       sync.Mutex
	journals map[string]*Journal
	closed   bool
}

// NewRouter returns a Router placing the journal of each workspace at
// path(workspaceID).
func NewRouter(path func(workspaceID string) string, options JournalOptions) *Router {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		path:     path,
		options:  options,
		logger:   logger,
		journals: make(map[string]*Journal),
	}
}

// Emit appends e to its workspace journal.
func (r *Router) Emit(e Event) {
	if e.WorkspaceID == "" {
		return
	}
	journal, err := r.journal(e.WorkspaceID)
	if err != nil {
		r.logger.Error("opening workspace journal failed", "ws_id", e.WorkspaceID, "error", err)
		return
	}
	if journal != nil {
		journal.Emit(e)
	}
}

func (r *Router) journal(workspaceID string) (*Journal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, nil
	}
	if journal, ok := r.journals[workspaceID]; ok {
		return journal, nil
	}
	journal, err := OpenJournal(r.path(workspaceID), r.options)
	if err != nil {
		return nil, err
	}
	r.journals[workspaceID] = journal
	return journal, nil
}

// Len reports the number of open journals.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.journals)
}

// Close closes every journal. Later events are dropped.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for workspaceID, journal := range r.journals {
		errs = append(errs, journal.Close())
		delete(r.journals, workspaceID)
	}
	r.closed = true
	return errors.Join(errs...)
}
