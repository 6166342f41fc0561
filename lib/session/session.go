// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

// Package session tracks which workspaces this process serves. A
// session is proof of single ownership: acquiring one takes an
// exclusive flock on the workspace lock file and holds it until
// release, so two kernels can never serve the same workspace at once.
// A lock file left behind by a crashed process is taken over once the
// pid recorded in it is no longer alive.
//
// A Registry is an explicit object with a fixed number of slots;
// nothing in this package is process-global.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/yai-labs/yai/lib/runpath"
	"github.com/yai-labs/yai/lib/wire"
)

// DefaultCapacity is the slot count when Options.Capacity is zero.
const DefaultCapacity = 32

// DefaultCapabilities are granted to a new session before any
// handshake narrows or widens them.
const DefaultCapabilities = wire.CapPing | wire.CapHandshake | wire.CapStatus

var (
	// ErrDenied means another live process owns the workspace.
	ErrDenied = errors.New("session denied: workspace is owned by another process")

	// ErrInvalidWorkspace means the workspace id failed validation.
	ErrInvalidWorkspace = errors.New("invalid workspace id")

	// ErrRegistryFull means every slot is taken.
	ErrRegistryFull = errors.New("session registry is full")
)

// Workspace holds the filesystem locations derived for one workspace.
type Workspace struct {
	ID         string
	RunDir     string
	SocketPath string
	LockFile   string
	PIDFile    string
}

// Session is one acquired workspace.
type Session struct {
	// ID is the registry slot.
	ID int

	// RunID increases with every acquisition in this registry.
	RunID uint64

	Workspace    Workspace
	Capabilities uint32
	OwnerPID     int

	lock *os.File
}

// Options configures a Registry.
type Options struct {
	// Capacity is the number of slots.
	Capacity int

	// Layout locates the run tree. The zero value resolves from $HOME.
	Layout runpath.Layout

	// PID is written into lock files. Zero uses os.Getpid().
	PID int

	// Alive reports whether a pid found in an existing lock file
	// still runs. Nil probes with kill(pid, 0).
	Alive func(pid int) bool

	// Logger receives acquisition and reclaim records. Nil discards.
	Logger *slog.Logger
}

// Registry owns the sessions of one process.
type Registry struct {
	layout runpath.Layout
	pid    int
	alive  func(int) bool
	logger *slog.Logger

	mu        sync.Mutex
	slots     []*Session
	nextRunID uint64
}

// NewRegistry creates a registry.
func NewRegistry(options Options) (*Registry, error) {
	if options.Capacity <= 0 {
		options.Capacity = DefaultCapacity
	}
	layout := options.Layout
	if layout.Home == "" {
		resolved, err := runpath.FromEnv()
		if err != nil {
			return nil, err
		}
		layout = resolved
	}
	registry := &Registry{
		layout: layout,
		pid:    options.PID,
		alive:  options.Alive,
		logger: options.Logger,
		slots:  make([]*Session, options.Capacity),
	}
	if registry.pid == 0 {
		registry.pid = os.Getpid()
	}
	if registry.alive == nil {
		registry.alive = ProcessAlive
	}
	if registry.logger == nil {
		registry.logger = slog.New(slog.DiscardHandler)
	}
	return registry, nil
}

// ProcessAlive probes pid with signal 0. A pid we may not signal
// (EPERM) exists and counts as alive.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Acquire returns the session for workspaceID, creating it if this
// registry does not hold one yet.
func (r *Registry) Acquire(workspaceID string) (*Session, error) {
	if !wire.ValidWorkspaceID(workspaceID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWorkspace, workspaceID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	free := -1
	for index, existing := range r.slots {
		if existing == nil {
			if free < 0 {
				free = index
			}
			continue
		}
		if existing.Workspace.ID == workspaceID {
			return existing, nil
		}
	}
	if free < 0 {
		return nil, fmt.Errorf("%w (%d slots)", ErrRegistryFull, len(r.slots))
	}

	workspace := Workspace{
		ID:         workspaceID,
		RunDir:     r.layout.WorkspaceDir(workspaceID),
		SocketPath: r.layout.WorkspaceSocket(workspaceID),
		LockFile:   r.layout.LockFile(workspaceID),
		PIDFile:    r.layout.PIDFile(workspaceID),
	}
	if err := runpath.Ensure(workspace.RunDir); err != nil {
		return nil, err
	}
	lock, err := r.lockFile(workspace.LockFile)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(workspace.PIDFile, []byte(strconv.Itoa(r.pid)+"\n"), 0o600); err != nil {
		os.Remove(workspace.LockFile)
		lock.Close()
		return nil, fmt.Errorf("writing pid file: %w", err)
	}

	r.nextRunID++
	session := &Session{
		ID:           free,
		RunID:        r.nextRunID,
		Workspace:    workspace,
		Capabilities: DefaultCapabilities,
		OwnerPID:     r.pid,
		lock:         lock,
	}
	r.slots[free] = session
	r.logger.Info("session acquired",
		"ws_id", workspaceID,
		"slot", free,
		"run_id", session.RunID,
	)
	return session, nil
}

// lockFile takes the workspace lock at path and records our pid in
// it. The returned file holds an exclusive flock for the life of the
// session; the kernel drops it when the holder dies, so a lock file
// left by a crashed process can be taken over. A recorded pid that is
// still alive denies the workspace even when no flock is held.
//
// The previous holder may unlink path between our open and our flock,
// leaving us locking an orphaned inode; that case retries.
func (r *Registry) lockFile(path string) (*os.File, error) {
	for range 3 {
		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening lock file: %w", err)
		}
		owner, recorded := readPID(file)
		if recorded && owner != r.pid && r.alive(owner) {
			file.Close()
			return nil, fmt.Errorf("%w (pid %d)", ErrDenied, owner)
		}
		if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			file.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, fmt.Errorf("%w (lock %s is held)", ErrDenied, path)
			}
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		if !stillLinked(file, path) {
			file.Close()
			continue
		}
		if recorded && owner != r.pid {
			r.logger.Warn("reclaiming stale session lock", "path", path, "stale_pid", owner)
		}
		if err := writePID(file, r.pid); err != nil {
			file.Close()
			return nil, fmt.Errorf("writing lock file: %w", err)
		}
		return file, nil
	}
	return nil, fmt.Errorf("%w (lock %s replaced concurrently)", ErrDenied, path)
}

// stillLinked reports whether path still names the inode open in file.
func stillLinked(file *os.File, path string) bool {
	opened, err := file.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(opened, current)
}

// readPID parses the pid recorded in a lock file. An empty or garbled
// file records none.
func readPID(file *os.File) (int, bool) {
	content, err := io.ReadAll(io.LimitReader(file, 32))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func writePID(file *os.File, pid int) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	_, err := file.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0)
	return err
}

// Get returns the session held for workspaceID.
func (r *Registry) Get(workspaceID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.slots {
		if existing != nil && existing.Workspace.ID == workspaceID {
			return existing, true
		}
	}
	return nil, false
}

// Grant replaces the capability mask of s.
func (r *Registry) Grant(s *Session, capabilities uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.Capabilities = capabilities
}

// Len returns the number of held sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, existing := range r.slots {
		if existing != nil {
			count++
		}
	}
	return count
}

// Release removes the lock and pid files of s and frees its slot.
// Releasing a session this registry does not hold is a no-op.
func (r *Registry) Release(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked(s)
}

func (r *Registry) releaseLocked(s *Session) error {
	if s == nil || s.ID < 0 || s.ID >= len(r.slots) || r.slots[s.ID] != s {
		return nil
	}
	r.slots[s.ID] = nil

	// Unlink while the flock is still held so a waiting acquirer never
	// locks a file we are about to remove.
	var errs []error
	for _, path := range []string{s.Workspace.LockFile, s.Workspace.PIDFile} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Close())
		s.lock = nil
	}
	r.logger.Info("session released", "ws_id", s.Workspace.ID, "slot", s.ID)
	return errors.Join(errs...)
}

// Close releases every held session.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, existing := range r.slots {
		if existing != nil {
			errs = append(errs, r.releaseLocked(existing))
		}
	}
	return errors.Join(errs...)
}
