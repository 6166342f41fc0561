// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultDir is where POSIX shared memory objects live on Linux. A
// segment named "/yai_vault_ws" in shm_open terms is the file
// /dev/shm/yai_vault_ws.
const DefaultDir = "/dev/shm"

// Auxiliary channels. Each is a separate segment with the same record
// layout as the core vault.
const (
	ChannelStream  = "stream"
	ChannelBrain   = "brain"
	ChannelAudit   = "audit"
	ChannelCache   = "cache"
	ChannelControl = "control"
)

// Channels lists every auxiliary channel in attach order.
var Channels = []string{ChannelStream, ChannelBrain, ChannelAudit, ChannelCache, ChannelControl}

// SegmentName returns the shared memory object name (without the
// leading slash) for a workspace and optional channel.
func SegmentName(workspaceID, channel string) string {
	if channel == "" {
		return "yai_vault_" + workspaceID
	}
	return "yai_vault_" + workspaceID + "_" + channel
}

// Segment is one mapped Vault.
type Segment struct {
	path   string
	fd     int
	mem    []byte
	record *Record
}

// Create opens (creating if needed) the segment for workspaceID and
// channel under dir, sizes it to one record, maps it shared, and fills
// in bootstrap defaults. An existing segment keeps its contents apart
// from the gaps BootstrapDefaults fills.
func Create(dir, workspaceID, channel string, quota uint32) (*Segment, error) {
	segment, err := mapSegment(dir, workspaceID, channel, unix.O_CREAT)
	if err != nil {
		return nil, err
	}
	// Two planes may create the same segment at once; the fresh check
	// and the zeroing that follows it must not interleave.
	if err := segment.Lock(); err != nil {
		segment.Close()
		return nil, err
	}
	BootstrapDefaults(segment.record, workspaceID, quota)
	if err := segment.Unlock(); err != nil {
		segment.Close()
		return nil, err
	}
	return segment, nil
}

// Open maps an existing segment. The returned error wraps
// os.ErrNotExist when the segment has not been created.
func Open(dir, workspaceID, channel string) (*Segment, error) {
	return mapSegment(dir, workspaceID, channel, 0)
}

func mapSegment(dir, workspaceID, channel string, createFlag int) (*Segment, error) {
	if dir == "" {
		dir = DefaultDir
	}
	path := filepath.Join(dir, SegmentName(workspaceID, channel))

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|createFlag, 0o600)
	if err != nil {
		return nil, &os.PathError{Op: "open vault segment", Path: path, Err: err}
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stat vault segment %s: %w", path, err)
	}
	if stat.Size < Size {
		if createFlag == 0 {
			unix.Close(fd)
			return nil, fmt.Errorf("vault segment %s is %d bytes, want %d", path, stat.Size, Size)
		}
		if err := unix.Ftruncate(fd, Size); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("sizing vault segment %s: %w", path, err)
		}
	}

	mem, err := unix.Mmap(fd, 0, Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mapping vault segment %s: %w", path, err)
	}

	record, err := View(mem)
	if err != nil {
		unix.Munmap(mem)
		unix.Close(fd)
		return nil, err
	}

	return &Segment{path: path, fd: fd, mem: mem, record: record}, nil
}

// Record returns the record view of the mapping. It is invalid after
// Close.
func (s *Segment) Record() *Record { return s.record }

// Path returns the backing file path.
func (s *Segment) Path() string { return s.path }

// Lock takes the advisory exclusive lock on the segment. Writers that
// update several fields as a unit hold it for the duration.
func (s *Segment) Lock() error {
	if err := unix.Flock(s.fd, unix.LOCK_EX); err != nil {
		return fmt.Errorf("locking vault segment %s: %w", s.path, err)
	}
	return nil
}

// Unlock releases the advisory lock.
func (s *Segment) Unlock() error {
	if err := unix.Flock(s.fd, unix.LOCK_UN); err != nil {
		return fmt.Errorf("unlocking vault segment %s: %w", s.path, err)
	}
	return nil
}

// Close unmaps the segment and closes its descriptor. The shared
// object itself survives; use Unlink to destroy it.
func (s *Segment) Close() error {
	var firstErr error
	if s.mem != nil {
		if err := unix.Munmap(s.mem); err != nil {
			firstErr = fmt.Errorf("unmapping vault segment %s: %w", s.path, err)
		}
		s.mem = nil
		s.record = nil
	}
	if s.fd >= 0 {
		if err := unix.Close(s.fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing vault segment %s: %w", s.path, err)
		}
		s.fd = -1
	}
	return firstErr
}

// Unlink removes the shared object for workspaceID and channel.
// Processes that still map it keep their mapping until they close it.
// Removing a segment that does not exist is not an error.
func Unlink(dir, workspaceID, channel string) error {
	if dir == "" {
		dir = DefaultDir
	}
	path := filepath.Join(dir, SegmentName(workspaceID, channel))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unlinking vault segment: %w", err)
	}
	return nil
}

// Directory hands out core vault records by workspace id, creating and
// mapping segments on first use and keeping them mapped until Close.
// Safe for concurrent use.
type Directory struct {
	dir   string
	quota uint32

	mu       sync.Mutex
	segments map[string]*Segment
}

// NewDirectory returns a Directory creating segments under dir with the
// given default energy quota.
func NewDirectory(dir string, quota uint32) *Directory {
	return &Directory{dir: dir, quota: quota, segments: make(map[string]*Segment)}
}

// Record returns the core record for workspaceID.
func (d *Directory) Record(workspaceID string) (*Record, error) {
	segment, err := d.Segment(workspaceID)
	if err != nil {
		return nil, err
	}
	return segment.Record(), nil
}

// Segment returns the core segment for workspaceID.
func (d *Directory) Segment(workspaceID string) (*Segment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if segment, ok := d.segments[workspaceID]; ok {
		return segment, nil
	}
	segment, err := Create(d.dir, workspaceID, "", d.quota)
	if err != nil {
		return nil, err
	}
	d.segments[workspaceID] = segment
	return segment, nil
}

// Close unmaps every segment the directory opened.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for id, segment := range d.segments {
		if err := segment.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.segments, id)
	}
	return firstErr
}
