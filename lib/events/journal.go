// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/yai-labs/yai/lib/codec"
)

// Compression selects how rotated journal segments are stored.
type Compression string

const (
	CompressZstd Compression = "zstd"
	CompressLZ4  Compression = "lz4"
	CompressNone Compression = "none"
)

// DefaultJournalMaxBytes is the active file size that triggers rotation.
const DefaultJournalMaxBytes = 4 << 20

// JournalOptions configures a Journal. The zero value rotates at
// DefaultJournalMaxBytes into zstd segments.
type JournalOptions struct {
	// MaxBytes is the active file size that triggers rotation.
	// Negative disables rotation.
	MaxBytes int64

	// Compression is the codec for rotated segments.
	Compression Compression

	// Logger receives write and rotation failures. Nil discards them.
	Logger *slog.Logger
}

// Journal is an append-only CBOR sequence of events. When the active
// file grows past MaxBytes its contents move to a numbered, compressed
// segment next to it (events.cbor.1.zst, events.cbor.2.zst, ...) and
// the active file starts empty.
//
// Emit never fails the caller: write errors are logged and kept for
// Err.
type Journal struct {
	path    string
	options JournalOptions
	logger  *slog.Logger

	mu      sync.Mutex
	file    *os.File
	size    int64
	lastErr error
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("events: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("events: zstd decoder initialization failed: " + err.Error())
	}
}

// OpenJournal opens (creating if needed) the journal at path. The
// parent directory is created with mode 0700.
func OpenJournal(path string, options JournalOptions) (*Journal, error) {
	if options.MaxBytes == 0 {
		options.MaxBytes = DefaultJournalMaxBytes
	}
	switch options.Compression {
	case "":
		options.Compression = CompressZstd
	case CompressZstd, CompressLZ4, CompressNone:
	default:
		return nil, fmt.Errorf("unknown journal compression %q", options.Compression)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat journal: %w", err)
	}

	return &Journal{
		path:    path,
		options: options,
		logger:  logger,
		file:    file,
		size:    info.Size(),
	}, nil
}

// Path returns the active journal file path.
func (j *Journal) Path() string { return j.path }

// Emit validates and appends e.
func (j *Journal) Emit(e Event) {
	if err := j.Append(e); err != nil {
		j.logger.Error("journal append failed", "path", j.path, "event", e.Type.String(), "error", err)
	}
}

// Append validates and appends e, returning any failure.
func (j *Journal) Append(e Event) error {
	if err := Validate(e); err != nil {
		return err
	}
	data, err := codec.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return errors.New("journal is closed")
	}
	written, err := j.file.Write(data)
	j.size += int64(written)
	if err != nil {
		j.lastErr = err
		return fmt.Errorf("writing event: %w", err)
	}
	if j.options.MaxBytes > 0 && j.size >= j.options.MaxBytes {
		if err := j.rotateLocked(); err != nil {
			j.lastErr = err
			return err
		}
	}
	return nil
}

// Err returns the most recent write or rotation failure.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// Close closes the active file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func (j *Journal) rotateLocked() error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return fmt.Errorf("reading journal for rotation: %w", err)
	}

	segments, err := Segments(j.path)
	if err != nil {
		return err
	}
	next := 1
	if len(segments) > 0 {
		next = segments[len(segments)-1].Sequence + 1
	}

	compressed, extension, err := compress(data, j.options.Compression)
	if err != nil {
		return err
	}
	segmentPath := fmt.Sprintf("%s.%d%s", j.path, next, extension)
	if err := os.WriteFile(segmentPath, compressed, 0o600); err != nil {
		return fmt.Errorf("writing journal segment: %w", err)
	}
	if err := j.file.Truncate(0); err != nil {
		return fmt.Errorf("truncating journal: %w", err)
	}
	j.size = 0

	j.logger.Info("journal rotated",
		"path", j.path,
		"segment", segmentPath,
		"bytes", len(data),
		"compressed_bytes", len(compressed),
	)
	return nil
}

func compress(data []byte, compression Compression) ([]byte, string, error) {
	switch compression {
	case CompressZstd:
		return zstdEncoder.EncodeAll(data, nil), ".zst", nil
	case CompressLZ4:
		var buffer bytes.Buffer
		writer := lz4.NewWriter(&buffer)
		if _, err := writer.Write(data); err != nil {
			return nil, "", fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, "", fmt.Errorf("lz4 compress: %w", err)
		}
		return buffer.Bytes(), ".lz4", nil
	default:
		return data, "", nil
	}
}

// Segment is one rotated journal file.
type Segment struct {
	Path     string
	Sequence int
}

// Segments lists the rotated segments of the journal at path in
// rotation order.
func Segments(path string) ([]Segment, error) {
	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		return nil, fmt.Errorf("listing journal segments: %w", err)
	}
	var segments []Segment
	for _, match := range matches {
		suffix := strings.TrimPrefix(match, path+".")
		suffix = strings.TrimSuffix(strings.TrimSuffix(suffix, ".zst"), ".lz4")
		sequence, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		segments = append(segments, Segment{Path: match, Sequence: sequence})
	}
	sort.Slice(segments, func(a, b int) bool { return segments[a].Sequence < segments[b].Sequence })
	return segments, nil
}

// ReadJournal returns every event in the journal at path: rotated
// segments first, in order, then the active file.
func ReadJournal(path string) ([]Event, error) {
	segments, err := Segments(path)
	if err != nil {
		return nil, err
	}

	var all []Event
	for _, segment := range segments {
		data, err := os.ReadFile(segment.Path)
		if err != nil {
			return nil, fmt.Errorf("reading journal segment: %w", err)
		}
		switch {
		case strings.HasSuffix(segment.Path, ".zst"):
			data, err = zstdDecoder.DecodeAll(data, nil)
		case strings.HasSuffix(segment.Path, ".lz4"):
			data, err = io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		}
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", segment.Path, err)
		}
		decoded, err := decodeSequence(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", segment.Path, err)
		}
		all = append(all, decoded...)
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	decoded, err := decodeSequence(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return append(all, decoded...), nil
}

func decodeSequence(data []byte) ([]Event, error) {
	decoder := codec.NewDecoder(bytes.NewReader(data))
	var decoded []Event
	for {
		var e Event
		if err := decoder.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return decoded, nil
			}
			return decoded, err
		}
		decoded = append(decoded, e)
	}
}
