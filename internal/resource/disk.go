package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// DiskStore persists cached responses on disk, one directory per generation.
// Response envelopes are msgpack-encoded and zstd-compressed; entry writes
// go through a temp file and rename so each (key, response) pair lands
// atomically.
type DiskStore struct {
	basePath string
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
	mu       sync.RWMutex
}

// nameMarker records the exact generation name inside its directory.
const nameMarker = ".generation"

// GenerationStat summarizes one stored generation.
type GenerationStat struct {
	Name    string
	Entries int
	Bytes   int64
}

// NewDiskStore creates a disk store rooted at basePath.
func NewDiskStore(basePath string) (*DiskStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	log.Debug("resource store opened", "path", basePath)
	return &DiskStore{
		basePath: basePath,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// Open ensures a generation directory exists.
func (s *DiskStore) Open(generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(generation)
}

// openLocked creates the generation directory and records the exact
// generation name in a marker file, since directory names are sanitized.
func (s *DiskStore) openLocked(generation string) error {
	dir := s.generationPath(generation)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to open generation %q: %w", generation, err)
	}
	marker := filepath.Join(dir, nameMarker)
	if _, err := os.Stat(marker); os.IsNotExist(err) {
		if err := os.WriteFile(marker, []byte(generation), 0o644); err != nil {
			return fmt.Errorf("failed to mark generation %q: %w", generation, err)
		}
	}
	return nil
}

// Match returns the stored response for key, or ErrNoMatch. A corrupted
// entry is removed and reported as ErrCorruptEntry.
func (s *DiskStore) Match(generation, key string) (*Response, error) {
	s.mu.RLock()
	path := s.entryPath(generation, key)
	data, err := os.ReadFile(path)
	s.mu.RUnlock()

	if os.IsNotExist(err) {
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	decoded, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		s.dropEntry(path)
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}

	var resp Response
	if err := msgpack.Unmarshal(decoded, &resp); err != nil {
		s.dropEntry(path)
		return nil, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return &resp, nil
}

// Put stores resp under key, replacing any existing entry.
func (s *DiskStore) Put(generation, key string, resp *Response) error {
	encoded, err := msgpack.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	compressed := s.encoder.EncodeAll(encoded, nil)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.openLocked(generation); err != nil {
		return err
	}

	dir := s.generationPath(generation)
	tmp, err := os.CreateTemp(dir, "entry-*")
	if err != nil {
		return fmt.Errorf("failed to create temp entry: %w", err)
	}
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.entryPath(generation, key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a generation wholesale. Deleting a missing generation is a
// no-op.
func (s *DiskStore) Delete(generation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.generationPath(generation)); err != nil {
		return fmt.Errorf("failed to delete generation %q: %w", generation, err)
	}
	log.Debug("cache generation deleted", "generation", generation)
	return nil
}

// ListGenerations enumerates stored generation names.
func (s *DiskStore) ListGenerations() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		marker, err := os.ReadFile(filepath.Join(s.basePath, entry.Name(), nameMarker))
		if err != nil {
			// Unmarked directory: fall back to the directory name.
			names = append(names, entry.Name())
			continue
		}
		names = append(names, string(marker))
	}
	return names, nil
}

// Stats reports entry counts and on-disk sizes per generation.
func (s *DiskStore) Stats() ([]GenerationStat, error) {
	names, err := s.ListGenerations()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make([]GenerationStat, 0, len(names))
	for _, name := range names {
		stat := GenerationStat{Name: name}
		entries, err := os.ReadDir(s.generationPath(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read generation %q: %w", name, err)
		}
		for _, entry := range entries {
			if entry.Name() == nameMarker {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			stat.Entries++
			stat.Bytes += info.Size()
		}
		stats = append(stats, stat)
	}
	return stats, nil
}

func (s *DiskStore) dropEntry(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = os.Remove(path)
}

func (s *DiskStore) generationPath(generation string) string {
	sum := sha256.Sum256([]byte(generation))
	// Keep the readable name alongside a hash prefix so arbitrary
	// generation strings never escape the base directory.
	return filepath.Join(s.basePath, hex.EncodeToString(sum[:4])+"-"+sanitize(generation))
}

func (s *DiskStore) entryPath(generation, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.generationPath(generation), hex.EncodeToString(sum[:16])+".res")
}

func sanitize(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
