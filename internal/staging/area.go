// Package staging owns the file-backed firmware slot an update is written
// into. A slot is sized exactly to the advertised image length, refuses extra
// bytes, and becomes bootable only after a complete write is committed.
package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
)

const (
	imageName   = "firmware.bin"
	partialName = "firmware.bin.partial"
	markerName  = "boot.json"
)

var (
	ErrInsufficientSpace = errors.New("insufficient space for firmware image")
	ErrInvalidSize       = errors.New("invalid firmware size")
	ErrBusy              = errors.New("staging area already in use")
	ErrOverflow          = errors.New("write exceeds declared firmware size")
	ErrIncomplete        = errors.New("firmware image incomplete")
	ErrClosed            = errors.New("staging slot closed")
)

// Slot receives one firmware image. Exactly one of Abort or Commit ends it.
type Slot interface {
	io.Writer
	// Abort discards everything written. It is safe to call more than once
	// and after a failed Commit.
	Abort() error
	// Commit marks the image bootable. It fails with ErrIncomplete unless the
	// declared size was written.
	Commit(Manifest) error
}

// Manifest is persisted as the boot marker.
type Manifest struct {
	Version  string    `json:"version"`
	Digest   string    `json:"digest"`
	Size     int64     `json:"size"`
	StagedAt time.Time `json:"staged_at"`
}

// Area is a directory holding at most one pending image.
type Area struct {
	dir     string
	reserve uint64

	// FreeSpace reports bytes available in dir. Defaults to a gopsutil
	// filesystem query.
	FreeSpace func(dir string) (uint64, error)

	mu     sync.Mutex
	active bool
}

// NewArea prepares dir. reserve is headroom that must remain free after the
// image is written.
func NewArea(dir string, reserve uint64) (*Area, error) {
	if dir == "" {
		return nil, errors.New("staging dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Area{dir: dir, reserve: reserve, FreeSpace: diskFree}, nil
}

func diskFree(dir string) (uint64, error) {
	u, err := disk.Usage(dir)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

// Dir returns the staging directory.
func (a *Area) Dir() string { return a.dir }

// ImagePath is where a committed image lives.
func (a *Area) ImagePath() string { return filepath.Join(a.dir, imageName) }

func (a *Area) markerPath() string  { return filepath.Join(a.dir, markerName) }
func (a *Area) partialPath() string { return filepath.Join(a.dir, partialName) }

// Begin claims the area for an image of exactly size bytes. It fails with
// ErrInsufficientSpace when the filesystem cannot hold the image plus the
// reserve, and with ErrBusy while another slot is open.
func (a *Area) Begin(size int64) (Slot, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return nil, ErrBusy
	}
	a.active = true
	a.mu.Unlock()

	s, err := a.open(size)
	if err != nil {
		a.release()
		return nil, err
	}
	return s, nil
}

func (a *Area) open(size int64) (*fileSlot, error) {
	free, err := a.FreeSpace(a.dir)
	if err != nil {
		return nil, fmt.Errorf("query free space: %w", err)
	}
	if uint64(size)+a.reserve > free {
		return nil, fmt.Errorf("%w: need %d bytes, %d free", ErrInsufficientSpace, uint64(size)+a.reserve, free)
	}
	_ = os.Remove(a.partialPath())
	f, err := os.OpenFile(a.partialPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open partial image: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		_ = os.Remove(a.partialPath())
		return nil, fmt.Errorf("size partial image: %w", err)
	}
	return &fileSlot{area: a, f: f, size: size, hash: sha256.New()}, nil
}

func (a *Area) release() {
	a.mu.Lock()
	a.active = false
	a.mu.Unlock()
}

// Bootable returns the manifest of the committed image, if there is one.
func (a *Area) Bootable() (Manifest, bool) {
	b, err := os.ReadFile(a.markerPath())
	if err != nil {
		return Manifest{}, false
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Manifest{}, false
	}
	if _, err := os.Stat(a.ImagePath()); err != nil {
		return Manifest{}, false
	}
	return m, true
}

// Clear removes any committed image and its marker, typically once the new
// firmware has booted.
func (a *Area) Clear() error {
	for _, p := range []string{a.markerPath(), a.ImagePath(), a.partialPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear staging: %w", err)
		}
	}
	return nil
}

// Consume reports the committed image left by the previous run and clears the
// area. The restart that followed the commit has already picked the image up.
func (a *Area) Consume() (Manifest, bool, error) {
	m, ok := a.Bootable()
	return m, ok, a.Clear()
}

type fileSlot struct {
	area    *Area
	f       *os.File
	size    int64
	written int64
	hash    hash.Hash
	closed  bool
}

func (s *fileSlot) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.written+int64(len(p)) > s.size {
		return 0, fmt.Errorf("%w: %d + %d > %d", ErrOverflow, s.written, len(p), s.size)
	}
	n, err := s.f.Write(p)
	s.written += int64(n)
	s.hash.Write(p[:n])
	return n, err
}

// Digest returns the sha256 of the bytes written so far as "sha256:<hex>".
func (s *fileSlot) Digest() string {
	return "sha256:" + hex.EncodeToString(s.hash.Sum(nil))
}

func (s *fileSlot) Abort() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.area.release()
	_ = s.f.Close()
	if err := os.Remove(s.area.partialPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove partial image: %w", err)
	}
	return nil
}

func (s *fileSlot) Commit(m Manifest) error {
	if s.closed {
		return ErrClosed
	}
	if s.written != s.size {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrIncomplete, s.written, s.size)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync image: %w", err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("close image: %w", err)
	}
	s.closed = true
	defer s.area.release()

	// a stale marker must never point at the new image before it is whole
	_ = os.Remove(s.area.markerPath())
	if err := os.Rename(s.area.partialPath(), s.area.ImagePath()); err != nil {
		_ = os.Remove(s.area.partialPath())
		return fmt.Errorf("install image: %w", err)
	}
	m.Size = s.size
	if m.Digest == "" {
		m.Digest = s.Digest()
	}
	if m.StagedAt.IsZero() {
		m.StagedAt = time.Now().UTC()
	}
	if err := writeFileAtomic(s.area.markerPath(), m); err != nil {
		_ = os.Remove(s.area.ImagePath())
		return err
	}
	return nil
}

func writeFileAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode boot marker: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write boot marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("install boot marker: %w", err)
	}
	return nil
}
