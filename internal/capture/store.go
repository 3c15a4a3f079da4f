package capture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// ErrNotFound is returned for unknown or malformed capture IDs.
var ErrNotFound = errors.New("capture not found")

const (
	rawExt  = ".raw"
	metaExt = ".toml"
)

// Record is the metadata stored next to a raw frame.
type Record struct {
	ID          string    `toml:"id" json:"id" doc:"Capture identifier"`
	CameraID    string    `toml:"camera_id" json:"camera_id" doc:"Camera identifier"`
	Width       uint32    `toml:"width" json:"width" doc:"Frame width"`
	Height      uint32    `toml:"height" json:"height" doc:"Frame height"`
	BPP         uint32    `toml:"bpp" json:"bpp" doc:"Bits per sample"`
	Channels    uint32    `toml:"channels" json:"channels" doc:"Samples per pixel"`
	Bytes       int       `toml:"bytes" json:"bytes" doc:"Raw file size"`
	ExposureUs  float64   `toml:"exposure_us" json:"exposure_us" doc:"Exposure in microseconds"`
	Gain        *float64  `toml:"gain,omitempty" json:"gain,omitempty" doc:"Gain, when set"`
	Offset      *float64  `toml:"offset,omitempty" json:"offset,omitempty" doc:"Offset, when set"`
	DeviceIndex uint32    `toml:"device_index" json:"device_index" doc:"Camera index"`
	DurationMs  int64     `toml:"duration_ms" json:"duration_ms" doc:"Capture wall time"`
	CapturedAt  time.Time `toml:"captured_at" json:"captured_at" doc:"Completion time"`
}

// FrameStore keeps raw frames and their metadata in one directory as
// <id>.raw and <id>.toml.
type FrameStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFrameStore creates dir if needed.
func NewFrameStore(dir string) (*FrameStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create frame store %s: %w", dir, err)
	}
	return &FrameStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FrameStore) Dir() string {
	return s.dir
}

// Save writes the raw frame and then its metadata. Both files are written
// to a temporary name first, so a listed capture always has its data.
func (s *FrameStore) Save(rec Record, data []byte) error {
	if !validID(rec.ID) {
		return fmt.Errorf("invalid capture id %q", rec.ID)
	}
	rec.Bytes = len(data)

	meta, err := toml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode capture metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.path(rec.ID, rawExt), data); err != nil {
		return err
	}
	if err := writeAtomic(s.path(rec.ID, metaExt), meta); err != nil {
		os.Remove(s.path(rec.ID, rawExt))
		return err
	}
	return nil
}

// List returns every stored record, newest first. Unreadable sidecars are
// skipped.
func (s *FrameStore) List() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame store: %w", err)
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, metaExt) {
			continue
		}
		rec, err := s.readMeta(strings.TrimSuffix(name, metaExt))
		if err != nil {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CapturedAt.After(records[j].CapturedAt)
	})
	return records, nil
}

// Get returns the record for id.
func (s *FrameStore) Get(id string) (Record, error) {
	if !validID(id) {
		return Record{}, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMeta(id)
}

// ReadRaw returns the raw frame bytes for id.
func (s *FrameStore) ReadRaw(id string) ([]byte, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id, rawExt))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Delete removes both files for id.
func (s *FrameStore) Delete(id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	metaErr := os.Remove(s.path(id, metaExt))
	rawErr := os.Remove(s.path(id, rawExt))
	if errors.Is(metaErr, os.ErrNotExist) && errors.Is(rawErr, os.ErrNotExist) {
		return ErrNotFound
	}
	if metaErr != nil && !errors.Is(metaErr, os.ErrNotExist) {
		return metaErr
	}
	if rawErr != nil && !errors.Is(rawErr, os.ErrNotExist) {
		return rawErr
	}
	return nil
}

func (s *FrameStore) readMeta(id string) (Record, error) {
	data, err := os.ReadFile(s.path(id, metaExt))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := toml.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to parse metadata for %s: %w", id, err)
	}
	return rec, nil
}

func (s *FrameStore) path(id, ext string) string {
	return filepath.Join(s.dir, id+ext)
}

// validID accepts only canonical UUIDs, which also keeps IDs out of
// other directories.
func validID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == id
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
