package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// fileImage is the on-disk JSON schema of the ledger.
type fileImage struct {
	Positions        map[string]*domain.Position `json:"positions"`
	Daily            DailyPnL                    `json:"daily"`
	TotalRealizedPnL float64                     `json:"total_realized_pnl"`
	SavedAt          time.Time                   `json:"saved_at"`
}

// fileStore writes the ledger image atomically: the full image goes to a
// temp file in the same directory, is fsynced, then renamed over the live
// path. A crash mid-write leaves the previous image intact.
type fileStore struct {
	path string
}

func newFileStore(path string) *fileStore {
	return &fileStore{path: path}
}

// load reads and decodes the image. It returns os.ErrNotExist (wrapped) when
// the file is missing.
func (s *fileStore) load() (fileImage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fileImage{}, err
	}

	var img fileImage
	if err := json.Unmarshal(data, &img); err != nil {
		return fileImage{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return img, nil
}

// save atomically replaces the live file with the given image.
func (s *fileStore) save(img fileImage) error {
	data, err := s.encode(img)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (s *fileStore) encode(img fileImage) ([]byte, error) {
	data, err := json.MarshalIndent(img, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return data, nil
}
