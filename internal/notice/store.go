package notice

import (
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

const DEFAULT_STATE_FILE = "remo2mqtt_notice.json"

type flagFile struct {
	Acknowledged bool `json:"acknowledged"`
}

// Store persists the acknowledged flag of the configuration notice.
type Store struct {
	fs   afero.Fs
	path string
}

func NewStore(fs afero.Fs, path string) *Store {
	if path == "" {
		path = DEFAULT_STATE_FILE
	}
	return &Store{fs: fs, path: path}
}

// Acknowledged reports false when the file is missing.
func (s *Store) Acknowledged() (bool, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var flag flagFile
	if err := json.Unmarshal(data, &flag); err != nil {
		return false, err
	}
	return flag.Acknowledged, nil
}

func (s *Store) Acknowledge() error {
	data, err := json.Marshal(flagFile{Acknowledged: true})
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return afero.WriteFile(s.fs, s.path, data, 0o644)
}
