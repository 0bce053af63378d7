package region

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"topofetch/core/pipeline"
	"topofetch/internal/errors"
)

// StatusFile is the per-prefix run record
const StatusFile = ".topofetch-status.json"

// Status records how far a geometry got. It replaces directory existence as
// the signal that a prefix is complete.
type Status struct {
	RunID     string         `json:"run_id"`
	ID        string         `json:"id"`
	Prefix    string         `json:"prefix"`
	Source    string         `json:"source"`
	State     pipeline.State `json:"state"`
	Files     []string       `json:"files,omitempty"`
	Error     string         `json:"error,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// StatusPath locates the record inside a prefix directory
func StatusPath(dir string) string {
	return filepath.Join(dir, StatusFile)
}

func newStatus(g Geometry, source string) *Status {
	now := time.Now().UTC()
	return &Status{
		RunID:     uuid.New().String(),
		ID:        g.ID,
		Prefix:    g.Prefix,
		Source:    source,
		State:     pipeline.StatePending,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// LoadStatus returns nil without error when dir has no record
func LoadStatus(dir string) (*Status, error) {
	path := StatusPath(dir)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Format(path, "cannot read status record", err)
	}
	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Format(path, "corrupt status record", err)
	}
	return &s, nil
}

// Save atomically replaces the record in dir
func (s *Status) Save(dir string) error {
	s.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Internal("cannot encode status record", err)
	}
	path := StatusPath(dir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Internal("cannot write status record", err).WithContext("path", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Internal("cannot replace status record", err).WithContext("path", path)
	}
	return nil
}

func (s *Status) addFiles(files ...string) {
	seen := make(map[string]bool, len(s.Files))
	for _, f := range s.Files {
		seen[f] = true
	}
	for _, f := range files {
		if f != "" && !seen[f] {
			s.Files = append(s.Files, f)
			seen[f] = true
		}
	}
}
