package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"actionpacer/pkg/logger"
	"actionpacer/pkg/record"
)

const currentVersion = 1

// Checkpoint is the persisted run context: which targets were handled and
// how the counters stood when it was last saved.
type Checkpoint struct {
	Key       string    `json:"key"`
	RunID     string    `json:"run_id"`
	Seen      []string  `json:"seen"`
	Processed int       `json:"processed"`
	Skipped   int       `json:"skipped"`
	Errored   int       `json:"errored"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// SeenSet returns the checkpoint's seen IDs as a set
func (c *Checkpoint) SeenSet() record.Seen {
	return record.NewSeen(c.Seen...)
}

// Manager handles checkpoint operations for one key
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// KeyFor derives a checkpoint key from an output path
func KeyFor(outputPath string) string {
	base := filepath.Base(outputPath)
	key := unsafeKeyChars.ReplaceAllString(base, "_")
	if key == "" || key == "." {
		return "default"
	}
	return key
}

// NewManager creates a manager storing checkpoints under the user data dir
func NewManager(key string, log logger.Logger) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(filepath.Join(dataDir, "checkpoints"), key, log)
}

// NewManagerAt creates a manager storing checkpoints in dir
func NewManagerAt(dir, key string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("%s.checkpoint.json", KeyFor(key))),
		logger:         log,
	}, nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a checkpoint for a new run. seen carries the
// targets a resumed run inherits; it is written before Create returns so a
// crash before the first Record cannot lose it.
func (m *Manager) Create(key, runID string, seen record.Seen) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		Key:       key,
		RunID:     runID,
		Seen:      seen.IDs(),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   currentVersion,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"key":  key,
		"seen": len(cp.Seen),
		"path": m.checkpointPath,
	})
	return cp, nil
}

// Load loads an existing checkpoint; it returns nil, nil when none exists
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version > currentVersion {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, currentVersion)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"key":        cp.Key,
		"seen":       len(cp.Seen),
		"processed":  cp.Processed,
		"updated_at": cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically: temp file, fsync, rename
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"key":       cp.Key,
		"seen":      len(cp.Seen),
		"processed": cp.Processed,
	})
	return nil
}

// Record folds the run's seen set and counters into cp and saves it
func (m *Manager) Record(cp *Checkpoint, seen record.Seen, processed, skipped, errored int) error {
	cp.Seen = seen.IDs()
	cp.Processed = processed
	cp.Skipped = skipped
	cp.Errored = errored
	return m.Save(cp)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "actionpacer")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "actionpacer")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			dataDir = filepath.Join(xdg, "actionpacer")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "actionpacer")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
