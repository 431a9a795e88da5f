package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SceneFile is the on-disk mapping scene:
//
//	{"ccMappings": {...}, "noteMappings": {...}, "animations": {...}}
//
// Mapping keys are control IDs; animation keys are parameter targets.
type SceneFile struct {
	CCMappings   map[string]MappingEntry `json:"ccMappings"`
	NoteMappings map[string]MappingEntry `json:"noteMappings"`
	Animations   map[string]AnimConfig   `json:"animations,omitempty"`
}

// Validate rejects a scene wholesale when any entry is malformed
func (sf SceneFile) Validate() error {
	for id, e := range sf.CCMappings {
		if err := e.Validate(); err != nil {
			return errors.Wrapf(err, "ccMappings[%q]", id)
		}
	}
	for id, e := range sf.NoteMappings {
		if err := e.Validate(); err != nil {
			return errors.Wrapf(err, "noteMappings[%q]", id)
		}
	}
	for target, cfg := range sf.Animations {
		if !cfg.Enabled {
			continue
		}
		if err := cfg.Validate(); err != nil {
			return errors.Wrapf(err, "animations[%q]", target)
		}
	}
	return nil
}

// SaveInfo represents a saved scene file (for listing)
type SaveInfo struct {
	Filename  string
	Label     string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// SceneStore reads and writes scene folders under one root directory.
// Each scene is a folder of timestamped saves.
type SceneStore struct {
	root string
}

// NewSceneStore anchors a store at root
func NewSceneStore(root string) *SceneStore {
	return &SceneStore{root: root}
}

// DefaultScenesDir is where the app keeps scenes unless told otherwise
func DefaultScenesDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-modulate", "scenes"), nil
}

// Root returns the store's base directory
func (s *SceneStore) Root() string {
	return s.root
}

func (s *SceneStore) dir(sceneName string) string {
	return filepath.Join(s.root, sceneName)
}

// Scenes returns all scene folder names, sorted
func (s *SceneStore) Scenes() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var scenes []string
	for _, entry := range entries {
		if entry.IsDir() {
			scenes = append(scenes, entry.Name())
		}
	}

	sort.Strings(scenes)
	return scenes, nil
}

// Saves returns timestamped saves for a scene, newest first
func (s *SceneStore) Saves(sceneName string) ([]SaveInfo, error) {
	entries, err := os.ReadDir(s.dir(sceneName))
	if err != nil {
		if os.IsNotExist(err) {
			return []SaveInfo{}, nil
		}
		return nil, err
	}

	var saves []SaveInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}

		// Filename: 2024-01-15_14-30-00.json or 2024-01-15_14-30-00_label.json
		baseName := strings.TrimSuffix(name, ".json")
		if len(baseName) < 19 {
			continue
		}

		ts, err := time.Parse("2006-01-02_15-04-05", baseName[:19])
		if err != nil {
			// Not a timestamped file, skip
			continue
		}

		label := ""
		if len(baseName) > 20 && baseName[19] == '_' {
			label = baseName[20:]
		}

		saves = append(saves, SaveInfo{
			Filename:  name,
			Label:     label,
			Timestamp: ts,
		})
	}

	sort.Slice(saves, func(i, j int) bool {
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})

	return saves, nil
}

// Write saves a scene file under a timestamped name and returns the
// filename written
func (s *SceneStore) Write(sceneName, label string, sf SceneFile) (string, error) {
	if sceneName == "" {
		sceneName = "untitled"
	}

	dir := s.dir(sceneName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return "", err
	}

	filename := time.Now().Format("2006-01-02_15-04-05")
	if label != "" {
		filename += "_" + sanitizeFilename(label)
	}
	filename += ".json"

	if err := os.WriteFile(filepath.Join(dir, filename), data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}

// Read loads and validates a specific save (or the most recent when
// filename is empty). A malformed file is rejected wholesale: the error
// carries file and field context and no partial data is returned.
func (s *SceneStore) Read(sceneName, filename string) (SceneFile, error) {
	var sf SceneFile

	if filename == "" {
		saves, err := s.Saves(sceneName)
		if err != nil || len(saves) == 0 {
			return sf, errors.Errorf("no saves found in scene %s", sceneName)
		}
		filename = saves[0].Filename // newest first
	}

	path := filepath.Join(s.dir(sceneName), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return sf, err
	}

	if err := json.Unmarshal(data, &sf); err != nil {
		return SceneFile{}, errors.Wrapf(err, "scene %s", path)
	}
	if err := sf.Validate(); err != nil {
		return SceneFile{}, errors.Wrapf(err, "scene %s", path)
	}

	if sf.CCMappings == nil {
		sf.CCMappings = map[string]MappingEntry{}
	}
	if sf.NoteMappings == nil {
		sf.NoteMappings = map[string]MappingEntry{}
	}
	return sf, nil
}

// Create makes a new empty scene folder
func (s *SceneStore) Create(name string) error {
	return os.MkdirAll(s.dir(name), 0755)
}

// DeleteSave deletes a specific save file
func (s *SceneStore) DeleteSave(sceneName, filename string) error {
	return os.Remove(filepath.Join(s.dir(sceneName), filename))
}

// RenameSave changes the label part of a save filename, keeping the
// timestamp
func (s *SceneStore) RenameSave(sceneName, oldFilename, newLabel string) error {
	baseName := strings.TrimSuffix(oldFilename, ".json")
	if len(baseName) < 19 {
		return errors.New("invalid save filename")
	}
	tsStr := baseName[:19]

	var newFilename string
	if newLabel == "" {
		newFilename = tsStr + ".json"
	} else {
		newFilename = tsStr + "_" + sanitizeFilename(newLabel) + ".json"
	}

	dir := s.dir(sceneName)
	return os.Rename(filepath.Join(dir, oldFilename), filepath.Join(dir, newFilename))
}

// Delete removes an entire scene folder
func (s *SceneStore) Delete(name string) error {
	return os.RemoveAll(s.dir(name))
}

// Rename renames a scene folder
func (s *SceneStore) Rename(oldName, newName string) error {
	return os.Rename(s.dir(oldName), s.dir(newName))
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "-")
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, ":", "-")
	name = strings.ReplaceAll(name, "*", "")
	name = strings.ReplaceAll(name, "?", "")
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "<", "")
	name = strings.ReplaceAll(name, ">", "")
	name = strings.ReplaceAll(name, "|", "")
	return name
}
