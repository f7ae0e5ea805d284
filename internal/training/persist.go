package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/2beens/traintrack/pkg"

	log "github.com/sirupsen/logrus"
)

// json file name for the marshaled state document,
// saved within the store root path
const stateFileName = "traintrack-state.json"

// persistence is the durable single-slot home of the state document
type persistence interface {
	// Load returns the persisted state, or found == false when no
	// state has ever been saved
	Load() (_ *State, found bool, err error)
	Save(state *State) error
}

// FileStore keeps the whole state document in a single JSON file
// under the given root path
type FileStore struct {
	rootPath string
}

func NewFileStore(rootPath string) (*FileStore, error) {
	if rootPath == "" {
		return nil, errors.New("root path cannot be empty")
	}
	exists, err := pkg.PathExists(rootPath, true)
	if err != nil {
		return nil, fmt.Errorf("check root path %s: %w", rootPath, err)
	}
	if !exists {
		return nil, fmt.Errorf("root path [%s] does not exist", rootPath)
	}
	return &FileStore{
		rootPath: rootPath,
	}, nil
}

func (fs *FileStore) statePath() string {
	return path.Join(fs.rootPath, stateFileName)
}

func (fs *FileStore) Load() (*State, bool, error) {
	statePath := fs.statePath()
	log.Debugf("loading state from: %s", statePath)

	stateFileExists, err := pkg.PathExists(statePath, false)
	if err != nil {
		return nil, false, fmt.Errorf("check existence of state file [%s]: %w", statePath, err)
	}
	if !stateFileExists {
		return nil, false, nil
	}

	stateJson, err := os.ReadFile(statePath)
	if err != nil {
		return nil, false, err
	}

	var state State
	if err := json.Unmarshal(stateJson, &state); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, true, nil
}

func (fs *FileStore) Save(state *State) error {
	statePath := fs.statePath()
	log.Debugf("saving state to: %s", statePath)

	stateJson, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(statePath, stateJson, 0600); err != nil {
		return err
	}

	log.Debugln("new state saved")

	return nil
}
