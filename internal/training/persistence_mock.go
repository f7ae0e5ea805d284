package training

import (
	"errors"
)

// persistenceMock is an in-memory stand-in for the file persistence,
// used in store tests
type persistenceMock struct {
	loadState *State
	loadErr   error

	failSave  bool
	saveCalls int
	saved     *State
}

func newPersistenceMock() *persistenceMock {
	return &persistenceMock{}
}

func (p *persistenceMock) Load() (*State, bool, error) {
	if p.loadErr != nil {
		return nil, false, p.loadErr
	}
	if p.loadState == nil {
		return nil, false, nil
	}
	return p.loadState, true, nil
}

func (p *persistenceMock) Save(state *State) error {
	p.saveCalls++
	if p.failSave {
		return errors.New("save failed")
	}
	p.saved = state
	return nil
}
