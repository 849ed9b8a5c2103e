// Package store persists the ledger state as a YAML snapshot.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/settleloop/settleloop/internal/model"
)

// Version is the snapshot format written by Save.
const Version = 1

// State is everything the ledger owns. Records link to each other by id only.
type State struct {
	Version      int                     `yaml:"version"`
	Missions     []model.Mission         `yaml:"missions"`
	Rules        []model.AutoSplitRule   `yaml:"rules"`
	BillPacks    []model.BillPack        `yaml:"bill_packs"`
	Transactions []model.BankTransaction `yaml:"transactions"`
}

// Load reads the snapshot at path. A missing file yields an empty state.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{Version: Version}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("reading state: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parsing state: %w", err)
	}
	if st.Version > Version {
		return State{}, fmt.Errorf("state version %d is newer than supported version %d", st.Version, Version)
	}
	if st.Version == 0 {
		st.Version = Version
	}
	return st, nil
}

// Save writes st to path through a temporary file so a crash never leaves a
// half-written snapshot.
func Save(path string, st State) error {
	st.Version = Version
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing state: %w", err)
	}
	return nil
}
