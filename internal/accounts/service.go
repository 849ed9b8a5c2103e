// Package accounts is the catalog of bank accounts that auto-split rules watch
// and settlements deposit into.
package accounts

import (
	"errors"
	"fmt"
	"os"

	"github.com/settleloop/settleloop/internal/model"
)

// FileName is the catalog file inside the state directory.
const FileName = "accounts.csv"

// Service provides in-memory lookup over the account catalog.
type Service struct {
	accounts []model.Account
	byID     map[string]model.Account
}

// NewService creates a Service from a slice of accounts.
func NewService(accounts []model.Account) *Service {
	byID := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}
	return &Service{accounts: accounts, byID: byID}
}

// Load reads the catalog at path. A missing file yields DefaultAccounts.
func Load(path string) (*Service, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewService(DefaultAccounts()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading accounts: %w", err)
	}
	return NewService(accts), nil
}

// All returns all accounts.
func (s *Service) All() []model.Account {
	return s.accounts
}

// Get returns an account by ID.
func (s *Service) Get(id string) (model.Account, bool) {
	a, ok := s.byID[id]
	return a, ok
}

// Exists reports whether an account ID exists.
func (s *Service) Exists(id string) bool {
	_, ok := s.byID[id]
	return ok
}

// ByType returns all accounts of the given type.
func (s *Service) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// Save writes the catalog to path.
func (s *Service) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, s.accounts); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	return nil
}
