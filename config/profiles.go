// profiles.go manages saved warehouse login profiles.
//
// Profiles are stored in ~/.paicortex/profiles.yaml so users can
// log in again without retyping the account, user and role. Passwords
// are never written to disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile is a named, saveable Snowflake login.
type Profile struct {
	Name      string `yaml:"name"`
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Role      string `yaml:"role,omitempty"`
	Warehouse string `yaml:"warehouse,omitempty"`
}

// Label returns the name shown in the login form.
func (p Profile) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.User + "@" + p.Account
}

// ProfileStore manages saved profiles on disk.
type ProfileStore struct {
	path     string
	Profiles []Profile `yaml:"profiles"`
}

// NewProfileStore loads the store from ~/.paicortex/profiles.yaml.
func NewProfileStore() (*ProfileStore, error) {
	return OpenProfileStore(filepath.Join(Dir(), "profiles.yaml"))
}

// OpenProfileStore loads the store from path, creating its directory.
func OpenProfileStore(path string) (*ProfileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	store := &ProfileStore{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	return store, nil
}

// Save writes all profiles to disk.
func (s *ProfileStore) Save() error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Add adds or replaces a profile by label.
func (s *ProfileStore) Add(p Profile) {
	for i, existing := range s.Profiles {
		if existing.Label() == p.Label() {
			s.Profiles[i] = p
			return
		}
	}
	s.Profiles = append(s.Profiles, p)
}

// Delete removes a profile by label.
func (s *ProfileStore) Delete(label string) {
	for i, p := range s.Profiles {
		if p.Label() == label {
			s.Profiles = append(s.Profiles[:i], s.Profiles[i+1:]...)
			return
		}
	}
}

// Get retrieves a profile by label.
func (s *ProfileStore) Get(label string) (Profile, bool) {
	for _, p := range s.Profiles {
		if p.Label() == label {
			return p, true
		}
	}
	return Profile{}, false
}

// ProfileFrom captures the non-secret parts of a Snowflake config.
func ProfileFrom(sf SnowflakeConfig) Profile {
	return Profile{
		Account:   sf.Account,
		User:      sf.User,
		Role:      sf.Role,
		Warehouse: sf.Warehouse,
	}
}

// Apply copies the profile onto a Snowflake config, keeping its password.
func (p Profile) Apply(sf SnowflakeConfig) SnowflakeConfig {
	sf.Account = p.Account
	sf.User = p.User
	sf.Role = p.Role
	sf.Warehouse = p.Warehouse
	return sf
}
