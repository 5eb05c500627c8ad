package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SeedUser is one member profile from the seed file.
type SeedUser struct {
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Gender       string `yaml:"gender"`
	KnownAs      string `yaml:"knownAs"`
	DateOfBirth  string `yaml:"dateOfBirth"`
	Introduction string `yaml:"introduction"`
	LookingFor   string `yaml:"lookingFor"`
	Interests    string `yaml:"interests"`
	City         string `yaml:"city"`
	Country      string `yaml:"country"`
	PhotoURL     string `yaml:"photoUrl"`
}

// BirthDate parses the user's date of birth.
func (s SeedUser) BirthDate() (time.Time, error) {
	if s.DateOfBirth == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s.DateOfBirth)
}

// LoadSeedUsers reads member profiles from a YAML seed file.
func LoadSeedUsers(path string) ([]SeedUser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var users []SeedUser
	if err := yaml.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	for i, u := range users {
		if u.Username == "" {
			return nil, fmt.Errorf("seed user %d: username is required", i)
		}
		if u.Password == "" {
			return nil, fmt.Errorf("seed user %s: password is required", u.Username)
		}
		if _, err := u.BirthDate(); err != nil {
			return nil, fmt.Errorf("seed user %s: bad dateOfBirth: %w", u.Username, err)
		}
	}
	return users, nil
}
