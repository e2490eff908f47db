package users

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"authcore/internal/password"
)

type seedFile struct {
	Users []struct {
		Email    string `yaml:"email"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Role     Role   `yaml:"role"`
	} `yaml:"users"`
}

// SeedFromFile creates any bootstrap accounts listed in the yaml file at
// path, skipping emails that already exist. Registration is open, but role
// assignment is not exposed over HTTP, so the first admin comes from here.
func (s *Store) SeedFromFile(ctx context.Context, path string, hasher *password.Hasher) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	for _, su := range sf.Users {
		if su.Email == "" || su.Password == "" {
			continue
		}
		if _, err := s.GetByEmail(ctx, su.Email); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		hash, err := hasher.Hash(su.Password)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}
		u := &User{
			Email:        su.Email,
			Username:     su.Username,
			PasswordHash: hash,
			Role:         su.Role,
		}
		if err := s.Create(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", su.Email, err)
		}
	}
	return nil
}
