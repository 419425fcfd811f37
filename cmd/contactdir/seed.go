// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ContactDir Contributors

package main

import (
	"context"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/contactdir/contactdir/internal/auth"
	authpg "github.com/contactdir/contactdir/internal/auth/postgres"
	"github.com/contactdir/contactdir/internal/config"
	"github.com/contactdir/contactdir/internal/contacts"
	contactspg "github.com/contactdir/contactdir/internal/contacts/postgres"
	"github.com/contactdir/contactdir/internal/store"
)

// Default timeout for the seed command.
const defaultSeedTimeout = 30 * time.Second

// seedFile is the YAML layout the seed command consumes.
type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Contacts []seedContact `yaml:"contacts"`
}

type seedContact struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
	Notes string `yaml:"notes"`
}

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed users and contacts from a YAML file",
		Long: `Creates the users and contacts described in a YAML seed file.
This command is idempotent - users that already exist are skipped along
with their contacts, so re-running it will not create duplicates.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", "seed.yaml", "path to the YAML seed file")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("auth.hasher", "", "password hashing scheme (sha256 or argon2id)")

	return cmd
}

func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator flag
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, oops.Code("SEED_INVALID").With("path", path).Wrap(err)
	}
	if len(seed.Users) == 0 {
		return nil, oops.Code("SEED_INVALID").With("path", path).Errorf("seed file declares no users")
	}

	for _, u := range seed.Users {
		if err := auth.ValidatePassword(u.Password); err != nil {
			return nil, oops.Code("SEED_INVALID").With("username", u.Username).Wrap(err)
		}
	}
	return &seed, nil
}

func runSeed(cmd *cobra.Command, seedCfg *seedConfig) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (flag, config file, or CONTACTDIR_DATABASE__URL)")
	}

	seed, err := loadSeedFile(seedCfg.file)
	if err != nil {
		return err
	}

	// Use cmd.Context() so SIGINT/SIGTERM abort the run.
	ctx, cancel := context.WithTimeout(cmd.Context(), seedCfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	cmd.Println("Running migrations...")
	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close() //nolint:errcheck // migration error takes precedence
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}

	credRepo := authpg.NewCredentialRepository(pool)
	authSvc, err := auth.NewService(credRepo, newHasher(cfg.Auth.Hasher))
	if err != nil {
		return err
	}
	contactSvc, err := contacts.NewService(contactspg.NewContactRepository(pool))
	if err != nil {
		return err
	}

	var createdUsers, createdContacts int
	for _, u := range seed.Users {
		created, err := authSvc.Register(ctx, u.Username, u.Password)
		if err != nil {
			return oops.Code("SEED_FAILED").With("username", u.Username).Wrap(err)
		}
		if !created {
			cmd.Printf("User %q already exists, skipping\n", u.Username)
			continue
		}
		createdUsers++

		cred, err := credRepo.GetByUsername(ctx, u.Username)
		if err != nil {
			return oops.Code("SEED_FAILED").With("username", u.Username).Wrap(err)
		}

		for _, c := range u.Contacts {
			if _, err := contactSvc.Add(ctx, cred.ID, c.Name, c.Email, c.Phone, c.Notes); err != nil {
				return oops.Code("SEED_FAILED").
					With("username", u.Username).
					With("contact", c.Name).
					Wrap(err)
			}
			createdContacts++
		}
		cmd.Printf("Seeded user %q with %d contact(s)\n", u.Username, len(u.Contacts))
	}

	cmd.Printf("Seed complete: %d user(s), %d contact(s) created\n", createdUsers, createdContacts)
	return nil
}
