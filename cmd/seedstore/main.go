// cmd/seedstore/main.go creates or resets the admin password of a store.
// Usage: go run ./cmd/seedstore -store patiobatel -password s3cret
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"boxtrack/internal/config"
	"boxtrack/internal/infra"
	"boxtrack/internal/model"
	"boxtrack/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	store := flag.String("store", "", "store id (must be listed in STORES)")
	password := flag.String("password", "", "new admin password, at least 8 characters")
	resetTOTP := flag.Bool("reset-2fa", false, "disable two-factor authentication for the store")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.Catalog().HasStore(*store) {
		log.Fatal().Str("store", *store).Strs("stores", cfg.Stores).Msg("unknown store")
	}
	if len(*password) < 8 {
		log.Fatal().Msg("password must be at least 8 characters")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo := repository.NewSecretRepository(db)
	secret, err := repo.Find(ctx, *store)
	switch {
	case err == nil:
	case repository.IsNotFound(err):
		secret = &model.StoreSecret{StoreID: *store}
	default:
		log.Fatal().Err(err).Msg("could not read store secret")
	}
	secret.PasswordHash = string(hash)
	if *resetTOTP {
		secret.TOTPSecret = nil
		secret.TwoFactorEnabled = false
	}
	if err := repo.Save(ctx, secret); err != nil {
		log.Fatal().Err(err).Msg("could not save store secret")
	}
	log.Info().Str("store", *store).Bool("2fa", secret.TwoFactorEnabled).Msg("store credentials updated")
}
