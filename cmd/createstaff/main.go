// Command createstaff creates a staff account that can use the
// admin endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Aklabu/e-commerce/internal/config"
	"github.com/Aklabu/e-commerce/internal/database"
	"github.com/Aklabu/e-commerce/internal/logger"
	"github.com/Aklabu/e-commerce/internal/models"
	"github.com/Aklabu/e-commerce/internal/services"
	"github.com/Aklabu/e-commerce/internal/store"
	"github.com/Aklabu/e-commerce/internal/utils"
)

func main() {
	email := flag.String("email", "", "staff email address")
	firstName := flag.String("first-name", "", "first name")
	lastName := flag.String("last-name", "", "last name")
	flag.Parse()

	// Read from the environment so it does not end up in shell history.
	password := os.Getenv("STAFF_PASSWORD")

	if err := run(*email, password, *firstName, *lastName); err != nil {
		fmt.Fprintln(os.Stderr, "createstaff:", err)
		os.Exit(1)
	}
}

func run(email, password, firstName, lastName string) error {
	email = utils.NormalizeEmail(email)
	if email == "" {
		return errors.New("-email is required")
	}
	if password == "" {
		return errors.New("STAFF_PASSWORD is not set")
	}
	if err := services.CheckPasswordStrength(password, email, firstName, lastName); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Initialize(cfg.LogLevel, cfg.LogJSON)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	st := store.New(db)

	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	account := &models.Account{
		Email:         email,
		PasswordHash:  hash,
		CustomerType:  models.CustomerRetail,
		FirstName:     utils.CleanText(firstName),
		LastName:      utils.CleanText(lastName),
		EmailVerified: true,
		Stage:         models.StageEmailVerified,
		IsActive:      true,
		IsStaff:       true,
	}
	if err := st.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("an account with email %s already exists", email)
		}
		return err
	}

	logger.Log.Info("staff account created", "account_id", account.ID, "email", email)
	return nil
}
