package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-tracker/app/entity"
	"github.com/vibast-solutions/ms-go-tracker/app/repository"
	"github.com/vibast-solutions/ms-go-tracker/app/service"
	"golang.org/x/crypto/bcrypt"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Maintain the single-use token ledger",
}

var tokensPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired tokens from the ledger",
	RunE: func(_ *cobra.Command, _ []string) error {
		db, err := openDatabaseForMaintenanceCommands()
		if err != nil {
			return err
		}
		defer db.Close()

		tokens := service.NewTokenService(repository.NewTokenRepository(db))
		count, err := tokens.PurgeExpired(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("purged %d expired token(s)\n", count)
		return nil
	},
}

var createUserRole string

var createUserCmd = &cobra.Command{
	Use:   "create-user <email> <first_name> <last_name>",
	Short: "Create a verified user account, prompting for the password",
	Args:  cobra.ExactArgs(3),
	RunE: func(_ *cobra.Command, args []string) error {
		if !entity.IsRole(createUserRole) {
			return fmt.Errorf("invalid role %q", createUserRole)
		}

		email := service.NormalizeEmail(args[0])
		if !service.IsValidEmail(email) {
			return fmt.Errorf("invalid email address %q", args[0])
		}

		db, err := openDatabaseForMaintenanceCommands()
		if err != nil {
			return err
		}
		defer db.Close()

		userRepo := repository.NewUserRepository(db)
		exists, err := userRepo.ExistsByEmail(context.Background(), email)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("an account already exists for %s", email)
		}

		password, err := promptPassword()
		if err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		user := &entity.User{
			FirstName:    args[1],
			LastName:     args[2],
			Email:        email,
			PasswordHash: string(hash),
			Role:         createUserRole,
			IsVerified:   true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err = userRepo.Create(context.Background(), user); err != nil {
			return err
		}

		fmt.Printf("user_id: %d\n", user.ID)
		fmt.Printf("email: %s\n", user.Email)
		fmt.Printf("role: %s\n", user.Role)
		return nil
	},
}

func init() {
	tokensCmd.AddCommand(tokensPurgeCmd)
	rootCmd.AddCommand(tokensCmd)

	createUserCmd.Flags().StringVar(&createUserRole, "role", entity.RoleAdmin, "role for the new account (Admin or User)")
	rootCmd.AddCommand(createUserCmd)
}

func openDatabaseForMaintenanceCommands() (*sql.DB, error) {
	_ = godotenv.Load()

	dsn := strings.TrimSpace(os.Getenv("MYSQL_DSN"))
	if dsn == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func promptPassword() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Password: ")
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("password must not be empty")
	}
	return input, nil
}
