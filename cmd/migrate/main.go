package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"aigc/internal/adapter/repo"
	"aigc/internal/auth"
	"aigc/internal/db"
	"aigc/internal/domain"
	"aigc/internal/infra"
	"aigc/internal/sqlinline"
)

const (
	seedTagName        = "Image Processing"
	seedTagDescription = "Photo transformations backed by the visual API"
)

type seedService struct {
	name        string
	description string
	endpoint    string
	cost        int64
}

var seedServices = []seedService{
	{
		name:        domain.ServiceNameAgeTransform,
		description: "Render a portrait younger or older",
		endpoint:    "/v1/jobs/image-age-transform",
		cost:        10,
	},
	{
		name:        domain.ServiceNameHairStyle,
		description: "Restyle the hair in a portrait",
		endpoint:    "/v1/jobs/hair-style",
		cost:        10,
	},
}

type seedUser struct {
	username string
	email    string
	password string
	role     domain.UserRole
	credits  int64
}

func main() {
	_ = godotenv.Load()

	var (
		directionFlag string
		seedFlag      bool
		adminPassFlag string
		userPassFlag  string
	)
	flag.StringVar(&directionFlag, "direction", "up", "migration direction (up, down, status)")
	flag.BoolVar(&seedFlag, "seed", false, "insert the catalog and demo accounts after migrating up")
	flag.StringVar(&adminPassFlag, "admin-password", "", "password for the seeded admin (falls back to SEED_ADMIN_PASSWORD)")
	flag.StringVar(&userPassFlag, "user-password", "", "password for the seeded test user (falls back to SEED_USER_PASSWORD)")
	flag.Parse()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := db.Open(dbURL)
	if err != nil {
		exitWithError(err)
	}
	defer conn.Close()

	direction := strings.ToLower(strings.TrimSpace(directionFlag))
	if err := db.Migrate(ctx, conn, direction); err != nil {
		exitWithError(fmt.Errorf("migrate %s: %w", direction, err))
	}
	fmt.Printf("migrations %s applied\n", direction)

	if !seedFlag {
		return
	}
	if direction != "up" && direction != "" {
		exitWithError(errors.New("-seed requires -direction up"))
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	if err := seedCatalog(ctx, runner); err != nil {
		exitWithError(err)
	}

	users := []seedUser{
		{
			username: "admin",
			email:    "admin@example.com",
			password: firstNonEmpty(adminPassFlag, os.Getenv("SEED_ADMIN_PASSWORD")),
			role:     domain.UserRoleAdmin,
			credits:  10000,
		},
		{
			username: "testuser",
			email:    "test@example.com",
			password: firstNonEmpty(userPassFlag, os.Getenv("SEED_USER_PASSWORD")),
			role:     domain.UserRoleUser,
			credits:  100,
		},
	}
	for _, u := range users {
		if err := seedAccount(ctx, runner, u); err != nil {
			exitWithError(err)
		}
	}
}

func seedCatalog(ctx context.Context, runner *infra.SQLRunner) error {
	var tagID string
	if err := runner.QueryRow(ctx, sqlinline.QUpsertServiceTag, seedTagName, seedTagDescription).Scan(&tagID); err != nil {
		return fmt.Errorf("seed tag: %w", err)
	}
	for _, svc := range seedServices {
		var id string
		if err := runner.QueryRow(ctx, sqlinline.QUpsertService, svc.name, svc.description, tagID, svc.cost, svc.endpoint).Scan(&id); err != nil {
			return fmt.Errorf("seed service %q: %w", svc.name, err)
		}
		fmt.Printf("service %s (%s) cost=%d\n", svc.name, id, svc.cost)
	}
	return nil
}

// seedAccount creates u with a zero balance and grants its starting credits
// through the ledger. Existing usernames are left untouched.
func seedAccount(ctx context.Context, runner *infra.SQLRunner, u seedUser) error {
	if u.password == "" {
		fmt.Printf("skip %s: no password provided\n", u.username)
		return nil
	}
	hash, err := auth.HashPassword(u.password)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", u.username, err)
	}
	return runner.InTx(ctx, func(tx infra.SQLExecutor) error {
		var id string
		err := tx.QueryRow(ctx, sqlinline.QUpsertSeedUser, u.username, u.email, hash, string(u.role), int64(0)).Scan(&id)
		if infra.IsNoRows(err) {
			fmt.Printf("user %s already exists\n", u.username)
			return nil
		}
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.username, err)
		}
		balance, err := repo.NewStore(tx).Ledger().Credit(ctx, id, u.credits, domain.LedgerRef{
			Type: domain.LedgerAdminGrant,
			Note: "seed",
		})
		if err != nil {
			return fmt.Errorf("grant credits to %s: %w", u.username, err)
		}
		fmt.Printf("user %s (%s) role=%s credits=%d\n", u.username, id, u.role, balance)
		return nil
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
