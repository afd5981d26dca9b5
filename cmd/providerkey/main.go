package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"aigc/internal/infra"
	"aigc/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		accessKeyFlag string
		secretKeyFlag string
		regionFlag    string
	)
	flag.StringVar(&accessKeyFlag, "access-key", "", "Volcengine access key (falls back to VOLC_ACCESS_KEY)")
	flag.StringVar(&secretKeyFlag, "secret-key", "", "Volcengine secret key (falls back to VOLC_SECRET_KEY)")
	flag.StringVar(&regionFlag, "region", "", "Volcengine region (falls back to VOLC_REGION, then cn-north-1)")
	flag.Parse()

	creds := credentials.VolcCredentials{
		AccessKey: pick(accessKeyFlag, "VOLC_ACCESS_KEY"),
		SecretKey: pick(secretKeyFlag, "VOLC_SECRET_KEY"),
		Region:    pick(regionFlag, "VOLC_REGION"),
	}
	if creds.Region == "" {
		creds.Region = "cn-north-1"
	}
	if !creds.Complete() {
		fmt.Fprintln(os.Stderr, "access key and secret key are required via flags or environment")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("provider", credentials.ProviderVolcengine).Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if err := store.SetVolcCredentials(ctx, creds); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s credentials: %v\n", credentials.ProviderVolcengine, err)
		os.Exit(1)
	}
	fmt.Printf("%s credentials stored for region %s\n", credentials.ProviderVolcengine, creds.Region)
}

func pick(flagValue, envKey string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(envKey))
}
