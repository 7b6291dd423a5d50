package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/pos-backend/internal/apikeys"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "apikey"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "list", "api key command: issue|list|revoke")
	name := flag.String("name", "", "register name (for issue)")
	prefix := flag.String("prefix", "", "key prefix (for revoke)")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "apikey",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	svc, err := apikeys.NewService(apikeys.NewRepository(dbClient.DB()), cfg.APIKey, nil, logg)
	requireResource(ctx, logg, "api key service", err)

	switch *cmd {
	case "issue":
		issued, err := svc.Issue(ctx, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("issued key %s for %s\n", issued.Key.Prefix, issued.Key.Name)
		fmt.Println("token (shown once):", issued.Token)

	case "list":
		keys, err := svc.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
			os.Exit(1)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PREFIX\tNAME\tCREATED\tREVOKED")
		for _, key := range keys {
			revoked := "-"
			if key.RevokedAt != nil {
				revoked = key.RevokedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key.Prefix, key.Name, key.CreatedAt.UTC().Format(time.RFC3339), revoked)
		}
		_ = w.Flush()

	case "revoke":
		if *prefix == "" {
			fmt.Fprintln(os.Stderr, "missing -prefix for revoke")
			os.Exit(1)
		}
		if err := svc.Revoke(ctx, *prefix); err != nil {
			fmt.Fprintf(os.Stderr, "revoke failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("revoked key", *prefix)

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
