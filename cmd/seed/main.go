// Command seed creates user profiles for local runs and prints a token for
// each of them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/olekukonko/tablewriter"

	"github.com/johndosdos/cove/internal/auth"
	"github.com/johndosdos/cove/internal/backend"
	"github.com/johndosdos/cove/internal/broker"
	"github.com/johndosdos/cove/internal/database"
)

type config struct {
	DBURL     string `env:"DB_URL,required=true"`
	NATSURL   string `env:"NATS_URL,required=true"`
	NATSCred  string `env:"NATS_CRED"`
	JWTSecret string `env:"JWT_SECRET,required=true"`
	JWTIssuer string `env:"JWT_ISS,default=cove"`
}

type seedUser struct {
	Username    string
	DisplayName string
}

// userID derives a stable ID from the username so seeding twice updates the
// same profiles.
func userID(username string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("cove:user:"+strings.ToLower(username)))
}

// parseUsers reads "username[:Display Name]" entries separated by commas.
func parseUsers(s string) []seedUser {
	var users []seedUser
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		username, displayName, ok := strings.Cut(entry, ":")
		if !ok {
			displayName = username
		}
		users = append(users, seedUser{
			Username:    strings.TrimSpace(username),
			DisplayName: strings.TrimSpace(displayName),
		})
	}
	return users
}

func main() {
	if err := run(); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	users := flag.String("users", "alice:Alice,bob:Bob,carol:Carol", "comma separated username[:Display Name] list")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed tokens")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	var cfg config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("could not connect to the postgresql database: %w", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, stdlib.OpenDBFromPool(pool)); err != nil {
		return err
	}

	var natsOpts []nats.Option
	if cfg.NATSCred != "" {
		natsOpts = append(natsOpts, nats.UserCredentials(cfg.NATSCred))
	}
	conn, err := nats.Connect(cfg.NATSURL, natsOpts...)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	defer conn.Drain() //nolint:errcheck

	js, err := jetstream.New(conn)
	if err != nil {
		return fmt.Errorf("failed to create jetstream instance: %w", err)
	}
	if _, err := broker.EnsureStream(ctx, js); err != nil {
		return err
	}

	queries := database.New(pool)
	store := backend.New(slog.Default(), queries, queries, broker.New(js))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Username", "Display name", "ID", "Token"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	for _, u := range parseUsers(*users) {
		profile, err := store.CreateProfile(ctx, userID(u.Username), u.Username, u.DisplayName)
		if err != nil {
			return fmt.Errorf("seed [%s]: %w", u.Username, err)
		}
		token, err := auth.MakeJWT(profile.ID, cfg.JWTSecret, cfg.JWTIssuer, *tokenTTL)
		if err != nil {
			return fmt.Errorf("token for [%s]: %w", u.Username, err)
		}
		table.Append([]string{profile.Username, profile.DisplayName, profile.ID.String(), token})
	}

	table.Render()
	return nil
}
