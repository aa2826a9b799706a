// Command loadtest posts messages back and forth between two users and
// reports how the server answered.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/johndosdos/cove/internal/auth"
)

type config struct {
	JWTSecret string `env:"JWT_SECRET,required=true"`
	JWTIssuer string `env:"JWT_ISS,default=cove"`
}

type result struct {
	status  int
	latency time.Duration
	err     error
}

type sender struct {
	id    uuid.UUID
	token string
}

func main() {
	if err := run(); err != nil {
		slog.Error("loadtest failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	from := flag.String("from", "", "first user ID")
	to := flag.String("to", "", "second user ID")
	n := flag.Int("n", 100, "number of messages")
	interval := flag.Duration("interval", 0, "pause between messages")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	var cfg config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	users := make([]sender, 0, 2)
	for _, raw := range []string{*from, *to} {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid user ID [%s]: %w", raw, err)
		}
		token, err := auth.MakeJWT(id, cfg.JWTSecret, cfg.JWTIssuer, time.Hour)
		if err != nil {
			return err
		}
		users = append(users, sender{id: id, token: token})
	}

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}
	results := make([]result, 0, *n)
	for i := range *n {
		s, peer := users[i%2], users[(i+1)%2]
		results = append(results, post(ctx, client, *baseURL, s, peer.id, fmt.Sprintf("message %d", i)))
		if *interval > 0 {
			time.Sleep(*interval)
		}
	}

	report(results)
	return nil
}

func post(ctx context.Context, client *http.Client, baseURL string, s sender, to uuid.UUID, text string) result {
	body, _ := json.Marshal(map[string]string{"content": text})
	url := baseURL + "/threads/" + to.String() + "/messages"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		return result{err: err, latency: time.Since(start)}
	}
	defer res.Body.Close()
	return result{status: res.StatusCode, latency: time.Since(start)}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)-1) * p)
	return sorted[i]
}

func report(results []result) {
	latencies := lo.Map(results, func(r result, _ int) time.Duration { return r.latency })
	slices.Sort(latencies)

	count := func(pred func(result) bool) string {
		return strconv.Itoa(lo.CountBy(results, pred))
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorder(false)
	table.AppendBulk([][]string{
		{"requests", strconv.Itoa(len(results))},
		{"created", count(func(r result) bool { return r.status == http.StatusCreated })},
		{"rate limited", count(func(r result) bool { return r.status == http.StatusTooManyRequests })},
		{"failed", count(func(r result) bool {
			return r.err != nil || (r.status != http.StatusCreated && r.status != http.StatusTooManyRequests)
		})},
		{"p50", percentile(latencies, 0.50).String()},
		{"p95", percentile(latencies, 0.95).String()},
		{"max", percentile(latencies, 1).String()},
	})
	table.Render()
}
