// cmd/tools/seed-requests/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"feed-sync/internal/common/config"
	"feed-sync/internal/common/database"
	"feed-sync/internal/common/logger"
	"feed-sync/internal/store"
	"feed-sync/pkg/registry"
)

// Fixture maps collection -> document id -> document body.
type Fixture map[string]map[string]map[string]interface{}

func main() {
	docsCmd := flag.NewFlagSet("docs", flag.ExitOnError)
	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	docsPath := docsCmd.String("file", "configs/fixtures.json", "Path to the fixture file")
	skipValidation := docsCmd.Bool("force", false, "Write documents that fail schema validation")

	tokenUID := tokenCmd.String("uid", "", "User id")
	tokenValue := tokenCmd.String("token", "", "SNS endpoint ARN for the user's device")

	validatePath := validateCmd.String("file", "configs/fixtures.json", "Path to the fixture file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "docs":
		docsCmd.Parse(os.Args[2:])
		fixture, err := loadFixture(*docsPath)
		if err != nil {
			fmt.Printf("Error loading fixture: %v\n", err)
			os.Exit(1)
		}
		if problems := validateFixture(registry.Default(), fixture); len(problems) > 0 && !*skipValidation {
			printProblems(problems)
			os.Exit(1)
		}
		n, err := writeFixture(ctx, fixture)
		if err != nil {
			fmt.Printf("Error writing documents: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded %d documents\n", n)

	case "token":
		tokenCmd.Parse(os.Args[2:])
		if *tokenUID == "" || *tokenValue == "" {
			fmt.Println("Error: uid and token are required.")
			tokenCmd.Usage()
			os.Exit(1)
		}
		if err := upsertToken(ctx, *tokenUID, *tokenValue); err != nil {
			fmt.Printf("Error storing token: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Stored push token for %s\n", *tokenUID)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		fixture, err := loadFixture(*validatePath)
		if err != nil {
			fmt.Printf("Error loading fixture: %v\n", err)
			os.Exit(1)
		}
		if problems := validateFixture(registry.Default(), fixture); len(problems) > 0 {
			printProblems(problems)
			os.Exit(1)
		}
		fmt.Println("Fixture is valid.")

	default:
		help()
		os.Exit(1)
	}
}

func help() {
	fmt.Println("Usage: seed-requests <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  docs      Write fixture documents to the configured store")
	fmt.Println("  token     Store a device push token in Postgres")
	fmt.Println("  validate  Check a fixture against the schema registry")
}

func loadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// validateFixture checks every document of a collection with a registered
// schema. Collections without one are written as-is.
func validateFixture(reg *registry.SchemaRegistry, f Fixture) []string {
	var problems []string
	for _, collection := range sortedKeys(f) {
		def, err := reg.ForCollection(collection)
		if err != nil {
			continue
		}
		docs := f[collection]
		ids := make([]string, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if err := reg.Validate(def.ID, docs[id]); err != nil {
				problems = append(problems, fmt.Sprintf("%s/%s: %v", collection, id, err))
			}
		}
	}
	return problems
}

func writeFixture(ctx context.Context, f Fixture) (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return 0, err
	}
	if cfg.Store.Backend != config.BackendRedis {
		return 0, fmt.Errorf("store.backend is %q; seeding needs the shared redis store", cfg.Store.Backend)
	}
	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		return 0, err
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		return 0, err
	}

	var w store.Writer = store.NewRedisStore(rdb.Client, cfg.Store.KeyPrefix, logger.NewNoOpLogger())
	n := 0
	for _, collection := range sortedKeys(f) {
		for id, data := range f[collection] {
			if err := w.Set(ctx, collection, id, data); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func upsertToken(ctx context.Context, uid, token string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Database.Postgres.Enabled() {
		return fmt.Errorf("database.postgres.host is not configured")
	}
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	if err := pg.EnsureTokenTable(ctx, cfg.Push.TokenTable); err != nil {
		return err
	}
	return pg.UpsertToken(ctx, cfg.Push.TokenTable, uid, token)
}

func printProblems(problems []string) {
	fmt.Printf("Fixture has %d invalid documents:\n", len(problems))
	for _, p := range problems {
		fmt.Printf("  - %s\n", p)
	}
}

func sortedKeys(f Fixture) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
