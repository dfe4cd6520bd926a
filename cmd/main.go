// marketplace-service
//
// Job marketplace core: job posting, provider applications and selection,
// notifications and real-time chat.
//
//	marketplace serve                 HTTP :PORT, gRPC :GRPC_PORT, retention cron
//	marketplace serve --in-memory     same, on the in-process store
//	marketplace migrate up|status     goose migrations against DATABASE_URL
//
// With REDIS_URL set, listings are cached in Redis and live frames are
// relayed over Redis Pub/Sub so every replica delivers to its own sockets.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"servicemarket/marketplace-service/internal/app"
	"servicemarket/marketplace-service/internal/config"
	"servicemarket/marketplace-service/internal/db"
	"servicemarket/marketplace-service/internal/store"
	"servicemarket/marketplace-service/internal/store/memstore"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "marketplace",
		Short:        "Job marketplace core service",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")

	root.AddCommand(serveCmd(&configPath), migrateCmd(&configPath))
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	var inMemory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, WebSocket and gRPC servers",
		RunE: func(*cobra.Command, []string) error {
			return serve(*configPath, inMemory)
		},
	}
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "use the in-process store instead of PostgreSQL")
	return cmd
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|status",
		Short:     "Apply or report database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{db.MigrateUp, db.MigrateStatus},
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath, false)
			if err != nil {
				return err
			}
			log.Printf("[marketplace] Running migrate %s from %s…", args[0], cfg.MigrationsDir)
			return db.Migrate(cfg.DatabaseURL, cfg.MigrationsDir, args[0])
		},
	}
}

func serve(configPath string, inMemory bool) error {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load(configPath, inMemory)
	if err != nil {
		log.Printf("[marketplace] Config error: %v", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Store ────────────────────────────────────────────────────────────────
	var st store.Store
	if cfg.InMemory {
		log.Println("[marketplace] Using in-memory store")
		st = memstore.New()
	} else {
		log.Println("[marketplace] Connecting to PostgreSQL…")
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("[marketplace] PostgreSQL: %v", err)
			return err
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
		log.Println("[marketplace] PostgreSQL connected ✓")
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Printf("[marketplace] Redis: %v", err)
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		log.Println("[marketplace] Redis connected ✓")
	} else {
		log.Println("[marketplace] REDIS_URL not set, caching and live delivery are process-local")
	}

	// ── Servers ──────────────────────────────────────────────────────────────
	a := app.New(cfg, st, rdb)
	log.Printf("[marketplace] v%s listening on :%s (gRPC :%s)", app.Version, cfg.Port, cfg.GRPCPort)
	if err := a.Run(ctx); err != nil {
		log.Printf("[marketplace] Server error: %v", err)
		return err
	}
	log.Println("[marketplace] Stopped.")
	return nil
}
