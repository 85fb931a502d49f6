package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/formsense/repcount/internal/api"
	"github.com/formsense/repcount/internal/config"
	"github.com/formsense/repcount/internal/db"
	"github.com/formsense/repcount/internal/engine"
	"github.com/formsense/repcount/internal/profile"
	"github.com/formsense/repcount/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "repcount.db", "Path to the sqlite database")
	configPath    = flag.String("config", "", "Path to a tuning config JSON file (defaults apply when empty)")
	migrationsDir = flag.String("migrations", "migrations", "Path to the schema migrations directory")
	runMigrations = flag.Bool("migrate", false, "Apply pending schema migrations before serving")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("repcount %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	var tuning *config.TuningConfig
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		log.Printf("Loaded tuning config from %s", *configPath)
	} else {
		tuning = config.EmptyTuningConfig()
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if *runMigrations {
		if err := database.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
		log.Print("Migrations applied")
	}

	registry, err := profile.NewRegistry(database)
	if err != nil {
		log.Fatalf("Failed to load exercise profiles: %v", err)
	}
	log.Printf("Loaded %d exercise profiles", registry.Len())

	manager := engine.NewManager(tuning, registry, database)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(manager, database).ServeMux()

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("Listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
