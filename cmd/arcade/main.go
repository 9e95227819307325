package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/config"
	"github.com/notepid/twilight_arcade/internal/console"
	"github.com/notepid/twilight_arcade/internal/db"
	"github.com/notepid/twilight_arcade/internal/keylock"
	"github.com/notepid/twilight_arcade/internal/ledger"
	"github.com/notepid/twilight_arcade/internal/moderation"
	"github.com/notepid/twilight_arcade/internal/reminder"
	"github.com/notepid/twilight_arcade/internal/scripting"
	"github.com/notepid/twilight_arcade/internal/server"
	"github.com/notepid/twilight_arcade/internal/session"
	"github.com/notepid/twilight_arcade/internal/todo"
	"github.com/notepid/twilight_arcade/internal/transport"
)

// shutdownGrace gives consoles a moment to print the shutdown notice.
const shutdownGrace = 500 * time.Millisecond

// settingsPoll is how often admin tool edits are picked up.
const settingsPoll = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Paths.Data, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	database, err := db.Open(cfg.Paths.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	log.Printf("Database opened: %s", cfg.Paths.Database)

	settings, err := database.GetArcadeSettings()
	if err != nil {
		log.Fatalf("Failed to load arcade settings: %v", err)
	}
	log.Printf("Starting %s (operator: %s)", settings.Name, settings.Operator)

	accounts := account.NewRepo(database.DB)
	mod := moderation.NewService(database.DB, cfg.Admin.BootstrapIDs)
	hub := transport.NewHub(settings.MaxNodes)

	var locks keylock.Locker = keylock.NewLocal()
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("Failed to reach Redis at %s: %v", cfg.Redis.Addr, err)
		}
		locks = keylock.NewRedis(rdb, "arcade:lock")
		log.Printf("Using Redis user locks at %s", cfg.Redis.Addr)
	}

	scheduler := reminder.NewScheduler(reminder.NewRepo(database.DB), hub)
	defer scheduler.Stop()
	if cfg.Reminders.ResumePending {
		n, err := scheduler.Resume(context.Background())
		if err != nil {
			log.Fatalf("Failed to resume reminders: %v", err)
		}
		log.Printf("Resumed %d pending reminders", n)
	}

	var replier session.Replier
	if r, err := scripting.NewReplier(cfg.Paths.Scripts, accounts); err != nil {
		log.Printf("Free-text replies disabled: %v", err)
	} else {
		defer r.Close()
		replier = r
	}

	manager := session.NewManager(session.Deps{
		Accounts:   accounts,
		Ledger:     ledger.New(database.DB),
		Moderation: mod,
		Todos:      todo.NewRepo(database.DB),
		Reminders:  scheduler,
		Renderer:   hub,
		Replier:    replier,
		Locks:      locks,
		ArcadeName: settings.Name,
	})
	cons := console.New(hub, accounts, manager, settings.Name)
	cons.SetWelcome(settings.Welcome)

	telnetListener := server.NewListener(cfg.Server.TelnetPort, cons.ServeTelnet)
	sshListener, err := server.NewSSHListener(
		cfg.Server.SSHPort,
		filepath.Join(cfg.Paths.Data, "ssh_host_key"),
		accounts,
		cons.ServeSSH,
	)
	if err != nil {
		log.Fatalf("Failed to create SSH listener: %v", err)
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := database.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, "ok nodes=%d/%d\n", hub.Count(), hub.MaxNodes())
	})
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 2 * time.Second,
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sigCtx.Done()
		log.Printf("Received shutdown signal, notifying %d connections", hub.Count())
		hub.Broadcast("The arcade is shutting down NOW. Goodbye!")
		time.Sleep(shutdownGrace)
		cancel()
	}()

	g, ctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return telnetListener.ListenAndServe(ctx) })
	g.Go(func() error { return sshListener.ListenAndServe(ctx) })
	g.Go(func() error {
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		database.WatchSettings(ctx, settingsPoll, *settings, func(s db.ArcadeSettings) {
			if s.MaxNodes != hub.MaxNodes() {
				log.Printf("Node limit changed to %d", s.MaxNodes)
				hub.SetMaxNodes(s.MaxNodes)
			}
			cons.SetWelcome(s.Welcome)
		})
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return healthServer.Shutdown(shutCtx)
	})

	fmt.Printf("\n%s is running\n", settings.Name)
	fmt.Printf("  Telnet: port %d\n", cfg.Server.TelnetPort)
	fmt.Printf("  SSH:    port %d\n", cfg.Server.SSHPort)
	fmt.Printf("  Health: port %d\n", cfg.Server.HealthPort)
	fmt.Printf("  Nodes:  %d\n", settings.MaxNodes)
	fmt.Println("\nPress Ctrl+C to shut down.")

	if err := g.Wait(); err != nil {
		log.Printf("Server error: %v", err)
	}
	log.Printf("%s shut down complete.", settings.Name)
}
