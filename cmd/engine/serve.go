package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"matscout-engine/internal/config"
	"matscout-engine/internal/curate"
	"matscout-engine/internal/events"
	"matscout-engine/internal/httpapi"
	"matscout-engine/internal/metrics"
	"matscout-engine/internal/notify"
	"matscout-engine/internal/quota"
	"matscout-engine/internal/scheduler"
	"matscout-engine/internal/secrets"
	"matscout-engine/internal/store"
	"matscout-engine/internal/worker"
)

func buildServeCommand() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine host: HTTP API, scheduler, worker supervision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "user config path (default <data-dir>/config.yml)")
	return cmd
}

func runServe(cfgPath string) error {
	dataDir := resolveDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	// Worker children resolve the same dir through the environment.
	os.Setenv("MATSCOUT_DATA_DIR", dataDir)

	userCfgPath := cfgPath
	if userCfgPath == "" {
		p, err := config.EnsureUserConfig(dataDir, filepath.Join("configs", "default.yml"))
		if err != nil {
			return fmt.Errorf("config bootstrap failed: %w", err)
		}
		userCfgPath = p
	}

	// Load config and keep it reloadable.
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		if err := config.OverlayInstructors(&cfg, filepath.Join(dataDir, "instructors.yml")); err != nil {
			log.Printf("[config] instructors overlay: %v", err)
		}
		cfg.App.DataDir = dataDir
		return cfg, nil
	}
	cfg, err := loadCfg()
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", userCfgPath, err)
	}
	cfgVal.Store(cfg)

	db, err := store.OpenAt(dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(db.Pool); err != nil {
		return err
	}
	if n, err := store.SeedDemand(context.Background(), db.Pool); err != nil {
		return fmt.Errorf("seed demand signals: %w", err)
	} else if n > 0 {
		log.Printf("[store] seeded %d demand signals", n)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub()
	collector := metrics.New()
	ledger := quota.NewLedger(db.Pool, cfg.Quota.DailyCeiling)
	orc := curate.NewOrchestrator(db.Pool, cfg.RunInterval())

	// Runs orphaned by a previous host (crash, power loss) are still
	// "running" in the store; close them before claiming new work.
	grace := cfg.WorkerTimeout() + 5*time.Minute
	if n, err := orc.ReconcileStale(ctx, grace); err != nil {
		log.Printf("[curate] startup reconcile: %v", err)
	} else if n > 0 {
		log.Printf("[curate] closed %d stale runs from a previous host", n)
	}

	if used, err := ledger.Used(ctx); err == nil {
		collector.SetQuotaUsed(used)
	}

	host := worker.NewHost(orc, hub, cfg.WorkerTimeout(), userCfgPath)
	host.OnClose = func(runID string, c store.RunClose) {
		collector.RunClosed(c)
		if used, err := ledger.Used(context.Background()); err == nil {
			collector.SetQuotaUsed(used)
		}

		cur := cfgVal.Load().(config.Config)
		if !cur.Email.Enabled {
			return
		}
		go func() {
			mailer := notify.New(notify.Config{
				Endpoint: cur.Email.Endpoint,
				APIKey:   secrets.GetOptional(secrets.AccountEmailAPI),
				From:     cur.Email.From,
				To:       cur.Email.To,
			})
			sctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
			defer cancel()
			if err := mailer.SendRunReport(sctx, runID, c); err != nil {
				log.Printf("[notify] run %s report: %v", runID, err)
			}
		}()
	}

	disp := &scheduler.Dispatcher{
		Orc:       orc,
		Hub:       hub,
		CfgVal:    &cfgVal,
		Collector: collector,
		Spawn:     host.Spawn,
	}
	go scheduler.Every(ctx, time.Minute, "dispatch", disp.DispatchScheduled)
	go scheduler.Every(ctx, 5*time.Minute, "reconcile", disp.Reconcile)

	api := httpapi.New(httpapi.Deps{
		DB:          db.Pool,
		Hub:         hub,
		Orc:         orc,
		Spawn:       host.Spawn,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
		Ledger:      ledger,
		Collector:   collector,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.App.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{ReadHeaderTimeout: 5 * time.Second}

	// The desktop shell stops the engine with POST /shutdown; the token
	// file keeps other local processes from doing the same.
	token, err := randomToken(16)
	if err != nil {
		return err
	}
	tokenPath := filepath.Join(dataDir, "shutdown.token")
	if err := os.WriteFile(tokenPath, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write shutdown token: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", api)
	mux.HandleFunc("/shutdown", shutdownHandler(token, srv))
	srv.Handler = mux

	log.Printf("engine listening on http://%s (data=%s)", addr, dataDir)

	go func() {
		<-ctx.Done()
		log.Printf("engine shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	_ = os.Remove(tokenPath)
	log.Printf("engine stopped")
	return nil
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func shutdownHandler(token string, srv *http.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Local-only guard (covers typical desktop usage)
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host != "127.0.0.1" && host != "::1" && host != "localhost" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		// Respond immediately, then shut down asynchronously.
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("shutting down\n"))

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}
}
