// Command vstructured is the process entrypoint for the virtual structure
// service: load configuration, open the database, ensure schema, run the
// startup prepopulation hook, then serve HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimbusgraph/vstructure/internal/httpapi"
	"github.com/nimbusgraph/vstructure/internal/structure/prepopulate"
	"github.com/nimbusgraph/vstructure/internal/structure/service"
	"github.com/nimbusgraph/vstructure/internal/structure/store"
	"github.com/nimbusgraph/vstructure/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logLine("ERROR", "config_load_failed", "err=%s", err.Error())
		os.Exit(1)
	}

	dialect, err := store.ParseDialect(cfg.DBDialect)
	if err != nil {
		logLine("ERROR", "unsupported_dialect", "err=%s", err.Error())
		os.Exit(1)
	}

	driverName := "sqlite3"
	if dialect == store.DialectPostgres {
		driverName = "postgres"
	}
	db, err := sql.Open(driverName, cfg.DBDSN)
	if err != nil {
		logLine("ERROR", "db_open_failed", "err=%s", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	if dialect == store.DialectSQLite {
		// mattn/go-sqlite3 serializes writers at the file level; capping the
		// pool at one connection avoids SQLITE_BUSY churn under concurrent
		// handlers instead of relying on _busy_timeout alone.
		db.SetMaxOpenConns(1)
	}

	st := store.Open(db, dialect)
	ctx := context.Background()
	if err := st.EnsureSchema(ctx); err != nil {
		logLine("ERROR", "schema_ensure_failed", "err=%s", err.Error())
		os.Exit(1)
	}

	svc := service.New(st)

	if err := prepopulate.Run(ctx, cfg, svc); err != nil {
		logLine("ERROR", "prepopulation_failed", "err=%s", err.Error())
		os.Exit(1)
	}

	handler := httpapi.NewRouter(cfg, svc)
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-stop
		logLine("INFO", "shutting_down", "addr=%s", cfg.ListenAddr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logLine("INFO", "starting", "addr=%s route_prefix=%s dialect=%s", cfg.ListenAddr, cfg.RoutePrefix, dialect)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logLine("ERROR", "listen_failed", "err=%s", err.Error())
		os.Exit(1)
	}
}

func logLine(level, msg, format string, args ...any) {
	ts := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(os.Stdout, "%s %s %s %s\n", ts, level, msg, line)
}
