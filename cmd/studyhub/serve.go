package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/pavelanni/studyhub/internal/handler"
	appI18n "github.com/pavelanni/studyhub/internal/i18n"
	"github.com/pavelanni/studyhub/internal/llm"
	"github.com/pavelanni/studyhub/internal/llm/prompts"
	"github.com/pavelanni/studyhub/internal/model"
	"github.com/pavelanni/studyhub/internal/scheduler"
	"github.com/pavelanni/studyhub/internal/store"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the backend API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "studyhub.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Question bank files to import at startup (JSON or XLSX, repeatable)")
	f.StringP("lang", "l", "en", "Default API message language (en, zh)")
	f.String("jwt-secret", "", "HS256 secret for bearer tokens (or set STUDYHUB_JWT_SECRET)")
	f.Bool("allow-anonymous", true, "Accept the X-Client-Session header when no token is given")
	f.Int("max-page-size", 200, "Upper bound for question search page_size")
	f.Duration("session-ttl", 24*time.Hour, "Purge sessions without answers older than this")
	f.Duration("purge-interval", scheduler.DefaultInterval, "How often empty sessions are purged")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "", "LLM model used to explain questions without an explanation (empty disables)")
	f.String("prompt-variant", string(prompts.VariantBrief), "Explanation prompt variant (brief, detailed)")
	addLogFlags(cmd, "info")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := loadQuestions(db, v.GetStringSlice("questions")); err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	var explainer handler.Explainer
	if modelName := v.GetString("llm-model"); modelName != "" {
		variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
		if !prompts.IsValidVariant(variant) {
			slog.Warn("invalid prompt-variant, using brief", "variant", variant)
		}
		explainer = llm.New(v.GetString("llm-url"), v.GetString("llm-key"), modelName, variant)
		slog.Info("explanations enabled", "url", v.GetString("llm-url"), "model", modelName)
	}

	secret := v.GetString("jwt-secret")
	if secret == "" {
		slog.Warn("no jwt secret configured, bearer tokens will be rejected")
	}
	cfg := model.ServerConfig{
		JWTSecret:      secret,
		AllowAnonymous: v.GetBool("allow-anonymous"),
		MaxPageSize:    v.GetInt("max-page-size"),
		SessionTTL:     v.GetDuration("session-ttl"),
	}
	h := handler.New(db, explainer, cfg)

	sched := scheduler.New(db, cfg.SessionTTL, v.GetDuration("purge-interval"))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"allow_anonymous", cfg.AllowAnonymous,
		"session_ttl", cfg.SessionTTL,
		"explanations", explainer != nil,
	)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
