package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appI18n "github.com/pavelanni/studyhub/internal/i18n"
	"github.com/pavelanni/studyhub/internal/kv"
	"github.com/pavelanni/studyhub/internal/model"
	"github.com/pavelanni/studyhub/internal/practice"
	"github.com/pavelanni/studyhub/internal/remote"
	"github.com/pavelanni/studyhub/internal/store"
)

const clientIDKey = "clientId"

// addClientFlags registers the flags shared by commands that run the
// practice engine.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("server", "http://localhost:8080", "Backend base URL (empty runs fully offline)")
	f.String("token", "", "Bearer token identifying the user (or set STUDYHUB_TOKEN)")
	f.String("client-id", "", "Anonymous client id (generated and remembered when empty)")
	f.String("kv", "studyhub-local.db", "Local state: sqlite file path, \"memory\", or redis://host:port/db")
	f.Duration("kv-ttl", 0, "Expiry for Redis-backed local state (0 keeps it)")
	f.StringP("lang", "l", "", "Message language (en, zh; defaults to $LANG)")
	f.Duration("timeout", 10*time.Second, "Backend request timeout")
}

// openKV opens the local state backend named by target.
func openKV(ctx context.Context, target string, ttl time.Duration) (kv.Store, func() error, error) {
	switch {
	case target == "memory":
		return kv.NewMemory(), func() error { return nil }, nil
	case strings.HasPrefix(target, "redis://"), strings.HasPrefix(target, "rediss://"):
		r, err := kv.NewRedis(ctx, target, ttl)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		s, err := store.New(target)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// resolveIdentity derives the identity from the token subject, the client-id
// flag, or a client id remembered in base.
func resolveIdentity(ctx context.Context, base kv.Store, token, clientID string) (model.Identity, error) {
	if token != "" {
		claims := &jwt.RegisteredClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return model.Identity{}, fmt.Errorf("parse token: %w", err)
		}
		if claims.Subject == "" {
			return model.Identity{}, fmt.Errorf("token has no subject")
		}
		return model.Identity{UserID: claims.Subject}, nil
	}
	if clientID != "" {
		return model.Identity{ClientSessionID: clientID}, nil
	}

	raw, ok, err := base.Get(ctx, clientIDKey)
	if err != nil {
		return model.Identity{}, fmt.Errorf("read client id: %w", err)
	}
	if ok && len(raw) > 0 {
		return model.Identity{ClientSessionID: string(raw)}, nil
	}
	id := uuid.NewString()
	if err := base.Set(ctx, clientIDKey, []byte(id)); err != nil {
		return model.Identity{}, fmt.Errorf("store client id: %w", err)
	}
	slog.Info("generated anonymous client id", "client_id", id)
	return model.Identity{ClientSessionID: id}, nil
}

type engineEnv struct {
	engine   *practice.Engine
	identity model.Identity
	online   bool
	close    func() error
}

// newEngine wires a practice engine to local state and, when a server is
// configured, to the backend.
func newEngine(ctx context.Context, v *viper.Viper) (*engineEnv, error) {
	base, closeKV, err := openKV(ctx, v.GetString("kv"), v.GetDuration("kv-ttl"))
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	token := v.GetString("token")
	id, err := resolveIdentity(ctx, base, token, v.GetString("client-id"))
	if err != nil {
		_ = closeKV()
		return nil, err
	}

	cfg := practice.Config{
		Store:  kv.Namespace(base, id.Owner()),
		Logger: slog.Default(),
	}
	online := false
	if server := v.GetString("server"); server != "" {
		opts := []remote.Option{
			remote.WithLogger(slog.Default().With("component", "remote")),
			remote.WithHTTPClient(&http.Client{Timeout: v.GetDuration("timeout")}),
		}
		if token != "" {
			opts = append(opts, remote.WithToken(token))
		} else {
			opts = append(opts, remote.WithClientSession(id.ClientSessionID))
		}
		c := remote.New(server, opts...)
		cfg.Questions = c
		cfg.Judge = c
		cfg.Sessions = c
		cfg.Mirror = c
		online = true
	}

	e, err := practice.New(cfg)
	if err != nil {
		_ = closeKV()
		return nil, err
	}
	return &engineEnv{engine: e, identity: id, online: online, close: closeKV}, nil
}

// withLanguage initializes translations and stores the language chosen by
// flag, falling back to $LANG.
func withLanguage(ctx context.Context, lang string) (context.Context, error) {
	if err := appI18n.Init("en"); err != nil {
		return ctx, fmt.Errorf("init i18n: %w", err)
	}
	if lang == "" {
		lang, _, _ = strings.Cut(os.Getenv("LANG"), ".")
		lang = strings.ReplaceAll(lang, "_", "-")
	}
	return appI18n.WithLanguage(ctx, appI18n.Match(lang)), nil
}
