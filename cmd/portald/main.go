package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	api "github.com/examportal/examportal/internal/api/http"
	"github.com/examportal/examportal/internal/auth"
	"github.com/examportal/examportal/internal/config"
	"github.com/examportal/examportal/internal/db"
	"github.com/examportal/examportal/internal/exam"
	"github.com/examportal/examportal/internal/users"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.FromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	userStore := users.NewStore(dbh)
	created, err := userStore.EnsureDefaultAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		log.Fatalf("default admin: %v", err)
	}
	if created {
		log.Printf("created default admin %s", cfg.AdminEmail)
	}

	env := &api.Env{
		Cfg:      cfg,
		Sessions: auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL),
		Remember: auth.NewRememberIssuer(cfg.RememberSecret, cfg.RememberTTL),
		Users:    userStore,
		Exams:    exam.NewSQLStore(dbh, cfg.DBDriver),
	}

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, api.NewRouter(env)))
}
