package db

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"github.com/Nex2i/dripiq-sub007/internal/config"
)

// Connect opens and pings the Postgres database. The handle is passed to
// repositories explicitly; there is no package-level singleton.
func Connect(cfg *config.Config) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	if err = conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	log.Println("✅ Connected to database")
	return conn, nil
}
