// Command migrate applies or reverts the embedded PostgreSQL schema
// migrations. Usage: migrate [up|down|status]
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"aegisid.org/internal/migrate"
	"aegisid.org/migrations/postgres"
)

func main() {
	flag.Parse()
	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	_ = godotenv.Load()
	dsn := os.Getenv("AEGIS_PG_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "migrate: AEGIS_PG_DSN is required")
		os.Exit(1)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	mgr := migrate.NewManager(db, postgres.Files)

	switch cmd {
	case "up":
		if err := mgr.Up(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migrations applied")
	case "down":
		if err := mgr.Down(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("last migration reverted")
	case "status":
		names, err := mgr.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		if len(names) == 0 {
			fmt.Println("no migrations applied")
			return
		}
		for _, name := range names {
			fmt.Println(name)
		}
	default:
		fmt.Fprintf(os.Stderr, "migrate: unknown command %q\n", cmd)
		os.Exit(1)
	}
}
