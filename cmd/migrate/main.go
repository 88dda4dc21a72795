// migrate applies Huddle's embedded SQL migrations; go run ./cmd/migrate -direction up.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"huddle/cmd/internal/app"
	"huddle/cmd/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "env:", err)
		os.Exit(1)
	}

	dsn := app.EnvString("HUDDLE_DATABASE_URL", "")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "HUDDLE_DATABASE_URL is not set; create a .env or export it")
		os.Exit(1)
	}

	if err := migrate.Run(dsn, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
