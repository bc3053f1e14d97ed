package main

import (
	"flag"

	"github.com/go-faster/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var storagePath, migrationPath string
	var down bool
	flag.StringVar(&storagePath, "storage", "", "postgres url of the rewards database")
	flag.StringVar(&migrationPath, "migrations", "./migrations", "path to migrations")
	flag.BoolVar(&down, "down", false, "roll every migration back")
	flag.Parse()

	if storagePath == "" {
		panic("storage path is required")
	}

	m, err := migrate.New("file://"+migrationPath, storagePath)
	if err != nil {
		panic(err)
	}
	defer m.Close()

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return
		}
		panic(err)
	}
}
