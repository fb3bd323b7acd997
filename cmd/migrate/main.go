package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/rijksuitgaven/mailengine/internal/config"
	"github.com/rijksuitgaven/mailengine/internal/migrations"
)

const usage = `usage: migrate [-config file] <command>

commands:
  up          apply all pending migrations (default)
  down [n]    roll back n migrations (default 1)
  version     print the applied version`

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	runner, err := migrations.NewRunner(migrations.FS, "sql", cfg.Database.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer runner.Close()

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	switch cmd {
	case "up":
		err = runner.Up()
	case "down":
		steps := 1
		if arg := flag.Arg(1); arg != "" {
			steps, err = strconv.Atoi(arg)
			if err != nil {
				log.Fatalf("invalid step count %q", arg)
			}
		}
		err = runner.Down(steps)
	case "version":
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}

	v, dirty, err := runner.Version()
	if err != nil {
		log.Fatalf("read version: %v", err)
	}
	fmt.Printf("version %d (dirty: %t)\n", v, dirty)
}
