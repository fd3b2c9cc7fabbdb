package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
)

// Version is set at build time
var Version = "dev"

func main() {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	SetVersion(Version)
	if err := fang.Execute(context.Background(), GetRootCmd()); err != nil {
		os.Exit(1)
	}
}
