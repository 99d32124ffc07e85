package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/brightsidebudget/bsb/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
