package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads a .env file into the process environment when one exists in
// the working directory. Variables already set in the environment win.
func LoadEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load()
}
