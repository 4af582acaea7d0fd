package main

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// maxEnvSearchDepth is how many parent directories are searched for a .env file.
const maxEnvSearchDepth = 5

// loadDotEnv loads the nearest .env file, if any. Variables already set in
// the environment win.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < maxEnvSearchDepth+1; i++ {
		envFile := filepath.Join(dir, ".env")
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}
