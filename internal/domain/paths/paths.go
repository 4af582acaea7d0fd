// Package paths initializes tubefetch's filepaths and directories.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tubefetch/internal/domain/consts"
)

const (
	tDir        = ".tubefetch"
	tDBFile     = "tubefetch.db"
	tLogFile    = "tubefetch.log"
	tConfigToml = "config.toml"
)

// File and directory path strings.
var (
	HomeProgDir    string
	DBFilePath     string
	LogFilePath    string
	ConfigFilePath string
)

// InitProgFilesDirs initializes necessary program directories and filepaths.
func InitProgFilesDirs() error {
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		return errors.New("failed to get home directory")
	}
	return initIn(userHomeDir)
}

func initIn(home string) error {
	HomeProgDir = filepath.Join(home, tDir)
	if _, err := os.Stat(HomeProgDir); os.IsNotExist(err) {
		if err := os.MkdirAll(HomeProgDir, consts.PermsHomeProgDir); err != nil {
			return fmt.Errorf("failed to make directories: %w", err)
		}
	}

	DBFilePath = filepath.Join(HomeProgDir, tDBFile)
	LogFilePath = filepath.Join(HomeProgDir, tLogFile)
	ConfigFilePath = filepath.Join(HomeProgDir, tConfigToml)
	return nil
}
