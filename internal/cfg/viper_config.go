package cfg

import (
	"fmt"
	"os"
	"strings"

	"tubefetch/internal/domain/consts"
	"tubefetch/internal/domain/keys"
	"tubefetch/internal/domain/logger"
	"tubefetch/internal/domain/paths"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// newViper returns a viper instance that also reads TUBEFETCH_* variables,
// e.g. TUBEFETCH_BACKEND_URL for --backend-url.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(consts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// bindFlags binds each named flag to the viper key of the same name.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, names ...string) {
	for _, name := range names {
		f := fs.Lookup(name)
		if f == nil {
			panic(fmt.Sprintf("flag %q is not defined", name))
		}
		if err := v.BindPFlag(name, f); err != nil {
			panic(fmt.Sprintf("failed to bind flag %q: %v", name, err))
		}
	}
}

// loadConfigFile reads the --config file, or the default config file when
// one exists. Any viper supported format is accepted.
func loadConfigFile(v *viper.Viper) error {
	configFile := v.GetString(keys.ConfigFile)
	if configFile == "" {
		if paths.ConfigFilePath == "" {
			return nil
		}
		if _, err := os.Stat(paths.ConfigFilePath); err != nil {
			return nil
		}
		configFile = paths.ConfigFilePath
	}

	cInfo, err := os.Stat(configFile)
	if err != nil {
		return fmt.Errorf("failed check for config file path: %w", err)
	}
	if cInfo.IsDir() {
		return fmt.Errorf("config file %q is a directory, should be a file", configFile)
	}

	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed loading config file %q: %w", configFile, err)
	}
	logger.Pl.D(1, "Loaded config file %q", configFile)
	return nil
}
