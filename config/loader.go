package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/odpf/salt/config"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	DefaultFilename      = "priest"
	DefaultFileExtension = "yaml"
	DefaultEnvPrefix     = "PRIEST"
	EmptyPath            = ""
)

var (
	FS       = afero.NewReadOnlyFs(afero.NewOsFs())
	execPath string
	homePath string
)

func init() {
	p, err := os.Executable()
	if err != nil {
		panic(err)
	}
	execPath = p

	p, err = os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	homePath = p
}

// LoadServerConfig load the server specific config from these locations:
// 1. filepath. ./priest serve -c "path/to/config.yaml"
// 2. env var. eg. PRIEST_BROKER_HOSTNAME, PRIEST_DB_DSN, etc
// 3. executable binary location
// 4. home dir
func LoadServerConfig(filePath string) (*ServerConfig, error) {
	return loadServerConfigFs(FS, filePath)
}

func loadServerConfigFs(fs afero.Fs, filePath string) (*ServerConfig, error) {
	cfg := &ServerConfig{}

	// getViperWithDefault + SetFs
	v := viper.New()
	v.SetFs(fs)

	opts := []config.LoaderOption{
		config.WithViper(v),
		config.WithName(DefaultFilename),
		config.WithType(DefaultFileExtension),
		config.WithEnvPrefix(DefaultEnvPrefix),
		config.WithEnvKeyReplacer(".", "_"),
	}

	// load opt from filepath if exist
	if filePath != EmptyPath {
		if err := validateFilepath(fs, filePath); err != nil {
			return nil, err // if filepath not valid, returns err
		}
		opts = append(opts, config.WithFile(filePath))
	} else {
		// load opt from exec & home directory
		opts = append(opts, config.WithPath(execPath), config.WithPath(homePath))
	}

	// load the config
	l := config.NewLoader(opts...)
	if err := l.Load(cfg); err != nil {
		return nil, err
	}

	cfg.Log.Level = LogLevel(strings.ToUpper(string(cfg.Log.Level)))
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}

func validateFilepath(fs afero.Fs, fpath string) error {
	f, err := fs.Stat(fpath)
	if err != nil {
		return err
	}
	if !f.Mode().IsRegular() {
		return fmt.Errorf("%s not a file", fpath)
	}
	return nil
}
