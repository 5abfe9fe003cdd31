package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Version is the version of the service, set at build time.
var Version string

// DefaultConfigPath is the default path to the service configuration file.
const DefaultConfigPath = "./config/surety.yml"

// DefaultEnvFile is the default dotenv file consulted for overrides. A
// missing file is not an error.
const DefaultEnvFile = ".env"

// Environment variables overriding the corresponding file settings.
const (
	EnvLedgerEndpoint = "SURETY_LEDGER_ENDPOINT"
	EnvAppContract    = "SURETY_APP_CONTRACT"
	EnvDataContract   = "SURETY_DATA_CONTRACT"
	EnvWalletPath     = "SURETY_WALLET_PATH"
	EnvWalletPassword = "SURETY_WALLET_PASSWORD"
	EnvLogLevel       = "SURETY_LOG_LEVEL"
)

// ErrInvalid is returned (wrapped) for every configuration that can't be used
// to start the service.
var ErrInvalid = errors.New("invalid configuration")

// Config is the top level service configuration.
type Config struct {
	Logger     Logger       `yaml:"Logger"`
	Ledger     Ledger       `yaml:"Ledger"`
	Oracle     Oracle       `yaml:"Oracle"`
	API        BasicService `yaml:"API"`
	Prometheus BasicService `yaml:"Prometheus"`
	Pprof      BasicService `yaml:"Pprof"`
}

// Logger contains logging settings.
type Logger struct {
	LogLevel    string `yaml:"LogLevel"`
	LogPath     string `yaml:"LogPath"`
	LogEncoding string `yaml:"LogEncoding"`
}

// Default returns the configuration with all defaults set. It's not valid
// on its own since contract hashes and wallet are not known.
func Default() Config {
	return Config{
		Logger: Logger{
			LogLevel:    "info",
			LogEncoding: "console",
		},
		Ledger: Ledger{
			DialTimeout:       5 * time.Second,
			RequestTimeout:    20 * time.Second,
			ReconnectInterval: 5 * time.Second,
			EventBufferSize:   DefaultEventBufferSize,
			DedupCacheSize:    DefaultDedupCacheSize,
			MaxSystemFee:      DefaultMaxSystemFee,
		},
		Oracle: Oracle{
			OracleCount:            DefaultOracleCount,
			Stake:                  DefaultStake,
			Flights:                []string{"Fly Airpeace", "Dana Airways", "Arik Air"},
			MaxConcurrentBootstrap: DefaultMaxConcurrentBootstrap,
		},
		API: BasicService{
			Enabled:   true,
			Addresses: []string{":3000"},
		},
	}
}

// LoadFile reads the configuration from the given YAML file, applies
// overrides from the default dotenv file and the environment and validates
// the result.
func LoadFile(path string) (Config, error) {
	return LoadFileWithEnv(path, DefaultEnvFile)
}

// LoadFileWithEnv is the same as LoadFile, but uses the specified dotenv file.
// An empty envFile disables dotenv processing, process environment is still
// applied.
func LoadFileWithEnv(path string, envFile string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if envFile != "" {
		// Load doesn't override variables that are already set.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for name, dst := range map[string]*string{
		EnvLedgerEndpoint: &c.Ledger.Endpoint,
		EnvAppContract:    &c.Ledger.AppContract,
		EnvDataContract:   &c.Ledger.DataContract,
		EnvWalletPath:     &c.Oracle.UnlockWallet.Path,
		EnvWalletPassword: &c.Oracle.UnlockWallet.Password,
		EnvLogLevel:       &c.Logger.LogLevel,
	} {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
}

// Validate checks that the configuration can be used to start the service.
func (c Config) Validate() error {
	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("%w: Ledger: %w", ErrInvalid, err)
	}
	if err := c.Oracle.Validate(); err != nil {
		return fmt.Errorf("%w: Oracle: %w", ErrInvalid, err)
	}
	if c.Logger.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.Logger.LogLevel); err != nil {
			return fmt.Errorf("%w: Logger: %w", ErrInvalid, err)
		}
	}
	switch c.Logger.LogEncoding {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: Logger: unknown LogEncoding %q", ErrInvalid, c.Logger.LogEncoding)
	}
	return nil
}
