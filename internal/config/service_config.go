package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is prepended to every environment variable, e.g. LEDGER_SIGNER_CHAIN_ID
const EnvPrefix = "LEDGER_SIGNER"

// DotEnvFile is loaded into the environment if present. Variables that are
// already set are not overridden.
const DotEnvFile = ".env"

type Chain struct {
	// ID is the EIP-155 chain id every transaction is signed for
	ID uint64 `mapstructure:"id" json:"id"`
}

type Resolver struct {
	BasePath    string `mapstructure:"base_path" json:"basePath"`
	SearchLimit int    `mapstructure:"search_limit" json:"searchLimit"`
	Iterator    string `mapstructure:"iterator" json:"iterator"` // "default" or "ledgerlive"
	Mode        string `mapstructure:"mode" json:"mode"`         // "device" or "xpub"
}

type Logger struct {
	Level              zerolog.Level `mapstructure:"-" json:"level"`
	LevelName          string        `mapstructure:"level" json:"-"`
	PrettyPrintConsole bool          `mapstructure:"pretty_print_console" json:"prettyPrintConsole"`
}

type Emulator struct {
	// Enabled replaces the USB device with the software emulator
	Enabled        bool   `mapstructure:"enabled" json:"enabled"`
	KeystorePath   string `mapstructure:"keystore_path" json:"keystorePath"`
	LegacyFirmware bool   `mapstructure:"legacy_firmware" json:"legacyFirmware"`
	// Password unlocks the keystore without a terminal prompt
	Password   string `mapstructure:"password" json:"-"`
	Passphrase string `mapstructure:"passphrase" json:"-"` // BIP39 passphrase
}

type Metrics struct {
	// ListenAddress serves /metrics if not empty
	ListenAddress string `mapstructure:"listen_address" json:"listenAddress"`
}

type Service struct {
	Chain    Chain    `mapstructure:"chain" json:"chain"`
	Resolver Resolver `mapstructure:"resolver" json:"resolver"`
	Logger   Logger   `mapstructure:"logger" json:"logger"`
	Emulator Emulator `mapstructure:"emulator" json:"emulator"`
	Metrics  Metrics  `mapstructure:"metrics" json:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain.id", 1337)

	v.SetDefault("resolver.base_path", "m/44'/60'/0'/0/0")
	v.SetDefault("resolver.search_limit", 1000)
	v.SetDefault("resolver.iterator", "default")
	v.SetDefault("resolver.mode", "device")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.pretty_print_console", false)

	v.SetDefault("emulator.enabled", false)
	v.SetDefault("emulator.keystore_path", "keystore.json")
	v.SetDefault("emulator.legacy_firmware", false)
	v.SetDefault("emulator.password", "")
	v.SetDefault("emulator.passphrase", "")

	v.SetDefault("metrics.listen_address", "")
}

// LoadServiceConfig reads the configuration from defaults, the optional config
// file (yaml or toml, by extension) and LEDGER_SIGNER_* environment variables,
// in increasing order of precedence
func LoadServiceConfig(configFile string) (Service, error) {
	if err := gotenv.Load(DotEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Service{}, errors.Wrapf(err, "failed to load %s", DotEnvFile)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Service{}, errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	var cfg Service
	if err := v.Unmarshal(&cfg); err != nil {
		return Service{}, errors.Wrap(err, "failed to decode configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logger.LevelName)
	if err != nil {
		return Service{}, errors.Wrapf(err, "invalid logger.level %q", cfg.Logger.LevelName)
	}
	cfg.Logger.Level = level

	return cfg, nil
}

// DefaultServiceConfigFromEnv returns the service config from the environment only
func DefaultServiceConfigFromEnv() Service {
	cfg, err := LoadServiceConfig("")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load service config")
	}

	return cfg
}
