package config

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/validator"
)

type BrostarConfig struct {
	// API key used as the basic-auth password against the registry.
	APIKey     string `mapstructure:"api_key"    validate:"required"`
	Production bool   `mapstructure:"production"`
}

type LizardConfig struct {
	APIKey string `mapstructure:"api_key" validate:"required"`
	// Base URL of the tenant, e.g. https://vitens.lizard.net/api/v4
	URL string `mapstructure:"url"     validate:"required,url"`
}

type DeliveryConfig struct {
	// KvK number of the organisation accountable for deliveries.
	Organisation  string `mapstructure:"organisation"   validate:"required"`
	ProjectNumber string `mapstructure:"project_number" validate:"required"`
	QualityRegime string `mapstructure:"quality_regime" validate:"required,eq=IMBRO|eq=IMBRO/A"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Ceiling  time.Duration `mapstructure:"ceiling"`
}

type SlogConfig struct {
	Level int `mapstructure:"level"`
}

type LoggingConfig struct {
	App     SlogConfig `mapstructure:"app"`
	UseOTLP bool       `mapstructure:"use_otlp"`
}

// See brostarsync.example.yaml for an example config
type Config struct {
	Brostar  *BrostarConfig  `mapstructure:"brostar"  validate:"required"`
	Lizard   *LizardConfig   `mapstructure:"lizard"   validate:"required"`
	Delivery *DeliveryConfig `mapstructure:"delivery" validate:"required"`
	Poll     PollConfig      `mapstructure:"poll"`
	Logging  LoggingConfig   `mapstructure:"logging"`
}

const (
	AppLogLevel    string = "logging.app.level"
	BrostarAPIKey  string = "brostar.api_key"
	BrostarProd    string = "brostar.production"
	DeliveryRegime string = "delivery.quality_regime"
	EnvPrefix      string = "brostarsync"
	LizardAPIKey   string = "lizard.api_key"
	LizardURL      string = "lizard.url"
	PollCeiling    string = "poll.ceiling"
	PollInterval   string = "poll.interval"
	UseOTLP        string = "logging.use_otlp"
)

var configReady = false
var config Config

func GetConfig() (*Config, error) {
	if configReady {
		logger.Logger.Debug("returning already-loaded config")
		return &config, nil
	}
	logger.Logger.Info("loading config")

	v := viper.New()

	v.SetConfigName("brostarsync")

	v.AddConfigPath("/etc/brostarsync/")
	v.AddConfigPath(".")

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	// workaround for https://github.com/spf13/viper/issues/761
	// bind the secrets explicitly so they unmarshal into the nested structs
	err := v.BindEnv(BrostarAPIKey)
	if err != nil {
		return nil, err
	}
	err = v.BindEnv(LizardAPIKey)
	if err != nil {
		return nil, err
	}

	v.SetDefault(BrostarProd, false)
	v.SetDefault(DeliveryRegime, "IMBRO")
	v.SetDefault(PollInterval, 3*time.Second)
	v.SetDefault(PollCeiling, 45*time.Second)
	v.SetDefault(AppLogLevel, int(slog.LevelInfo))
	v.SetDefault(UseOTLP, false)

	err = v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		if _, ok := err.(*viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	valid := validator.Create()
	err = valid.Validate(&config)
	if err != nil {
		configReady = false
		return nil, err
	}

	configReady = true
	return &config, nil
}
