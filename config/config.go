// anytrack/config/config.go
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Config struct {
	APIURL          string        `mapstructure:"API_URL"`
	DownloadDir     string        `mapstructure:"DOWNLOAD_DIR"`
	MaxUploadSize   int64         `mapstructure:"MAX_UPLOAD_SIZE"`
	MaxDownloadSize int64         `mapstructure:"MAX_DOWNLOAD_SIZE"`
	MinFreeDisk     int64         `mapstructure:"MIN_FREE_DISK"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	Port            string        `mapstructure:"PORT"`
	AuthEnable      bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey         string        `mapstructure:"AUTH_KEY"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
}

// stringToDurationHookFunc parses Go duration strings such as "90s".
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc parses human-readable sizes such as "500MB".
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// Not a size string, let other parsers handle it.
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

// Load reads defaults, then anytrack_config.yaml, then ANYTRACK_* env vars.
// configFile, when non-empty, replaces the search path.
func Load(configFile string) (*Config, error) {
	vp := viper.New()

	vp.SetDefault("API_URL", "http://localhost:8080")
	vp.SetDefault("DOWNLOAD_DIR", ".")
	vp.SetDefault("MAX_UPLOAD_SIZE", "500MB")
	vp.SetDefault("MAX_DOWNLOAD_SIZE", "2GB")
	vp.SetDefault("MIN_FREE_DISK", "50MB")
	vp.SetDefault("REQUEST_TIMEOUT", "0s")
	vp.SetDefault("PORT", "8090")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")
	vp.SetDefault("LOG_LEVEL", "info")

	if configFile != "" {
		vp.SetConfigFile(configFile)
		if err := vp.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		vp.SetConfigName("anytrack_config")
		vp.SetConfigType("yaml")
		vp.AddConfigPath(".")
		vp.AddConfigPath("/etc/anytrack/")
		if err := vp.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	vp.SetEnvPrefix("ANYTRACK")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
