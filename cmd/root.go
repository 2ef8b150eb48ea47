package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/jobmatch/internal/enrichment"
	"github.com/spigell/jobmatch/internal/matching"
	"github.com/spigell/jobmatch/internal/scheduler"
	"github.com/spigell/jobmatch/internal/store"
)

const (
	app       = "jobmatch"
	envPrefix = "JOBMATCH"
)

type Config struct {
	Store       StoreConfig           `mapstructure:"store"`
	TablesFile  string                `mapstructure:"tables-file"`
	Filters     FiltersConfig         `mapstructure:"filters"`
	Profile     matching.Profile      `mapstructure:"profile"`
	Preferences *matching.Preferences `mapstructure:"preferences"`
	AI          *AIConfig             `mapstructure:"ai"`
	Enrichment  EnrichmentConfig      `mapstructure:"enrichment"`
	RedisURL    string                `mapstructure:"redis-url"`
	Server      ServerConfig          `mapstructure:"server"`
	Schedule    string                `mapstructure:"schedule"`
}

type StoreConfig struct {
	Driver          string `mapstructure:"driver"`
	DatabaseURL     string `mapstructure:"database-url"`
	DatabaseURLFile string `mapstructure:"database-url-file"`
	MaxConns        int32  `mapstructure:"max-conns"`
	JobsTable       string `mapstructure:"jobs-table"`
	ProfilesTable   string `mapstructure:"profiles-table"`
	File            string `mapstructure:"file"`
	PageSize        int    `mapstructure:"page-size"`
}

type FiltersConfig struct {
	Sources          []string `mapstructure:"sources"`
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
	ExcludeFile      string   `mapstructure:"exclude-file"`
	DeriveSkills     bool     `mapstructure:"derive-skills"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type EnrichmentConfig struct {
	TopK    int           `mapstructure:"top-k"`
	Delay   time.Duration `mapstructure:"delay"`
	LockTTL time.Duration `mapstructure:"lock-ttl"`

	// JobLimit and Version drive the per-job structured mode.
	JobLimit int `mapstructure:"job-limit"`
	Version  int `mapstructure:"version"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobmatch scores job offers against a candidate profile and enriches companies with AI outreach suggestions",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("store.driver", "file")
	viper.SetDefault("store.file", "jobs.json")
	viper.SetDefault("store.database-url", "")
	viper.SetDefault("store.database-url-file", "")
	viper.SetDefault("store.max-conns", 4)
	viper.SetDefault("store.page-size", store.DefaultPageSize)
	viper.SetDefault("tables-file", "")
	viper.SetDefault("filters.exclude-file", "")
	viper.SetDefault("filters.derive-skills", false)
	viper.SetDefault("ai.enabled", false)
	viper.SetDefault("ai.gemini.api-key-file", "")
	viper.SetDefault("ai.gemini.model", "")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("enrichment.top-k", enrichment.DefaultTopK)
	viper.SetDefault("enrichment.delay", enrichment.DefaultDelay)
	viper.SetDefault("enrichment.lock-ttl", enrichment.DefaultLockTTL)
	viper.SetDefault("enrichment.job-limit", enrichment.DefaultJobLimit)
	viper.SetDefault("enrichment.version", enrichment.DefaultVersion)
	viper.SetDefault("redis-url", "")
	viper.SetDefault("server.addr", ":8000")
	viper.SetDefault("schedule", scheduler.DefaultSpec)
}

func initConfig() {
	// A missing .env is fine, values may come from the environment itself.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app)
	viper.SetConfigType("yaml")

	// The default config file is optional, an explicit one is not.
	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
