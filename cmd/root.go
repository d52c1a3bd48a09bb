package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/cv-coach/internal/remote"
)

const (
	app = "cv-coach"
)

type Config struct {
	APIURL    string        `mapstructure:"api-url"`
	TokenFile string        `mapstructure:"token-file"`
	Token     string        `mapstructure:"token"`
	UserAgent string        `mapstructure:"user-agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate-limit"`
	Journal   string        `mapstructure:"journal"`
	Paths     *remote.Paths `mapstructure:"paths"`
	Retry     *RetryConfig  `mapstructure:"retry"`
	AI        *AIConfig     `mapstructure:"ai"`
}

type RetryConfig struct {
	AnswerAttempts   int           `mapstructure:"answer-attempts"`
	PositionAttempts int           `mapstructure:"position-attempts"`
	Backoff          time.Duration `mapstructure:"backoff"`
}

type AIConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Gemini  *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-coach takes resumable mock interviews generated from your CV",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"api-url":                "CV_COACH_API_URL",
		"token-file":             "CV_COACH_TOKEN_FILE",
		"token":                  "CV_COACH_TOKEN",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("api-url", "http://127.0.0.1:8000/api/cv")
	viper.SetDefault("timeout", 10*time.Second)
	viper.SetDefault("rate-limit", 5)
	viper.SetDefault("journal", "~/.cv-coach/journal.db")
	viper.SetDefault("retry.answer-attempts", 3)
	viper.SetDefault("retry.position-attempts", 2)
	viper.SetDefault("retry.backoff", 500*time.Millisecond)
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-log-length", 200)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-coach.yaml in current directory or ~/.cv-coach)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// A missing .env is fine; values may come from the real environment.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.cv-coach")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults are enough to talk to a local store, so only a broken config is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
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
