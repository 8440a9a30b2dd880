package cmd

import (
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/apply-copilot/internal/jobinfo"
	"github.com/spigell/apply-copilot/internal/logger"
	"github.com/spigell/apply-copilot/internal/render"
	"github.com/spigell/apply-copilot/internal/session"
)

const (
	app       = "apply-copilot"
	envPrefix = "APPLY_COPILOT"
)

type Config struct {
	SettingsFile string         `mapstructure:"settings-file"`
	Browser      *BrowserConfig `mapstructure:"browser"`
	Control      *ControlConfig `mapstructure:"control"`
	AI           *AIConfig      `mapstructure:"ai"`
	Scan         *ScanConfig    `mapstructure:"scan"`
	Render       *render.Config `mapstructure:"render"`
}

type BrowserConfig struct {
	Bin        string `mapstructure:"bin"`
	Headless   bool   `mapstructure:"headless"`
	ProfileDir string `mapstructure:"profile-dir"`
	StartURL   string `mapstructure:"start-url"`
	ControlURL string `mapstructure:"control-url"`
}

type ControlConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type AIConfig struct {
	Provider       string        `mapstructure:"provider"`
	APIKeyFile     string        `mapstructure:"api-key-file"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	MaxLogLength   int           `mapstructure:"max-log-length"`
	Gemini         *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	Model string `mapstructure:"model"`
}

type ScanConfig struct {
	Debounce                  time.Duration   `mapstructure:"debounce"`
	Delays                    []time.Duration `mapstructure:"delays"`
	ExtractDelay              time.Duration   `mapstructure:"extract-delay"`
	GenericContainerMinLength int             `mapstructure:"generic-container-min-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "apply-copilot drafts answers for open-ended job application questions in a live browser",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is apply-copilot.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("settings-file", "", "path of the settings store (default is apply-copilot/settings.json in the user config dir)")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("settings-file", rootCmd.PersistentFlags().Lookup("settings-file"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("settings-file", defaultSettingsFile())
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.profile-dir", "")
	v.SetDefault("browser.start-url", "about:blank")
	v.SetDefault("browser.control-url", "")
	v.SetDefault("control.enabled", true)
	v.SetDefault("control.host", "127.0.0.1")
	v.SetDefault("control.port", 8765)
	v.SetDefault("ai.provider", providerRelay)
	v.SetDefault("ai.api-key-file", "")
	v.SetDefault("ai.request-timeout", 60*time.Second)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.gemini.model", "")
	v.SetDefault("scan.debounce", session.DefaultDebounce)
	v.SetDefault("scan.delays", session.DefaultScanDelays)
	v.SetDefault("scan.extract-delay", session.DefaultExtractDelay)
	v.SetDefault("scan.generic-container-min-length", jobinfo.DefaultGenericContainerMinLength)
	v.SetDefault("render.timeout", render.DefaultTimeout)
	v.SetDefault("render.settle", render.DefaultSettle)
	v.SetDefault("render.headless", true)
	v.SetDefault("render.bin", "")
}

func defaultSettingsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, app, "settings.json")
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless one was given explicitly.
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

// newLogger builds the logger from the persistent flags.
func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}
