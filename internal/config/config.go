// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken   = "TELEGRAM_TOKEN"
	KeyAuthPassword    = "AUTH_PASSWORD"
	KeyStorageRoot     = "STORAGE_ROOT"
	KeyAppEnv          = "APP_ENV"
	KeyLogLevel        = "LOG_LEVEL"
	KeyHTTPPort        = "HTTP_PORT"
	KeyAuthStore       = "AUTH_STORE"
	KeyAuthFile        = "AUTH_FILE"
	KeyMongoURI        = "MONGO_URI"
	KeyMongoDB         = "MONGO_DB"
	KeyPrintDriver     = "PRINT_DRIVER"
	KeyPrintCommand    = "PRINT_COMMAND"
	KeyPrinterName     = "PRINTER_NAME"
	KeyIPPHost         = "IPP_HOST"
	KeyIPPPort         = "IPP_PORT"
	KeyPrintCountMode  = "PRINT_COUNT_MODE"
	KeyRetentionDays   = "RETENTION_DAYS"
	KeyChromeRemoteURL = "CHROME_REMOTE_URL"
	KeyChromeNoSandbox = "CHROME_NO_SANDBOX"
	KeyRenderTimeout   = "RENDER_TIMEOUT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Authorization store backends.
	AuthStoreFile  = "file"
	AuthStoreMongo = "mongo"

	// Print dispatch drivers.
	PrintDriverCommand = "command"
	PrintDriverIPP     = "ipp"

	// Print counting policies. Attempted counts a print before the spooler
	// accepts it and never rolls the counter back; succeeded counts only
	// accepted jobs.
	PrintCountAttempted = "attempted"
	PrintCountSucceeded = "succeeded"

	// Defaults for optional settings.
	DefaultAppEnv         = EnvProduction
	DefaultLogLevel       = "info"
	DefaultHTTPPort       = 8080
	DefaultAuthStore      = AuthStoreFile
	DefaultAuthFile       = "./authorizedChatIds.json"
	DefaultPrintDriver    = PrintDriverCommand
	DefaultPrintCommand   = "lp"
	DefaultIPPHost        = "localhost"
	DefaultIPPPort        = 631
	DefaultPrintCountMode = PrintCountAttempted
	DefaultRenderTimeout  = 30 * time.Second
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
	Secret      bool   // redacted when printed
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
		Secret:      true,
	},
	{
		Key:         KeyAuthPassword,
		Example:     "s3cret",
		Required:    true,
		Description: "Shared secret accepted by /autorizar.",
		Secret:      true,
	},
	{
		Key:         KeyStorageRoot,
		Example:     "./AllFiles",
		Required:    true,
		Description: "Directory holding submitted documents and their info.yaml records.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/metrics port.",
	},
	{
		Key:         KeyAuthStore,
		Example:     AuthStoreFile + " / " + AuthStoreMongo,
		Default:     DefaultAuthStore,
		Description: "Backend of the authorized chat list.",
	},
	{
		Key:         KeyAuthFile,
		Example:     DefaultAuthFile,
		Default:     DefaultAuthFile,
		Description: "JSON array of authorized chats when AUTH_STORE=file.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string.",
		Notes:       "Required when AUTH_STORE=" + AuthStoreMongo + ".",
		Secret:      true,
	},
	{
		Key:         KeyMongoDB,
		Example:     "printrelay",
		Description: "MongoDB database name.",
		Notes:       "Required when AUTH_STORE=" + AuthStoreMongo + ".",
	},
	{
		Key:         KeyPrintDriver,
		Example:     PrintDriverCommand + " / " + PrintDriverIPP,
		Default:     DefaultPrintDriver,
		Description: "How documents reach the printer: spool command or IPP queue.",
	},
	{
		Key:         KeyPrintCommand,
		Example:     DefaultPrintCommand,
		Default:     DefaultPrintCommand,
		Description: "Spool command used when PRINT_DRIVER=command.",
	},
	{
		Key:         KeyPrinterName,
		Example:     "Office_Laser",
		Description: "Destination printer; empty uses the spooler default.",
		Notes:       "Required when PRINT_DRIVER=" + PrintDriverIPP + ".",
	},
	{
		Key:         KeyIPPHost,
		Example:     DefaultIPPHost,
		Default:     DefaultIPPHost,
		Description: "IPP server host.",
	},
	{
		Key:         KeyIPPPort,
		Example:     strconv.Itoa(DefaultIPPPort),
		Default:     strconv.Itoa(DefaultIPPPort),
		Description: "IPP server port.",
	},
	{
		Key:         KeyPrintCountMode,
		Example:     PrintCountAttempted + " / " + PrintCountSucceeded,
		Default:     DefaultPrintCountMode,
		Description: "Whether a failed print still counts in TimesPrinted.",
	},
	{
		Key:         KeyRetentionDays,
		Example:     "2",
		Default:     "0",
		Description: "Days to keep submissions; 0 keeps them forever.",
	},
	{
		Key:         KeyChromeRemoteURL,
		Example:     "ws://chrome:9222",
		Description: "Remote Chrome DevTools endpoint; empty launches a local browser.",
	},
	{
		Key:         KeyChromeNoSandbox,
		Example:     "true",
		Default:     "false",
		Description: "Run the local Chrome without sandbox (containers running as root).",
	},
	{
		Key:         KeyRenderTimeout,
		Example:     DefaultRenderTimeout.String(),
		Default:     DefaultRenderTimeout.String(),
		Description: "Upper bound for rendering one photo page.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken   string
	AuthPassword    string
	StorageRoot     string
	AppEnv          string
	LogLevel        string
	HTTPPort        int
	AuthStore       string
	AuthFile        string
	MongoURI        string
	MongoDB         string
	PrintDriver     string
	PrintCommand    string
	PrinterName     string
	IPPHost         string
	IPPPort         int
	PrintCountMode  string
	RetentionDays   int
	ChromeRemoteURL string
	ChromeNoSandbox bool
	RenderTimeout   time.Duration
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:          firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken:   strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		AuthPassword:    strings.TrimSpace(os.Getenv(KeyAuthPassword)),
		StorageRoot:     strings.TrimSpace(os.Getenv(KeyStorageRoot)),
		LogLevel:        firstNonEmpty(os.Getenv(KeyLogLevel), DefaultLogLevel),
		HTTPPort:        DefaultHTTPPort,
		AuthStore:       firstNonEmpty(normalizeEnv(os.Getenv(KeyAuthStore)), DefaultAuthStore),
		AuthFile:        firstNonEmpty(os.Getenv(KeyAuthFile), DefaultAuthFile),
		MongoURI:        strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:         strings.TrimSpace(os.Getenv(KeyMongoDB)),
		PrintDriver:     firstNonEmpty(normalizeEnv(os.Getenv(KeyPrintDriver)), DefaultPrintDriver),
		PrintCommand:    firstNonEmpty(os.Getenv(KeyPrintCommand), DefaultPrintCommand),
		PrinterName:     strings.TrimSpace(os.Getenv(KeyPrinterName)),
		IPPHost:         firstNonEmpty(os.Getenv(KeyIPPHost), DefaultIPPHost),
		IPPPort:         DefaultIPPPort,
		PrintCountMode:  firstNonEmpty(normalizeEnv(os.Getenv(KeyPrintCountMode)), DefaultPrintCountMode),
		ChromeRemoteURL: strings.TrimSpace(os.Getenv(KeyChromeRemoteURL)),
		RenderTimeout:   DefaultRenderTimeout,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}
	if cfg.AuthPassword == "" {
		missing = append(missing, KeyAuthPassword)
	}
	if cfg.StorageRoot == "" {
		missing = append(missing, KeyStorageRoot)
	}

	switch cfg.AuthStore {
	case AuthStoreFile:
	case AuthStoreMongo:
		if cfg.MongoURI == "" {
			missing = append(missing, KeyMongoURI)
		}
		if cfg.MongoDB == "" {
			missing = append(missing, KeyMongoDB)
		}
	default:
		return Config{}, fmt.Errorf("invalid %s: must be %q or %q", KeyAuthStore, AuthStoreFile, AuthStoreMongo)
	}

	switch cfg.PrintDriver {
	case PrintDriverCommand:
	case PrintDriverIPP:
		if cfg.PrinterName == "" {
			missing = append(missing, KeyPrinterName)
		}
	default:
		return Config{}, fmt.Errorf("invalid %s: must be %q or %q", KeyPrintDriver, PrintDriverCommand, PrintDriverIPP)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if cfg.PrintCountMode != PrintCountAttempted && cfg.PrintCountMode != PrintCountSucceeded {
		return Config{}, fmt.Errorf("invalid %s: must be %q or %q", KeyPrintCountMode, PrintCountAttempted, PrintCountSucceeded)
	}

	if cfg.HTTPPort, err = positiveInt(KeyHTTPPort, DefaultHTTPPort); err != nil {
		return Config{}, err
	}
	if cfg.IPPPort, err = positiveInt(KeyIPPPort, DefaultIPPPort); err != nil {
		return Config{}, err
	}

	if raw := strings.TrimSpace(os.Getenv(KeyRetentionDays)); raw != "" {
		days, parseErr := strconv.Atoi(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyRetentionDays, parseErr)
		}
		if days < 0 {
			return Config{}, fmt.Errorf("%s must not be negative", KeyRetentionDays)
		}
		cfg.RetentionDays = days
	}

	if raw := strings.TrimSpace(os.Getenv(KeyChromeNoSandbox)); raw != "" {
		noSandbox, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyChromeNoSandbox, parseErr)
		}
		cfg.ChromeNoSandbox = noSandbox
	}

	if raw := strings.TrimSpace(os.Getenv(KeyRenderTimeout)); raw != "" {
		timeout, parseErr := time.ParseDuration(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyRenderTimeout, parseErr)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyRenderTimeout)
		}
		cfg.RenderTimeout = timeout
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// UsesMongo reports whether the authorized chat list lives in MongoDB.
func (c Config) UsesMongo() bool {
	return c.AuthStore == AuthStoreMongo
}

// FormatRedacted renders the resolved configuration with secrets masked.
func FormatRedacted(cfg Config) string {
	values := map[string]string{
		KeyTelegramToken:   cfg.TelegramToken,
		KeyAuthPassword:    cfg.AuthPassword,
		KeyStorageRoot:     cfg.StorageRoot,
		KeyAppEnv:          cfg.AppEnv,
		KeyLogLevel:        cfg.LogLevel,
		KeyHTTPPort:        strconv.Itoa(cfg.HTTPPort),
		KeyAuthStore:       cfg.AuthStore,
		KeyAuthFile:        cfg.AuthFile,
		KeyMongoURI:        cfg.MongoURI,
		KeyMongoDB:         cfg.MongoDB,
		KeyPrintDriver:     cfg.PrintDriver,
		KeyPrintCommand:    cfg.PrintCommand,
		KeyPrinterName:     cfg.PrinterName,
		KeyIPPHost:         cfg.IPPHost,
		KeyIPPPort:         strconv.Itoa(cfg.IPPPort),
		KeyPrintCountMode:  cfg.PrintCountMode,
		KeyRetentionDays:   strconv.Itoa(cfg.RetentionDays),
		KeyChromeRemoteURL: cfg.ChromeRemoteURL,
		KeyChromeNoSandbox: strconv.FormatBool(cfg.ChromeNoSandbox),
		KeyRenderTimeout:   cfg.RenderTimeout.String(),
	}

	var b strings.Builder
	for _, spec := range Contract {
		value := values[spec.Key]
		if spec.Secret && value != "" {
			value = "[redacted]"
		}
		fmt.Fprintf(&b, "%s=%s\n", spec.Key, value)
	}

	return strings.TrimRight(b.String(), "\n")
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func positiveInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return value, nil
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
