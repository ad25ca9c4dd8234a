package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LedgerConfig selects and configures the ledger backend
type LedgerConfig struct {
	Backend       string
	FilePath      string
	S3Bucket      string
	S3Key         string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// S3Config is shared by every component that talks to S3.
// Empty values fall back to the standard AWS config chain.
type S3Config struct {
	Region       string
	Profile      string
	UsePathStyle bool
}

// HTTPConfig tunes outbound requests to the disclosure portals
type HTTPConfig struct {
	Timeout           time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
	RequestsPerSecond float64
	UserAgent         string
	PageSize          int
}

// SourcesConfig locates the disclosure portals
type SourcesConfig struct {
	HKEXBaseURL       string
	HKEXCompanyName   string
	CNINFOSearchURLs  []string
	EastmoneyAPIURL   string
	StockCode         string
	EastmoneyDaysBack int
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	APIURL   string
}

type WebhookConfig struct {
	URL       string
	AuthToken string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type ArchiveConfig struct {
	Bucket string
	Prefix string
}

type ServerConfig struct {
	Port         string
	CronSchedule string
}

// Config is built once at process start and passed by value to constructors
type Config struct {
	DataDir       string
	Ledger        LedgerConfig
	S3            S3Config
	HTTP          HTTPConfig
	Sources       SourcesConfig
	Telegram      TelegramConfig
	Webhook       WebhookConfig
	Kafka         KafkaConfig
	Archive       ArchiveConfig
	ConsoleNotify bool
	Taxonomy      Taxonomy
	TestMode      bool
	LogLevel      string
	Server        ServerConfig
}

// Load reads configuration from the environment. Files named in envFiles (or
// .env when none are given) are loaded first; a missing file is not an error.
func Load(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function
func FromEnv(getenv func(string) string) (Config, error) {
	env := envReader{getenv: getenv}

	dataDir := env.getStr("DATA_DIR", DefaultDataDir)
	cfg := Config{
		DataDir: dataDir,
		Ledger: LedgerConfig{
			Backend:       strings.ToLower(env.getStr("LEDGER_BACKEND", LedgerBackendFile)),
			FilePath:      env.getStr("LEDGER_FILE", filepath.Join(dataDir, LedgerFileName)),
			S3Bucket:      env.getStr("LEDGER_S3_BUCKET", ""),
			S3Key:         env.getStr("LEDGER_S3_KEY", DefaultLedgerS3Key),
			RedisAddr:     env.getStr("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env.getStr("REDIS_PASS", ""),
			RedisDB:       env.getInt("REDIS_DB", 0),
			RedisKey:      env.getStr("LEDGER_REDIS_KEY", DefaultLedgerRedisKey),
		},
		S3: S3Config{
			Region:       env.getStr("S3_REGION", ""),
			Profile:      env.getStr("S3_PROFILE", ""),
			UsePathStyle: env.getBool("S3_USE_PATH_STYLE", false),
		},
		HTTP: HTTPConfig{
			Timeout:           env.getSeconds("REQUEST_TIMEOUT_SECONDS", DefaultRequestTimeout),
			RetryAttempts:     env.getInt("RETRY_ATTEMPTS", DefaultRetryAttempts),
			RetryDelay:        env.getSeconds("RETRY_DELAY_SECONDS", DefaultRetryDelay),
			RequestsPerSecond: env.getFloat("REQUESTS_PER_SECOND", DefaultRequestsPerSecond),
			UserAgent:         env.getStr("USER_AGENT", DefaultUserAgent),
			PageSize:          env.getInt("PAGE_SIZE", DefaultPageSize),
		},
		Sources: SourcesConfig{
			HKEXBaseURL:     strings.TrimRight(env.getStr("HKEX_BASE_URL", HKEXBaseURL), "/"),
			HKEXCompanyName: env.getStr("HKEX_COMPANY_NAME", DefaultHKEXCompanyName),
			CNINFOSearchURLs: env.getList("CNINFO_SEARCH_URLS", []string{
				"http://www.cninfo.com.cn/new/fulltextSearch?notautosubmit=&keyword=Yonyou",
				"http://www.cninfo.com.cn/new/fulltextSearch?notautosubmit=&keyword=用友网络",
			}),
			EastmoneyAPIURL:   env.getStr("EASTMONEY_API_URL", DefaultEastmoneyAPIURL),
			StockCode:         env.getStr("STOCK_CODE", DefaultStockCode),
			EastmoneyDaysBack: env.getInt("EASTMONEY_DAYS_BACK", DefaultEastmoneyDaysBack),
		},
		Telegram: TelegramConfig{
			BotToken: env.getStr("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   env.getStr("TELEGRAM_CHAT_ID", ""),
			APIURL:   strings.TrimRight(env.getStr("TELEGRAM_API_URL", DefaultTelegramAPIURL), "/"),
		},
		Webhook: WebhookConfig{
			URL:       env.getStr("WEBHOOK_URL", ""),
			AuthToken: env.getStr("WEBHOOK_AUTH_TOKEN", ""),
		},
		Kafka: KafkaConfig{
			Brokers: env.getList("KAFKA_BOOTSTRAP_SERVERS", nil),
			Topic:   env.getStr("KAFKA_TOPIC", DefaultKafkaTopic),
		},
		Archive: ArchiveConfig{
			Bucket: env.getStr("ARCHIVE_S3_BUCKET", ""),
			Prefix: env.getStr("ARCHIVE_S3_PREFIX", ""),
		},
		ConsoleNotify: env.getBool("CONSOLE_NOTIFY", false),
		TestMode:      env.getBool("TEST_MODE", false),
		LogLevel:      env.getStr("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:         env.getStr("PORT", DefaultPort),
			CronSchedule: env.getStr("CRON_SCHEDULE", DefaultCronSchedule),
		},
	}

	cfg.Taxonomy = DefaultTaxonomy()
	if path := env.getStr("TAXONOMY_FILE", ""); path != "" {
		t, err := LoadTaxonomyFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg.Taxonomy = t
	}

	if err := env.err(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c Config) Validate() error {
	if err := c.Taxonomy.Validate(); err != nil {
		return fmt.Errorf("taxonomy: %w", err)
	}
	switch c.Ledger.Backend {
	case LedgerBackendFile:
		if c.Ledger.FilePath == "" {
			return fmt.Errorf("ledger: file backend needs a path")
		}
	case LedgerBackendS3:
		if c.Ledger.S3Bucket == "" {
			return fmt.Errorf("ledger: s3 backend needs LEDGER_S3_BUCKET")
		}
	case LedgerBackendRedis:
		if c.Ledger.RedisAddr == "" {
			return fmt.Errorf("ledger: redis backend needs REDIS_ADDR")
		}
	default:
		return fmt.Errorf("ledger: unknown backend %q", c.Ledger.Backend)
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http: request timeout must be positive")
	}
	if c.HTTP.RetryAttempts < 1 {
		return fmt.Errorf("http: retry attempts must be at least 1")
	}
	if c.HTTP.PageSize < 1 {
		return fmt.Errorf("http: page size must be at least 1")
	}
	return nil
}

// envReader collects the first parse error instead of failing on each lookup
type envReader struct {
	getenv   func(string) string
	firstErr error
}

func (e *envReader) getStr(key, defaultVal string) string {
	if val := strings.TrimSpace(e.getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func (e *envReader) getInt(key string, defaultVal int) int {
	val := strings.TrimSpace(e.getenv(key))
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		e.fail(key, err)
		return defaultVal
	}
	return n
}

func (e *envReader) getFloat(key string, defaultVal float64) float64 {
	val := strings.TrimSpace(e.getenv(key))
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		e.fail(key, err)
		return defaultVal
	}
	return f
}

func (e *envReader) getBool(key string, defaultVal bool) bool {
	val := strings.TrimSpace(e.getenv(key))
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		e.fail(key, err)
		return defaultVal
	}
	return b
}

func (e *envReader) getSeconds(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(e.getenv(key))
	if val == "" {
		return defaultVal
	}
	secs, err := strconv.ParseFloat(val, 64)
	if err != nil || secs < 0 {
		if err == nil {
			err = fmt.Errorf("negative duration")
		}
		e.fail(key, err)
		return defaultVal
	}
	return time.Duration(secs * float64(time.Second))
}

func (e *envReader) getList(key string, defaultVal []string) []string {
	val := strings.TrimSpace(e.getenv(key))
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (e *envReader) fail(key string, err error) {
	if e.firstErr == nil {
		e.firstErr = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (e *envReader) err() error { return e.firstErr }
