package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL      string // あればPOSTGRES_*より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string
	DBMaxOpenConns   int
	RunMigrations    bool

	JWTSecret string // JWT署名シークレット

	GoEnv string // dev/prod

	RedisAddr           string // 空ならキャッシュなし
	RedisIdempotencyTTL time.Duration

	KafkaBrokers        []string // 空ならイベント送信なし
	KafkaTopicOrders    string
	KafkaTopicInventory string

	//Txリトライ
	TxMaxAttempts    int
	TxInitialBackoff time.Duration
	TxMaxBackoff     time.Duration
	TxTimeout        time.Duration
}

// Loadは環境変数
func Load() (Config, error) {
	var err error
	cfg := Config{
		Port: getenv("PORT", "8080"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       getenv("POSTGRES_DB", "storefront"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		GoEnv:     os.Getenv("GO_ENV"),

		RedisAddr:           os.Getenv("REDIS_ADDR"),
		KafkaBrokers:        splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicOrders:    getenv("KAFKA_TOPIC_ORDERS", "storefront.orders"),
		KafkaTopicInventory: getenv("KAFKA_TOPIC_INVENTORY", "storefront.inventory"),
	}

	if cfg.PostgresPort, err = atoiOr("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxOpenConns, err = atoiOr("DB_MAX_OPEN_CONNS", 20); err != nil {
		return Config{}, err
	}
	if cfg.RunMigrations, err = boolOr("RUN_MIGRATIONS", true); err != nil {
		return Config{}, err
	}
	if cfg.RedisIdempotencyTTL, err = durationOr("REDIS_IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.TxMaxAttempts, err = atoiOr("TX_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.TxInitialBackoff, err = durationOr("TX_INITIAL_BACKOFF", 20*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.TxMaxBackoff, err = durationOr("TX_MAX_BACKOFF", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.TxTimeout, err = durationOr("TX_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	//必須チェック
	if c.DatabaseURL == "" && c.PostgresPassword == "" {
		return fmt.Errorf("DATABASE_URL or POSTGRES_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.GoEnv == "" {
		return fmt.Errorf("GO_ENV is required")
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be >= 1")
	}
	if c.TxInitialBackoff <= 0 || c.TxMaxBackoff < c.TxInitialBackoff {
		return fmt.Errorf("TX_INITIAL_BACKOFF must be > 0 and <= TX_MAX_BACKOFF")
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("TX_TIMEOUT must be > 0")
	}
	return nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// DATABASE_URL があれば最優先で使う
func (c Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// ":8080" 形式
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func boolOr(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be bool: %w", key, err)
	}
	return b, nil
}

// "20ms" "1s" など
func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
