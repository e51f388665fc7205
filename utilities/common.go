package utilities

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LogLevel defines the severity of a log message.
type LogLevel int

// Logging Level
const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	Fatal
)

// --- Types (Alphabetized) ---

// AppConfig is the root configuration structure, holding all other config sections.
type AppConfig struct {
	AppName     string         `mapstructure:"app_name"`
	Version     string         `mapstructure:"version"`
	Environment string         `mapstructure:"environment"`
	Discord     DiscordConfig  `mapstructure:"discord"`
	Journal     JournalConfig  `mapstructure:"journal"`
	Kraken      KrakenConfig   `mapstructure:"kraken"`
	Ledger      LedgerConfig   `mapstructure:"ledger"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Trading     TradingConfig  `mapstructure:"trading"`
}

// DiscordConfig holds settings for sending notifications via Discord.
type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

// JournalConfig holds settings for the SQLite cycle journal.
type JournalConfig struct {
	DBPath            string `mapstructure:"database_path"`
	RetentionDays     int    `mapstructure:"retention_days"`
	CleanupIntervalHr int    `mapstructure:"cleanup_interval_hours"`
}

// KrakenConfig holds all settings for the Kraken exchange integration.
type KrakenConfig struct {
	APIKey            string     `mapstructure:"api_key"`
	APISecret         string     `mapstructure:"api_secret"`
	BaseURL           string     `mapstructure:"base_url"`
	MaxRetries        int        `mapstructure:"max_retries"`
	RateBurst         int        `mapstructure:"rate_burst"`
	RateLimitPerSec   rate.Limit `mapstructure:"rate_limit_per_sec"`
	RequestTimeoutSec int        `mapstructure:"request_timeout_sec"`
	RetryDelaySec     int        `mapstructure:"retry_delay_sec"`
}

// KrakenNonceGenerator generates nonces for Kraken API requests.
type KrakenNonceGenerator struct {
	counter uint64
	mu      sync.Mutex
}

// LedgerConfig holds settings for the persisted tracking table.
type LedgerConfig struct {
	Path string `mapstructure:"path"`
}

// Logger provides a structured logger with different levels.
type Logger struct {
	Level  LogLevel
	Logger *log.Logger
}

// LoggingConfig holds settings related to logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// TradingConfig holds the exit-rule thresholds and polling parameters.
type TradingConfig struct {
	BaseCurrency        string  `mapstructure:"base_currency"`
	PollIntervalSeconds int     `mapstructure:"poll_interval_seconds"`
	DryRun              string  `mapstructure:"dry_run"`
	StopLossPct         float64 `mapstructure:"stop_loss_pct"`
	ArmThresholdPct     float64 `mapstructure:"arm_threshold_pct"`
	TrailingDropPct     float64 `mapstructure:"trailing_drop_pct"`
}

// Exit-rule defaults. Thresholds are inclusive: a position at exactly the
// stop-loss or arm boundary triggers.
const (
	DefaultStopLossPct     = -3.0
	DefaultArmThresholdPct = 5.0
	DefaultTrailingDropPct = 3.0
)

// ApplyDefaults fills in zero-valued trading parameters with the standard rule set.
func (t *TradingConfig) ApplyDefaults() {
	if t.BaseCurrency == "" {
		t.BaseCurrency = "USD"
	}
	t.BaseCurrency = strings.ToUpper(t.BaseCurrency)
	if t.PollIntervalSeconds <= 0 {
		t.PollIntervalSeconds = 60
	}
	if t.StopLossPct == 0 {
		t.StopLossPct = DefaultStopLossPct
	}
	if t.ArmThresholdPct == 0 {
		t.ArmThresholdPct = DefaultArmThresholdPct
	}
	if t.TrailingDropPct == 0 {
		t.TrailingDropPct = DefaultTrailingDropPct
	}
}

// --- Logger ---

// NewLogger creates a new Logger instance.
func NewLogger(level LogLevel) *Logger {
	return &Logger{
		Level:  level,
		Logger: log.New(os.Stdout, "[Kraken-Seller] ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// LogDebug logs a message at Debug level.
func (l *Logger) LogDebug(format string, v ...interface{}) {
	if l.Level <= Debug {
		_ = l.Logger.Output(2, fmt.Sprintf("[DEBUG] "+format, v...))
	}
}

// LogError logs a message at Error level.
func (l *Logger) LogError(format string, v ...interface{}) {
	if l.Level <= Error {
		_ = l.Logger.Output(2, fmt.Sprintf("[ERROR] "+format, v...))
	}
}

// LogFatal logs a message at Fatal level and then calls os.Exit(1).
func (l *Logger) LogFatal(format string, v ...interface{}) {
	_ = l.Logger.Output(2, fmt.Sprintf("[FATAL] "+format, v...))
	os.Exit(1)
}

// LogInfo logs a message at Info level.
func (l *Logger) LogInfo(format string, v ...interface{}) {
	if l.Level <= Info {
		_ = l.Logger.Output(2, fmt.Sprintf("[INFO] "+format, v...))
	}
}

// LogWarn logs a message at Warn level.
func (l *Logger) LogWarn(format string, v ...interface{}) {
	if l.Level <= Warn {
		_ = l.Logger.Output(2, fmt.Sprintf("[WARN] "+format, v...))
	}
}

// SetLogLevel updates the logging level of the logger.
func (l *Logger) SetLogLevel(level LogLevel) {
	l.Level = level
}

// ParseLogLevel converts a string log level to the LogLevel type.
func ParseLogLevel(levelStr string) (LogLevel, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return Debug, nil
	case "info":
		return Info, nil
	case "warn":
		return Warn, nil
	case "error":
		return Error, nil
	case "fatal":
		return Fatal, nil
	default:
		return Info, fmt.Errorf("invalid log level string: %s", levelStr)
	}
}

// --- Standalone Functions (Alphabetized) ---

// DoJSONRequest performs an HTTP request, retries on transient errors, and unmarshals a JSON response.
func DoJSONRequest(client *http.Client, req *http.Request, maxRetries int, retryDelay time.Duration, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		r := req
		if attempt > 0 && req.GetBody != nil {
			bodyReader, err := req.GetBody()
			if err != nil {
				return fmt.Errorf("retry %d: could not reset request body: %w", attempt, err)
			}
			r = req.Clone(req.Context())
			r.Body = bodyReader
		}

		resp, err := client.Do(r)
		if err != nil {
			lastErr = err
			time.Sleep(retryDelay)
			continue
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
			lastErr = fmt.Errorf("server error %d %s", resp.StatusCode, resp.Status)
			time.Sleep(retryDelay)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("http %d: %s", resp.StatusCode, string(snippet))
		}

		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode JSON response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("all retries failed: %w", lastErr)
}

// GenerateKrakenAuthHeaders builds the API-Key and API-Sign headers for Kraken private endpoints.
func GenerateKrakenAuthHeaders(apiKey, apiSecret, apiPath, nonce string, data url.Values) (map[string]string, error) {
	postData := data.Encode()
	sha256Hasher := sha256.New()
	sha256Hasher.Write([]byte(nonce + postData))
	shaSum := sha256Hasher.Sum(nil)

	message := append([]byte(apiPath), shaSum...)

	decodedSecret, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha512.New, decodedSecret)
	mac.Write(message)
	macSum := mac.Sum(nil)

	signature := base64.StdEncoding.EncodeToString(macSum)

	return map[string]string{
		"API-Key":  apiKey,
		"API-Sign": signature,
	}, nil
}

// NewNonceCounter creates a new KrakenNonceGenerator.
func NewNonceCounter() *KrakenNonceGenerator {
	return &KrakenNonceGenerator{counter: uint64(time.Now().UnixNano())}
}

// Nonce generates and returns a new unique nonce.
func (n *KrakenNonceGenerator) Nonce() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counter++
	return n.counter
}

// ParseFloatFromInterface is a helper function to parse float64 from various numeric types.
func ParseFloatFromInterface(val interface{}) (float64, error) {
	switch v := val.(type) {
	case string:
		return strconv.ParseFloat(v, 64)
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	default:
		return 0, fmt.Errorf("unsupported type for float conversion: %T", v)
	}
}

// ParseTruthy interprets a loosely-typed boolean flag. Only the enumerated set
// {1, true, yes, y, on} counts as true, compared case-insensitively; anything
// else, including the empty string, is false.
func ParseTruthy(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
