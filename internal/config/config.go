package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type RankingRules struct {
	PriceBase     float64 `mapstructure:"price_base"`
	PriceDivisor  float64 `mapstructure:"price_divisor"`
	RatingWeight  float64 `mapstructure:"rating_weight"`
	StockWeight   float64 `mapstructure:"stock_weight"`
	StockDivisor  float64 `mapstructure:"stock_divisor"`
	MaxCandidates int     `mapstructure:"max_candidates"`
}

type SubstitutionRules struct {
	PriceBand       float64 `mapstructure:"price_band"`
	MinSavingsPct   float64 `mapstructure:"min_savings_pct"`
	SimilarPricePct float64 `mapstructure:"similar_price_pct"`
	RatingDelta     float64 `mapstructure:"rating_delta"`
	MaxSuggestions  int     `mapstructure:"max_suggestions"`
}

// Rules holds the matching and ranking tuning tables. These are empirical
// constants without a derivable correct value, so they live in an optional
// YAML file instead of code.
type Rules struct {
	Categories   map[string][]string `mapstructure:"categories"`
	Ranking      RankingRules        `mapstructure:"ranking"`
	Substitution SubstitutionRules   `mapstructure:"substitution"`
}

type Config struct {
	DBPath     string
	RawMailDir string
	OutputDir  string
	RulesPath  string

	LogJSON  bool
	LogDebug bool

	FeedBaseURL      string
	FeedAPIToken     string
	FeedRateLimitRPS int
	FeedTimeoutMs    int

	GeminiAPIKey      string
	GeminiModel       string
	AIAssistThreshold float64

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool

	Rules Rules
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "app.db")),
		RawMailDir: getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		RulesPath:  getEnv("RULES_PATH", ""),

		LogJSON:  getEnvBool("LOG_JSON", false),
		LogDebug: getEnvBool("LOG_DEBUG", false),

		FeedBaseURL:      getEnv("FEED_API_BASE_URL", ""),
		FeedAPIToken:     getEnv("FEED_API_TOKEN", ""),
		FeedRateLimitRPS: getEnvInt("FEED_RATE_LIMIT_RPS", 5),
		FeedTimeoutMs:    getEnvInt("FEED_TIMEOUT_MS", 30000),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", ""),
		AIAssistThreshold: getEnvFloat("AI_ASSIST_THRESHOLD", 0.45),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 30),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 20),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
	}

	rules, err := LoadRules(cfg.RulesPath)
	if err != nil {
		return Config{}, err
	}
	cfg.Rules = rules

	return cfg, nil
}

// LoadRules reads the tuning tables from the given YAML file, falling back
// to the built-in defaults for anything the file does not set. An empty
// path means defaults only.
func LoadRules(path string) (Rules, error) {
	v := viper.New()
	setRuleDefaults(v)

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Rules{}, fmt.Errorf("read rules file %s: %w", path, err)
		}
	}

	var rules Rules
	if err := v.Unmarshal(&rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	if len(rules.Categories) == 0 {
		rules.Categories = defaultCategories()
	}
	return rules, nil
}

func setRuleDefaults(v *viper.Viper) {
	v.SetDefault("categories", defaultCategories())
	v.SetDefault("ranking.price_base", 100.0)
	v.SetDefault("ranking.price_divisor", 100.0)
	v.SetDefault("ranking.rating_weight", 30.0)
	v.SetDefault("ranking.stock_weight", 20.0)
	v.SetDefault("ranking.stock_divisor", 1000.0)
	v.SetDefault("ranking.max_candidates", 10)
	v.SetDefault("substitution.price_band", 1.10)
	v.SetDefault("substitution.min_savings_pct", 0.05)
	v.SetDefault("substitution.similar_price_pct", 0.05)
	v.SetDefault("substitution.rating_delta", 0.5)
	v.SetDefault("substitution.max_suggestions", 3)
}

func defaultCategories() map[string][]string {
	return map[string][]string{
		"steel":      {"steel", "rebar", "tmt", "rod", "bar", "angle", "channel", "beam", "girder"},
		"cement":     {"cement", "opc", "ppc", "concrete", "mortar", "grout"},
		"aggregates": {"sand", "aggregate", "gravel", "stone", "ballast", "dust", "chips"},
		"masonry":    {"brick", "block", "aac", "flyash", "paver", "tile"},
		"electrical": {"wire", "cable", "switch", "socket", "mcb", "conduit", "light", "fan"},
		"plumbing":   {"pipe", "cpvc", "pvc", "upvc", "valve", "fitting", "tap", "faucet", "tank"},
		"hardware":   {"nail", "screw", "bolt", "nut", "hinge", "tool", "adhesive", "binding"},
	}
}

// GuessCategory returns the first category whose keyword list hits a token
// of the description, or "other". The guess only biases catalog search, it
// never gates it.
func (r Rules) GuessCategory(tokens []string) string {
	for _, token := range tokens {
		for category, keywords := range r.Categories {
			for _, kw := range keywords {
				if token == kw {
					return category
				}
			}
		}
	}
	return "other"
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
