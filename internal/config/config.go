package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	OllamaURL      string        `mapstructure:"OLLAMA_URL"`
	IntentModel    string        `mapstructure:"INTENT_MODEL"`
	MainModel      string        `mapstructure:"MAIN_MODEL"`
	RecommenderURL string        `mapstructure:"RECOMMENDER_URL"`
	Collection     string        `mapstructure:"RECOMMENDER_COLLECTION"`
	AlertRulesPath string        `mapstructure:"ALERT_RULES_PATH"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	InterpreterTimeout time.Duration `mapstructure:"INTERPRETER_TIMEOUT"`
	RecommenderTimeout time.Duration `mapstructure:"RECOMMENDER_TIMEOUT"`
	InventoryTimeout   time.Duration `mapstructure:"INVENTORY_TIMEOUT"`
	AuditTimeout       time.Duration `mapstructure:"AUDIT_TIMEOUT"`

	ApprovalSyncTTL time.Duration `mapstructure:"APPROVAL_SYNC_TTL"`
	ApprovalChatTTL time.Duration `mapstructure:"APPROVAL_CHAT_TTL"`
	SessionMaxTurns int           `mapstructure:"SESSION_MAX_TURNS"`
	SessionMaxAge   time.Duration `mapstructure:"SESSION_MAX_AGE"`

	AllocMaxShortages int `mapstructure:"ALLOC_MAX_SHORTAGES"`
	AllocMaxChanges   int `mapstructure:"ALLOC_MAX_CHANGES"`
	AllocMaxPerPair   int `mapstructure:"ALLOC_MAX_PER_PAIR"`

	GapSurplusFloor   int `mapstructure:"GAP_SURPLUS_FLOOR"`
	GapSurplusTrigger int `mapstructure:"GAP_SURPLUS_TRIGGER"`
	GapForcedNeed     int `mapstructure:"GAP_FORCED_NEED"`

	PrimaryBusinessCategory string `mapstructure:"PRIMARY_BUSINESS_CATEGORY"`
	ProactiveProcessOrder   string `mapstructure:"PROACTIVE_PROCESS_ORDER"`
	CapabilityProcesses     string `mapstructure:"CAPABILITY_PROCESSES"`
	RAGTopK                 int    `mapstructure:"RAG_TOP_K"`
	SelectorSeed            int64  `mapstructure:"SELECTOR_SEED"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("OLLAMA_URL", "")
	v.SetDefault("INTENT_MODEL", "qwen2:0.5b")
	v.SetDefault("MAIN_MODEL", "gemma2:2b")
	v.SetDefault("RECOMMENDER_URL", "")
	v.SetDefault("RECOMMENDER_COLLECTION", "aimee_knowledge")
	v.SetDefault("ALERT_RULES_PATH", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REQUEST_TIMEOUT", "60s")

	v.SetDefault("INTERPRETER_TIMEOUT", "30s")
	v.SetDefault("RECOMMENDER_TIMEOUT", "5s")
	v.SetDefault("INVENTORY_TIMEOUT", "10s")
	v.SetDefault("AUDIT_TIMEOUT", "5s")

	v.SetDefault("APPROVAL_SYNC_TTL", "1h")
	v.SetDefault("APPROVAL_CHAT_TTL", "24h")
	v.SetDefault("SESSION_MAX_TURNS", 100)
	v.SetDefault("SESSION_MAX_AGE", "24h")

	v.SetDefault("ALLOC_MAX_SHORTAGES", 5)
	v.SetDefault("ALLOC_MAX_CHANGES", 3)
	v.SetDefault("ALLOC_MAX_PER_PAIR", 2)
	v.SetDefault("GAP_SURPLUS_FLOOR", 2)
	v.SetDefault("GAP_SURPLUS_TRIGGER", 3)
	v.SetDefault("GAP_FORCED_NEED", 10)

	v.SetDefault("PRIMARY_BUSINESS_CATEGORY", "SS")
	v.SetDefault("PROACTIVE_PROCESS_ORDER", "entry-1,entry-2,correction,supervisor-correction")
	v.SetDefault("CAPABILITY_PROCESSES", "")
	v.SetDefault("RAG_TOP_K", 5)
	v.SetDefault("SELECTOR_SEED", 0)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate rejects tuning knobs whose zero or negative value would silently
// disable a limit downstream.
func (c Config) validate() error {
	positive := []struct {
		key string
		val int
	}{
		{"ALLOC_MAX_SHORTAGES", c.AllocMaxShortages},
		{"ALLOC_MAX_CHANGES", c.AllocMaxChanges},
		{"ALLOC_MAX_PER_PAIR", c.AllocMaxPerPair},
		{"GAP_SURPLUS_FLOOR", c.GapSurplusFloor},
		{"GAP_SURPLUS_TRIGGER", c.GapSurplusTrigger},
		{"GAP_FORCED_NEED", c.GapForcedNeed},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("config: %s must be positive, got %d", p.key, p.val)
		}
	}
	return nil
}

// List splits a comma separated setting, dropping blanks.
func List(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
