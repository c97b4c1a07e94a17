package config

import "time"

// Config is the top-level YAML structure.
type Config struct {
	Ledger     LedgerConf     `yaml:"ledger"`
	Classifier ClassifierConf `yaml:"classifier"`
	Fees       FeeConf        `yaml:"fees"`
	Growth     GrowthConf     `yaml:"growth"`
	Windows    WindowConf     `yaml:"windows"`
	Resolver   ResolverConf   `yaml:"resolver"`
	Log        LogConf        `yaml:"log"`
}

// LedgerConf configures the Sui JSON-RPC event source. Changes require a restart.
type LedgerConf struct {
	RPCURL    string `yaml:"rpc_url"`
	PackageID string `yaml:"package_id"`
	Module    string `yaml:"module"`
	PageLimit int    `yaml:"page_limit"`
	MaxPages  int    `yaml:"max_pages"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// MerchantType is the struct type listed as the entity directory, e.g.
	// "0xpkg::loyalty::MerchantCap". Empty disables the directory.
	MerchantType string `yaml:"merchant_type"`
	// RegistryType is the struct type of the on-chain analytics registry,
	// e.g. "0xpkg::analytics::AnalyticsRegistry". When set and found, the
	// platform snapshot is read from it instead of from events.
	RegistryType string `yaml:"registry_type"`
}

// ClassifierConf drives event classification and field extraction.
type ClassifierConf struct {
	EarnedOps          []string        `yaml:"earned_ops"`
	RedeemedOps        []string        `yaml:"redeemed_ops"`
	AmountField        string          `yaml:"amount_field"`
	ActorFields        []string        `yaml:"actor_fields"`
	CounterpartyFields []string        `yaml:"counterparty_fields"`
	RewardFields       []string        `yaml:"reward_fields"`
	FallbackAmounts    FallbackAmounts `yaml:"fallback_amounts"`
}

// FallbackAmounts are used when a record carries no readable amount.
// They are UI-derived approximations, not ledger facts.
type FallbackAmounts struct {
	Earned   uint64 `yaml:"earned"`
	Redeemed uint64 `yaml:"redeemed"`
}

// FeeConf is the fee schedule used for revenue estimates.
type FeeConf struct {
	EarnedRate         float64 `yaml:"earned_rate"`
	RedeemedRate       float64 `yaml:"redeemed_rate"`
	MerchantFeeRate    float64 `yaml:"merchant_fee_rate"`
	TransactionFee     float64 `yaml:"transaction_fee"`
	PremiumFeatureRate float64 `yaml:"premium_feature_rate"`
}

// GrowthConf controls degenerate-case handling of growth percentages.
type GrowthConf struct {
	Sentinel float64    `yaml:"sentinel"`
	Clamp    *ClampConf `yaml:"clamp,omitempty"`
}

// ClampConf bounds displayed growth percentages.
type ClampConf struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// WindowConf sets the number of buckets per granularity.
type WindowConf struct {
	Daily    int    `yaml:"daily"`
	Weekly   int    `yaml:"weekly"`
	Monthly  int    `yaml:"monthly"`
	Location string `yaml:"location"`
}

// ResolverConf configures the name resolution cache. Changes require a restart.
type ResolverConf struct {
	FetchTimeoutMs int           `yaml:"fetch_timeout_ms"`
	TTL            time.Duration `yaml:"ttl"`
	BatchWorkers   int           `yaml:"batch_workers"`
}

// LogConf selects the slog handler.
type LogConf struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns a Config with every default applied. Parse decodes YAML on
// top of it, so knobs where zero is a valid setting (fee rates, fallback
// amounts, the growth sentinel, max pages) keep an explicit zero.
func Default() *Config {
	cfg := &Config{
		Ledger: LedgerConf{MaxPages: 5},
		Classifier: ClassifierConf{
			FallbackAmounts: FallbackAmounts{Earned: 50, Redeemed: 100},
		},
		Fees: FeeConf{
			EarnedRate:         0.01,
			RedeemedRate:       0.005,
			MerchantFeeRate:    0.005,
			TransactionFee:     0.001,
			PremiumFeatureRate: 0.001,
		},
		Growth: GrowthConf{Sentinel: 100},
	}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills settings where zero or empty has no useful meaning.
func applyDefaults(cfg *Config) {
	if cfg.Ledger.Module == "" {
		cfg.Ledger.Module = "loyalty"
	}
	if cfg.Ledger.PageLimit == 0 {
		cfg.Ledger.PageLimit = 1000
	}
	if cfg.Ledger.TimeoutMs == 0 {
		cfg.Ledger.TimeoutMs = 10000
	}

	c := &cfg.Classifier
	if len(c.EarnedOps) == 0 {
		c.EarnedOps = []string{"PointsEarned", "issue_points"}
	}
	if len(c.RedeemedOps) == 0 {
		c.RedeemedOps = []string{"PointsRedeemed", "redeem_reward"}
	}
	if c.AmountField == "" {
		c.AmountField = "amount"
	}
	if len(c.ActorFields) == 0 {
		c.ActorFields = []string{"user", "customer", "recipient"}
	}
	if len(c.CounterpartyFields) == 0 {
		c.CounterpartyFields = []string{"merchant", "merchant_id"}
	}
	if len(c.RewardFields) == 0 {
		c.RewardFields = []string{"reward_id", "reward_name"}
	}

	w := &cfg.Windows
	if w.Daily == 0 {
		w.Daily = 30
	}
	if w.Weekly == 0 {
		w.Weekly = 12
	}
	if w.Monthly == 0 {
		w.Monthly = 12
	}
	if w.Location == "" {
		w.Location = "UTC"
	}

	if cfg.Resolver.FetchTimeoutMs == 0 {
		cfg.Resolver.FetchTimeoutMs = 5000
	}
	if cfg.Resolver.BatchWorkers == 0 {
		cfg.Resolver.BatchWorkers = 8
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
