package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks the config for:
//   - non-negative limits and rates
//   - operation names that are non-empty and not claimed by both kinds
//   - a consistent growth clamp and a loadable time zone
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Ledger.PageLimit < 0 {
		errs = append(errs, "ledger.page_limit must not be negative")
	}
	if cfg.Ledger.MaxPages < 0 {
		errs = append(errs, "ledger.max_pages must not be negative")
	}

	ops := make(map[string]string) // op → kind
	checkOps := func(kind string, names []string) {
		for i, name := range names {
			if strings.TrimSpace(name) == "" {
				errs = append(errs, fmt.Sprintf("classifier.%s_ops[%d]: name is required", kind, i))
				continue
			}
			if prev, ok := ops[name]; ok && prev != kind {
				errs = append(errs, fmt.Sprintf("operation %q listed as both %s and %s", name, prev, kind))
				continue
			}
			ops[name] = kind
		}
	}
	checkOps("earned", cfg.Classifier.EarnedOps)
	checkOps("redeemed", cfg.Classifier.RedeemedOps)

	f := cfg.Fees
	rates := []struct {
		name string
		v    float64
	}{
		{"earned_rate", f.EarnedRate},
		{"redeemed_rate", f.RedeemedRate},
		{"merchant_fee_rate", f.MerchantFeeRate},
		{"transaction_fee", f.TransactionFee},
		{"premium_feature_rate", f.PremiumFeatureRate},
	}
	for _, r := range rates {
		if r.v < 0 {
			errs = append(errs, fmt.Sprintf("fees.%s must not be negative", r.name))
		}
	}

	if c := cfg.Growth.Clamp; c != nil && c.Min > c.Max {
		errs = append(errs, fmt.Sprintf("growth.clamp: min %v exceeds max %v", c.Min, c.Max))
	}

	w := cfg.Windows
	if w.Daily < 0 || w.Weekly < 0 || w.Monthly < 0 {
		errs = append(errs, "windows: bucket counts must not be negative")
	}
	if _, err := time.LoadLocation(w.Location); err != nil {
		errs = append(errs, fmt.Sprintf("windows.location %q: %s", w.Location, err))
	}

	if cfg.Resolver.TTL < 0 {
		errs = append(errs, "resolver.ttl must not be negative")
	}

	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q: must be text or json", cfg.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
