package ledger

import "context"

// Registry is the platform-wide aggregate object some loyalty deployments
// keep on chain. Its counters cover the whole history, so they are not
// limited by how many event pages a read scans. It carries no point totals.
type Registry struct {
	TotalTransactions int     `json:"total_transactions"`
	TotalUsers        int     `json:"total_users"`
	TotalMerchants    int     `json:"total_merchants"`
	RewardsRedeemed   int     `json:"rewards_redeemed"` // redemptions, not points
	GrowthPercent     float64 `json:"growth_percent"`
	MerchantFees      float64 `json:"merchant_fees"`
}

// RegistryReader is implemented by sources that can read the registry.
// found is false when the deployment has none.
type RegistryReader interface {
	ReadRegistry(ctx context.Context) (reg Registry, found bool, err error)
}
