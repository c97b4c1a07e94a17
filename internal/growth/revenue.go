package growth

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/pointlens/internal/config"
	"github.com/gyaneshwarpardhi/pointlens/internal/event"
)

// FeeSchedule prices point movements for the revenue estimate.
type FeeSchedule struct {
	EarnedRate   float64 // per earned point
	RedeemedRate float64 // per redeemed point
}

// BreakdownRates prices the categories of RevenueBreakdown.
type BreakdownRates struct {
	MerchantFeeRate    float64 // share of total point value
	TransactionFee     float64 // flat, per event
	PremiumFeatureRate float64 // share of total point value
}

// RevenueBreakdown splits platform revenue by category.
type RevenueBreakdown struct {
	MerchantFees    float64 `json:"merchant_fees"`
	TransactionFees float64 `json:"transaction_fees"`
	PremiumFeatures float64 `json:"premium_features"`
	Total           float64 `json:"total"`
}

// SchedulesFrom converts the YAML fees section.
func SchedulesFrom(conf config.FeeConf) (FeeSchedule, BreakdownRates) {
	return FeeSchedule{
			EarnedRate:   conf.EarnedRate,
			RedeemedRate: conf.RedeemedRate,
		}, BreakdownRates{
			MerchantFeeRate:    conf.MerchantFeeRate,
			TransactionFee:     conf.TransactionFee,
			PremiumFeatureRate: conf.PremiumFeatureRate,
		}
}

// Revenue is Σ earned×EarnedRate + Σ redeemed×RedeemedRate. Other events
// contribute nothing.
func Revenue(events []event.DomainEvent, fs FeeSchedule) float64 {
	earned := decimal.NewFromFloat(fs.EarnedRate)
	redeemed := decimal.NewFromFloat(fs.RedeemedRate)
	total := decimal.Zero
	for _, ev := range events {
		switch ev.Kind {
		case event.KindEarned:
			total = total.Add(fromUint(ev.Amount).Mul(earned))
		case event.KindRedeemed:
			total = total.Add(fromUint(ev.Amount).Mul(redeemed))
		}
	}
	return total.InexactFloat64()
}

// Breakdown prices the whole batch by category.
func Breakdown(events []event.DomainEvent, r BreakdownRates) RevenueBreakdown {
	value := fromUint(event.SumAmount(events))
	merchant := value.Mul(decimal.NewFromFloat(r.MerchantFeeRate))
	tx := decimal.NewFromInt(int64(len(events))).Mul(decimal.NewFromFloat(r.TransactionFee))
	premium := value.Mul(decimal.NewFromFloat(r.PremiumFeatureRate))
	return RevenueBreakdown{
		MerchantFees:    merchant.InexactFloat64(),
		TransactionFees: tx.InexactFloat64(),
		PremiumFeatures: premium.InexactFloat64(),
		Total:           merchant.Add(tx).Add(premium).InexactFloat64(),
	}
}

func fromUint(n uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(n), 0)
}

// Charge prices a point amount at rate.
func Charge(points uint64, rate float64) float64 {
	return fromUint(points).Mul(decimal.NewFromFloat(rate)).InexactFloat64()
}
