package willvault

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const (
	MetricNameSpace = "willvault"
)

var (
	willsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: MetricNameSpace,
			Name:      "wills_by_state",
			Help:      "number of registered wills per state",
		},
		[]string{"state"},
	)

	escrowedNative = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricNameSpace,
			Name:      "escrowed_native_balance",
			Help:      "total native balance held by live wills",
		},
	)

	sourceBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: MetricNameSpace,
			Name:      "source_fee_balance",
			Help:      "accumulated fee balance on the source account",
		},
	)
)

func init() {
	prometheus.MustRegister(
		willsByState,
		escrowedNative,
		sourceBalance,
	)
}

func metricWillsByState(counts map[string]int64) {
	for state, num := range counts {
		willsByState.WithLabelValues(state).Set(float64(num))
	}
}

func metricEscrowedNative(total *big.Int) {
	amount, _ := decimal.NewFromBigInt(total, 0).Float64()
	escrowedNative.Set(amount)
}

func metricSourceBalance(bal *big.Int) {
	amount, _ := decimal.NewFromBigInt(bal, 0).Float64()
	sourceBalance.Set(amount)
}
