package schema

// FeeConfig is the operator-editable fee row; the engine applies it on boot
// and whenever the refresh job sees a change. Amounts are minor unit decimal
// strings.
type FeeConfig struct {
	BaseFee        string `json:"baseFee"`
	DiaryFee       string `json:"diaryFee"`
	TerminationFee string `json:"terminationFee"`
	ExecutorAddr   string `json:"executorAddr"`
}

type IpRateWhitelist struct {
	OriginOrIP  string // e.g "188.0.2.2"
	Available   bool   `gorm:"index:idx3"` // true means effective
	Description string
}

type Param struct {
	EventFanoutNum int
}
