package schema

const (
	// will lifecycle states
	WillEmpty    = "empty"
	WillActive   = "active"
	WillExecuted = "executed"

	// proportional execution fee: 50 bps = 0.5%
	ExecFeeBps     = int64(50)
	BpsDivisor     = int64(10000)
	PercentDivisor = int64(100)

	// window after grace end reserved for the designated executor
	DefaultExecutorWindow = int64(86400) // 1 day

	DefaultInterval = int64(31536000) // 365 days
	MinInterval     = int64(60)
)

// FungibleSpec is one fungible escrow item supplied at creation or
// fund-and-configure time. Amount is a decimal string in the token's
// minor unit.
type FungibleSpec struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// NFTGrant binds one non-fungible token to its designated heir. NFTs are
// fee-exempt and never split.
type NFTGrant struct {
	Token   string `json:"token"`
	TokenId string `json:"tokenId"`
	Heir    string `json:"heir"`
}

// WillSnapshot is the full serialized state of a live will, written to the
// KV store on every mutation and replayed at boot.
type WillSnapshot struct {
	Addr         string `json:"addr"`
	Owner        string `json:"owner"`
	State        string `json:"state"`
	Diary        bool   `json:"diary"`
	Interval     int64  `json:"interval"`
	LastActivity int64  `json:"lastActivity"`
	ExecutorAddr string `json:"executorAddr"`
	FeeBps       int64  `json:"feeBps"`

	Heirs       []string   `json:"heirs"`
	Percentages []int      `json:"percentages"`
	Tokens      []string   `json:"tokens"`
	NFTs        []NFTGrant `json:"nfts"`
}
