package schema

type RespErr struct {
	Err string `json:"error"`
}

func (r RespErr) Error() string {
	return r.Err
}

// CreateWillReq creates a will for Caller. Payment is the attached native
// amount (minor unit decimal string); the applicable creation fee is taken
// out of it and the remainder becomes the will's opening balance.
type CreateWillReq struct {
	Caller      string         `json:"caller"`
	Heirs       []string       `json:"heirs"`
	Percentages []int          `json:"percentages"`
	Interval    int64          `json:"interval"`
	Payment     string         `json:"payment"`
	Tokens      []FungibleSpec `json:"tokens"`
	NFTs        []NFTGrant     `json:"nfts"`
	Diary       bool           `json:"diary"`
}

type ConfigureReq struct {
	Caller      string         `json:"caller"`
	Heirs       []string       `json:"heirs"`
	Percentages []int          `json:"percentages"`
	Interval    int64          `json:"interval"`
	Payment     string         `json:"payment"`
	Tokens      []FungibleSpec `json:"tokens"`
	NFTs        []NFTGrant     `json:"nfts"`
}

type CallerReq struct {
	Caller string `json:"caller"`
}

type GovFeeReq struct {
	Caller         string `json:"caller"`
	BaseFee        string `json:"baseFee"`
	DiaryFee       string `json:"diaryFee"`
	TerminationFee string `json:"terminationFee"`
}

type GovExecutorReq struct {
	Caller       string `json:"caller"`
	ExecutorAddr string `json:"executorAddr"`
}

type RespWill struct {
	WillAddr     string     `json:"willAddr"`
	Owner        string     `json:"owner"`
	State        string     `json:"state"`
	Diary        bool       `json:"diary"`
	Interval     int64      `json:"interval"`
	LastActivity int64      `json:"lastActivity"`
	GraceEnd     int64      `json:"graceEnd"`
	ExecutorAddr string     `json:"executorAddr"`
	FeeBps       int64      `json:"feeBps"`
	Heirs        []string   `json:"heirs"`
	Percentages  []int      `json:"percentages"`
	Tokens       []string   `json:"tokens"`
	NFTs         []NFTGrant `json:"nfts"`

	NativeBalance string `json:"nativeBalance"`
}

type RespCreateWill struct {
	WillAddr string `json:"willAddr"`
	Owner    string `json:"owner"`
	Diary    bool   `json:"diary"`
}

type RespExecute struct {
	WillAddr     string `json:"willAddr"`
	Caller       string `json:"caller"`
	NativeFee    string `json:"nativeFee"`
	FeeRecipient string `json:"feeRecipient"`
}

type RespFees struct {
	BaseFee        string `json:"baseFee"`
	DiaryFee       string `json:"diaryFee"`
	TerminationFee string `json:"terminationFee"`
	ExecFeeBps     int64  `json:"execFeeBps"`
	ExecutorAddr   string `json:"executorAddr"`
}

type RespWithdraw struct {
	Caller  string   `json:"caller"`
	Amounts []string `json:"amounts"`
}
