package sdk

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/everFinance/goether"
	"github.com/everwill/willvault/schema"
)

// SDK signs mutating requests with the holder's ethereum key; the server
// recovers the caller from the personal-sign signature over the body.
type SDK struct {
	Signer *goether.Signer
	Cli    *Client
}

func NewSDK(vaultUrl, priKey string) (*SDK, error) {
	signer, err := goether.NewSigner(priKey)
	if err != nil {
		return nil, err
	}
	return &SDK{
		Signer: signer,
		Cli:    New(vaultUrl),
	}, nil
}

func (s *SDK) Addr() string {
	return s.Signer.Address.Hex()
}

func (s *SDK) CreateWill(req schema.CreateWillReq) (schema.RespCreateWill, error) {
	req.Caller = s.Addr()
	resp := schema.RespCreateWill{}
	err := s.signedPost("/will", &req, &resp)
	return resp, err
}

func (s *SDK) Configure(owner string, req schema.ConfigureReq) error {
	req.Caller = s.Addr()
	return s.signedPost(fmt.Sprintf("/will/%s/configure", owner), &req, nil)
}

func (s *SDK) Ping() error {
	return s.callerPost(fmt.Sprintf("/will/%s/ping", s.Addr()), nil)
}

func (s *SDK) Empty() error {
	return s.callerPost(fmt.Sprintf("/will/%s/empty", s.Addr()), nil)
}

func (s *SDK) Cancel() error {
	return s.callerPost(fmt.Sprintf("/will/%s/cancel", s.Addr()), nil)
}

func (s *SDK) Execute(owner string) (schema.RespExecute, error) {
	resp := schema.RespExecute{}
	err := s.callerPost(fmt.Sprintf("/will/%s/execute", owner), &resp)
	return resp, err
}

func (s *SDK) WithdrawFees() (schema.RespWithdraw, error) {
	resp := schema.RespWithdraw{}
	err := s.callerPost("/gov/withdraw", &resp)
	return resp, err
}

func (s *SDK) SetExecutor(executorAddr string) error {
	req := schema.GovExecutorReq{Caller: s.Addr(), ExecutorAddr: executorAddr}
	return s.signedPost("/gov/executor", &req, nil)
}

func (s *SDK) SetFees(baseFee, diaryFee, terminationFee string) error {
	req := schema.GovFeeReq{
		Caller:         s.Addr(),
		BaseFee:        baseFee,
		DiaryFee:       diaryFee,
		TerminationFee: terminationFee,
	}
	return s.signedPost("/gov/fee", &req, nil)
}

func (s *SDK) callerPost(path string, result interface{}) error {
	req := schema.CallerReq{Caller: s.Addr()}
	return s.signedPost(path, &req, result)
}

func (s *SDK) signedPost(path string, reqData interface{}, result interface{}) error {
	body, err := json.Marshal(reqData)
	if err != nil {
		return err
	}
	sig, err := s.Signer.SignMsg(body)
	if err != nil {
		return err
	}
	return s.Cli.post(path, body, hexutil.Encode(sig), result)
}
