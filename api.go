package willvault

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/everwill/willvault/common"
	"github.com/everwill/willvault/schema"
	"github.com/gin-gonic/gin"
)

func (s *WillVault) runAPI(port string) {
	r := s.engine
	r.Use(common.CORSMiddleware())
	if !s.NoAuth {
		r.Use(common.LimiterMiddleware(600, "M", s.config.GetIPWhiteList()))
	}
	v1 := r.Group("/")
	{
		v1.POST("/will", s.createWill)
		v1.GET("/will/:owner", s.getWill)
		v1.POST("/will/:owner/ping", s.pingWill)
		v1.POST("/will/:owner/configure", s.configureWill)
		v1.POST("/will/:owner/empty", s.emptyWill)
		v1.POST("/will/:owner/cancel", s.cancelWill)
		v1.POST("/will/:owner/execute", s.executeWill)
		v1.GET("/will/:owner/events", s.getEvents)
		v1.GET("/wills", s.getWills)
		v1.GET("/fees", s.getFees)
		v1.GET("/statistic", s.getStatistic)
	}
	gov := r.Group("/gov")
	{
		gov.POST("/withdraw", s.govWithdraw)
		gov.POST("/executor", s.govExecutor)
		gov.POST("/fee", s.govFee)
	}

	if err := r.Run(port); err != nil {
		panic(err)
	}
}

func (s *WillVault) createWill(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	req := schema.CreateWillReq{}
	if err := json.Unmarshal(body, &req); err != nil {
		errorResponse(c, err.Error())
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	if err := s.verifyCaller(c, caller, body); err != nil {
		errorResponse(c, err.Error())
		return
	}

	params, err := parseCreateParams(req)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	w, err := s.source.CreateWill(caller, params)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, schema.RespCreateWill{
		WillAddr: w.Addr().Hex(),
		Owner:    w.Owner().Hex(),
		Diary:    w.Diary(),
	})
}

func (s *WillVault) getWill(c *gin.Context) {
	owner := c.Param("owner")
	if !ethcommon.IsHexAddress(owner) {
		errorResponse(c, "invalid_address")
		return
	}
	ownerAddr := ethcommon.HexToAddress(owner)
	if resp, ok := s.cache.GetWill(ownerAddr.Hex()); ok {
		c.JSON(http.StatusOK, resp)
		return
	}
	w, err := s.source.WillOf(ownerAddr)
	if err != nil {
		c.JSON(http.StatusNotFound, schema.RespErr{Err: err.Error()})
		return
	}
	resp := s.respWill(w)
	s.cache.UpdateWill(resp)
	c.JSON(http.StatusOK, resp)
}

func (s *WillVault) pingWill(c *gin.Context) {
	s.willAction(c, func(caller, owner ethcommon.Address) error {
		return s.source.PingWill(caller, owner)
	})
}

func (s *WillVault) configureWill(c *gin.Context) {
	owner, ok := s.ownerParam(c)
	if !ok {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	req := schema.ConfigureReq{}
	if err := json.Unmarshal(body, &req); err != nil {
		errorResponse(c, err.Error())
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	if err := s.verifyCaller(c, caller, body); err != nil {
		errorResponse(c, err.Error())
		return
	}

	heirs, err := parseAddrList(req.Heirs)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	tokens, err := parseTokenItems(req.Tokens)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	nfts, err := parseNFTItems(req.NFTs)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	if err := s.source.ConfigureWill(caller, owner, heirs, req.Percentages, req.Interval, payment, tokens, nfts); err != nil {
		errorResponse(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, "ok")
}

func (s *WillVault) emptyWill(c *gin.Context) {
	s.willAction(c, func(caller, owner ethcommon.Address) error {
		return s.source.EmptyWill(caller, owner)
	})
}

func (s *WillVault) cancelWill(c *gin.Context) {
	s.willAction(c, func(caller, owner ethcommon.Address) error {
		return s.source.CancelWill(caller, owner)
	})
}

func (s *WillVault) executeWill(c *gin.Context) {
	owner, ok := s.ownerParam(c)
	if !ok {
		return
	}
	caller, _, err := s.callerReq(c)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	fee, feeRecipient, err := s.source.ExecuteWill(caller, owner)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, schema.RespExecute{
		WillAddr:     owner.Hex(),
		Caller:       caller.Hex(),
		NativeFee:    fee.String(),
		FeeRecipient: feeRecipient.Hex(),
	})
}

func (s *WillVault) getEvents(c *gin.Context) {
	owner := c.Param("owner")
	if !ethcommon.IsHexAddress(owner) {
		errorResponse(c, "invalid_address")
		return
	}
	limit, offset := pageParams(c)
	evs, err := s.wdb.GetEvents(ethcommon.HexToAddress(owner).Hex(), limit, offset)
	if err != nil {
		internalErrorResponse(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, evs)
}

func (s *WillVault) getWills(c *gin.Context) {
	limit, offset := pageParams(c)
	recs, err := s.wdb.GetWillRecords(c.Query("state"), limit, offset)
	if err != nil {
		internalErrorResponse(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (s *WillVault) getFees(c *gin.Context) {
	fees := s.cache.GetFees()
	if fees.BaseFee == "" {
		fees = s.source.Fees()
	}
	c.JSON(http.StatusOK, fees)
}

func (s *WillVault) getStatistic(c *gin.Context) {
	start, err := time.Parse("2006-01-02", c.DefaultQuery("start", time.Now().UTC().AddDate(0, -1, 0).Format("2006-01-02")))
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	end, err := time.Parse("2006-01-02", c.DefaultQuery("end", time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")))
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	sts, err := s.wdb.GetStatistics(start, end)
	if err != nil {
		internalErrorResponse(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, sts)
}

func (s *WillVault) govWithdraw(c *gin.Context) {
	caller, _, err := s.callerReq(c)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	amounts, err := s.source.WithdrawFees(caller)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	amts := make([]string, 0, len(amounts))
	for _, a := range amounts {
		amts = append(amts, a.String())
	}
	c.JSON(http.StatusOK, schema.RespWithdraw{
		Caller:  caller.Hex(),
		Amounts: amts,
	})
}

func (s *WillVault) govExecutor(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	req := schema.GovExecutorReq{}
	if err := json.Unmarshal(body, &req); err != nil {
		errorResponse(c, err.Error())
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	if err := s.verifyCaller(c, caller, body); err != nil {
		errorResponse(c, err.Error())
		return
	}
	executor, err := parseAddr(req.ExecutorAddr)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	if err := s.source.SetExecutorAddr(caller, executor); err != nil {
		errorResponse(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, "ok")
}

func (s *WillVault) govFee(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	req := schema.GovFeeReq{}
	if err := json.Unmarshal(body, &req); err != nil {
		errorResponse(c, err.Error())
		return
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	if err := s.verifyCaller(c, caller, body); err != nil {
		errorResponse(c, err.Error())
		return
	}
	if req.BaseFee != "" {
		fee, err := parseAmount(req.BaseFee)
		if err != nil {
			errorResponse(c, err.Error())
			return
		}
		if err := s.source.SetBaseFee(caller, fee); err != nil {
			errorResponse(c, err.Error())
			return
		}
	}
	if req.DiaryFee != "" {
		fee, err := parseAmount(req.DiaryFee)
		if err != nil {
			errorResponse(c, err.Error())
			return
		}
		if err := s.source.SetDiaryFee(caller, fee); err != nil {
			errorResponse(c, err.Error())
			return
		}
	}
	if req.TerminationFee != "" {
		fee, err := parseAmount(req.TerminationFee)
		if err != nil {
			errorResponse(c, err.Error())
			return
		}
		if err := s.source.SetTerminationFee(caller, fee); err != nil {
			errorResponse(c, err.Error())
			return
		}
	}
	s.cache.UpdateFees(s.source.Fees())
	c.JSON(http.StatusOK, "ok")
}

// willAction handles the shared caller-signed, owner-addressed action shape.
func (s *WillVault) willAction(c *gin.Context, action func(caller, owner ethcommon.Address) error) {
	owner, ok := s.ownerParam(c)
	if !ok {
		return
	}
	caller, _, err := s.callerReq(c)
	if err != nil {
		errorResponse(c, err.Error())
		return
	}
	if err := action(caller, owner); err != nil {
		errorResponse(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, "ok")
}

func (s *WillVault) ownerParam(c *gin.Context) (ethcommon.Address, bool) {
	owner := c.Param("owner")
	if !ethcommon.IsHexAddress(owner) {
		errorResponse(c, "invalid_address")
		return ethcommon.Address{}, false
	}
	return ethcommon.HexToAddress(owner), true
}

func (s *WillVault) callerReq(c *gin.Context) (ethcommon.Address, []byte, error) {
	body, err := c.GetRawData()
	if err != nil {
		return ethcommon.Address{}, nil, err
	}
	req := schema.CallerReq{}
	if err := json.Unmarshal(body, &req); err != nil {
		return ethcommon.Address{}, nil, err
	}
	caller, err := parseAddr(req.Caller)
	if err != nil {
		return ethcommon.Address{}, nil, err
	}
	if err := s.verifyCaller(c, caller, body); err != nil {
		return ethcommon.Address{}, nil, err
	}
	return caller, body, nil
}

// verifyCaller checks the personal-sign signature carried in the Signature
// header against the request body and the declared caller.
func (s *WillVault) verifyCaller(c *gin.Context, caller ethcommon.Address, body []byte) error {
	if s.NoAuth {
		return nil
	}
	sigHex := c.GetHeader("Signature")
	if sigHex == "" {
		return schema.ErrBadSignature
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil || len(sig) != 65 {
		return schema.ErrBadSignature
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(body), sig)
	if err != nil {
		return schema.ErrBadSignature
	}
	if crypto.PubkeyToAddress(*pub) != caller {
		return schema.ErrBadSignature
	}
	return nil
}

func (s *WillVault) respWill(w *Will) schema.RespWill {
	snap := w.Snapshot()
	return schema.RespWill{
		WillAddr:      snap.Addr,
		Owner:         snap.Owner,
		State:         snap.State,
		Diary:         snap.Diary,
		Interval:      snap.Interval,
		LastActivity:  snap.LastActivity,
		GraceEnd:      w.GraceEnd(),
		ExecutorAddr:  snap.ExecutorAddr,
		FeeBps:        snap.FeeBps,
		Heirs:         snap.Heirs,
		Percentages:   snap.Percentages,
		Tokens:        snap.Tokens,
		NFTs:          snap.NFTs,
		NativeBalance: s.ledger.NativeBalance(w.Addr()).String(),
	}
}

func parseCreateParams(req schema.CreateWillReq) (CreateParams, error) {
	heirs, err := parseAddrList(req.Heirs)
	if err != nil {
		return CreateParams{}, err
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		return CreateParams{}, err
	}
	tokens, err := parseTokenItems(req.Tokens)
	if err != nil {
		return CreateParams{}, err
	}
	nfts, err := parseNFTItems(req.NFTs)
	if err != nil {
		return CreateParams{}, err
	}
	return CreateParams{
		Heirs:       heirs,
		Percentages: req.Percentages,
		Interval:    req.Interval,
		Payment:     payment,
		Tokens:      tokens,
		NFTs:        nfts,
		Diary:       req.Diary,
	}, nil
}

func parseAddr(addr string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(addr) {
		return ethcommon.Address{}, schema.ErrBadAddress
	}
	return ethcommon.HexToAddress(addr), nil
}

func parseAddrList(addrs []string) ([]ethcommon.Address, error) {
	out := make([]ethcommon.Address, 0, len(addrs))
	for _, a := range addrs {
		addr, err := parseAddr(a)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func parseTokenItems(specs []schema.FungibleSpec) ([]FungibleItem, error) {
	items := make([]FungibleItem, 0, len(specs))
	for _, sp := range specs {
		token, err := parseAddr(sp.Token)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(sp.Amount)
		if err != nil {
			return nil, err
		}
		if amount.Sign() <= 0 {
			return nil, schema.ErrBadAmount
		}
		items = append(items, FungibleItem{Token: token, Amount: amount})
	}
	return items, nil
}

func parseNFTItems(grants []schema.NFTGrant) ([]NFTItem, error) {
	items := make([]NFTItem, 0, len(grants))
	for _, g := range grants {
		token, err := parseAddr(g.Token)
		if err != nil {
			return nil, err
		}
		heir, err := parseAddr(g.Heir)
		if err != nil {
			return nil, err
		}
		tokenId, err := parseAmount(g.TokenId)
		if err != nil {
			return nil, err
		}
		items = append(items, NFTItem{Token: token, TokenId: tokenId, Heir: heir})
	}
	return items, nil
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return
}

func errorResponse(c *gin.Context, err string) {
	// client error
	c.JSON(http.StatusBadRequest, schema.RespErr{
		Err: err,
	})
}

func internalErrorResponse(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, schema.RespErr{
		Err: err,
	})
}
