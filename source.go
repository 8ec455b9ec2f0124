package willvault

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/everwill/willvault/ledger"
	"github.com/everwill/willvault/schema"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FungibleItem is one parsed fungible escrow item.
type FungibleItem struct {
	Token  common.Address
	Amount *big.Int
}

// NFTItem is one parsed NFT escrow item with its designated heir.
type NFTItem struct {
	Token   common.Address
	TokenId *big.Int
	Heir    common.Address
}

// CreateParams are the creation-time parameters of a will. Payment is the
// attached native value; the applicable creation fee is taken out of it and
// the remainder becomes the will's opening balance.
type CreateParams struct {
	Heirs       []common.Address
	Percentages []int
	Interval    int64
	Payment     *big.Int
	Tokens      []FungibleItem
	NFTs        []NFTItem
	Diary       bool
}

// GovPolicy is the pluggable authorization predicate for governance calls.
type GovPolicy interface {
	Authorized(caller common.Address) bool
}

// SingleOwnerPolicy authorizes exactly one governance address.
type SingleOwnerPolicy struct {
	Owner common.Address
}

func (p SingleOwnerPolicy) Authorized(caller common.Address) bool {
	return caller == p.Owner
}

// TwoPartyPolicy authorizes either of two parties, each with a primary and a
// secondary address.
type TwoPartyPolicy struct {
	APrimary   common.Address
	ASecondary common.Address
	BPrimary   common.Address
	BSecondary common.Address
}

func (p TwoPartyPolicy) Authorized(caller common.Address) bool {
	return caller == p.APrimary || caller == p.ASecondary ||
		caller == p.BPrimary || caller == p.BSecondary
}

// FeeSplit is one governance fee recipient and its percentage of withdrawals.
type FeeSplit struct {
	Recipient common.Address
	Percent   int
}

// EventSink receives committed snapshots and events; wired to the record DB,
// the KV store and kafka by the host, or left nil in tests.
type EventSink interface {
	SaveWill(snap schema.WillSnapshot)
	DropWill(owner, willAddr string)
	SaveEvent(ev schema.WillEvent)
}

// Source is the factory and registry: it deploys wills, enforces the
// one-will-per-owner invariant, routes platform fees and owns governance
// state. The executor address is snapshotted into each will at creation;
// changing it later never alters deployed wills.
type Source struct {
	engineLock sync.Mutex // serializes externally invoked operations

	account common.Address
	ledger  ledger.Ledger
	now     func() int64

	registryLock sync.RWMutex
	registry     map[common.Address]*Will // owner -> live will
	terminal     []*Will                  // executed/cancelled, kept for reads

	baseFee        *big.Int
	diaryFee       *big.Int
	terminationFee *big.Int
	executorAddr   common.Address
	executorWindow int64
	feeBps         int64
	gov            GovPolicy
	feeSplits      []FeeSplit

	sink EventSink
}

func NewSource(account common.Address, l ledger.Ledger, gov GovPolicy, splits []FeeSplit) *Source {
	if len(splits) == 0 {
		splits = []FeeSplit{{Recipient: account, Percent: 100}}
	}
	sum := 0
	for _, sp := range splits {
		sum += sp.Percent
	}
	if int64(sum) != schema.PercentDivisor {
		panic("fee splits must sum to 100")
	}
	return &Source{
		account:        account,
		ledger:         l,
		now:            func() int64 { return time.Now().Unix() },
		registry:       make(map[common.Address]*Will),
		baseFee:        big.NewInt(0),
		diaryFee:       big.NewInt(0),
		terminationFee: big.NewInt(0),
		executorWindow: schema.DefaultExecutorWindow,
		feeBps:         schema.ExecFeeBps,
		gov:            gov,
		feeSplits:      splits,
	}
}

// SetClock overrides the engine clock; tests drive time through this.
func (s *Source) SetClock(now func() int64) {
	s.now = now
}

func (s *Source) SetSink(sink EventSink) {
	s.sink = sink
}

func (s *Source) Account() common.Address {
	return s.account
}

func (s *Source) Now() int64 {
	return s.now()
}

// WillOf returns the registered live will for owner.
func (s *Source) WillOf(owner common.Address) (*Will, error) {
	s.registryLock.RLock()
	defer s.registryLock.RUnlock()
	w, ok := s.registry[owner]
	if !ok {
		return nil, schema.ErrNotExist
	}
	return w, nil
}

// Wills returns every live will; used by the stats and metric jobs.
func (s *Source) Wills() []*Will {
	s.registryLock.RLock()
	defer s.registryLock.RUnlock()
	out := make([]*Will, 0, len(s.registry))
	for _, w := range s.registry {
		out = append(out, w)
	}
	return out
}

// CreateWill deploys and registers a will for caller. Escrow items are pulled
// from the caller with the allowance the caller granted to the source account
// before this call; a missing authorization aborts the whole operation.
func (s *Source) CreateWill(caller common.Address, p CreateParams) (*Will, error) {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()

	s.registryLock.RLock()
	_, exist := s.registry[caller]
	s.registryLock.RUnlock()
	if exist {
		return nil, schema.ErrWillExist
	}

	fee := s.baseFee
	if p.Diary {
		fee = s.diaryFee
	}
	payment := p.Payment
	if payment == nil {
		payment = big.NewInt(0)
	}
	if payment.Cmp(fee) < 0 {
		return nil, schema.ErrInsufficientFee
	}

	deferred := p.Diary && len(p.Heirs) == 0
	if !deferred {
		if err := validateHeirs(p.Heirs, p.Percentages); err != nil {
			return nil, err
		}
		// rejected up front, before any asset pull
		interval, err := normalizeInterval(p.Interval)
		if err != nil {
			return nil, err
		}
		p.Interval = interval
	}

	w := &Will{
		addr:           deriveWillAddr(caller),
		owner:          caller,
		diary:          p.Diary,
		source:         s,
		ledger:         s.ledger,
		state:          schema.WillEmpty,
		interval:       schema.DefaultInterval,
		lastActivity:   s.now(),
		executorAddr:   s.executorAddr, // snapshot, later governance changes do not apply
		executorWindow: s.executorWindow,
		feeBps:         s.feeBps,
		terminationFee: new(big.Int).Set(s.terminationFee),
	}

	s.registryLock.Lock()
	s.registry[caller] = w
	s.registryLock.Unlock()

	if err := w.pullAssets(caller, payment, fee, p.Tokens, p.NFTs); err != nil {
		s.registryLock.Lock()
		delete(s.registry, caller)
		s.registryLock.Unlock()
		return nil, err
	}

	if !deferred {
		if err := w.configure(s.account, p.Heirs, p.Percentages, p.Interval); err != nil {
			// validated above, a failure here means the unwind must run
			s.registryLock.Lock()
			delete(s.registry, caller)
			s.registryLock.Unlock()
			return nil, err
		}
	}

	s.CommitWill(w)
	s.EmitWillEvent(w, schema.EventWillCreated, caller, nil, common.Address{})
	log.Info("will created", "owner", caller.Hex(), "will", w.addr.Hex(), "diary", p.Diary)
	return w, nil
}

// ClearWillRecord removes the registry entry for owner. Only the will
// currently registered for that owner may call; the caller address is the
// authentication.
func (s *Source) ClearWillRecord(caller, owner common.Address) error {
	s.registryLock.Lock()
	w, ok := s.registry[owner]
	if !ok || w.addr != caller {
		s.registryLock.Unlock()
		return schema.ErrNotRegisteredWill
	}
	delete(s.registry, owner)
	s.terminal = append(s.terminal, w)
	s.registryLock.Unlock()

	if s.sink != nil {
		s.sink.DropWill(owner.Hex(), w.addr.Hex())
	}
	s.EmitWillEvent(w, schema.EventWillCleared, caller, nil, common.Address{})
	return nil
}

// WithdrawFees pays the source's accumulated native balance out to the
// governance fee recipients according to the configured split.
func (s *Source) WithdrawFees(caller common.Address) ([]*big.Int, error) {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()

	if !s.gov.Authorized(caller) {
		return nil, schema.ErrNotGovernor
	}
	bal := s.ledger.NativeBalance(s.account)
	amounts := make([]*big.Int, len(s.feeSplits))
	paid := new(big.Int)
	for i, sp := range s.feeSplits {
		amt := new(big.Int).Mul(bal, big.NewInt(int64(sp.Percent)))
		amt.Div(amt, big.NewInt(schema.PercentDivisor))
		if i == len(s.feeSplits)-1 {
			amt = new(big.Int).Sub(bal, paid) // last recipient absorbs rounding
		}
		amounts[i] = amt
		if amt.Sign() == 0 {
			continue
		}
		if err := s.ledger.NativeTransfer(s.account, sp.Recipient, amt); err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		paid.Add(paid, amt)
	}

	payload := schema.FeesWithdrawnBody{}
	for i, sp := range s.feeSplits {
		payload.Recipients = append(payload.Recipients, sp.Recipient.Hex())
		payload.Amounts = append(payload.Amounts, amounts[i].String())
	}
	s.emitSourceEvent(schema.EventFeesWithdrawn, caller, bal, caller, payload)
	log.Info("fees withdrawn", "caller", caller.Hex(), "total", bal.String())
	return amounts, nil
}

func (s *Source) SetBaseFee(caller common.Address, fee *big.Int) error {
	return s.setFee(caller, fee, &s.baseFee)
}

func (s *Source) SetDiaryFee(caller common.Address, fee *big.Int) error {
	return s.setFee(caller, fee, &s.diaryFee)
}

func (s *Source) SetTerminationFee(caller common.Address, fee *big.Int) error {
	return s.setFee(caller, fee, &s.terminationFee)
}

func (s *Source) setFee(caller common.Address, fee *big.Int, target **big.Int) error {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()
	if !s.gov.Authorized(caller) {
		return schema.ErrNotGovernor
	}
	if fee == nil || fee.Sign() < 0 {
		return schema.ErrBadAmount
	}
	*target = new(big.Int).Set(fee)
	s.emitSourceEvent(schema.EventFeeUpdated, caller, fee, common.Address{}, nil)
	return nil
}

// SetExecutorAddr updates the default executor for wills created afterwards;
// existing wills keep the snapshot taken at their creation.
func (s *Source) SetExecutorAddr(caller, executor common.Address) error {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()
	if !s.gov.Authorized(caller) {
		return schema.ErrNotGovernor
	}
	s.executorAddr = executor
	s.emitSourceEvent(schema.EventExecutorUpdated, caller, nil, executor, nil)
	return nil
}

// Fees reports the current fee configuration. Reads under the engine lock so
// the fee jobs and handlers never race the governance setters.
func (s *Source) Fees() schema.RespFees {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()
	return schema.RespFees{
		BaseFee:        s.baseFee.String(),
		DiaryFee:       s.diaryFee.String(),
		TerminationFee: s.terminationFee.String(),
		ExecFeeBps:     s.feeBps,
		ExecutorAddr:   s.executorAddr.Hex(),
	}
}

// EmitWillEvent implements SourceRef: builds the event row and hands it to
// the sink.
func (s *Source) EmitWillEvent(w *Will, eventType string, caller common.Address, fee *big.Int, feeRecipient common.Address) {
	if s.sink == nil {
		return
	}
	ev := schema.WillEvent{
		EventId:   uuid.NewString(),
		EventType: eventType,
		Owner:     w.owner.Hex(),
		WillAddr:  w.addr.Hex(),
		Caller:    caller.Hex(),
	}
	if fee != nil {
		ev.FeeAmount = fee.String()
	}
	if feeRecipient != (common.Address{}) {
		ev.FeeRecipient = feeRecipient.Hex()
	}
	switch eventType {
	case schema.EventWillCreated:
		ev.Body = marshalBody(schema.WillCreatedBody{HasDeferredMode: w.diary})
	case schema.EventPing:
		ev.Body = marshalBody(schema.PingBody{NewTimestamp: w.lastActivity})
	}
	s.sink.SaveEvent(ev)
}

func (s *Source) emitSourceEvent(eventType string, caller common.Address, amount *big.Int, addr common.Address, body interface{}) {
	if s.sink == nil {
		return
	}
	ev := schema.WillEvent{
		EventId:   uuid.NewString(),
		EventType: eventType,
		Caller:    caller.Hex(),
	}
	if amount != nil {
		ev.FeeAmount = amount.String()
	}
	if addr != (common.Address{}) {
		ev.FeeRecipient = addr.Hex()
	}
	if body != nil {
		ev.Body = marshalBody(body)
	}
	s.sink.SaveEvent(ev)
}

func marshalBody(body interface{}) datatypes.JSON {
	by, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	return datatypes.JSON(by)
}

// CommitWill implements SourceRef: persists the will snapshot.
func (s *Source) CommitWill(w *Will) {
	if s.sink == nil {
		return
	}
	s.sink.SaveWill(w.Snapshot())
}

// RestoreWill rebuilds a live will from its boot snapshot.
func (s *Source) RestoreWill(snap schema.WillSnapshot) error {
	if snap.State == schema.WillExecuted {
		return nil
	}
	owner := common.HexToAddress(snap.Owner)
	w := &Will{
		addr:           common.HexToAddress(snap.Addr),
		owner:          owner,
		diary:          snap.Diary,
		source:         s,
		ledger:         s.ledger,
		state:          snap.State,
		interval:       snap.Interval,
		lastActivity:   snap.LastActivity,
		executorAddr:   common.HexToAddress(snap.ExecutorAddr),
		executorWindow: s.executorWindow,
		feeBps:         snap.FeeBps,
		terminationFee: new(big.Int).Set(s.terminationFee),
		percentages:    append([]int{}, snap.Percentages...),
	}
	for _, h := range snap.Heirs {
		w.heirs = append(w.heirs, common.HexToAddress(h))
	}
	for _, t := range snap.Tokens {
		w.tokens = append(w.tokens, common.HexToAddress(t))
	}
	for _, g := range snap.NFTs {
		id, ok := new(big.Int).SetString(g.TokenId, 10)
		if !ok {
			return fmt.Errorf("bad tokenId in snapshot: %s", g.TokenId)
		}
		w.nfts = append(w.nfts, nftGrant{
			token:   common.HexToAddress(g.Token),
			tokenId: id,
			heir:    common.HexToAddress(g.Heir),
		})
	}

	s.registryLock.Lock()
	defer s.registryLock.Unlock()
	if _, exist := s.registry[owner]; exist {
		return schema.ErrWillExist
	}
	s.registry[owner] = w
	return nil
}

// Dispatchers below serialize externally invoked will operations under the
// engine lock; the wills themselves only carry the reentrancy guard.

func (s *Source) PingWill(caller, owner common.Address) error {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()
	w, err := s.WillOf(owner)
	if err != nil {
		return err
	}
	return w.Ping(caller)
}

func (s *Source) ConfigureWill(caller, owner common.Address, heirs []common.Address, percentages []int,
	interval int64, payment *big.Int, tokens []FungibleItem, nfts []NFTItem) error {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()
	w, err := s.WillOf(owner)
	if err != nil {
		return err
	}
	if len(tokens) == 0 && len(nfts) == 0 && (payment == nil || payment.Sign() == 0) {
		return w.Configure(caller, heirs, percentages, interval)
	}
	return w.FundAndConfigure(caller, heirs, percentages, interval, payment, tokens, nfts)
}

func (s *Source) EmptyWill(caller, owner common.Address) error {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()
	w, err := s.WillOf(owner)
	if err != nil {
		return err
	}
	return w.EmptyForEdit(caller)
}

func (s *Source) CancelWill(caller, owner common.Address) error {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()
	w, err := s.WillOf(owner)
	if err != nil {
		return err
	}
	return w.Cancel(caller)
}

func (s *Source) ExecuteWill(caller, owner common.Address) (*big.Int, common.Address, error) {
	s.engineLock.Lock()
	defer s.engineLock.Unlock()
	w, err := s.WillOf(owner)
	if err != nil {
		return nil, common.Address{}, err
	}
	return w.Execute(caller)
}

func deriveWillAddr(owner common.Address) common.Address {
	by := crypto.Keccak256(owner.Bytes(), []byte(uuid.NewString()))
	return common.BytesToAddress(by[12:])
}
