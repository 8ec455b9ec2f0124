package willvault

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/everwill/willvault/ledger"
	"github.com/everwill/willvault/schema"
)

// SourceRef is the capability a will holds on the source that deployed it:
// self-deregistration, the fee account, the engine clock and the event/commit
// sinks. A weak reference; the will never manages the source's lifecycle.
type SourceRef interface {
	ClearWillRecord(caller, owner common.Address) error
	Account() common.Address
	Now() int64
	EmitWillEvent(w *Will, eventType string, caller common.Address, fee *big.Int, feeRecipient common.Address)
	CommitWill(w *Will)
}

type nftGrant struct {
	token   common.Address
	tokenId *big.Int
	heir    common.Address
}

// Will is one per-owner escrow instance. Identity is immutable once deployed;
// an owner change requires cancel and re-create. Fungible amounts are never
// cached here: distribution reads live balances from the ledger.
type Will struct {
	addr   common.Address
	owner  common.Address
	diary  bool
	source SourceRef
	ledger ledger.Ledger

	state          string
	interval       int64
	lastActivity   int64
	executorAddr   common.Address
	executorWindow int64
	feeBps         int64
	terminationFee *big.Int

	heirs       []common.Address
	percentages []int
	tokens      []common.Address
	nfts        []nftGrant

	busy bool // reentrancy guard, set for the duration of every mutating entry point
}

func (w *Will) Addr() common.Address  { return w.addr }
func (w *Will) Owner() common.Address { return w.owner }
func (w *Will) State() string         { return w.state }
func (w *Will) Diary() bool           { return w.diary }
func (w *Will) Interval() int64       { return w.interval }
func (w *Will) LastActivity() int64   { return w.lastActivity }

func (w *Will) ExecutorAddr() common.Address { return w.executorAddr }
func (w *Will) ExecutorWindow() int64        { return w.executorWindow }

// GraceEnd is the moment distribution becomes eligible.
func (w *Will) GraceEnd() int64 {
	return w.lastActivity + w.interval
}

func (w *Will) enter() error {
	if w.busy {
		return schema.ErrReentrantCall
	}
	w.busy = true
	return nil
}

func (w *Will) leave() {
	w.busy = false
}

func validateHeirs(heirs []common.Address, percentages []int) error {
	if len(heirs) != len(percentages) {
		return schema.ErrHeirsMismatch
	}
	if len(heirs) == 0 {
		return schema.ErrNoHeirs
	}
	sum := 0
	for _, p := range percentages {
		if p <= 0 {
			return schema.ErrPercentSum
		}
		sum += p
	}
	if int64(sum) != schema.PercentDivisor {
		return schema.ErrPercentSum
	}
	return nil
}

// normalizeInterval applies the default and the lower bound. Callers that
// pull assets must run this before the first transfer so a rejection never
// leaves funds behind.
func normalizeInterval(interval int64) (int64, error) {
	if interval == 0 {
		return schema.DefaultInterval, nil
	}
	if interval < schema.MinInterval {
		return 0, schema.ErrBadInterval
	}
	return interval, nil
}

// Ping is the owner heartbeat; it restarts the inactivity countdown.
func (w *Will) Ping(caller common.Address) error {
	if err := w.enter(); err != nil {
		return err
	}
	defer w.leave()

	if w.state == schema.WillExecuted {
		return schema.ErrWillExecuted
	}
	if w.state != schema.WillActive {
		return schema.ErrWillNotActive
	}
	if caller != w.owner {
		return schema.ErrNotOwner
	}
	w.lastActivity = w.source.Now()
	w.source.EmitWillEvent(w, schema.EventPing, caller, nil, common.Address{})
	w.source.CommitWill(w)
	return nil
}

// Configure moves an empty will to active. Called by the source at creation
// and by the owner in the deferred (diary) flow.
func (w *Will) Configure(caller common.Address, heirs []common.Address, percentages []int, interval int64) error {
	if err := w.enter(); err != nil {
		return err
	}
	defer w.leave()
	return w.configure(caller, heirs, percentages, interval)
}

func (w *Will) configure(caller common.Address, heirs []common.Address, percentages []int, interval int64) error {
	if w.state == schema.WillExecuted {
		return schema.ErrWillExecuted
	}
	if w.state != schema.WillEmpty {
		return schema.ErrWillNotEmpty
	}
	if caller != w.owner && caller != w.source.Account() {
		return schema.ErrNotOwner
	}
	if err := validateHeirs(heirs, percentages); err != nil {
		return err
	}
	interval, err := normalizeInterval(interval)
	if err != nil {
		return err
	}
	w.heirs = append([]common.Address{}, heirs...)
	w.percentages = append([]int{}, percentages...)
	w.interval = interval
	w.lastActivity = w.source.Now()
	w.state = schema.WillActive

	w.source.EmitWillEvent(w, schema.EventConfigured, caller, nil, common.Address{})
	w.source.CommitWill(w)
	return nil
}

// FundAndConfigure is the diary-tier configure that also pulls escrow assets
// from the owner, spending the allowance the owner granted to the source
// account beforehand.
func (w *Will) FundAndConfigure(caller common.Address, heirs []common.Address, percentages []int,
	interval int64, payment *big.Int, tokens []FungibleItem, nfts []NFTItem) error {
	if err := w.enter(); err != nil {
		return err
	}
	defer w.leave()

	if w.state == schema.WillExecuted {
		return schema.ErrWillExecuted
	}
	if w.state != schema.WillEmpty {
		return schema.ErrWillNotEmpty
	}
	if caller != w.owner {
		return schema.ErrNotOwner
	}
	if err := validateHeirs(heirs, percentages); err != nil {
		return err
	}
	interval, err := normalizeInterval(interval)
	if err != nil {
		return err
	}
	if err := w.pullAssets(caller, payment, big.NewInt(0), tokens, nfts); err != nil {
		return err
	}
	return w.configure(caller, heirs, percentages, interval)
}

// pullAssets moves payment and escrow items from the funder into the will.
// fee is the portion of payment kept on the source account. All pulls are
// preflighted so the sequence is all-or-nothing under the engine lock.
func (w *Will) pullAssets(funder common.Address, payment, fee *big.Int, tokens []FungibleItem, nfts []NFTItem) error {
	spender := w.source.Account()
	if payment == nil {
		payment = big.NewInt(0)
	}
	if payment.Sign() < 0 || payment.Cmp(fee) < 0 {
		return schema.ErrBadAmount
	}

	// preflight
	if w.ledger.NativeBalance(funder).Cmp(payment) < 0 {
		return fmt.Errorf("%w: native balance below payment", schema.ErrExternalCall)
	}
	for _, item := range tokens {
		bal, err := w.ledger.BalanceOf(item.Token, funder)
		if err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		if bal.Cmp(item.Amount) < 0 {
			return fmt.Errorf("%w: token balance below amount", schema.ErrExternalCall)
		}
		allowed, err := w.ledger.Allowance(item.Token, funder, spender)
		if err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		if allowed.Cmp(item.Amount) < 0 {
			return fmt.Errorf("%w: token allowance below amount", schema.ErrExternalCall)
		}
	}
	for _, item := range nfts {
		owner, err := w.ledger.OwnerOf(item.Token, item.TokenId)
		if err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		if owner != funder {
			return fmt.Errorf("%w: nft not owned by funder", schema.ErrExternalCall)
		}
		approved, err := w.ledger.ApprovedFor(item.Token, spender, funder, item.TokenId)
		if err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		if !approved {
			return fmt.Errorf("%w: nft transfer not approved", schema.ErrExternalCall)
		}
	}

	if payment.Sign() > 0 {
		if err := w.ledger.NativeTransfer(funder, spender, payment); err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		forward := new(big.Int).Sub(payment, fee)
		if forward.Sign() > 0 {
			if err := w.ledger.NativeTransfer(spender, w.addr, forward); err != nil {
				return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
			}
		}
	}
	for _, item := range tokens {
		if err := w.ledger.TransferFrom(item.Token, spender, funder, w.addr, item.Amount); err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		w.addToken(item.Token)
	}
	for _, item := range nfts {
		if err := w.ledger.TransferNFTFrom(item.Token, spender, funder, w.addr, item.TokenId); err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		w.nfts = append(w.nfts, nftGrant{token: item.Token, tokenId: item.TokenId, heir: item.Heir})
	}
	return nil
}

func (w *Will) addToken(token common.Address) {
	for _, t := range w.tokens {
		if t == token {
			return
		}
	}
	w.tokens = append(w.tokens, token)
}

// EmptyForEdit returns every held asset to the owner and clears the
// configuration, so the owner can revise the will without an inconsistent
// intermediate state.
func (w *Will) EmptyForEdit(caller common.Address) error {
	if err := w.enter(); err != nil {
		return err
	}
	defer w.leave()

	if w.state == schema.WillExecuted {
		return schema.ErrWillExecuted
	}
	if w.state != schema.WillActive {
		return schema.ErrWillNotActive
	}
	if caller != w.owner {
		return schema.ErrNotOwner
	}

	if err := w.returnAllAssets(); err != nil {
		return err
	}
	w.heirs = nil
	w.percentages = nil
	w.tokens = nil
	w.nfts = nil
	w.interval = schema.DefaultInterval
	w.lastActivity = w.source.Now()
	w.state = schema.WillEmpty

	w.source.EmitWillEvent(w, schema.EventEmptied, caller, nil, common.Address{})
	w.source.CommitWill(w)
	return nil
}

// Cancel terminates the will before execution, returning all assets to the
// owner. Whether a flat termination fee applies is source policy; the
// canonical setup charges none.
func (w *Will) Cancel(caller common.Address) error {
	if err := w.enter(); err != nil {
		return err
	}
	defer w.leave()

	if w.state == schema.WillExecuted {
		return schema.ErrWillExecuted
	}
	if caller != w.owner {
		return schema.ErrNotOwner
	}

	prevState := w.state
	w.state = schema.WillExecuted // terminal flag committed before any transfer

	fee := big.NewInt(0)
	if w.terminationFee != nil && w.terminationFee.Sign() > 0 {
		bal := w.ledger.NativeBalance(w.addr)
		fee = new(big.Int).Set(w.terminationFee)
		if bal.Cmp(fee) < 0 {
			fee.Set(bal)
		}
		if fee.Sign() > 0 {
			if err := w.ledger.NativeTransfer(w.addr, w.source.Account(), fee); err != nil {
				w.state = prevState
				return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
			}
		}
	}
	if err := w.returnAllAssets(); err != nil {
		w.state = prevState
		return err
	}

	if err := w.source.ClearWillRecord(w.addr, w.owner); err != nil {
		w.state = prevState
		return err
	}
	w.source.EmitWillEvent(w, schema.EventCancelled, caller, fee, w.source.Account())
	return nil
}

// returnAllAssets sends the native balance, every fungible balance and every
// NFT back to the owner. NFT ownership is preflighted so the sequence cannot
// abort halfway.
func (w *Will) returnAllAssets() error {
	for _, g := range w.nfts {
		owner, err := w.ledger.OwnerOf(g.token, g.tokenId)
		if err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		if owner != w.addr {
			return fmt.Errorf("%w: nft not held by will", schema.ErrExternalCall)
		}
	}

	if bal := w.ledger.NativeBalance(w.addr); bal.Sign() > 0 {
		if err := w.ledger.NativeTransfer(w.addr, w.owner, bal); err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
	}
	for _, token := range w.tokens {
		bal, err := w.ledger.BalanceOf(token, w.addr)
		if err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		if bal.Sign() > 0 {
			if err := w.ledger.Transfer(token, w.addr, w.owner, bal); err != nil {
				return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
			}
		}
	}
	for _, g := range w.nfts {
		if err := w.ledger.TransferNFT(g.token, w.addr, w.owner, g.tokenId); err != nil {
			return fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
	}
	return nil
}

// Execute runs the distribution once eligibility is reached. Inside the
// executor window only the executor snapshot captured at creation may call;
// afterwards anyone may, claiming the execution fee themselves.
func (w *Will) Execute(caller common.Address) (*big.Int, common.Address, error) {
	if err := w.enter(); err != nil {
		return nil, common.Address{}, err
	}
	defer w.leave()

	if w.state == schema.WillExecuted {
		return nil, common.Address{}, schema.ErrWillExecuted
	}
	if w.state != schema.WillActive {
		return nil, common.Address{}, schema.ErrWillNotActive
	}

	now := w.source.Now()
	graceEnd := w.GraceEnd()
	if now < graceEnd {
		return nil, common.Address{}, schema.ErrGraceNotEnded
	}
	feeRecipient := caller
	if now < graceEnd+w.executorWindow {
		if caller != w.executorAddr {
			return nil, common.Address{}, schema.ErrExecutorOnly
		}
		// designated executor works for the platform, fee routes to the source
		feeRecipient = w.source.Account()
	}

	for _, g := range w.nfts {
		owner, err := w.ledger.OwnerOf(g.token, g.tokenId)
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		if owner != w.addr {
			return nil, common.Address{}, fmt.Errorf("%w: nft not held by will", schema.ErrExternalCall)
		}
	}

	w.state = schema.WillExecuted // committed before any external transfer

	nativeFee, err := w.distribute(feeRecipient)
	if err != nil {
		w.state = schema.WillActive
		return nil, common.Address{}, err
	}

	if err := w.source.ClearWillRecord(w.addr, w.owner); err != nil {
		w.state = schema.WillActive
		return nil, common.Address{}, err
	}
	w.source.EmitWillEvent(w, schema.EventExecuted, caller, nativeFee, feeRecipient)
	return nativeFee, feeRecipient, nil
}

// distribute pays the proportional fee and the per-heir shares for the native
// balance and every fungible token, then hands each NFT to its designated
// heir. Each heir share is floor(distributable * pct / 100) computed from the
// same remainder; the few minor units of rounding residue stay on the will
// account, never swept.
func (w *Will) distribute(feeRecipient common.Address) (*big.Int, error) {
	nativeFee := big.NewInt(0)

	if bal := w.ledger.NativeBalance(w.addr); bal.Sign() > 0 {
		nativeFee = w.execFee(bal)
		if nativeFee.Sign() > 0 {
			if err := w.ledger.NativeTransfer(w.addr, feeRecipient, nativeFee); err != nil {
				return nil, fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
			}
		}
		distributable := new(big.Int).Sub(bal, nativeFee)
		for i, heir := range w.heirs {
			share := heirShare(distributable, w.percentages[i])
			if share.Sign() == 0 {
				continue
			}
			if err := w.ledger.NativeTransfer(w.addr, heir, share); err != nil {
				return nil, fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
			}
		}
	}

	for _, token := range w.tokens {
		bal, err := w.ledger.BalanceOf(token, w.addr) // live balance, not cached
		if err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
		if bal.Sign() == 0 {
			continue
		}
		fee := w.execFee(bal)
		if fee.Sign() > 0 {
			if err := w.ledger.Transfer(token, w.addr, feeRecipient, fee); err != nil {
				return nil, fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
			}
		}
		distributable := new(big.Int).Sub(bal, fee)
		for i, heir := range w.heirs {
			share := heirShare(distributable, w.percentages[i])
			if share.Sign() == 0 {
				continue
			}
			if err := w.ledger.Transfer(token, w.addr, heir, share); err != nil {
				return nil, fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
			}
		}
	}

	for _, g := range w.nfts {
		if err := w.ledger.TransferNFT(g.token, w.addr, g.heir, g.tokenId); err != nil {
			return nil, fmt.Errorf("%w: %v", schema.ErrExternalCall, err)
		}
	}
	return nativeFee, nil
}

func (w *Will) execFee(balance *big.Int) *big.Int {
	fee := new(big.Int).Mul(balance, big.NewInt(w.feeBps))
	return fee.Div(fee, big.NewInt(schema.BpsDivisor))
}

func heirShare(distributable *big.Int, percent int) *big.Int {
	share := new(big.Int).Mul(distributable, big.NewInt(int64(percent)))
	return share.Div(share, big.NewInt(schema.PercentDivisor))
}

// Snapshot serializes the full will state for the KV store and the record DB.
func (w *Will) Snapshot() schema.WillSnapshot {
	heirs := make([]string, 0, len(w.heirs))
	for _, h := range w.heirs {
		heirs = append(heirs, h.Hex())
	}
	tokens := make([]string, 0, len(w.tokens))
	for _, t := range w.tokens {
		tokens = append(tokens, t.Hex())
	}
	nfts := make([]schema.NFTGrant, 0, len(w.nfts))
	for _, g := range w.nfts {
		nfts = append(nfts, schema.NFTGrant{
			Token:   g.token.Hex(),
			TokenId: g.tokenId.String(),
			Heir:    g.heir.Hex(),
		})
	}
	return schema.WillSnapshot{
		Addr:         w.addr.Hex(),
		Owner:        w.owner.Hex(),
		State:        w.state,
		Diary:        w.diary,
		Interval:     w.interval,
		LastActivity: w.lastActivity,
		ExecutorAddr: w.executorAddr.Hex(),
		FeeBps:       w.feeBps,
		Heirs:        heirs,
		Percentages:  append([]int{}, w.percentages...),
		Tokens:       tokens,
		NFTs:         nfts,
	}
}
