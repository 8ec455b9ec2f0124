package ledger

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type fungibleToken struct {
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int // owner -> spender -> amount
}

type nftToken struct {
	owners    map[string]common.Address // tokenId -> owner
	approved  map[string]common.Address // tokenId -> approved spender
	operators map[common.Address]map[common.Address]bool
}

// MemLedger is the in-process asset ledger used for local deployments and
// tests. Transfer semantics follow ERC-20/721: allowance and approval guards,
// no negative balances.
type MemLedger struct {
	lock   sync.RWMutex
	native map[common.Address]*big.Int
	tokens map[common.Address]*fungibleToken
	nfts   map[common.Address]*nftToken

	// TransferHook runs after every successful transfer while the ledger
	// lock is released; used to simulate callback-driven reentrancy.
	TransferHook func()
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		native: make(map[common.Address]*big.Int),
		tokens: make(map[common.Address]*fungibleToken),
		nfts:   make(map[common.Address]*nftToken),
	}
}

func (l *MemLedger) runHook() {
	if l.TransferHook != nil {
		l.TransferHook()
	}
}

// MintNative credits a native balance; test and local-genesis helper.
func (l *MemLedger) MintNative(addr common.Address, amount *big.Int) {
	l.lock.Lock()
	defer l.lock.Unlock()
	bal, ok := l.native[addr]
	if !ok {
		bal = new(big.Int)
		l.native[addr] = bal
	}
	bal.Add(bal, amount)
}

func (l *MemLedger) NativeBalance(addr common.Address) *big.Int {
	l.lock.RLock()
	defer l.lock.RUnlock()
	bal, ok := l.native[addr]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

func (l *MemLedger) NativeTransfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrBadAmount
	}
	l.lock.Lock()
	fromBal, ok := l.native[from]
	if !ok || fromBal.Cmp(amount) < 0 {
		l.lock.Unlock()
		return ErrInsufficientBalance
	}
	toBal, ok := l.native[to]
	if !ok {
		toBal = new(big.Int)
		l.native[to] = toBal
	}
	fromBal.Sub(fromBal, amount)
	toBal.Add(toBal, amount)
	l.lock.Unlock()

	l.runHook()
	return nil
}

// Mint credits a fungible token balance, creating the token on first use.
func (l *MemLedger) Mint(token, addr common.Address, amount *big.Int) {
	l.lock.Lock()
	defer l.lock.Unlock()
	tk := l.getOrCreateToken(token)
	bal, ok := tk.balances[addr]
	if !ok {
		bal = new(big.Int)
		tk.balances[addr] = bal
	}
	bal.Add(bal, amount)
}

// Approve sets spender's allowance on owner's balance of token.
func (l *MemLedger) Approve(token, owner, spender common.Address, amount *big.Int) {
	l.lock.Lock()
	defer l.lock.Unlock()
	tk := l.getOrCreateToken(token)
	sp, ok := tk.allowances[owner]
	if !ok {
		sp = make(map[common.Address]*big.Int)
		tk.allowances[owner] = sp
	}
	sp[spender] = new(big.Int).Set(amount)
}

func (l *MemLedger) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	tk, ok := l.tokens[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	sp, ok := tk.allowances[owner]
	if !ok {
		return new(big.Int), nil
	}
	amt, ok := sp[spender]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(amt), nil
}

func (l *MemLedger) BalanceOf(token, addr common.Address) (*big.Int, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	tk, ok := l.tokens[token]
	if !ok {
		return nil, ErrUnknownToken
	}
	bal, ok := tk.balances[addr]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(bal), nil
}

func (l *MemLedger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrBadAmount
	}
	l.lock.Lock()
	tk, ok := l.tokens[token]
	if !ok {
		l.lock.Unlock()
		return ErrUnknownToken
	}
	if err := tk.move(from, to, amount); err != nil {
		l.lock.Unlock()
		return err
	}
	l.lock.Unlock()

	l.runHook()
	return nil
}

func (l *MemLedger) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrBadAmount
	}
	l.lock.Lock()
	tk, ok := l.tokens[token]
	if !ok {
		l.lock.Unlock()
		return ErrUnknownToken
	}
	allowed := tk.allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		l.lock.Unlock()
		return ErrInsufficientAllowance
	}
	if err := tk.move(from, to, amount); err != nil {
		l.lock.Unlock()
		return err
	}
	allowed.Sub(allowed, amount)
	l.lock.Unlock()

	l.runHook()
	return nil
}

// MintNFT assigns a fresh tokenId to addr, creating the collection on first use.
func (l *MemLedger) MintNFT(token, addr common.Address, tokenId *big.Int) {
	l.lock.Lock()
	defer l.lock.Unlock()
	nk := l.getOrCreateNFT(token)
	nk.owners[tokenId.String()] = addr
}

// ApproveNFT grants spender transfer rights on one tokenId.
func (l *MemLedger) ApproveNFT(token, owner, spender common.Address, tokenId *big.Int) {
	l.lock.Lock()
	defer l.lock.Unlock()
	nk := l.getOrCreateNFT(token)
	if nk.owners[tokenId.String()] == owner {
		nk.approved[tokenId.String()] = spender
	}
}

// SetApprovalForAll grants or revokes operator rights on every token owner holds.
func (l *MemLedger) SetApprovalForAll(token, owner, operator common.Address, approved bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	nk := l.getOrCreateNFT(token)
	ops, ok := nk.operators[owner]
	if !ok {
		ops = make(map[common.Address]bool)
		nk.operators[owner] = ops
	}
	ops[operator] = approved
}

func (l *MemLedger) OwnerOf(token common.Address, tokenId *big.Int) (common.Address, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	nk, ok := l.nfts[token]
	if !ok {
		return common.Address{}, ErrUnknownToken
	}
	owner, ok := nk.owners[tokenId.String()]
	if !ok {
		return common.Address{}, ErrUnknownTokenId
	}
	return owner, nil
}

func (l *MemLedger) ApprovedFor(token, spender, owner common.Address, tokenId *big.Int) (bool, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	nk, ok := l.nfts[token]
	if !ok {
		return false, ErrUnknownToken
	}
	id := tokenId.String()
	if nk.owners[id] != owner {
		return false, nil
	}
	return nk.approved[id] == spender || nk.operators[owner][spender], nil
}

func (l *MemLedger) TransferNFT(token, from, to common.Address, tokenId *big.Int) error {
	l.lock.Lock()
	nk, ok := l.nfts[token]
	if !ok {
		l.lock.Unlock()
		return ErrUnknownToken
	}
	if err := nk.move(from, to, tokenId); err != nil {
		l.lock.Unlock()
		return err
	}
	l.lock.Unlock()

	l.runHook()
	return nil
}

func (l *MemLedger) TransferNFTFrom(token, spender, from, to common.Address, tokenId *big.Int) error {
	l.lock.Lock()
	nk, ok := l.nfts[token]
	if !ok {
		l.lock.Unlock()
		return ErrUnknownToken
	}
	id := tokenId.String()
	if nk.approved[id] != spender && !nk.operators[from][spender] {
		l.lock.Unlock()
		return ErrNotApproved
	}
	if err := nk.move(from, to, tokenId); err != nil {
		l.lock.Unlock()
		return err
	}
	l.lock.Unlock()

	l.runHook()
	return nil
}

func (l *MemLedger) getOrCreateToken(token common.Address) *fungibleToken {
	tk, ok := l.tokens[token]
	if !ok {
		tk = &fungibleToken{
			balances:   make(map[common.Address]*big.Int),
			allowances: make(map[common.Address]map[common.Address]*big.Int),
		}
		l.tokens[token] = tk
	}
	return tk
}

func (l *MemLedger) getOrCreateNFT(token common.Address) *nftToken {
	nk, ok := l.nfts[token]
	if !ok {
		nk = &nftToken{
			owners:    make(map[string]common.Address),
			approved:  make(map[string]common.Address),
			operators: make(map[common.Address]map[common.Address]bool),
		}
		l.nfts[token] = nk
	}
	return nk
}

func (tk *fungibleToken) move(from, to common.Address, amount *big.Int) error {
	fromBal, ok := tk.balances[from]
	if !ok || fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBal, ok := tk.balances[to]
	if !ok {
		toBal = new(big.Int)
		tk.balances[to] = toBal
	}
	fromBal.Sub(fromBal, amount)
	toBal.Add(toBal, amount)
	return nil
}

func (tk *fungibleToken) allowance(owner, spender common.Address) *big.Int {
	sp, ok := tk.allowances[owner]
	if !ok {
		return new(big.Int)
	}
	amt, ok := sp[spender]
	if !ok {
		zero := new(big.Int)
		sp[spender] = zero
		return zero
	}
	return amt
}

func (nk *nftToken) move(from, to common.Address, tokenId *big.Int) error {
	id := tokenId.String()
	owner, ok := nk.owners[id]
	if !ok || owner != from {
		return ErrNotTokenOwner
	}
	nk.owners[id] = to
	delete(nk.approved, id) // transfer clears the per-token approval
	return nil
}
