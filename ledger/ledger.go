package ledger

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient_balance")
	ErrInsufficientAllowance = errors.New("insufficient_allowance")
	ErrNotTokenOwner         = errors.New("not_token_owner")
	ErrNotApproved           = errors.New("not_approved")
	ErrUnknownToken          = errors.New("unknown_token")
	ErrUnknownTokenId        = errors.New("unknown_token_id")
	ErrBadAmount             = errors.New("invalid_amount")
)

// Native is the native-coin side of the asset ledger. Accounts are plain
// addresses; the engine moves value out of accounts it controls (the source
// account and every will account it deployed).
type Native interface {
	NativeBalance(addr common.Address) *big.Int
	NativeTransfer(from, to common.Address, amount *big.Int) error
}

// Fungible is the ERC-20 style surface the engine needs: live balance reads,
// transfers out of engine-controlled accounts, and allowance-gated pulls.
type Fungible interface {
	BalanceOf(token, addr common.Address) (*big.Int, error)
	Allowance(token, owner, spender common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
	// TransferFrom spends spender's allowance granted by from.
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
}

// NonFungible is the ERC-721 style surface: ownership reads, transfers out of
// engine-controlled accounts, and approval-gated pulls.
type NonFungible interface {
	OwnerOf(token common.Address, tokenId *big.Int) (common.Address, error)
	// ApprovedFor reports whether spender may move owner's tokenId, via a
	// per-token approval or an operator approval.
	ApprovedFor(token, spender, owner common.Address, tokenId *big.Int) (bool, error)
	TransferNFT(token, from, to common.Address, tokenId *big.Int) error
	// TransferNFTFrom requires a per-token approval or operator approval
	// granted by from to spender.
	TransferNFTFrom(token, spender, from, to common.Address, tokenId *big.Int) error
}

// Ledger is the full asset ledger boundary the will engine depends on.
type Ledger interface {
	Native
	Fungible
	NonFungible
}
