package schema

import (
	"errors"
)

var (
	ErrNotExist = errors.New("not_exist_record")

	// authorization
	ErrNotOwner          = errors.New("not_will_owner")
	ErrExecutorOnly      = errors.New("executor_window_restricted")
	ErrNotRegisteredWill = errors.New("not_registered_will")
	ErrNotGovernor       = errors.New("not_governor")
	ErrBadSignature      = errors.New("invalid_signature")

	// state
	ErrWillExecuted  = errors.New("will_executed")
	ErrWillNotActive = errors.New("will_not_active")
	ErrWillNotEmpty  = errors.New("will_not_empty")
	ErrGraceNotEnded = errors.New("grace_period_not_ended")
	ErrReentrantCall = errors.New("reentrant_call")

	// validation
	ErrBadAddress      = errors.New("invalid_address")
	ErrHeirsMismatch   = errors.New("heirs_percentages_length_mismatch")
	ErrNoHeirs         = errors.New("empty_heirs")
	ErrPercentSum      = errors.New("percentages_not_sum_100")
	ErrBadInterval     = errors.New("invalid_interval")
	ErrInsufficientFee = errors.New("insufficient_fee_payment")
	ErrBadAmount       = errors.New("invalid_amount")

	// registry
	ErrWillExist = errors.New("will_already_registered")

	// external ledger call failed and the whole operation was aborted
	ErrExternalCall = errors.New("ledger_call_failed")
)
