package inter

import (
	"errors"

	"github.com/rony4d/go-powchain/crypto"
)

// Rejection kinds. Every validation failure wraps exactly one of them, so
// callers classify with errors.Is and can show the message verbatim.
var (
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidLinkage       = errors.New("invalid linkage")
	ErrInvalidProofOfWork   = errors.New("invalid proof of work")
	ErrInvalidCoinbase      = errors.New("invalid coinbase")
	ErrStaleTip             = errors.New("stale tip")
	ErrInvalidBlock         = errors.New("invalid block")

	ErrInvalidKey = crypto.ErrInvalidKey
)
