package domain

import "fmt"

// CategoryError tags every ledger failure with its taxonomy category so a
// caller can tell a permanent admissibility failure from a correctable
// payment one without parsing messages.
type CategoryError struct {
	Category string
	Reason   string
}

// Error categories.
const (
	CategoryAdmissibility  = "admissibility"
	CategoryAuthorization  = "authorization"
	CategoryPayment        = "payment"
	CategorySettlement     = "settlement"
	CategoryReconciliation = "reconciliation"
)

func (e CategoryError) Error() string {
	return e.Reason
}

// Is matches two CategoryErrors on their reason, so errors.Is works against
// the sentinels below regardless of wrapping.
func (e CategoryError) Is(target error) bool {
	t, ok := target.(CategoryError)
	if !ok {
		if tp, okp := target.(*CategoryError); okp {
			t = *tp
		} else {
			return false
		}
	}
	return t.Reason == e.Reason
}

// Admissibility: permanent for the given identifier, never retried.
var (
	ErrBelowFloor      = CategoryError{CategoryAdmissibility, "tokenId below floor"}
	ErrAlreadyIssued   = CategoryError{CategoryAdmissibility, "tokenId already minted"}
	ErrRevokedOrBurnt  = CategoryError{CategoryAdmissibility, "tokenId revoked or burnt"}
	ErrMustExceedFloor = CategoryError{CategoryAdmissibility, "must exceed current floor"}
)

// Authorization: permanent for the given inputs. Which signature sub-check
// failed is deliberately not surfaced past ErrAuthorizationInvalid.
var (
	ErrAuthorizationInvalid = CategoryError{CategoryAuthorization, "signature invalid or signer unauthorized"}
	ErrUnauthorized         = CategoryError{CategoryAuthorization, "unauthorized"}
	ErrNotOwner             = CategoryError{CategoryAuthorization, "caller is not token owner"}
	ErrNotApproved          = CategoryError{CategoryAuthorization, "caller is not owner nor approved"}
	ErrEmptyDescriptor      = CategoryError{CategoryAuthorization, "tokenURI cannot be empty"}
)

// Payment: retryable with a corrected amount.
var (
	ErrNotForSale          = CategoryError{CategoryPayment, "token not for sale"}
	ErrAlreadyOwner        = CategoryError{CategoryPayment, "caller is token owner"}
	ErrInsufficientPayment = CategoryError{CategoryPayment, "insufficient payment sent"}
)

// Settlement: caller logic errors, not transient.
var (
	ErrNothingDue = CategoryError{CategorySettlement, "account is not due payment"}
	ErrNoShares   = CategoryError{CategorySettlement, "account has no shares"}
)

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}
