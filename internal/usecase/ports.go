package usecase

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/totegamma/nftsurface"
	"github.com/totegamma/nftsurface/internal/domain"
)

// AssetRepository defines atomic storage operations for assets and the
// identifier admissibility state. Create must fail with ErrAlreadyIssued
// when the id exists, so two concurrent redemptions can never both succeed.
type AssetRepository interface {
	Get(ctx context.Context, id uint64) (domain.Asset, error)
	Create(ctx context.Context, asset domain.Asset) error
	SetPrice(ctx context.Context, id uint64, price sdkmath.Int) error
	SetOwner(ctx context.Context, id uint64, owner string) error
	Burn(ctx context.Context, id uint64) error
	TotalSupply(ctx context.Context) (int64, error)

	Floor(ctx context.Context) (uint64, error)
	SetFloor(ctx context.Context, floor uint64) error
	IsRevoked(ctx context.Context, id uint64) (bool, error)
	Revoke(ctx context.Context, id uint64) error

	Approve(ctx context.Context, id uint64, operator string) error
	IsApproved(ctx context.Context, id uint64, operator string) (bool, error)
}

// AccessRepository persists role grants.
type AccessRepository interface {
	HasRole(ctx context.Context, role, principal string) (bool, error)
	GrantRole(ctx context.Context, role, principal string) error
	RevokeRole(ctx context.Context, role, principal string) error
	RoleMembers(ctx context.Context, role string) ([]string, error)
}

// SettlementRepository persists the payee table, receipts and the royalty
// rate. ApplyRelease must bump the payee's released amount and append the
// audit row in one transaction.
type SettlementRepository interface {
	TotalReceived(ctx context.Context) (sdkmath.Int, error)
	AddReceipt(ctx context.Context, amount sdkmath.Int) error
	Payee(ctx context.Context, account string) (domain.Payee, error)
	Payees(ctx context.Context) ([]domain.Payee, error)
	ApplyRelease(ctx context.Context, account string, amount sdkmath.Int) error
	RecordPayout(ctx context.Context, account string, amount sdkmath.Int) error

	Royalty(ctx context.Context) (uint32, error)
	SetRoyalty(ctx context.Context, bps uint32) error
}

// Transactor runs fn atomically. Repository calls made with the context it
// passes join one storage transaction, committed only when fn returns nil.
type Transactor interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventBus announces ledger state transitions to external observers.
type EventBus interface {
	Publish(ctx context.Context, event nftsurface.Event) error
}
