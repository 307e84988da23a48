package usecase

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/pkg/errors"

	"github.com/totegamma/nftsurface"
	"github.com/totegamma/nftsurface/internal/domain"
)

// SettlementUsecase runs the proportional payout table. A payee's
// entitlement at any moment is
//
//	floor(totalReceived * shares / totalShares) - alreadyReleased
//
// which is order-independent across receipts and releases. Flooring leaves
// a residual in the engine balance; it is accepted, never redistributed.
type SettlementUsecase struct {
	repo   SettlementRepository
	access *AccessUsecase
	bus    EventBus
}

func NewSettlementUsecase(repo SettlementRepository, access *AccessUsecase, bus EventBus) *SettlementUsecase {
	return &SettlementUsecase{repo: repo, access: access, bus: bus}
}

// Receive records incoming funds against the running total.
func (uc *SettlementUsecase) Receive(ctx context.Context, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return errors.New("receipt amount must be positive")
	}
	if err := uc.repo.AddReceipt(ctx, amount); err != nil {
		return errors.Wrap(err, "recording receipt")
	}
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventReceipt, Amount: &amount, Time: time.Now().UTC()})
	return nil
}

// Due returns the payee's current entitlement.
func (uc *SettlementUsecase) Due(ctx context.Context, account string) (sdkmath.Int, error) {
	account = nftsurface.NormalizeAddress(account)
	payee, err := uc.repo.Payee(ctx, account)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if payee.Shares == 0 {
		return sdkmath.ZeroInt(), domain.ErrNoShares
	}
	total, err := uc.repo.TotalReceived(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	totalShares, err := uc.totalShares(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	entitled := total.MulRaw(int64(payee.Shares)).QuoRaw(totalShares)
	return entitled.Sub(payee.Released), nil
}

// Release pays out a payee's entitlement. Callable by the treasurer or by
// the payee themselves. The due amount is cleared in storage strictly
// before the outbound transfer is announced.
func (uc *SettlementUsecase) Release(ctx context.Context, caller, account string) (sdkmath.Int, error) {
	caller = nftsurface.NormalizeAddress(caller)
	account = nftsurface.NormalizeAddress(account)
	if caller != account {
		ok, err := uc.access.IsTreasurer(ctx, caller)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		if !ok {
			return sdkmath.ZeroInt(), domain.ErrUnauthorized
		}
	}

	due, err := uc.Due(ctx, account)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !due.IsPositive() {
		return sdkmath.ZeroInt(), domain.ErrNothingDue
	}

	if err := uc.repo.ApplyRelease(ctx, account, due); err != nil {
		return sdkmath.ZeroInt(), errors.Wrap(err, "applying release")
	}
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventWithdrawal, To: account, Amount: &due, Time: time.Now().UTC()})
	return due, nil
}

func (uc *SettlementUsecase) TotalReceived(ctx context.Context) (sdkmath.Int, error) {
	return uc.repo.TotalReceived(ctx)
}

func (uc *SettlementUsecase) Payees(ctx context.Context) ([]domain.Payee, error) {
	return uc.repo.Payees(ctx)
}

// Royalty returns the resale royalty rate in basis points.
func (uc *SettlementUsecase) Royalty(ctx context.Context) (uint32, error) {
	return uc.repo.Royalty(ctx)
}

// SetRoyalty adjusts the royalty rate. Admin only; capped at 100%.
func (uc *SettlementUsecase) SetRoyalty(ctx context.Context, caller string, bps uint32) error {
	if bps > domain.BasisPointsDenominator {
		return errors.New("royalty rate exceeds 10000 basis points")
	}
	ok, err := uc.access.IsAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return uc.repo.SetRoyalty(ctx, bps)
}

// RoyaltyOn computes the royalty withheld from a sale at the given listed
// price. Overpayment never participates.
func (uc *SettlementUsecase) RoyaltyOn(ctx context.Context, price sdkmath.Int) (sdkmath.Int, error) {
	bps, err := uc.repo.Royalty(ctx)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return price.MulRaw(int64(bps)).QuoRaw(domain.BasisPointsDenominator), nil
}

// RecordPayout logs a direct outbound transfer that bypasses the payee
// table, such as seller proceeds on a sale.
func (uc *SettlementUsecase) RecordPayout(ctx context.Context, account string, amount sdkmath.Int) error {
	return uc.repo.RecordPayout(ctx, nftsurface.NormalizeAddress(account), amount)
}

func (uc *SettlementUsecase) totalShares(ctx context.Context) (int64, error) {
	payees, err := uc.repo.Payees(ctx)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, p := range payees {
		total += int64(p.Shares)
	}
	if total == 0 {
		return 0, domain.ErrNoShares
	}
	return total, nil
}

func (uc *SettlementUsecase) announce(ctx context.Context, event nftsurface.Event) {
	if uc.bus == nil {
		return
	}
	// announcement failures never roll back settled state
	_ = uc.bus.Publish(ctx, event)
}
