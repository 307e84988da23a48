package usecase

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/pkg/errors"

	"github.com/totegamma/nftsurface"
	"github.com/totegamma/nftsurface/internal/codec"
	"github.com/totegamma/nftsurface/internal/domain"
)

// LedgerUsecase owns per-asset lifecycle state and enforces every
// transition rule. Checks run in a fixed order, admissibility first, then
// authorization, then payment exactness, and nothing mutates unless all of
// them pass.
type LedgerUsecase struct {
	repo       AssetRepository
	access     *AccessUsecase
	settlement *SettlementUsecase
	codec      *codec.Codec
	tx         Transactor
	bus        EventBus
}

func NewLedgerUsecase(
	repo AssetRepository,
	access *AccessUsecase,
	settlement *SettlementUsecase,
	codec *codec.Codec,
	tx Transactor,
	bus EventBus,
) *LedgerUsecase {
	return &LedgerUsecase{
		repo:       repo,
		access:     access,
		settlement: settlement,
		codec:      codec,
		tx:         tx,
		bus:        bus,
	}
}

// Vacant reports whether the id can still be issued. The three negative
// causes are distinguished: ErrBelowFloor, ErrAlreadyIssued,
// ErrRevokedOrBurnt. Below-floor wins over every other state.
func (uc *LedgerUsecase) Vacant(ctx context.Context, id uint64) (bool, error) {
	floor, err := uc.repo.Floor(ctx)
	if err != nil {
		return false, err
	}
	if id < floor {
		return false, domain.ErrBelowFloor
	}

	asset, err := uc.repo.Get(ctx, id)
	switch {
	case err == nil:
		if asset.Burnt {
			return false, domain.ErrRevokedOrBurnt
		}
		return false, domain.ErrAlreadyIssued
	case !errors.Is(err, domain.ErrNotFound):
		return false, err
	}

	revoked, err := uc.repo.IsRevoked(ctx, id)
	if err != nil {
		return false, err
	}
	if revoked {
		return false, domain.ErrRevokedOrBurnt
	}
	return true, nil
}

// Redeem issues a vacant asset to the caller against a signed voucher. The
// payment must equal the signed price exactly; any mismatch of price, id,
// descriptor, signature or amount reports only ErrAuthorizationInvalid so a
// forger cannot learn which check failed.
func (uc *LedgerUsecase) Redeem(ctx context.Context, caller string, voucher nftsurface.Voucher, paid sdkmath.Int) error {
	if _, err := uc.Vacant(ctx, voucher.AssetID); err != nil {
		return err
	}

	if voucher.Descriptor == "" || voucher.Price.IsNil() || voucher.Price.IsNegative() {
		return domain.ErrAuthorizationInvalid
	}
	signer, err := uc.codec.RecoverSigner(voucher.Price, voucher.AssetID, voucher.Descriptor, voucher.Signature)
	if err != nil {
		return domain.ErrAuthorizationInvalid
	}
	authorized, err := uc.access.IsAgent(ctx, signer)
	if err != nil {
		return err
	}
	if !authorized {
		return domain.ErrAuthorizationInvalid
	}

	if paid.IsNil() || !paid.Equal(voucher.Price) {
		return domain.ErrAuthorizationInvalid
	}

	caller = nftsurface.NormalizeAddress(caller)
	err = uc.atomic(ctx, func(ctx context.Context) error {
		err := uc.repo.Create(ctx, domain.Asset{
			ID:         voucher.AssetID,
			Owner:      caller,
			Descriptor: voucher.Descriptor,
			Price:      sdkmath.ZeroInt(),
		})
		if err != nil {
			return err
		}
		// a zero-price voucher is a free mint, nothing enters settlement
		if paid.IsPositive() {
			return uc.settlement.Receive(ctx, paid)
		}
		return nil
	})
	if err != nil {
		return err
	}
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventTransfer, AssetID: voucher.AssetID, To: caller, Time: time.Now().UTC()})
	return nil
}

// IssueDirect mints without voucher or payment. Issuing authority only.
func (uc *LedgerUsecase) IssueDirect(ctx context.Context, caller string, id uint64, owner, descriptorURI string) error {
	if _, err := uc.Vacant(ctx, id); err != nil {
		return err
	}
	authorized, err := uc.access.IsAgent(ctx, caller)
	if err != nil {
		return err
	}
	if !authorized {
		return domain.ErrUnauthorized
	}
	if descriptorURI == "" {
		return domain.ErrEmptyDescriptor
	}

	owner = nftsurface.NormalizeAddress(owner)
	err = uc.repo.Create(ctx, domain.Asset{
		ID:         id,
		Owner:      owner,
		Descriptor: descriptorURI,
		Price:      sdkmath.ZeroInt(),
	})
	if err != nil {
		return err
	}
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventTransfer, AssetID: id, To: owner, Time: time.Now().UTC()})
	return nil
}

// SetPrice lists an issued asset for sale, or delists it with zero.
func (uc *LedgerUsecase) SetPrice(ctx context.Context, caller string, id uint64, price sdkmath.Int) error {
	asset, err := uc.activeAsset(ctx, id)
	if err != nil {
		return domain.ErrNotOwner
	}
	if asset.Owner != nftsurface.NormalizeAddress(caller) {
		return domain.ErrNotOwner
	}
	if price.IsNil() || price.IsNegative() {
		return errors.New("price must not be negative")
	}
	if err := uc.repo.SetPrice(ctx, id, price); err != nil {
		return err
	}
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventPriceSet, AssetID: id, Amount: &price, Time: time.Now().UTC()})
	return nil
}

// Buy transfers a listed asset to the caller. The royalty, computed on the
// listed price only, is withheld into settlement; the remainder of the
// listed price is paid out to the seller directly; any overpayment is
// returned to the buyer.
func (uc *LedgerUsecase) Buy(ctx context.Context, caller string, id uint64, paid sdkmath.Int) (sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()

	asset, err := uc.activeAsset(ctx, id)
	if err != nil {
		return zero, domain.ErrNotForSale
	}
	if !asset.Price.IsPositive() {
		return zero, domain.ErrNotForSale
	}
	caller = nftsurface.NormalizeAddress(caller)
	if asset.Owner == caller {
		return zero, domain.ErrAlreadyOwner
	}
	if paid.IsNil() || paid.LT(asset.Price) {
		return zero, domain.ErrInsufficientPayment
	}

	royalty, err := uc.settlement.RoyaltyOn(ctx, asset.Price)
	if err != nil {
		return zero, err
	}
	proceeds := asset.Price.Sub(royalty)
	refund := paid.Sub(asset.Price)

	seller := asset.Owner
	err = uc.atomic(ctx, func(ctx context.Context) error {
		if err := uc.repo.SetOwner(ctx, id, caller); err != nil {
			return err
		}
		if royalty.IsPositive() {
			if err := uc.settlement.Receive(ctx, royalty); err != nil {
				return err
			}
		}
		return uc.settlement.RecordPayout(ctx, seller, proceeds)
	})
	if err != nil {
		return zero, err
	}

	now := time.Now().UTC()
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventBought, AssetID: id, From: seller, To: caller, Amount: &asset.Price, Time: now})
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventTransfer, AssetID: id, From: seller, To: caller, Time: now})
	return refund, nil
}

// Transfer moves an asset outside the marketplace. Owner only; the sale
// price resets and no settlement is triggered.
func (uc *LedgerUsecase) Transfer(ctx context.Context, caller string, id uint64, to string) error {
	asset, err := uc.activeAsset(ctx, id)
	if err != nil {
		return domain.ErrNotOwner
	}
	caller = nftsurface.NormalizeAddress(caller)
	if asset.Owner != caller {
		return domain.ErrNotOwner
	}
	if !nftsurface.IsHexAddress(to) {
		return errors.New("invalid recipient address")
	}
	to = nftsurface.NormalizeAddress(to)
	if err := uc.repo.SetOwner(ctx, id, to); err != nil {
		return err
	}
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventTransfer, AssetID: id, From: caller, To: to, Time: time.Now().UTC()})
	return nil
}

// Approve lets the owner authorize one operator to burn the asset.
func (uc *LedgerUsecase) Approve(ctx context.Context, caller string, id uint64, operator string) error {
	asset, err := uc.activeAsset(ctx, id)
	if err != nil {
		return domain.ErrNotOwner
	}
	if asset.Owner != nftsurface.NormalizeAddress(caller) {
		return domain.ErrNotOwner
	}
	return uc.repo.Approve(ctx, id, nftsurface.NormalizeAddress(operator))
}

// Burn permanently retires an asset. Owner or approved operator only. The
// id can never satisfy Vacant again.
func (uc *LedgerUsecase) Burn(ctx context.Context, caller string, id uint64) error {
	asset, err := uc.activeAsset(ctx, id)
	if err != nil {
		return err
	}
	caller = nftsurface.NormalizeAddress(caller)
	if asset.Owner != caller {
		approved, err := uc.repo.IsApproved(ctx, id, caller)
		if err != nil {
			return err
		}
		if !approved {
			return domain.ErrNotApproved
		}
	}
	if err := uc.repo.Burn(ctx, id); err != nil {
		return err
	}
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventTransfer, AssetID: id, From: asset.Owner, Time: time.Now().UTC()})
	return nil
}

// RevokeID permanently retires a never-issued id. Issuing authority only.
func (uc *LedgerUsecase) RevokeID(ctx context.Context, caller string, id uint64) error {
	if _, err := uc.Vacant(ctx, id); err != nil {
		return err
	}
	authorized, err := uc.access.IsAgent(ctx, caller)
	if err != nil {
		return err
	}
	if !authorized {
		return domain.ErrUnauthorized
	}
	if err := uc.repo.Revoke(ctx, id); err != nil {
		return err
	}
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventIdRevoked, AssetID: id, Time: time.Now().UTC()})
	return nil
}

// SetFloor raises the minimum admissible id. Monotonic: a value at or below
// the current floor is rejected.
func (uc *LedgerUsecase) SetFloor(ctx context.Context, caller string, floor uint64) error {
	current, err := uc.repo.Floor(ctx)
	if err != nil {
		return err
	}
	if floor <= current {
		return domain.ErrMustExceedFloor
	}
	authorized, err := uc.access.IsAgent(ctx, caller)
	if err != nil {
		return err
	}
	if !authorized {
		return domain.ErrUnauthorized
	}
	if err := uc.repo.SetFloor(ctx, floor); err != nil {
		return err
	}
	uc.announce(ctx, nftsurface.Event{Type: nftsurface.EventFloorSet, AssetID: floor, Time: time.Now().UTC()})
	return nil
}

// OwnerOf returns the current owner of an issued asset.
func (uc *LedgerUsecase) OwnerOf(ctx context.Context, id uint64) (string, error) {
	asset, err := uc.activeAsset(ctx, id)
	if err != nil {
		return "", err
	}
	return asset.Owner, nil
}

// Price returns the sale price; zero means not for sale.
func (uc *LedgerUsecase) Price(ctx context.Context, id uint64) (sdkmath.Int, error) {
	asset, err := uc.activeAsset(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return sdkmath.ZeroInt(), nil
		}
		return sdkmath.ZeroInt(), err
	}
	return asset.Price, nil
}

// DescriptorURI returns the immutable descriptor of an issued asset, or ""
// when the id was never issued or has been burnt.
func (uc *LedgerUsecase) DescriptorURI(ctx context.Context, id uint64) (string, error) {
	asset, err := uc.activeAsset(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return asset.Descriptor, nil
}

// TotalSupply counts issued, unburnt assets.
func (uc *LedgerUsecase) TotalSupply(ctx context.Context) (int64, error) {
	return uc.repo.TotalSupply(ctx)
}

// Floor returns the current identifier floor.
func (uc *LedgerUsecase) Floor(ctx context.Context) (uint64, error) {
	return uc.repo.Floor(ctx)
}

// State resolves one id to its full lifecycle view, used by the catalog
// reconciler and the read API.
func (uc *LedgerUsecase) State(ctx context.Context, id uint64) (nftsurface.AssetState, error) {
	state := nftsurface.AssetState{AssetID: id, Price: sdkmath.ZeroInt()}

	vacant, cause := uc.Vacant(ctx, id)
	if vacant {
		state.Status = nftsurface.StatusVacant
		return state, nil
	}
	switch {
	case errors.Is(cause, domain.ErrBelowFloor):
		state.Status = nftsurface.StatusBelowFloor
		return state, nil
	case errors.Is(cause, domain.ErrAlreadyIssued):
		asset, err := uc.repo.Get(ctx, id)
		if err != nil {
			return state, err
		}
		state.Owner = asset.Owner
		state.Descriptor = asset.Descriptor
		state.Price = asset.Price
		if asset.Price.IsPositive() {
			state.Status = nftsurface.StatusForSale
		} else {
			state.Status = nftsurface.StatusIssued
		}
		return state, nil
	case errors.Is(cause, domain.ErrRevokedOrBurnt):
		asset, err := uc.repo.Get(ctx, id)
		if err == nil && asset.Burnt {
			state.Status = nftsurface.StatusBurnt
		} else {
			state.Status = nftsurface.StatusRevoked
		}
		return state, nil
	}
	return state, cause
}

// activeAsset fetches an asset that is issued and not burnt.
func (uc *LedgerUsecase) activeAsset(ctx context.Context, id uint64) (domain.Asset, error) {
	asset, err := uc.repo.Get(ctx, id)
	if err != nil {
		return domain.Asset{}, err
	}
	if asset.Burnt {
		return domain.Asset{}, domain.NotFoundError{Resource: "asset"}
	}
	return asset, nil
}

// atomic wraps a multi-repository mutation phase in one storage
// transaction, so a failure partway through leaves nothing applied.
func (uc *LedgerUsecase) atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if uc.tx == nil {
		return fn(ctx)
	}
	return uc.tx.Atomic(ctx, fn)
}

func (uc *LedgerUsecase) announce(ctx context.Context, event nftsurface.Event) {
	if uc.bus == nil {
		return
	}
	_ = uc.bus.Publish(ctx, event)
}
