package usecase

import (
	"context"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/totegamma/nftsurface"
	"github.com/totegamma/nftsurface/internal/domain"
)

// in-memory repositories backing the use-case tests

type memAssetRepo struct {
	mu       sync.Mutex
	assets   map[uint64]domain.Asset
	revoked  map[uint64]bool
	approved map[uint64]map[string]bool
	floor    uint64
}

func newMemAssetRepo() *memAssetRepo {
	return &memAssetRepo{
		assets:   make(map[uint64]domain.Asset),
		revoked:  make(map[uint64]bool),
		approved: make(map[uint64]map[string]bool),
	}
}

func (r *memAssetRepo) Get(ctx context.Context, id uint64) (domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[id]
	if !ok {
		return domain.Asset{}, domain.NotFoundError{Resource: "asset"}
	}
	return asset, nil
}

func (r *memAssetRepo) Create(ctx context.Context, asset domain.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assets[asset.ID]; ok {
		return domain.ErrAlreadyIssued
	}
	r.assets[asset.ID] = asset
	return nil
}

func (r *memAssetRepo) SetPrice(ctx context.Context, id uint64, price sdkmath.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset := r.assets[id]
	asset.Price = price
	r.assets[id] = asset
	return nil
}

func (r *memAssetRepo) SetOwner(ctx context.Context, id uint64, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset := r.assets[id]
	asset.Owner = owner
	asset.Price = sdkmath.ZeroInt()
	r.assets[id] = asset
	delete(r.approved, id)
	return nil
}

func (r *memAssetRepo) Burn(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset := r.assets[id]
	asset.Owner = ""
	asset.Descriptor = ""
	asset.Price = sdkmath.ZeroInt()
	asset.Burnt = true
	r.assets[id] = asset
	delete(r.approved, id)
	return nil
}

func (r *memAssetRepo) TotalSupply(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, asset := range r.assets {
		if !asset.Burnt {
			n++
		}
	}
	return n, nil
}

func (r *memAssetRepo) Floor(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.floor, nil
}

func (r *memAssetRepo) SetFloor(ctx context.Context, floor uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.floor = floor
	return nil
}

func (r *memAssetRepo) IsRevoked(ctx context.Context, id uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revoked[id], nil
}

func (r *memAssetRepo) Revoke(ctx context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[id] = true
	return nil
}

func (r *memAssetRepo) Approve(ctx context.Context, id uint64, operator string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.approved[id] == nil {
		r.approved[id] = make(map[string]bool)
	}
	r.approved[id][operator] = true
	return nil
}

func (r *memAssetRepo) IsApproved(ctx context.Context, id uint64, operator string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.approved[id][operator], nil
}

func (r *memAssetRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	assets := make(map[uint64]domain.Asset, len(r.assets))
	for id, asset := range r.assets {
		assets[id] = asset
	}
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.assets = assets
	}
}

// memTransactor restores the mock repositories to their pre-call state when
// the wrapped function fails, mimicking a storage transaction rollback.
type memTransactor struct {
	assets *memAssetRepo
	funds  *memSettlementRepo
}

func (t *memTransactor) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	restoreAssets := t.assets.snapshot()
	restoreFunds := t.funds.snapshot()
	if err := fn(ctx); err != nil {
		restoreAssets()
		restoreFunds()
		return err
	}
	return nil
}

type memAccessRepo struct {
	mu    sync.Mutex
	roles map[string]map[string]bool
}

func newMemAccessRepo() *memAccessRepo {
	return &memAccessRepo{roles: make(map[string]map[string]bool)}
}

func (r *memAccessRepo) HasRole(ctx context.Context, role, principal string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roles[role][principal], nil
}

func (r *memAccessRepo) GrantRole(ctx context.Context, role, principal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roles[role] == nil {
		r.roles[role] = make(map[string]bool)
	}
	r.roles[role][principal] = true
	return nil
}

func (r *memAccessRepo) RevokeRole(ctx context.Context, role, principal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles[role], principal)
	return nil
}

func (r *memAccessRepo) RoleMembers(ctx context.Context, role string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var members []string
	for principal := range r.roles[role] {
		members = append(members, principal)
	}
	return members, nil
}

type memSettlementRepo struct {
	mu         sync.Mutex
	total      sdkmath.Int
	payees     map[string]*domain.Payee
	payouts    []domain.Release
	releases   []domain.Release
	royalty    uint32
	receiptErr error
}

func newMemSettlementRepo(royalty uint32) *memSettlementRepo {
	return &memSettlementRepo{
		total:   sdkmath.ZeroInt(),
		payees:  make(map[string]*domain.Payee),
		royalty: royalty,
	}
}

func (r *memSettlementRepo) addPayee(account string, shares uint64) {
	r.payees[account] = &domain.Payee{Account: account, Shares: shares, Released: sdkmath.ZeroInt()}
}

func (r *memSettlementRepo) TotalReceived(ctx context.Context) (sdkmath.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total, nil
}

func (r *memSettlementRepo) AddReceipt(ctx context.Context, amount sdkmath.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.receiptErr != nil {
		return r.receiptErr
	}
	r.total = r.total.Add(amount)
	return nil
}

func (r *memSettlementRepo) snapshot() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := r.total
	payouts := append([]domain.Release(nil), r.payouts...)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.total = total
		r.payouts = payouts
	}
}

func (r *memSettlementRepo) Payee(ctx context.Context, account string) (domain.Payee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	payee, ok := r.payees[account]
	if !ok {
		return domain.Payee{}, domain.ErrNoShares
	}
	return *payee, nil
}

func (r *memSettlementRepo) Payees(ctx context.Context) ([]domain.Payee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Payee
	for _, payee := range r.payees {
		out = append(out, *payee)
	}
	return out, nil
}

func (r *memSettlementRepo) ApplyRelease(ctx context.Context, account string, amount sdkmath.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payee := r.payees[account]
	payee.Released = payee.Released.Add(amount)
	r.releases = append(r.releases, domain.Release{Account: account, Amount: amount})
	return nil
}

func (r *memSettlementRepo) RecordPayout(ctx context.Context, account string, amount sdkmath.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payouts = append(r.payouts, domain.Release{Account: account, Amount: amount})
	return nil
}

func (r *memSettlementRepo) Royalty(ctx context.Context) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.royalty, nil
}

func (r *memSettlementRepo) SetRoyalty(ctx context.Context, bps uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.royalty = bps
	return nil
}

type memBus struct {
	mu     sync.Mutex
	events []nftsurface.Event
}

func (b *memBus) Publish(ctx context.Context, event nftsurface.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}
