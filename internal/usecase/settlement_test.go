package usecase

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/pkg/errors"

	"github.com/totegamma/nftsurface/internal/domain"
)

func newSettlementFixture(t *testing.T) (*SettlementUsecase, *memSettlementRepo, *AccessUsecase) {
	t.Helper()
	ctx := context.Background()

	roles := newMemAccessRepo()
	if err := roles.GrantRole(ctx, domain.RoleAdmin, agentAddr); err != nil {
		t.Fatalf("granting admin: %v", err)
	}
	if err := roles.GrantRole(ctx, domain.RoleTreasurer, agentAddr); err != nil {
		t.Fatalf("granting treasurer: %v", err)
	}
	access := NewAccessUsecase(roles)
	funds := newMemSettlementRepo(royaltyBps)
	return NewSettlementUsecase(funds, access, &memBus{}), funds, access
}

func TestProportionalRelease(t *testing.T) {
	uc, funds, _ := newSettlementFixture(t)
	ctx := context.Background()

	funds.addPayee(anonA, 85)
	funds.addPayee(anonB, 15)

	if err := uc.Receive(ctx, sdkmath.NewInt(10000)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := uc.Receive(ctx, sdkmath.NewInt(100)); err != nil {
		t.Fatalf("receive: %v", err)
	}

	// 10100 split 85/15 with floor division
	a, err := uc.Release(ctx, anonA, anonA)
	if err != nil {
		t.Fatalf("release A: %v", err)
	}
	if !a.Equal(sdkmath.NewInt(8585)) {
		t.Fatalf("expected 8585, got %s", a)
	}
	b, err := uc.Release(ctx, anonB, anonB)
	if err != nil {
		t.Fatalf("release B: %v", err)
	}
	if !b.Equal(sdkmath.NewInt(1515)) {
		t.Fatalf("expected 1515, got %s", b)
	}

	// nothing left over, nothing paid twice
	if _, err := uc.Release(ctx, anonA, anonA); !errors.Is(err, domain.ErrNothingDue) {
		t.Fatalf("expected ErrNothingDue, got %v", err)
	}
	if _, err := uc.Release(ctx, anonB, anonB); !errors.Is(err, domain.ErrNothingDue) {
		t.Fatalf("expected ErrNothingDue, got %v", err)
	}
}

func TestReleaseOrderIndependence(t *testing.T) {
	uc, funds, _ := newSettlementFixture(t)
	ctx := context.Background()

	funds.addPayee(anonA, 85)
	funds.addPayee(anonB, 15)

	// release between receipts; cumulative totals must match the
	// receipt-then-release ordering exactly
	if err := uc.Receive(ctx, sdkmath.NewInt(10000)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	first, err := uc.Release(ctx, anonA, anonA)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !first.Equal(sdkmath.NewInt(8500)) {
		t.Fatalf("expected 8500, got %s", first)
	}

	if err := uc.Receive(ctx, sdkmath.NewInt(100)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	second, err := uc.Release(ctx, anonA, anonA)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !first.Add(second).Equal(sdkmath.NewInt(8585)) {
		t.Fatalf("expected cumulative 8585, got %s", first.Add(second))
	}
}

func TestReleaseRoundingResidual(t *testing.T) {
	uc, funds, _ := newSettlementFixture(t)
	ctx := context.Background()

	funds.addPayee(anonA, 1)
	funds.addPayee(anonB, 2)

	if err := uc.Receive(ctx, sdkmath.NewInt(100)); err != nil {
		t.Fatalf("receive: %v", err)
	}

	a, _ := uc.Release(ctx, anonA, anonA)
	b, _ := uc.Release(ctx, anonB, anonB)
	// 33 + 66 = 99; the floored unit stays in the engine balance
	if !a.Equal(sdkmath.NewInt(33)) || !b.Equal(sdkmath.NewInt(66)) {
		t.Fatalf("expected 33/66, got %s/%s", a, b)
	}
}

func TestReleaseNoShares(t *testing.T) {
	uc, funds, _ := newSettlementFixture(t)
	ctx := context.Background()

	funds.addPayee(anonA, 85)
	funds.addPayee(anonB, 0)

	if err := uc.Receive(ctx, sdkmath.NewInt(10000)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := uc.Release(ctx, anonB, anonB); !errors.Is(err, domain.ErrNoShares) {
		t.Fatalf("expected ErrNoShares, got %v", err)
	}
	// an account absent from the table is equally shareless
	if _, err := uc.Release(ctx, agentAddr, agentAddr); !errors.Is(err, domain.ErrNoShares) {
		t.Fatalf("expected ErrNoShares, got %v", err)
	}
}

func TestReleaseAuthorization(t *testing.T) {
	uc, funds, _ := newSettlementFixture(t)
	ctx := context.Background()

	funds.addPayee(anonA, 100)
	if err := uc.Receive(ctx, sdkmath.NewInt(500)); err != nil {
		t.Fatalf("receive: %v", err)
	}

	// a third party without the treasurer role cannot trigger a release
	if _, err := uc.Release(ctx, anonB, anonA); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	// the treasurer can
	amount, err := uc.Release(ctx, agentAddr, anonA)
	if err != nil || !amount.Equal(sdkmath.NewInt(500)) {
		t.Fatalf("treasurer release failed: %s %v", amount, err)
	}
}

func TestSetRoyalty(t *testing.T) {
	uc, _, _ := newSettlementFixture(t)
	ctx := context.Background()

	if err := uc.SetRoyalty(ctx, anonA, 100); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := uc.SetRoyalty(ctx, agentAddr, 10001); err == nil {
		t.Fatalf("expected rate cap rejection")
	}
	if err := uc.SetRoyalty(ctx, agentAddr, 250); err != nil {
		t.Fatalf("setRoyalty: %v", err)
	}
	bps, _ := uc.Royalty(ctx)
	if bps != 250 {
		t.Fatalf("expected 250, got %d", bps)
	}
}
