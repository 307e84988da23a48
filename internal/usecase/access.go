package usecase

import (
	"context"

	"github.com/totegamma/nftsurface"
	"github.com/totegamma/nftsurface/internal/domain"
)

// AccessUsecase gates the administrative capabilities. Revoking a grant
// takes effect on the next call; there is no fallback holder, so removing
// every member of a role makes it unreachable until an admin re-grants it.
type AccessUsecase struct {
	repo AccessRepository
}

func NewAccessUsecase(repo AccessRepository) *AccessUsecase {
	return &AccessUsecase{repo: repo}
}

func (uc *AccessUsecase) HasRole(ctx context.Context, role, principal string) (bool, error) {
	return uc.repo.HasRole(ctx, role, nftsurface.NormalizeAddress(principal))
}

func (uc *AccessUsecase) IsAdmin(ctx context.Context, principal string) (bool, error) {
	return uc.HasRole(ctx, domain.RoleAdmin, principal)
}

// IsAgent reports whether the principal currently holds the issuing
// authority. A voucher from a former agent fails verification through this.
func (uc *AccessUsecase) IsAgent(ctx context.Context, principal string) (bool, error) {
	return uc.HasRole(ctx, domain.RoleAgent, principal)
}

func (uc *AccessUsecase) IsTreasurer(ctx context.Context, principal string) (bool, error) {
	return uc.HasRole(ctx, domain.RoleTreasurer, principal)
}

// Grant assigns a role to a principal. Admin only.
func (uc *AccessUsecase) Grant(ctx context.Context, caller, role, principal string) error {
	if err := validRole(role); err != nil {
		return err
	}
	ok, err := uc.IsAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return uc.repo.GrantRole(ctx, role, nftsurface.NormalizeAddress(principal))
}

// Revoke removes a role grant. Admins may revoke anyone; a holder may
// renounce their own grant.
func (uc *AccessUsecase) Revoke(ctx context.Context, caller, role, principal string) error {
	if err := validRole(role); err != nil {
		return err
	}
	caller = nftsurface.NormalizeAddress(caller)
	principal = nftsurface.NormalizeAddress(principal)
	if caller != principal {
		ok, err := uc.IsAdmin(ctx, caller)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrUnauthorized
		}
	}
	return uc.repo.RevokeRole(ctx, role, principal)
}

func (uc *AccessUsecase) Members(ctx context.Context, role string) ([]string, error) {
	if err := validRole(role); err != nil {
		return nil, err
	}
	return uc.repo.RoleMembers(ctx, role)
}

func validRole(role string) error {
	switch role {
	case domain.RoleAdmin, domain.RoleAgent, domain.RoleTreasurer:
		return nil
	}
	return domain.NotFoundError{Resource: "role"}
}
