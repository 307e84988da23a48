package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/nftsurface/internal/infrastructure/database/models"
)

type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) *AccessRepository {
	return &AccessRepository{db: db}
}

func (r *AccessRepository) HasRole(ctx context.Context, role, principal string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.RoleGrant{}).
		Where("role = ? AND principal = ?", role, principal).Count(&count).Error
	return count > 0, err
}

func (r *AccessRepository) GrantRole(ctx context.Context, role, principal string) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&models.RoleGrant{Role: role, Principal: principal}).Error
}

func (r *AccessRepository) RevokeRole(ctx context.Context, role, principal string) error {
	return conn(ctx, r.db).
		Delete(&models.RoleGrant{}, "role = ? AND principal = ?", role, principal).Error
}

func (r *AccessRepository) RoleMembers(ctx context.Context, role string) ([]string, error) {
	var members []string
	err := conn(ctx, r.db).Model(&models.RoleGrant{}).
		Where("role = ?", role).Order("cdate").Pluck("principal", &members).Error
	return members, err
}
