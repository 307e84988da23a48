package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/nftsurface/internal/domain"
	"github.com/totegamma/nftsurface/internal/infrastructure/database/models"
)

const assetCacheTTL = 10 // seconds

// AssetRepository is the authoritative asset store. Every mutation runs in
// a transaction with row locking, so two redemptions of the same id can
// never both commit. The memcached layer only ever serves reads and is
// dropped on every write.
type AssetRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewAssetRepository(db *gorm.DB, mc *memcache.Client) *AssetRepository {
	return &AssetRepository{db: db, mc: mc}
}

func assetCacheKey(id uint64) string {
	return fmt.Sprintf("ns:asset:%d", id)
}

func (r *AssetRepository) Get(ctx context.Context, id uint64) (domain.Asset, error) {
	if r.mc != nil {
		if item, err := r.mc.Get(assetCacheKey(id)); err == nil {
			var asset domain.Asset
			if json.Unmarshal(item.Value, &asset) == nil {
				return asset, nil
			}
		}
	}

	var record models.Asset
	err := conn(ctx, r.db).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Asset{}, domain.NotFoundError{Resource: "asset"}
		}
		return domain.Asset{}, err
	}

	asset := domain.Asset{
		ID:         record.ID,
		Owner:      record.Owner,
		Descriptor: record.DescriptorURI,
		Price:      parseAmount(record.SalePrice),
		Burnt:      record.Burnt,
	}
	if r.mc != nil {
		if body, err := json.Marshal(asset); err == nil {
			_ = r.mc.Set(&memcache.Item{Key: assetCacheKey(id), Value: body, Expiration: assetCacheTTL})
		}
	}
	return asset, nil
}

func (r *AssetRepository) Create(ctx context.Context, asset domain.Asset) error {
	defer r.invalidate(asset.ID)
	err := conn(ctx, r.db).Create(&models.Asset{
		ID:            asset.ID,
		Owner:         asset.Owner,
		DescriptorURI: asset.Descriptor,
		SalePrice:     asset.Price.String(),
		MDate:         time.Now().UTC(),
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadyIssued
	}
	return err
}

func (r *AssetRepository) SetPrice(ctx context.Context, id uint64, price sdkmath.Int) error {
	defer r.invalidate(id)
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var record models.Asset
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, "id = ?", id).Error; err != nil {
			return translateNotFound(err)
		}
		record.SalePrice = price.String()
		record.MDate = time.Now().UTC()
		return tx.Save(&record).Error
	})
}

func (r *AssetRepository) SetOwner(ctx context.Context, id uint64, owner string) error {
	defer r.invalidate(id)
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var record models.Asset
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, "id = ?", id).Error; err != nil {
			return translateNotFound(err)
		}
		record.Owner = owner
		record.SalePrice = "0"
		record.MDate = time.Now().UTC()
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Approval{}, "asset_id = ?", id).Error
	})
}

func (r *AssetRepository) Burn(ctx context.Context, id uint64) error {
	defer r.invalidate(id)
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var record models.Asset
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, "id = ?", id).Error; err != nil {
			return translateNotFound(err)
		}
		record.Owner = ""
		record.DescriptorURI = ""
		record.SalePrice = "0"
		record.Burnt = true
		record.MDate = time.Now().UTC()
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Approval{}, "asset_id = ?", id).Error
	})
}

func (r *AssetRepository) TotalSupply(ctx context.Context) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Asset{}).Where("burnt = false").Count(&count).Error
	return count, err
}

func (r *AssetRepository) Floor(ctx context.Context) (uint64, error) {
	var state models.LedgerState
	if err := conn(ctx, r.db).First(&state, "id = 1").Error; err != nil {
		return 0, err
	}
	return state.IdFloor, nil
}

func (r *AssetRepository) SetFloor(ctx context.Context, floor uint64) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var state models.LedgerState
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&state, "id = 1").Error; err != nil {
			return err
		}
		// monotonicity is re-asserted under the row lock
		if floor <= state.IdFloor {
			return domain.ErrMustExceedFloor
		}
		state.IdFloor = floor
		return tx.Save(&state).Error
	})
}

func (r *AssetRepository) IsRevoked(ctx context.Context, id uint64) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.RevokedID{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *AssetRepository) Revoke(ctx context.Context, id uint64) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&models.RevokedID{ID: id}).Error
}

func (r *AssetRepository) Approve(ctx context.Context, id uint64, operator string) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&models.Approval{AssetID: id, Operator: operator}).Error
}

func (r *AssetRepository) IsApproved(ctx context.Context, id uint64, operator string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.Approval{}).
		Where("asset_id = ? AND operator = ?", id, operator).Count(&count).Error
	return count > 0, err
}

func (r *AssetRepository) invalidate(id uint64) {
	if r.mc != nil {
		_ = r.mc.Delete(assetCacheKey(id))
	}
}

func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFoundError{Resource: "asset"}
	}
	return err
}

func parseAmount(s string) sdkmath.Int {
	amount, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.ZeroInt()
	}
	return amount
}
