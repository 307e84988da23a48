package repository

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/nftsurface/internal/domain"
	"github.com/totegamma/nftsurface/internal/infrastructure/database/models"
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) TotalReceived(ctx context.Context) (sdkmath.Int, error) {
	var state models.LedgerState
	if err := conn(ctx, r.db).First(&state, "id = 1").Error; err != nil {
		return sdkmath.ZeroInt(), err
	}
	return parseAmount(state.TotalReceived), nil
}

func (r *SettlementRepository) AddReceipt(ctx context.Context, amount sdkmath.Int) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var state models.LedgerState
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&state, "id = 1").Error; err != nil {
			return err
		}
		state.TotalReceived = parseAmount(state.TotalReceived).Add(amount).String()
		return tx.Save(&state).Error
	})
}

func (r *SettlementRepository) Payee(ctx context.Context, account string) (domain.Payee, error) {
	var record models.PayeeShare
	err := conn(ctx, r.db).First(&record, "account = ?", account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Payee{}, domain.ErrNoShares
		}
		return domain.Payee{}, err
	}
	return domain.Payee{
		Account:  record.Account,
		Shares:   record.Shares,
		Released: parseAmount(record.Released),
	}, nil
}

func (r *SettlementRepository) Payees(ctx context.Context) ([]domain.Payee, error) {
	var records []models.PayeeShare
	if err := conn(ctx, r.db).Order("account").Find(&records).Error; err != nil {
		return nil, err
	}
	payees := make([]domain.Payee, 0, len(records))
	for _, record := range records {
		payees = append(payees, domain.Payee{
			Account:  record.Account,
			Shares:   record.Shares,
			Released: parseAmount(record.Released),
		})
	}
	return payees, nil
}

// ApplyRelease clears the due amount and writes the audit row in one
// transaction, strictly before any external transfer happens.
func (r *SettlementRepository) ApplyRelease(ctx context.Context, account string, amount sdkmath.Int) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var record models.PayeeShare
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, "account = ?", account).Error; err != nil {
			return err
		}
		record.Released = parseAmount(record.Released).Add(amount).String()
		if err := tx.Save(&record).Error; err != nil {
			return err
		}
		return tx.Create(&models.FundTransfer{
			Account: account,
			Amount:  amount.String(),
			Kind:    models.KindRelease,
		}).Error
	})
}

func (r *SettlementRepository) RecordPayout(ctx context.Context, account string, amount sdkmath.Int) error {
	return conn(ctx, r.db).Create(&models.FundTransfer{
		Account: account,
		Amount:  amount.String(),
		Kind:    models.KindPayout,
	}).Error
}

func (r *SettlementRepository) Royalty(ctx context.Context) (uint32, error) {
	var state models.LedgerState
	if err := conn(ctx, r.db).First(&state, "id = 1").Error; err != nil {
		return 0, err
	}
	return state.RoyaltyBps, nil
}

func (r *SettlementRepository) SetRoyalty(ctx context.Context, bps uint32) error {
	return conn(ctx, r.db).Model(&models.LedgerState{}).
		Where("id = 1").Update("royalty_bps", bps).Error
}

// SetPayees installs the payee table. Existing released amounts survive a
// share adjustment for the same account.
func (r *SettlementRepository) SetPayees(ctx context.Context, payees []domain.Payee) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		for _, payee := range payees {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "account"}},
				DoUpdates: clause.Assignments(map[string]any{"shares": payee.Shares}),
			}).Create(&models.PayeeShare{
				Account:  payee.Account,
				Shares:   payee.Shares,
				Released: "0",
			}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
