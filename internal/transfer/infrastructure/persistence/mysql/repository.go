// 包 mysql 转账模块的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/digitalbank/internal/transfer/domain"
)

type transferRepository struct {
	db *gorm.DB
}

// NewTransferRepository 创建转账仓储实例
func NewTransferRepository(db *gorm.DB) domain.TransferRepository {
	return &transferRepository{db: db}
}

func (r *transferRepository) Save(ctx context.Context, transfer *domain.Transfer) error {
	if err := r.db.WithContext(ctx).Create(transfer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *transferRepository) Get(ctx context.Context, transferID string) (*domain.Transfer, error) {
	return r.findOne(ctx, "transfer_id = ?", transferID)
}

func (r *transferRepository) GetByReference(ctx context.Context, referenceNumber string) (*domain.Transfer, error) {
	return r.findOne(ctx, "reference_number = ?", referenceNumber)
}

func (r *transferRepository) findOne(ctx context.Context, query string, arg any) (*domain.Transfer, error) {
	var transfer domain.Transfer
	if err := r.db.WithContext(ctx).Where(query, arg).First(&transfer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

func (r *transferRepository) Update(ctx context.Context, transfer *domain.Transfer) error {
	return r.db.WithContext(ctx).Model(&domain.Transfer{}).
		Where("transfer_id = ?", transfer.TransferID).
		Updates(map[string]any{
			"status":         transfer.Status,
			"transaction_id": transfer.TransactionID,
			"fail_reason":    transfer.FailReason,
		}).Error
}

func (r *transferRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transfer, int64, error) {
	var transfers []*domain.Transfer
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Transfer{}).Where("account_id = ?", accountID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&transfers).Error; err != nil {
		return nil, 0, err
	}
	return transfers, total, nil
}

func (r *transferRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Transfer, error) {
	var transfers []*domain.Transfer
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.TransferStatusPending, cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&transfers).Error
	if err != nil {
		return nil, err
	}
	return transfers, nil
}

func (r *transferRepository) Stats(ctx context.Context, accountID string) (*domain.TransferStats, error) {
	type row struct {
		TotalCount     int64
		CompletedCount int64
		FailedCount    int64
		TotalAmount    decimal.Decimal
		TotalFees      decimal.Decimal
	}
	var res row
	err := r.db.WithContext(ctx).Model(&domain.Transfer{}).
		Select(
			"COUNT(*) AS total_count, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed_count, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS failed_count, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS total_amount, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN fee ELSE 0 END), 0) AS total_fees",
			domain.TransferStatusCompleted, domain.TransferStatusFailed,
			domain.TransferStatusCompleted, domain.TransferStatusCompleted,
		).
		Where("account_id = ?", accountID).
		Scan(&res).Error
	if err != nil {
		return nil, err
	}
	return &domain.TransferStats{
		TotalCount:     res.TotalCount,
		CompletedCount: res.CompletedCount,
		FailedCount:    res.FailedCount,
		TotalAmount:    res.TotalAmount,
		TotalFees:      res.TotalFees,
	}, nil
}
