// 包 mysql 交易模块的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/digitalbank/internal/transaction/domain"
)

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建交易仓储实例
func NewTransactionRepository(db *gorm.DB) domain.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Save(ctx context.Context, transaction *domain.Transaction) error {
	if err := r.db.WithContext(ctx).Create(transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *transactionRepository) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return r.findOne(ctx, "transaction_id = ?", transactionID)
}

func (r *transactionRepository) GetByReference(ctx context.Context, referenceNumber string) (*domain.Transaction, error) {
	return r.findOne(ctx, "reference_number = ?", referenceNumber)
}

func (r *transactionRepository) findOne(ctx context.Context, query string, arg any) (*domain.Transaction, error) {
	var txn domain.Transaction
	if err := r.db.WithContext(ctx).Where(query, arg).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// Update 持久化状态迁移。以 PENDING 为更新条件，
// 终态记录在数据库层面同样不可变。
func (r *transactionRepository) Update(ctx context.Context, transaction *domain.Transaction) error {
	result := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("transaction_id = ? AND status = ?", transaction.TransactionID, domain.StatusPending).
		Updates(map[string]any{
			"status":         transaction.Status,
			"balance_before": transaction.BalanceBefore,
			"balance_after":  transaction.BalanceAfter,
			"fail_reason":    transaction.FailReason,
			"settled_at":     transaction.SettledAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAlreadyTerminal
	}
	return nil
}

func (r *transactionRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, int64, error) {
	var txns []*domain.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Transaction{}).Where("account_id = ?", accountID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id DESC").Limit(limit).Offset(offset).Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

func (r *transactionRepository) FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.StatusPending, cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *transactionRepository) Stats(ctx context.Context, accountID string) (*domain.TransactionStats, error) {
	type row struct {
		TotalCount     int64
		CompletedCount int64
		FailedCount    int64
		TotalVolume    decimal.Decimal
	}
	var res row
	err := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Select(
			"COUNT(*) AS total_count, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS completed_count, "+
				"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS failed_count, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS total_volume",
			domain.StatusCompleted, domain.StatusFailed, domain.StatusCompleted,
		).
		Where("account_id = ?", accountID).
		Scan(&res).Error
	if err != nil {
		return nil, err
	}
	return &domain.TransactionStats{
		TotalCount:     res.TotalCount,
		CompletedCount: res.CompletedCount,
		FailedCount:    res.FailedCount,
		TotalVolume:    res.TotalVolume,
	}, nil
}
