// 包 mysql 账户模块的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wyfcoding/digitalbank/internal/account/domain"
	"github.com/wyfcoding/digitalbank/pkg/idgen"
)

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository 创建账户仓储实例
func NewAccountRepository(db *gorm.DB) domain.AccountRepository {
	return &accountRepository{db: db}
}

// Save 保存账户（新建或带乐观锁更新非余额字段）
func (r *accountRepository) Save(ctx context.Context, account *domain.Account) error {
	if account.ID == 0 {
		if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAccountNumberTaken
			}
			return err
		}
		return nil
	}

	currentVersion := account.Version
	// balance 不在更新列中：余额的唯一写入路径是 ApplyDelta
	result := r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("account_id = ? AND version = ?", account.AccountID, currentVersion).
		Updates(map[string]any{
			"status":          account.Status,
			"transaction_pin": account.TransactionPin,
			"version":         currentVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrVersionConflict
	}

	account.Version = currentVersion + 1
	return nil
}

func (r *accountRepository) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.findOne(ctx, "account_id = ?", accountID)
}

func (r *accountRepository) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	return r.findOne(ctx, "user_id = ?", userID)
}

func (r *accountRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return r.findOne(ctx, "account_number = ?", accountNumber)
}

func (r *accountRepository) findOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.WithContext(ctx).Where(query, arg).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, int64, error) {
	var accounts []*domain.Account
	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.Account{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := r.db.WithContext(ctx).Limit(limit).Offset(offset).Order("id DESC").Find(&accounts).Error; err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (r *accountRepository) AccountNumberExists(ctx context.Context, accountNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("account_number = ?", accountNumber).Count(&count).Error
	return count > 0, err
}

// ApplyDelta 原子账变：读取余额与版本号，检查下限，
// 以版本号为条件提交新余额，并在同一事务内写入账变流水。
func (r *accountRepository) ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal, transactionID string) (decimal.Decimal, decimal.Decimal, error) {
	// 先查流水：同一交易重复入账直接幂等返回
	if entry, err := r.GetEntryByTransaction(ctx, transactionID); err != nil {
		return decimal.Zero, decimal.Zero, err
	} else if entry != nil {
		return entry.BalanceBefore, entry.BalanceAfter, domain.ErrEntryAlreadyApplied
	}

	var before, after decimal.Decimal
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account domain.Account
		if err := tx.Where("account_id = ?", accountID).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAccountNotFound
			}
			return err
		}

		before = account.Balance
		after = account.Balance.Add(delta)
		if after.IsNegative() {
			return domain.ErrInsufficientFunds
		}

		result := tx.Model(&domain.Account{}).
			Where("account_id = ? AND version = ?", accountID, account.Version).
			Updates(map[string]any{
				"balance": after,
				"version": account.Version + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrVersionConflict
		}

		entry := &domain.LedgerEntry{
			EntryID:       idgen.BizID("LED"),
			AccountID:     accountID,
			TransactionID: transactionID,
			Delta:         delta,
			BalanceBefore: before,
			BalanceAfter:  after,
		}
		if err := tx.Create(entry).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrEntryAlreadyApplied
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrEntryAlreadyApplied) {
			// 并发下另一调用方刚刚入账：返回既有流水的快照
			if entry, gerr := r.GetEntryByTransaction(ctx, transactionID); gerr == nil && entry != nil {
				return entry.BalanceBefore, entry.BalanceAfter, domain.ErrEntryAlreadyApplied
			}
		}
		return decimal.Zero, decimal.Zero, err
	}
	return before, after, nil
}

func (r *accountRepository) GetEntryByTransaction(ctx context.Context, transactionID string) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	if err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}
