package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountRepository 账户仓储接口
// 余额只能通过 ApplyDelta 变更；Save 不更新 balance 列。
type AccountRepository interface {
	// Save 保存账户（新建或按版本号乐观更新非余额字段）。
	// 账号冲突返回 ErrAccountNumberTaken，版本冲突返回 ErrVersionConflict。
	Save(ctx context.Context, account *Account) error
	// Get 根据账户 ID 获取账户
	Get(ctx context.Context, accountID string) (*Account, error)
	// GetByUserID 获取用户的账户
	GetByUserID(ctx context.Context, userID string) (*Account, error)
	// GetByAccountNumber 根据对外账号获取账户
	GetByAccountNumber(ctx context.Context, accountNumber string) (*Account, error)
	// List 分页列出账户
	List(ctx context.Context, limit, offset int) ([]*Account, int64, error)
	// AccountNumberExists 账号是否已被占用
	AccountNumberExists(ctx context.Context, accountNumber string) (bool, error)

	// ApplyDelta 原子地对账户余额施加有符号变动：
	// 读取当前余额与版本号；若 balance+delta < 0 返回 ErrInsufficientFunds；
	// 否则在同一事务内以版本号为条件提交新余额并写入账变流水。
	// 并发落败方收到 ErrVersionConflict，绝不静默覆盖；
	// 同一 transactionID 的重复入账返回 ErrEntryAlreadyApplied。
	// 返回变动前后的余额快照。
	ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal, transactionID string) (before, after decimal.Decimal, err error)

	// GetEntryByTransaction 按交易 ID 查询账变流水，不存在时返回 nil
	GetEntryByTransaction(ctx context.Context, transactionID string) (*LedgerEntry, error)
}
