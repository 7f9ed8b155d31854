package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRepository 交易仓储接口
type TransactionRepository interface {
	// Save 新建交易。引用号冲突返回 ErrDuplicateReference，绝不静默接受。
	Save(ctx context.Context, transaction *Transaction) error
	// Get 按交易 ID 查询
	Get(ctx context.Context, transactionID string) (*Transaction, error)
	// GetByReference 按引用号查询
	GetByReference(ctx context.Context, referenceNumber string) (*Transaction, error)
	// Update 持久化状态迁移后的交易
	Update(ctx context.Context, transaction *Transaction) error
	// ListByAccount 分页查询账户的交易
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Transaction, int64, error)
	// FindPendingOlderThan 查询早于 cutoff 仍处于 PENDING 的交易（对账扫描用）
	FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error)
	// Stats 统计账户的交易概览
	Stats(ctx context.Context, accountID string) (*TransactionStats, error)
}

// TransactionStats 交易统计
type TransactionStats struct {
	TotalCount     int64           `json:"total_count"`
	CompletedCount int64           `json:"completed_count"`
	FailedCount    int64           `json:"failed_count"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
}

// Ledger 结算引擎依赖的账本能力。由 account 模块的仓储实现。
type Ledger interface {
	// ApplyDelta 原子账变，语义见 account 模块仓储接口
	ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal, transactionID string) (before, after decimal.Decimal, err error)
	// GetEntryByTransaction 查询某交易的既有账变流水
	GetEntryByTransaction(ctx context.Context, transactionID string) (*LedgerSnapshot, error)
}

// LedgerSnapshot 账变流水的余额快照
type LedgerSnapshot struct {
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
}
