package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransferStats 账户维度的转账统计
type TransferStats struct {
	// TotalCount 转账总笔数
	TotalCount int64 `json:"total_count"`
	// CompletedCount 成功笔数
	CompletedCount int64 `json:"completed_count"`
	// FailedCount 失败笔数
	FailedCount int64 `json:"failed_count"`
	// TotalAmount 成功转账总金额（不含手续费）
	TotalAmount decimal.Decimal `json:"total_amount"`
	// TotalFees 成功转账累计手续费
	TotalFees decimal.Decimal `json:"total_fees"`
}

// TransferRepository 转账单仓储接口
type TransferRepository interface {
	// Save 持久化新转账单，参考号冲突返回 ErrDuplicateReference
	Save(ctx context.Context, transfer *Transfer) error
	// Get 按业务标识查询，不存在返回 ErrTransferNotFound
	Get(ctx context.Context, transferID string) (*Transfer, error)
	// GetByReference 按参考号查询，不存在返回 ErrTransferNotFound
	GetByReference(ctx context.Context, referenceNumber string) (*Transfer, error)
	// Update 更新转账单状态字段
	Update(ctx context.Context, transfer *Transfer) error
	// ListByAccount 按账户分页查询转账单
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Transfer, int64, error)
	// FindPendingOlderThan 查询早于 cutoff 仍处于 PENDING 的转账单（对账扫描用）
	FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*Transfer, error)
	// Stats 统计账户的转账汇总数据
	Stats(ctx context.Context, accountID string) (*TransferStats, error)
}
