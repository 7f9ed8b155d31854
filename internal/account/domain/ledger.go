package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEntry 账变流水
// 与余额变更在同一个数据库事务内写入，transaction_id 上的唯一索引
// 保证同一笔交易的账变至多入账一次，同时作为对账任务的事实来源。
type LedgerEntry struct {
	gorm.Model
	// 流水 ID（业务主键）
	EntryID string `gorm:"column:entry_id;type:varchar(32);uniqueIndex;not null" json:"entry_id"`
	// 账户 ID
	AccountID string `gorm:"column:account_id;type:varchar(32);index;not null" json:"account_id"`
	// 关联交易 ID，全局至多一条账变
	TransactionID string `gorm:"column:transaction_id;type:varchar(32);uniqueIndex;not null" json:"transaction_id"`
	// 有符号变动额
	Delta decimal.Decimal `gorm:"column:delta;type:decimal(20,2);not null" json:"delta"`
	// 变动前余额
	BalanceBefore decimal.Decimal `gorm:"column:balance_before;type:decimal(20,2);not null" json:"balance_before"`
	// 变动后余额
	BalanceAfter decimal.Decimal `gorm:"column:balance_after;type:decimal(20,2);not null" json:"balance_after"`
}

// TableName 表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
