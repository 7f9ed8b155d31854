// 包 domain 交易模块的领域模型：交易记录及其状态机
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType 交易类型
type TransactionType string

const (
	TypeDeposit    TransactionType = "DEPOSIT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeTransfer   TransactionType = "TRANSFER"
	TypePayment    TransactionType = "PAYMENT"
)

// Valid 是否为已知交易类型
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer, TypePayment:
		return true
	}
	return false
}

// SignedDelta 根据交易类型得到有符号账变额：入金为正，其余为负
func (t TransactionType) SignedDelta(amount decimal.Decimal) decimal.Decimal {
	if t == TypeDeposit {
		return amount
	}
	return amount.Neg()
}

// TransactionStatus 交易状态
type TransactionStatus int8

const (
	StatusPending   TransactionStatus = 1 // 待结算
	StatusCompleted TransactionStatus = 2 // 已完成（不可变）
	StatusFailed    TransactionStatus = 3 // 失败
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal 是否为终态
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	// ErrTransactionNotFound 交易不存在
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrDuplicateReference 引用号已存在
	ErrDuplicateReference = errors.New("reference number already taken")
	// ErrAlreadyCompleted 交易已完成，禁止再次结算
	ErrAlreadyCompleted = errors.New("transaction already completed")
	// ErrAlreadyTerminal 交易已处于终态
	ErrAlreadyTerminal = errors.New("transaction already in terminal state")
	// ErrInvalidAmount 金额必须为正
	ErrInvalidAmount = errors.New("transaction amount must be positive")
	// ErrSettlementConflict 结算冲突重试耗尽
	ErrSettlementConflict = errors.New("settlement aborted after repeated balance conflicts")
)

// Transaction 交易记录
// PENDING -> COMPLETED / FAILED，单向且恰好一次；
// balanceBefore/balanceAfter 在结算时刻打点，COMPLETED 后整条记录不可变。
type Transaction struct {
	gorm.Model
	// 交易 ID（业务主键）
	TransactionID string `gorm:"column:transaction_id;type:varchar(32);uniqueIndex;not null" json:"transaction_id"`
	// 账户 ID
	AccountID string `gorm:"column:account_id;type:varchar(32);index;not null" json:"account_id"`
	// 交易类型
	Type TransactionType `gorm:"column:type;type:varchar(20);not null" json:"type"`
	// 金额（正数）
	Amount decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	// 结算前余额快照
	BalanceBefore decimal.Decimal `gorm:"column:balance_before;type:decimal(20,2)" json:"balance_before"`
	// 结算后余额快照
	BalanceAfter decimal.Decimal `gorm:"column:balance_after;type:decimal(20,2)" json:"balance_after"`
	// 货币
	Currency string `gorm:"column:currency;type:varchar(10);not null" json:"currency"`
	// 全局唯一引用号
	ReferenceNumber string `gorm:"column:reference_number;type:varchar(64);uniqueIndex;not null" json:"reference_number"`
	// 状态
	Status TransactionStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
	// 描述
	Description string `gorm:"column:description;type:varchar(255)" json:"description"`
	// 失败原因
	FailReason string `gorm:"column:fail_reason;type:varchar(255)" json:"fail_reason,omitempty"`
	// 结算时间
	SettledAt *time.Time `gorm:"column:settled_at" json:"settled_at,omitempty"`
}

// TableName 表名
func (Transaction) TableName() string {
	return "transactions"
}

// NewTransaction 创建 PENDING 交易
func NewTransaction(transactionID, accountID string, txType TransactionType, amount decimal.Decimal, currency, reference, description string) (*Transaction, error) {
	if !txType.Valid() {
		return nil, errors.New("unknown transaction type: " + string(txType))
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return &Transaction{
		TransactionID:   transactionID,
		AccountID:       accountID,
		Type:            txType,
		Amount:          amount,
		Currency:        currency,
		ReferenceNumber: reference,
		Status:          StatusPending,
		Description:     description,
	}, nil
}

// Complete 结算完成，打点余额快照。只能从 PENDING 迁移。
func (t *Transaction) Complete(before, after decimal.Decimal) error {
	if t.Status == StatusCompleted {
		return ErrAlreadyCompleted
	}
	if t.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	now := time.Now()
	t.BalanceBefore = before
	t.BalanceAfter = after
	t.Status = StatusCompleted
	t.SettledAt = &now
	return nil
}

// Fail 标记失败。不触碰账本，随时安全。
func (t *Transaction) Fail(reason string) error {
	if t.Status == StatusCompleted {
		return ErrAlreadyCompleted
	}
	if t.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	now := time.Now()
	t.Status = StatusFailed
	t.FailReason = reason
	t.SettledAt = &now
	return nil
}
