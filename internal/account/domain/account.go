// 包 domain 账户模块的领域模型
package domain

import (
	"crypto/subtle"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountStatus 账户状态
type AccountStatus int8

const (
	AccountStatusPending   AccountStatus = 1 // 待验证
	AccountStatusActive    AccountStatus = 2 // 正常
	AccountStatusSuspended AccountStatus = 3 // 暂停（禁止资金流动）
	AccountStatusFrozen    AccountStatus = 4 // 冻结（禁止资金流动）
	AccountStatusClosed    AccountStatus = 5 // 已销户（终态）
)

func (s AccountStatus) String() string {
	switch s {
	case AccountStatusPending:
		return "PENDING"
	case AccountStatusActive:
		return "ACTIVE"
	case AccountStatusSuspended:
		return "SUSPENDED"
	case AccountStatusFrozen:
		return "FROZEN"
	case AccountStatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ParseAccountStatus 解析状态字符串
func ParseAccountStatus(s string) (AccountStatus, error) {
	switch s {
	case "PENDING":
		return AccountStatusPending, nil
	case "ACTIVE":
		return AccountStatusActive, nil
	case "SUSPENDED":
		return AccountStatusSuspended, nil
	case "FROZEN":
		return AccountStatusFrozen, nil
	case "CLOSED":
		return AccountStatusClosed, nil
	default:
		return 0, errors.New("unknown account status: " + s)
	}
}

var (
	// ErrAccountNotFound 账户不存在
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountNumberTaken 账号已被占用
	ErrAccountNumberTaken = errors.New("account number already taken")
	// ErrInvalidStatusTransition 非法的状态迁移
	ErrInvalidStatusTransition = errors.New("invalid account status transition")
	// ErrAccountFlagged 账户被风控限制，禁止一切资金流动
	ErrAccountFlagged = errors.New("account has been flagged by the risk department and cannot transact; please contact customer support")
	// ErrAccountNotActive 账户尚未完成验证激活
	ErrAccountNotActive = errors.New("account is not yet active; complete verification before transacting")
	// ErrInsufficientFunds 余额不足
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrVersionConflict 乐观锁冲突
	ErrVersionConflict = errors.New("account modified concurrently")
	// ErrEntryAlreadyApplied 该交易的账变已入账
	ErrEntryAlreadyApplied = errors.New("ledger entry already applied for transaction")
	// ErrPinMismatch 交易密码不匹配
	ErrPinMismatch = errors.New("transaction pin mismatch")
)

// Account 账户实体
// 余额的唯一写入路径是 AccountRepository.ApplyDelta；
// 其余字段只能通过显式命令（状态迁移、改密）修改。
type Account struct {
	gorm.Model
	// 账户 ID（业务主键），全局唯一
	AccountID string `gorm:"column:account_id;type:varchar(32);uniqueIndex;not null" json:"account_id"`
	// 对外账号（10 位数字），全局唯一
	AccountNumber string `gorm:"column:account_number;type:varchar(20);uniqueIndex;not null" json:"account_number"`
	// 用户 ID，关联的用户
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// 账户类型（SAVINGS, CHECKING）
	AccountType string `gorm:"column:account_type;type:varchar(20);not null" json:"account_type"`
	// 货币（如 USD）
	Currency string `gorm:"column:currency;type:varchar(10);not null" json:"currency"`
	// 余额，永不为负
	Balance decimal.Decimal `gorm:"column:balance;type:decimal(20,2);default:0;not null" json:"balance"`
	// 交易密码，默认读路径不返回
	TransactionPin string `gorm:"column:transaction_pin;type:varchar(128)" json:"-"`
	// 状态
	Status AccountStatus `gorm:"column:status;type:tinyint;not null;default:1" json:"status"`
	// 乐观锁版本号
	Version int64 `gorm:"column:version;not null;default:0" json:"version"`
}

// TableName 表名
func (Account) TableName() string {
	return "accounts"
}

// NewAccount 创建 PENDING 状态的新账户
func NewAccount(accountID, accountNumber, userID, accountType, currency, pin string) *Account {
	return &Account{
		AccountID:      accountID,
		AccountNumber:  accountNumber,
		UserID:         userID,
		AccountType:    accountType,
		Currency:       currency,
		Balance:        decimal.Zero,
		TransactionPin: pin,
		Status:         AccountStatusPending,
	}
}

// Activate 验证通过后激活账户
func (a *Account) Activate() error {
	if a.Status != AccountStatusPending {
		return ErrInvalidStatusTransition
	}
	a.Status = AccountStatusActive
	return nil
}

// Suspend 暂停账户
func (a *Account) Suspend() error {
	if a.Status == AccountStatusClosed {
		return ErrInvalidStatusTransition
	}
	a.Status = AccountStatusSuspended
	return nil
}

// Freeze 冻结账户
func (a *Account) Freeze() error {
	if a.Status == AccountStatusClosed {
		return ErrInvalidStatusTransition
	}
	a.Status = AccountStatusFrozen
	return nil
}

// Unfreeze 解除暂停/冻结
func (a *Account) Unfreeze() error {
	if a.Status != AccountStatusSuspended && a.Status != AccountStatusFrozen {
		return ErrInvalidStatusTransition
	}
	a.Status = AccountStatusActive
	return nil
}

// Close 销户，终态
func (a *Account) Close() error {
	if a.Status == AccountStatusClosed {
		return ErrInvalidStatusTransition
	}
	a.Status = AccountStatusClosed
	return nil
}

// CanTransact 账户当前是否允许资金流动
func (a *Account) CanTransact() bool {
	return a.TransactGate() == nil
}

// TransactGate 资金流动前置检查。
// PENDING 返回未激活错误，SUSPENDED/FROZEN/CLOSED 返回风控拦截错误。
func (a *Account) TransactGate() error {
	switch a.Status {
	case AccountStatusActive:
		return nil
	case AccountStatusPending:
		return ErrAccountNotActive
	default:
		return ErrAccountFlagged
	}
}

// VerifyPin 校验交易密码
func (a *Account) VerifyPin(pin string) bool {
	if a.TransactionPin == "" || pin == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.TransactionPin), []byte(pin)) == 1
}

// ChangePin 修改交易密码
func (a *Account) ChangePin(newPin string) error {
	if len(newPin) < 4 {
		return errors.New("transaction pin must be at least 4 digits")
	}
	a.TransactionPin = newPin
	return nil
}
