// 包 domain 收款人模块的领域模型
package domain

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrBeneficiaryNotFound 收款人不存在
	ErrBeneficiaryNotFound = errors.New("beneficiary not found")
	// ErrDuplicateBeneficiary 同一用户下（账号, 银行代码）已存在
	ErrDuplicateBeneficiary = errors.New("beneficiary already exists")
	// ErrNotOwner 收款人不属于当前用户
	ErrNotOwner = errors.New("beneficiary does not belong to the caller")
)

// Beneficiary 收款人实体。同一用户下（账号, 银行代码）唯一。
type Beneficiary struct {
	gorm.Model
	// BeneficiaryID 业务标识
	BeneficiaryID string `gorm:"type:varchar(32);uniqueIndex;not null" json:"beneficiary_id"`
	// UserID 所属用户
	UserID string `gorm:"type:varchar(32);not null;uniqueIndex:uk_user_account_bank" json:"user_id"`
	// Nickname 昵称
	Nickname string `gorm:"type:varchar(64)" json:"nickname"`
	// BankName 银行名称
	BankName string `gorm:"type:varchar(128)" json:"bank_name"`
	// BankCode 银行代码
	BankCode string `gorm:"type:varchar(32);not null;uniqueIndex:uk_user_account_bank" json:"bank_code"`
	// AccountNumber 收款账号
	AccountNumber string `gorm:"type:varchar(64);not null;uniqueIndex:uk_user_account_bank" json:"account_number"`
	// AccountName 收款户名
	AccountName string `gorm:"type:varchar(128)" json:"account_name"`
	// Currency 币种
	Currency string `gorm:"type:varchar(8)" json:"currency"`
	// Country 国家
	Country string `gorm:"type:varchar(64)" json:"country"`
	// IsFavorite 是否常用
	IsFavorite bool `gorm:"not null;default:false" json:"is_favorite"`
	// LastTransferredAt 最近一次向其转账的时间
	LastTransferredAt *time.Time `json:"last_transferred_at"`
}
