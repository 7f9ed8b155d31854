// 包 domain 转账模块的领域模型
package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 转账模块错误定义
var (
	// ErrTransferNotFound 转账单不存在
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrDuplicateReference 转账参考号已存在
	ErrDuplicateReference = errors.New("transfer reference already taken")
	// ErrInvalidAuthorization 授权校验失败。PIN 错误与 OTP 错误统一返回此错误，
	// 不向调用方暴露具体是哪个因子失败。
	ErrInvalidAuthorization = errors.New("invalid authorization")
	// ErrUnsupportedRail 不支持的转账渠道
	ErrUnsupportedRail = errors.New("unsupported transfer type")
	// ErrInvalidFee 手续费非法（负数）
	ErrInvalidFee = errors.New("transfer fee cannot be negative")
	// ErrTransferTerminal 转账单已处于终态
	ErrTransferTerminal = errors.New("transfer already in terminal state")
)

// TransferType 转账渠道类型
type TransferType string

const (
	TransferTypeBank    TransferType = "BANK"
	TransferTypePaypal  TransferType = "PAYPAL"
	TransferTypeCashApp TransferType = "CASHAPP"
	TransferTypeSkrill  TransferType = "SKRILL"
	TransferTypeVenmo   TransferType = "VENMO"
	TransferTypeZelle   TransferType = "ZELLE"
	TransferTypeAlipay  TransferType = "ALIPAY"
	TransferTypeWechat  TransferType = "WECHAT"
	TransferTypeBtc     TransferType = "BTC"
)

// Valid 校验转账渠道是否受支持
func (t TransferType) Valid() bool {
	switch t {
	case TransferTypeBank, TransferTypePaypal, TransferTypeCashApp,
		TransferTypeSkrill, TransferTypeVenmo, TransferTypeZelle,
		TransferTypeAlipay, TransferTypeWechat, TransferTypeBtc:
		return true
	}
	return false
}

// TransferStatus 转账单状态
type TransferStatus int8

const (
	// TransferStatusPending 待结算
	TransferStatusPending TransferStatus = 1
	// TransferStatusCompleted 已完成
	TransferStatusCompleted TransferStatus = 2
	// TransferStatusFailed 已失败
	TransferStatusFailed TransferStatus = 3
	// TransferStatusRejected 已拒绝（人工或风控）
	TransferStatusRejected TransferStatus = 4
)

// String 返回状态的字符串表示
func (s TransferStatus) String() string {
	switch s {
	case TransferStatusPending:
		return "PENDING"
	case TransferStatusCompleted:
		return "COMPLETED"
	case TransferStatusFailed:
		return "FAILED"
	case TransferStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal 判断状态是否为终态
func (s TransferStatus) Terminal() bool {
	return s != TransferStatusPending
}

// Destination 转账目标信息。不同渠道只使用其中一部分字段。
type Destination struct {
	AccountHolderName string `gorm:"type:varchar(128)" json:"account_holder_name,omitempty"`
	AccountNumber     string `gorm:"type:varchar(64);index" json:"account_number,omitempty"`
	BankName          string `gorm:"type:varchar(128)" json:"bank_name,omitempty"`
	BankAddress       string `gorm:"type:varchar(256)" json:"bank_address,omitempty"`
	IbanNumber        string `gorm:"type:varchar(64)" json:"iban_number,omitempty"`
	RoutingNumber     string `gorm:"type:varchar(32)" json:"routing_number,omitempty"`
	SwiftCode         string `gorm:"type:varchar(16)" json:"swift_code,omitempty"`
	Country           string `gorm:"type:varchar(64)" json:"country,omitempty"`
	PaypalEmail       string `gorm:"type:varchar(128)" json:"paypal_email,omitempty"`
	CashTag           string `gorm:"type:varchar(64)" json:"cash_tag,omitempty"`
	SkrillEmail       string `gorm:"type:varchar(128)" json:"skrill_email,omitempty"`
	VenmoUsername     string `gorm:"type:varchar(64)" json:"venmo_username,omitempty"`
	ZelleEmail        string `gorm:"type:varchar(128)" json:"zelle_email,omitempty"`
	AliPayID          string `gorm:"type:varchar(64)" json:"alipay_id,omitempty"`
	WeChatID          string `gorm:"type:varchar(64)" json:"wechat_id,omitempty"`
	BtcWalletAddress  string `gorm:"type:varchar(128)" json:"btc_wallet_address,omitempty"`
	PhoneNumber       string `gorm:"type:varchar(32)" json:"phone_number,omitempty"`
}

// Transfer 转账单实体。每笔转账对应一条 TRANSFER 类型的交易记录，
// 金额与手续费合并为一条账务腿结算。
type Transfer struct {
	gorm.Model
	// TransferID 转账单业务标识
	TransferID string `gorm:"type:varchar(32);uniqueIndex;not null" json:"transfer_id"`
	// AccountID 出账账户业务标识
	AccountID string `gorm:"type:varchar(32);index;not null" json:"account_id"`
	// TransactionID 结算产生的交易业务标识
	TransactionID string `gorm:"type:varchar(32);index" json:"transaction_id"`
	// ReferenceNumber 对外参考号
	ReferenceNumber string `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference_number"`
	// Amount 转账金额（不含手续费）
	Amount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	// Fee 手续费
	Fee decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"fee"`
	// Currency 币种
	Currency string `gorm:"type:varchar(8);not null" json:"currency"`
	// Type 转账渠道
	Type TransferType `gorm:"type:varchar(16);not null" json:"type"`
	// Destination 目标信息，内嵌展开为列
	Destination Destination `gorm:"embedded" json:"destination"`
	// Status 转账单状态
	Status TransferStatus `gorm:"type:tinyint;not null;default:1" json:"status"`
	// Description 摘要
	Description string `gorm:"type:varchar(256)" json:"description"`
	// FailReason 失败原因
	FailReason string `gorm:"type:varchar(256)" json:"fail_reason"`
}

// NewTransfer 创建一笔待结算的转账单
func NewTransfer(transferID, accountID, referenceNumber string, amount, fee decimal.Decimal, currency string, railType TransferType, dest Destination, description string) (*Transfer, error) {
	if !railType.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRail, railType)
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, errors.New("transfer amount must be positive")
	}
	if fee.IsNegative() {
		return nil, ErrInvalidFee
	}
	return &Transfer{
		TransferID:      transferID,
		AccountID:       accountID,
		ReferenceNumber: referenceNumber,
		Amount:          amount,
		Fee:             fee,
		Currency:        currency,
		Type:            railType,
		Destination:     dest,
		Status:          TransferStatusPending,
		Description:     description,
	}, nil
}

// TotalDebit 返回实际出账金额（金额 + 手续费）
func (t *Transfer) TotalDebit() decimal.Decimal {
	return t.Amount.Add(t.Fee)
}

// Complete 将转账单标记为已完成
func (t *Transfer) Complete() error {
	if t.Status.Terminal() {
		return ErrTransferTerminal
	}
	t.Status = TransferStatusCompleted
	return nil
}

// Fail 将转账单标记为已失败并记录原因
func (t *Transfer) Fail(reason string) error {
	if t.Status.Terminal() {
		return ErrTransferTerminal
	}
	t.Status = TransferStatusFailed
	t.FailReason = reason
	return nil
}
