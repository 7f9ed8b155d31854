// 包 domain 一次性授权码（OTP）的领域模型
package domain

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"gorm.io/gorm"
)

// 合法的 OTP 用途。验证码单一用途：为 TRANSFER 签发的码
// 即使值相同也无法通过 WITHDRAWAL 的校验。
const (
	PurposeTransfer    = "TRANSFER"
	PurposeWithdrawal  = "WITHDRAWAL"
	PurposeCardPayment = "CARD_PAYMENT"
	PurposePinReset    = "PIN_RESET"
)

// ValidPurpose 是否为已知用途
func ValidPurpose(p string) bool {
	switch p {
	case PurposeTransfer, PurposeWithdrawal, PurposeCardPayment, PurposePinReset:
		return true
	}
	return false
}

var (
	// ErrCodeInvalid 验证码不存在或不匹配
	ErrCodeInvalid = errors.New("otp code invalid")
	// ErrCodeExpired 验证码已过期
	ErrCodeExpired = errors.New("otp code expired")
	// ErrCodeUsed 验证码已被消费
	ErrCodeUsed = errors.New("otp code already used")
	// ErrUnknownPurpose 未知用途
	ErrUnknownPurpose = errors.New("unknown otp purpose")
	// ErrIssueThrottled 签发频率超限
	ErrIssueThrottled = errors.New("otp issue rate limit exceeded")
)

// OtpRequest 一次性授权码记录
// isUsed 至多置位一次；置位与 verifiedAt 在同一原子更新内完成。
type OtpRequest struct {
	gorm.Model
	// OTP ID（业务主键）
	OtpID string `gorm:"column:otp_id;type:varchar(32);uniqueIndex;not null" json:"otp_id"`
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// 用途
	Purpose string `gorm:"column:purpose;type:varchar(20);not null" json:"purpose"`
	// 验证码值，不对外返回
	Code string `gorm:"column:code;type:varchar(10);not null" json:"-"`
	// 过期时间（签发时刻 + 固定窗口）
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
	// 是否已消费
	IsUsed bool `gorm:"column:is_used;not null;default:false" json:"is_used"`
	// 消费时间
	VerifiedAt *time.Time `gorm:"column:verified_at" json:"verified_at,omitempty"`
}

// TableName 表名
func (OtpRequest) TableName() string {
	return "otp_requests"
}

// Expired 是否已过期
func (o *OtpRequest) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Matches 码值是否匹配
func (o *OtpRequest) Matches(code string) bool {
	if code == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(o.Code), []byte(code)) == 1
}

// OtpRepository OTP 仓储接口
type OtpRepository interface {
	// Save 保存 OTP 记录
	Save(ctx context.Context, otp *OtpRequest) error
	// GetLatestUnused 取用户在某用途下最新的未消费记录，不存在时返回 nil
	GetLatestUnused(ctx context.Context, userID, purpose string) (*OtpRequest, error)
	// Consume 以 is_used=false 为条件原子置位 is_used 与 verified_at。
	// 并发的第二个消费方收到 ErrCodeUsed。
	Consume(ctx context.Context, id uint) error
}
