// 包 mysql OTP 模块的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/digitalbank/internal/otp/domain"
)

type otpRepository struct {
	db *gorm.DB
}

// NewOtpRepository 创建 OTP 仓储实例
func NewOtpRepository(db *gorm.DB) domain.OtpRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) Save(ctx context.Context, otp *domain.OtpRequest) error {
	return r.db.WithContext(ctx).Create(otp).Error
}

func (r *otpRepository) GetLatestUnused(ctx context.Context, userID, purpose string) (*domain.OtpRequest, error) {
	var otp domain.OtpRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND is_used = ?", userID, purpose, false).
		Order("id DESC").
		First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &otp, nil
}

// Consume 单条条件更新即 CAS：is_used=false 的行才会被置位，
// 两个并发校验方恰有一个成功。
func (r *otpRepository) Consume(ctx context.Context, id uint) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.OtpRequest{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]any{
			"is_used":     true,
			"verified_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrCodeUsed
	}
	return nil
}
