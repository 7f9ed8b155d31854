// 包 mysql 收款人模块的 GORM 仓储实现
package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/digitalbank/internal/beneficiary/domain"
)

type beneficiaryRepository struct {
	db *gorm.DB
}

// NewBeneficiaryRepository 创建收款人仓储实例
func NewBeneficiaryRepository(db *gorm.DB) domain.BeneficiaryRepository {
	return &beneficiaryRepository{db: db}
}

func (r *beneficiaryRepository) Save(ctx context.Context, b *domain.Beneficiary) error {
	if err := r.db.WithContext(ctx).Create(b).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateBeneficiary
		}
		return err
	}
	return nil
}

func (r *beneficiaryRepository) Get(ctx context.Context, beneficiaryID string) (*domain.Beneficiary, error) {
	var b domain.Beneficiary
	if err := r.db.WithContext(ctx).Where("beneficiary_id = ?", beneficiaryID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBeneficiaryNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *beneficiaryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Beneficiary, error) {
	var list []*domain.Beneficiary
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_favorite DESC, last_transferred_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (r *beneficiaryRepository) Update(ctx context.Context, b *domain.Beneficiary) error {
	return r.db.WithContext(ctx).Model(&domain.Beneficiary{}).
		Where("beneficiary_id = ?", b.BeneficiaryID).
		Updates(map[string]any{
			"nickname":    b.Nickname,
			"is_favorite": b.IsFavorite,
		}).Error
}

func (r *beneficiaryRepository) Delete(ctx context.Context, beneficiaryID string) error {
	result := r.db.WithContext(ctx).
		Where("beneficiary_id = ?", beneficiaryID).
		Delete(&domain.Beneficiary{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrBeneficiaryNotFound
	}
	return nil
}

func (r *beneficiaryRepository) TouchLastTransferred(ctx context.Context, userID, accountNumber, bankCode string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.Beneficiary{}).
		Where("user_id = ? AND account_number = ? AND bank_code = ?", userID, accountNumber, bankCode).
		Update("last_transferred_at", now).Error
}
