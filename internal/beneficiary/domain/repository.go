package domain

import "context"

// BeneficiaryRepository 收款人仓储接口
type BeneficiaryRepository interface {
	// Save 持久化新收款人，（用户, 账号, 银行代码）冲突返回 ErrDuplicateBeneficiary
	Save(ctx context.Context, b *Beneficiary) error
	// Get 按业务标识查询，不存在返回 ErrBeneficiaryNotFound
	Get(ctx context.Context, beneficiaryID string) (*Beneficiary, error)
	// ListByUser 查询用户的全部收款人，常用者靠前
	ListByUser(ctx context.Context, userID string) ([]*Beneficiary, error)
	// Update 更新收款人
	Update(ctx context.Context, b *Beneficiary) error
	// Delete 删除收款人
	Delete(ctx context.Context, beneficiaryID string) error
	// TouchLastTransferred 刷新（用户, 账号, 银行代码）对应收款人的最近转账时间
	TouchLastTransferred(ctx context.Context, userID, accountNumber, bankCode string) error
}
