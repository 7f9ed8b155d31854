// 包 application 收款人模块的应用服务
package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wyfcoding/digitalbank/internal/beneficiary/domain"
	"github.com/wyfcoding/digitalbank/pkg/idgen"
)

// AddBeneficiaryCommand 新增收款人命令
type AddBeneficiaryCommand struct {
	UserID        string
	Nickname      string
	BankName      string
	BankCode      string
	AccountNumber string
	AccountName   string
	Currency      string
	Country       string
}

// UpdateBeneficiaryCommand 修改收款人命令。只允许修改昵称与常用标记。
type UpdateBeneficiaryCommand struct {
	UserID        string
	BeneficiaryID string
	Nickname      string
	IsFavorite    bool
}

// BeneficiaryService 收款人应用服务
type BeneficiaryService struct {
	repo   domain.BeneficiaryRepository
	logger *slog.Logger
}

// NewBeneficiaryService 创建收款人应用服务
func NewBeneficiaryService(repo domain.BeneficiaryRepository, logger *slog.Logger) *BeneficiaryService {
	return &BeneficiaryService{repo: repo, logger: logger}
}

// Add 新增收款人
func (s *BeneficiaryService) Add(ctx context.Context, cmd AddBeneficiaryCommand) (*domain.Beneficiary, error) {
	b := &domain.Beneficiary{
		BeneficiaryID: idgen.BizID("BEN"),
		UserID:        cmd.UserID,
		Nickname:      cmd.Nickname,
		BankName:      cmd.BankName,
		BankCode:      cmd.BankCode,
		AccountNumber: cmd.AccountNumber,
		AccountName:   cmd.AccountName,
		Currency:      cmd.Currency,
		Country:       cmd.Country,
	}
	if err := s.repo.Save(ctx, b); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "beneficiary added",
		"beneficiary_id", b.BeneficiaryID, "user_id", cmd.UserID)
	return b, nil
}

// Get 查询收款人，校验归属
func (s *BeneficiaryService) Get(ctx context.Context, userID, beneficiaryID string) (*domain.Beneficiary, error) {
	b, err := s.repo.Get(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, domain.ErrNotOwner
	}
	return b, nil
}

// List 查询用户的全部收款人
func (s *BeneficiaryService) List(ctx context.Context, userID string) ([]*domain.Beneficiary, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Update 修改收款人昵称与常用标记
func (s *BeneficiaryService) Update(ctx context.Context, cmd UpdateBeneficiaryCommand) (*domain.Beneficiary, error) {
	b, err := s.Get(ctx, cmd.UserID, cmd.BeneficiaryID)
	if err != nil {
		return nil, err
	}
	b.Nickname = cmd.Nickname
	b.IsFavorite = cmd.IsFavorite
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Remove 删除收款人
func (s *BeneficiaryService) Remove(ctx context.Context, userID, beneficiaryID string) error {
	if _, err := s.Get(ctx, userID, beneficiaryID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, beneficiaryID)
}

// SaveFromTransfer 转账后留存收款人。已存在时仅刷新最近转账时间。
func (s *BeneficiaryService) SaveFromTransfer(ctx context.Context, cmd AddBeneficiaryCommand) error {
	b := &domain.Beneficiary{
		BeneficiaryID: idgen.BizID("BEN"),
		UserID:        cmd.UserID,
		Nickname:      cmd.Nickname,
		BankName:      cmd.BankName,
		BankCode:      cmd.BankCode,
		AccountNumber: cmd.AccountNumber,
		AccountName:   cmd.AccountName,
		Currency:      cmd.Currency,
		Country:       cmd.Country,
	}
	now := time.Now()
	b.LastTransferredAt = &now

	err := s.repo.Save(ctx, b)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrDuplicateBeneficiary) {
		return s.repo.TouchLastTransferred(ctx, cmd.UserID, cmd.AccountNumber, cmd.BankCode)
	}
	return err
}

// TouchLastTransferred 刷新收款人的最近转账时间
func (s *BeneficiaryService) TouchLastTransferred(ctx context.Context, userID, accountNumber, bankCode string) error {
	return s.repo.TouchLastTransferred(ctx, userID, accountNumber, bankCode)
}
