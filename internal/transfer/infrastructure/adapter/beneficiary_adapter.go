// 包 adapter 转账模块对其他模块的防腐适配
package adapter

import (
	"context"

	beneficiaryapp "github.com/wyfcoding/digitalbank/internal/beneficiary/application"
	"github.com/wyfcoding/digitalbank/internal/transfer/application"
	"github.com/wyfcoding/digitalbank/internal/transfer/domain"
)

type beneficiaryAdapter struct {
	svc *beneficiaryapp.BeneficiaryService
}

// NewBeneficiaryAdapter 将收款人服务适配为转账编排器的收款人留存能力
func NewBeneficiaryAdapter(svc *beneficiaryapp.BeneficiaryService) application.BeneficiaryRecorder {
	return &beneficiaryAdapter{svc: svc}
}

func (a *beneficiaryAdapter) RecordTransfer(ctx context.Context, userID string, transfer *domain.Transfer) error {
	dest := transfer.Destination
	nickname := dest.AccountHolderName
	return a.svc.SaveFromTransfer(ctx, beneficiaryapp.AddBeneficiaryCommand{
		UserID:        userID,
		Nickname:      nickname,
		BankName:      dest.BankName,
		BankCode:      dest.RoutingNumber,
		AccountNumber: dest.AccountNumber,
		AccountName:   dest.AccountHolderName,
		Currency:      transfer.Currency,
		Country:       dest.Country,
	})
}
