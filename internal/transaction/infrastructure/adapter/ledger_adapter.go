// 包 adapter 把 account 模块的仓储适配为结算引擎依赖的账本接口
package adapter

import (
	"context"

	"github.com/shopspring/decimal"

	accountdomain "github.com/wyfcoding/digitalbank/internal/account/domain"
	"github.com/wyfcoding/digitalbank/internal/transaction/domain"
)

type ledgerAdapter struct {
	accounts accountdomain.AccountRepository
}

// NewLedgerAdapter 创建账本适配器
func NewLedgerAdapter(accounts accountdomain.AccountRepository) domain.Ledger {
	return &ledgerAdapter{accounts: accounts}
}

func (a *ledgerAdapter) ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal, transactionID string) (decimal.Decimal, decimal.Decimal, error) {
	return a.accounts.ApplyDelta(ctx, accountID, delta, transactionID)
}

func (a *ledgerAdapter) GetEntryByTransaction(ctx context.Context, transactionID string) (*domain.LedgerSnapshot, error) {
	entry, err := a.accounts.GetEntryByTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return &domain.LedgerSnapshot{
		BalanceBefore: entry.BalanceBefore,
		BalanceAfter:  entry.BalanceAfter,
	}, nil
}
