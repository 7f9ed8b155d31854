package application

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	accountdomain "github.com/wyfcoding/digitalbank/internal/account/domain"
	"github.com/wyfcoding/digitalbank/internal/transaction/domain"
	"github.com/wyfcoding/digitalbank/pkg/idgen"
)

// AccountGateway 交易服务依赖的账户读取能力
type AccountGateway interface {
	GetByUserID(ctx context.Context, userID string) (*accountdomain.Account, error)
}

// Notifier 交易结果通知，失败只记录不传播
type Notifier interface {
	Notify(ctx context.Context, userID, event string, payload map[string]any)
}

// DepositCommand 入金命令
type DepositCommand struct {
	UserID      string
	Amount      decimal.Decimal
	Description string
}

// WithdrawCommand 出金命令
type WithdrawCommand struct {
	UserID      string
	Amount      decimal.Decimal
	Description string
}

// TransactionService 处理入金/出金请求与交易查询。
// 结算在请求内同步执行；崩溃窗口由对账任务兜底。
type TransactionService struct {
	transactions domain.TransactionRepository
	accounts     AccountGateway
	engine       *SettlementEngine
	notifier     Notifier
	logger       *slog.Logger
}

// NewTransactionService 创建交易应用服务
func NewTransactionService(
	transactions domain.TransactionRepository,
	accounts AccountGateway,
	engine *SettlementEngine,
	notifier Notifier,
	logger *slog.Logger,
) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		accounts:     accounts,
		engine:       engine,
		notifier:     notifier,
		logger:       logger,
	}
}

// Deposit 入金：创建 PENDING 交易并同步结算
func (s *TransactionService) Deposit(ctx context.Context, cmd DepositCommand) (*domain.Transaction, error) {
	return s.submit(ctx, cmd.UserID, domain.TypeDeposit, cmd.Amount, cmd.Description)
}

// Withdraw 出金：创建 PENDING 交易并同步结算
func (s *TransactionService) Withdraw(ctx context.Context, cmd WithdrawCommand) (*domain.Transaction, error) {
	return s.submit(ctx, cmd.UserID, domain.TypeWithdrawal, cmd.Amount, cmd.Description)
}

func (s *TransactionService) submit(ctx context.Context, userID string, txType domain.TransactionType, amount decimal.Decimal, description string) (*domain.Transaction, error) {
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := account.TransactGate(); err != nil {
		return nil, err
	}
	// 出金的快速预检查；权威检查仍在结算内的账本变更处
	if txType != domain.TypeDeposit && amount.GreaterThan(account.Balance) {
		return nil, accountdomain.ErrInsufficientFunds
	}

	txn, err := domain.NewTransaction(
		idgen.BizID("TXN"),
		account.AccountID,
		txType,
		amount,
		account.Currency,
		idgen.NewReference(),
		description,
	)
	if err != nil {
		return nil, err
	}
	if err := s.transactions.Save(ctx, txn); err != nil {
		return nil, err
	}

	settled, err := s.engine.Settle(ctx, txn.TransactionID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, userID, "transaction."+settled.Status.String(), map[string]any{
		"transaction_id": settled.TransactionID,
		"type":           string(settled.Type),
		"amount":         settled.Amount.String(),
		"reference":      settled.ReferenceNumber,
	})
	return settled, nil
}

// Get 按交易 ID 查询
func (s *TransactionService) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.transactions.Get(ctx, transactionID)
}

// GetByReference 按引用号查询
func (s *TransactionService) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	return s.transactions.GetByReference(ctx, reference)
}

// ListForUser 分页查询用户账户的交易
func (s *TransactionService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, int64, error) {
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.transactions.ListByAccount(ctx, account.AccountID, limit, offset)
}

// StatsForUser 查询用户账户的交易统计
func (s *TransactionService) StatsForUser(ctx context.Context, userID string) (*domain.TransactionStats, error) {
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.transactions.Stats(ctx, account.AccountID)
}
