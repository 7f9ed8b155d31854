// 包 application 转账模块的应用服务：转账编排器与对账任务
package application

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	accountdomain "github.com/wyfcoding/digitalbank/internal/account/domain"
	txapp "github.com/wyfcoding/digitalbank/internal/transaction/application"
	txdomain "github.com/wyfcoding/digitalbank/internal/transaction/domain"
	"github.com/wyfcoding/digitalbank/internal/transfer/domain"
	"github.com/wyfcoding/digitalbank/pkg/idgen"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
)

// AccountGateway 转账编排依赖的账户读取能力
type AccountGateway interface {
	GetByUserID(ctx context.Context, userID string) (*accountdomain.Account, error)
}

// OtpValidator OTP 校验能力
type OtpValidator interface {
	Validate(ctx context.Context, userID, purpose, code string) error
}

// BeneficiaryRecorder 收款人留存能力。仅尽力而为，失败不影响转账。
type BeneficiaryRecorder interface {
	RecordTransfer(ctx context.Context, userID string, transfer *domain.Transfer) error
}

// Notifier 转账结果通知
type Notifier interface {
	Notify(ctx context.Context, userID, event string, payload map[string]any)
}

// TransferCommand 转账命令
type TransferCommand struct {
	UserID string
	Amount decimal.Decimal
	// Fee 调用方申报的手续费。nil 时按配置费率计算默认值，负数拒绝。
	Fee         *decimal.Decimal
	Type        domain.TransferType
	Destination domain.Destination
	Description string
	// TransactionPin 交易密码
	TransactionPin string
	// OtpCode 一次性验证码
	OtpCode string
	// SaveBeneficiary 是否留存收款人
	SaveBeneficiary bool
}

// TransferOrchestrator 转账编排器。
// 一次转账依次经过：账户校验、余额预检、双因子授权（PIN + OTP）、
// 建单、收款人留存（尽力而为）、同步结算。
type TransferOrchestrator struct {
	transfers     domain.TransferRepository
	transactions  txdomain.TransactionRepository
	accounts      AccountGateway
	otp           OtpValidator
	engine        *txapp.SettlementEngine
	beneficiaries BeneficiaryRecorder
	notifier      Notifier
	metrics       *metrics.Metrics
	logger        *slog.Logger
	feeRate       decimal.Decimal
	minAmount     decimal.Decimal
}

// NewTransferOrchestrator 创建转账编排器
func NewTransferOrchestrator(
	transfers domain.TransferRepository,
	transactions txdomain.TransactionRepository,
	accounts AccountGateway,
	otp OtpValidator,
	engine *txapp.SettlementEngine,
	beneficiaries BeneficiaryRecorder,
	notifier Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
	feeRate, minAmount decimal.Decimal,
) *TransferOrchestrator {
	return &TransferOrchestrator{
		transfers:     transfers,
		transactions:  transactions,
		accounts:      accounts,
		otp:           otp,
		engine:        engine,
		beneficiaries: beneficiaries,
		notifier:      notifier,
		metrics:       m,
		logger:        logger,
		feeRate:       feeRate,
		minAmount:     minAmount,
	}
}

// Execute 执行一笔转账。
// 授权失败（PIN 错误或 OTP 无效）统一返回 ErrInvalidAuthorization，
// 不向调用方区分具体哪个因子失败；授权通过之前不落任何记录。
func (o *TransferOrchestrator) Execute(ctx context.Context, cmd TransferCommand) (*domain.Transfer, error) {
	if !cmd.Type.Valid() {
		return nil, domain.ErrUnsupportedRail
	}
	if cmd.Amount.LessThan(o.minAmount) {
		return nil, txdomain.ErrInvalidAmount
	}

	// 1. 账户校验：未激活或被风控限制的账户直接拒绝，不落任何记录
	account, err := o.accounts.GetByUserID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if err := account.TransactGate(); err != nil {
		return nil, err
	}

	// 2. 余额预检：金额 + 手续费；权威检查仍在结算内的账本变更处。
	// 手续费以调用方申报值为准，未申报时按配置费率计算。
	fee, err := o.resolveFee(cmd)
	if err != nil {
		return nil, err
	}
	total := cmd.Amount.Add(fee)
	if total.GreaterThan(account.Balance) {
		return nil, accountdomain.ErrInsufficientFunds
	}

	// 3. 交易密码校验
	if !account.VerifyPin(cmd.TransactionPin) {
		o.logger.WarnContext(ctx, "transfer authorization rejected",
			"user_id", cmd.UserID, "factor", "pin")
		return nil, domain.ErrInvalidAuthorization
	}

	// 4. OTP 校验：成功即消费，同一验证码不可二次使用
	if err := o.otp.Validate(ctx, cmd.UserID, "TRANSFER", cmd.OtpCode); err != nil {
		o.logger.WarnContext(ctx, "transfer authorization rejected",
			"user_id", cmd.UserID, "factor", "otp")
		return nil, domain.ErrInvalidAuthorization
	}

	// 5. 建单：先建 PENDING 交易，再建携带交易号的转账单。
	// 转账单落库失败时交易被补偿为 FAILED；两步之间的崩溃窗口由对账任务兜底。
	txn, err := txdomain.NewTransaction(
		idgen.BizID("TXN"),
		account.AccountID,
		txdomain.TypeTransfer,
		total,
		account.Currency,
		idgen.NewReference(),
		cmd.Description,
	)
	if err != nil {
		return nil, err
	}
	if err := o.transactions.Save(ctx, txn); err != nil {
		return nil, err
	}

	transfer, err := domain.NewTransfer(
		idgen.BizID("TRF"),
		account.AccountID,
		idgen.NewReference(),
		cmd.Amount,
		fee,
		account.Currency,
		cmd.Type,
		cmd.Destination,
		cmd.Description,
	)
	if err != nil {
		return nil, err
	}
	transfer.TransactionID = txn.TransactionID
	if err := o.transfers.Save(ctx, transfer); err != nil {
		if _, markErr := o.engine.MarkFailed(ctx, txn.TransactionID, "transfer record creation failed"); markErr != nil {
			o.logger.ErrorContext(ctx, "failed to compensate orphaned transaction",
				"transaction_id", txn.TransactionID, "error", markErr)
		}
		return nil, err
	}

	// 6. 收款人留存：尽力而为，任何失败都不回滚转账
	if cmd.SaveBeneficiary && cmd.Type == domain.TransferTypeBank && o.beneficiaries != nil {
		if err := o.beneficiaries.RecordTransfer(ctx, cmd.UserID, transfer); err != nil {
			o.logger.WarnContext(ctx, "beneficiary save failed",
				"user_id", cmd.UserID, "transfer_id", transfer.TransferID, "error", err)
		}
	}

	// 7. 同步结算，转账单状态跟随交易结果
	settled, err := o.engine.Settle(ctx, txn.TransactionID)
	if err != nil {
		return nil, err
	}
	return o.finalize(ctx, cmd.UserID, transfer, settled)
}

func (o *TransferOrchestrator) resolveFee(cmd TransferCommand) (decimal.Decimal, error) {
	if cmd.Fee == nil {
		return cmd.Amount.Mul(o.feeRate).Round(2), nil
	}
	if cmd.Fee.IsNegative() {
		return decimal.Zero, domain.ErrInvalidFee
	}
	return cmd.Fee.Round(2), nil
}

func (o *TransferOrchestrator) finalize(ctx context.Context, userID string, transfer *domain.Transfer, txn *txdomain.Transaction) (*domain.Transfer, error) {
	var err error
	if txn.Status == txdomain.StatusCompleted {
		err = transfer.Complete()
	} else {
		err = transfer.Fail(txn.FailReason)
	}
	if err != nil {
		return nil, err
	}
	if err := o.transfers.Update(ctx, transfer); err != nil {
		return nil, err
	}

	o.metrics.TransfersTotal.WithLabelValues(string(transfer.Type), transfer.Status.String()).Inc()
	o.logger.InfoContext(ctx, "transfer finished",
		"transfer_id", transfer.TransferID,
		"transaction_id", transfer.TransactionID,
		"type", string(transfer.Type),
		"amount", transfer.Amount.String(),
		"fee", transfer.Fee.String(),
		"status", transfer.Status.String(),
	)

	o.notifier.Notify(ctx, userID, "transfer."+transfer.Status.String(), map[string]any{
		"transfer_id": transfer.TransferID,
		"type":        string(transfer.Type),
		"amount":      transfer.Amount.String(),
		"fee":         transfer.Fee.String(),
		"reference":   transfer.ReferenceNumber,
	})
	return transfer, nil
}

// Get 按转账单 ID 查询
func (o *TransferOrchestrator) Get(ctx context.Context, transferID string) (*domain.Transfer, error) {
	return o.transfers.Get(ctx, transferID)
}

// GetByReference 按参考号查询
func (o *TransferOrchestrator) GetByReference(ctx context.Context, reference string) (*domain.Transfer, error) {
	return o.transfers.GetByReference(ctx, reference)
}

// ListForUser 分页查询用户的转账单
func (o *TransferOrchestrator) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transfer, int64, error) {
	account, err := o.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return o.transfers.ListByAccount(ctx, account.AccountID, limit, offset)
}

// StatsForUser 查询用户的转账统计
func (o *TransferOrchestrator) StatsForUser(ctx context.Context, userID string) (*domain.TransferStats, error) {
	account, err := o.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return o.transfers.Stats(ctx, account.AccountID)
}
