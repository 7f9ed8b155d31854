// 包 application 交易模块的应用服务：结算引擎与对账任务
package application

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	accountdomain "github.com/wyfcoding/digitalbank/internal/account/domain"
	"github.com/wyfcoding/digitalbank/internal/transaction/domain"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
)

// 冲突重试的退避基数，按尝试次数线性放大并叠加抖动
const conflictBackoffBase = 20 * time.Millisecond

// SettlementEngine 把 PENDING 交易的预期账变转化为实际入账。
// 账本提交先于交易记录更新；两者之间的崩溃窗口由对账任务修复。
type SettlementEngine struct {
	transactions domain.TransactionRepository
	ledger       domain.Ledger
	metrics      *metrics.Metrics
	logger       *slog.Logger
	// 乐观锁冲突时的内部重试上限
	maxRetries int
}

// NewSettlementEngine 创建结算引擎
func NewSettlementEngine(
	transactions domain.TransactionRepository,
	ledger domain.Ledger,
	m *metrics.Metrics,
	logger *slog.Logger,
	maxRetries int,
) *SettlementEngine {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &SettlementEngine{
		transactions: transactions,
		ledger:       ledger,
		metrics:      m,
		logger:       logger,
		maxRetries:   maxRetries,
	}
}

// Settle 将交易从 PENDING 结算为 COMPLETED 或 FAILED。
// 余额不足时交易被显式标记 FAILED，账本不动；
// 乐观锁冲突在引擎内部带抖动退避地有限次重试，耗尽后向调用方返回冲突错误。
func (e *SettlementEngine) Settle(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	txn, err := e.transactions.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status == domain.StatusCompleted {
		return nil, domain.ErrAlreadyCompleted
	}
	if txn.Status.Terminal() {
		return nil, domain.ErrAlreadyTerminal
	}

	delta := txn.Type.SignedDelta(txn.Amount)

	var before, after = txn.BalanceBefore, txn.BalanceAfter
	applied := false
	for attempt := 0; attempt < e.maxRetries && !applied; attempt++ {
		before, after, err = e.ledger.ApplyDelta(ctx, txn.AccountID, delta, txn.TransactionID)
		switch {
		case err == nil:
			applied = true
		case errors.Is(err, accountdomain.ErrEntryAlreadyApplied):
			// 账本已入账（此前某次结算中途中断）：补记即可
			applied = true
		case errors.Is(err, accountdomain.ErrVersionConflict):
			e.metrics.SettlementConflictRetries.Inc()
			e.logger.WarnContext(ctx, "balance conflict, retrying settlement",
				"transaction_id", txn.TransactionID,
				"attempt", attempt+1,
			)
			if attempt+1 < e.maxRetries {
				if err := sleepBackoff(ctx, attempt); err != nil {
					return nil, err
				}
			}
		case errors.Is(err, accountdomain.ErrInsufficientFunds):
			return e.failSettlement(ctx, txn, "insufficient funds")
		default:
			e.metrics.SettlementsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}
	if !applied {
		e.metrics.SettlementsTotal.WithLabelValues("conflict").Inc()
		return nil, domain.ErrSettlementConflict
	}

	if err := txn.Complete(before, after); err != nil {
		return nil, err
	}
	if err := e.transactions.Update(ctx, txn); err != nil {
		// 账本已动而记录未更新：留给对账任务按流水补记
		e.logger.ErrorContext(ctx, "ledger committed but record update failed; reconciliation will repair",
			"transaction_id", txn.TransactionID,
			"error", err,
		)
		return nil, err
	}

	e.metrics.SettlementsTotal.WithLabelValues("completed").Inc()
	e.logger.InfoContext(ctx, "transaction settled",
		"transaction_id", txn.TransactionID,
		"type", string(txn.Type),
		"amount", txn.Amount.String(),
		"balance_after", after.String(),
	)
	return txn, nil
}

func sleepBackoff(ctx context.Context, attempt int) error {
	delay := time.Duration(attempt+1) * conflictBackoffBase
	delay += rand.N(conflictBackoffBase)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// MarkFailed 把交易标记为 FAILED。不做任何账本变更，随时可以安全调用。
func (e *SettlementEngine) MarkFailed(ctx context.Context, transactionID, reason string) (*domain.Transaction, error) {
	txn, err := e.transactions.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return e.failSettlement(ctx, txn, reason)
}

func (e *SettlementEngine) failSettlement(ctx context.Context, txn *domain.Transaction, reason string) (*domain.Transaction, error) {
	if err := txn.Fail(reason); err != nil {
		return nil, err
	}
	if err := e.transactions.Update(ctx, txn); err != nil {
		return nil, err
	}
	e.metrics.SettlementsTotal.WithLabelValues("failed").Inc()
	e.logger.InfoContext(ctx, "transaction failed",
		"transaction_id", txn.TransactionID,
		"reason", reason,
	)
	return txn, nil
}
