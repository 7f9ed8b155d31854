package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/digitalbank/internal/transaction/domain"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
)

// ReconciliationJob 定期扫描滞留的 PENDING 交易，修复结算崩溃窗口：
// 账变流水存在说明账本已动，按流水补记 COMPLETED；
// 流水不存在说明账本从未变动，按超时标记 FAILED。
type ReconciliationJob struct {
	transactions domain.TransactionRepository
	ledger       domain.Ledger
	metrics      *metrics.Metrics
	logger       *slog.Logger
	interval     time.Duration
	// PENDING 超过该时长才会被扫描处理
	pendingTimeout time.Duration
	batchSize      int
}

// NewReconciliationJob 创建对账任务
func NewReconciliationJob(
	transactions domain.TransactionRepository,
	ledger domain.Ledger,
	m *metrics.Metrics,
	logger *slog.Logger,
	interval, pendingTimeout time.Duration,
) *ReconciliationJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if pendingTimeout <= 0 {
		pendingTimeout = 10 * time.Minute
	}
	return &ReconciliationJob{
		transactions:   transactions,
		ledger:         ledger,
		metrics:        m,
		logger:         logger,
		interval:       interval,
		pendingTimeout: pendingTimeout,
		batchSize:      200,
	}
}

// Start 启动定时扫描，直到 ctx 取消
func (j *ReconciliationJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("reconciliation job started",
		"interval", j.interval,
		"pending_timeout", j.pendingTimeout,
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce 执行一轮扫描
func (j *ReconciliationJob) RunOnce(ctx context.Context) {
	cutoff := time.Now().Add(-j.pendingTimeout)
	stale, err := j.transactions.FindPendingOlderThan(ctx, cutoff, j.batchSize)
	if err != nil {
		j.logger.ErrorContext(ctx, "reconciliation scan failed", "error", err)
		return
	}

	for _, txn := range stale {
		j.reconcile(ctx, txn)
	}
}

func (j *ReconciliationJob) reconcile(ctx context.Context, txn *domain.Transaction) {
	entry, err := j.ledger.GetEntryByTransaction(ctx, txn.TransactionID)
	if err != nil {
		j.logger.ErrorContext(ctx, "failed to look up ledger entry",
			"transaction_id", txn.TransactionID, "error", err)
		return
	}

	if entry != nil {
		// 账本已动而记录未更新：按流水补记
		if err := txn.Complete(entry.BalanceBefore, entry.BalanceAfter); err != nil {
			j.logger.ErrorContext(ctx, "cannot complete stale transaction",
				"transaction_id", txn.TransactionID, "error", err)
			return
		}
		if err := j.transactions.Update(ctx, txn); err != nil {
			j.logger.ErrorContext(ctx, "failed to repair stale transaction",
				"transaction_id", txn.TransactionID, "error", err)
			return
		}
		j.metrics.ReconciliationRepairs.Inc()
		j.logger.InfoContext(ctx, "stale transaction repaired from ledger journal",
			"transaction_id", txn.TransactionID)
		return
	}

	// 账本从未变动：结算从未开始或从未到达账本
	if err := txn.Fail("settlement window expired"); err != nil {
		return
	}
	if err := j.transactions.Update(ctx, txn); err != nil {
		j.logger.ErrorContext(ctx, "failed to expire stale transaction",
			"transaction_id", txn.TransactionID, "error", err)
		return
	}
	j.metrics.ReconciliationExpired.Inc()
	j.logger.InfoContext(ctx, "stale transaction expired",
		"transaction_id", txn.TransactionID)
}
