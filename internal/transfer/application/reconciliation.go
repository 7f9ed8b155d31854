package application

import (
	"context"
	"log/slog"
	"time"

	txdomain "github.com/wyfcoding/digitalbank/internal/transaction/domain"
	"github.com/wyfcoding/digitalbank/internal/transfer/domain"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
)

// ReconciliationJob 定期扫描滞留的 PENDING 转账单，把状态对齐到结算交易：
// 结算中途失败（冲突耗尽、进程崩溃、记录更新失败）会让转账单停在 PENDING，
// 而交易随后被交易侧对账修复到终态，转账单必须跟上。
// 交易仍为 PENDING 的转账单留给交易侧对账先行处理，下一轮再对齐。
type ReconciliationJob struct {
	transfers    domain.TransferRepository
	transactions txdomain.TransactionRepository
	metrics      *metrics.Metrics
	logger       *slog.Logger
	interval     time.Duration
	// PENDING 超过该时长才会被扫描处理
	pendingTimeout time.Duration
	batchSize      int
}

// NewReconciliationJob 创建转账对账任务
func NewReconciliationJob(
	transfers domain.TransferRepository,
	transactions txdomain.TransactionRepository,
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
		transfers:      transfers,
		transactions:   transactions,
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

	j.logger.Info("transfer reconciliation job started",
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
	stale, err := j.transfers.FindPendingOlderThan(ctx, cutoff, j.batchSize)
	if err != nil {
		j.logger.ErrorContext(ctx, "transfer reconciliation scan failed", "error", err)
		return
	}

	for _, transfer := range stale {
		j.reconcile(ctx, transfer)
	}
}

func (j *ReconciliationJob) reconcile(ctx context.Context, transfer *domain.Transfer) {
	if transfer.TransactionID == "" {
		j.logger.WarnContext(ctx, "pending transfer without settlement transaction",
			"transfer_id", transfer.TransferID)
		return
	}

	txn, err := j.transactions.Get(ctx, transfer.TransactionID)
	if err != nil {
		j.logger.ErrorContext(ctx, "failed to look up settlement transaction",
			"transfer_id", transfer.TransferID,
			"transaction_id", transfer.TransactionID,
			"error", err)
		return
	}
	if !txn.Status.Terminal() {
		return
	}

	if txn.Status == txdomain.StatusCompleted {
		err = transfer.Complete()
	} else {
		err = transfer.Fail(txn.FailReason)
	}
	if err != nil {
		j.logger.ErrorContext(ctx, "cannot align stale transfer",
			"transfer_id", transfer.TransferID, "error", err)
		return
	}
	if err := j.transfers.Update(ctx, transfer); err != nil {
		j.logger.ErrorContext(ctx, "failed to align stale transfer",
			"transfer_id", transfer.TransferID, "error", err)
		return
	}

	j.metrics.TransferRepairs.Inc()
	j.logger.InfoContext(ctx, "stale transfer aligned with settled transaction",
		"transfer_id", transfer.TransferID,
		"transaction_id", transfer.TransactionID,
		"status", transfer.Status.String(),
	)
}
