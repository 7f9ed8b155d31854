package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/digitalbank/internal/transaction/application"
	"github.com/wyfcoding/digitalbank/internal/transaction/domain"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
)

func newJob(txns *memTransactionRepo, ledger *memLedger) *application.ReconciliationJob {
	return application.NewReconciliationJob(
		txns, ledger, metrics.New("test"), testLogger(),
		time.Minute, time.Minute,
	)
}

func TestReconciliationJob_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("pending transaction with a ledger entry is completed from it", func(t *testing.T) {
		// 结算在入账后、记录更新前崩溃过
		txns := newMemTransactionRepo()
		ledger := newMemLedger()
		pendingTxn(t, txns, "t1", domain.TypeDeposit, "40.00")
		ledger.balances["acc-1"] = decimal.RequireFromString("40.00")
		ledger.entries["t1"] = ledgerEntry{before: decimal.Zero, after: decimal.RequireFromString("40.00")}

		newJob(txns, ledger).RunOnce(ctx)

		repaired, err := txns.Get(ctx, "t1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if repaired.Status != domain.StatusCompleted {
			t.Fatalf("status = %s, want COMPLETED", repaired.Status)
		}
		if !repaired.BalanceAfter.Equal(decimal.RequireFromString("40.00")) {
			t.Fatalf("balance_after = %s, want 40.00 from ledger entry", repaired.BalanceAfter)
		}
	})

	t.Run("pending transaction without a ledger entry expires as failed", func(t *testing.T) {
		txns := newMemTransactionRepo()
		ledger := newMemLedger()
		pendingTxn(t, txns, "t1", domain.TypeWithdrawal, "40.00")

		newJob(txns, ledger).RunOnce(ctx)

		expired, err := txns.Get(ctx, "t1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if expired.Status != domain.StatusFailed {
			t.Fatalf("status = %s, want FAILED", expired.Status)
		}
		if !ledger.balance("acc-1").Equal(decimal.Zero) {
			t.Fatalf("reconciliation moved balance to %s", ledger.balance("acc-1"))
		}
	})

	t.Run("terminal transactions are left untouched", func(t *testing.T) {
		txns := newMemTransactionRepo()
		ledger := newMemLedger()
		txn := pendingTxn(t, txns, "t1", domain.TypeDeposit, "40.00")
		if err := txn.Fail("settlement window expired"); err != nil {
			t.Fatalf("fail: %v", err)
		}
		if err := txns.Update(ctx, txn); err != nil {
			t.Fatalf("update: %v", err)
		}

		newJob(txns, ledger).RunOnce(ctx)

		stored, _ := txns.Get(ctx, "t1")
		if stored.Status != domain.StatusFailed {
			t.Fatalf("status = %s, want FAILED unchanged", stored.Status)
		}
	})
}
