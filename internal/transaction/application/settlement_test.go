package application_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	accountdomain "github.com/wyfcoding/digitalbank/internal/account/domain"
	"github.com/wyfcoding/digitalbank/internal/transaction/application"
	"github.com/wyfcoding/digitalbank/internal/transaction/domain"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
)

// memTransactionRepo 内存交易仓储
type memTransactionRepo struct {
	mu   sync.Mutex
	txns map[string]*domain.Transaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{txns: make(map[string]*domain.Transaction)}
}

func (r *memTransactionRepo) Save(ctx context.Context, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.txns {
		if existing.ReferenceNumber == txn.ReferenceNumber {
			return domain.ErrDuplicateReference
		}
	}
	cp := *txn
	r.txns[txn.TransactionID] = &cp
	return nil
}

func (r *memTransactionRepo) Get(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn, ok := r.txns[transactionID]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *txn
	return &cp, nil
}

func (r *memTransactionRepo) GetByReference(ctx context.Context, ref string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, txn := range r.txns {
		if txn.ReferenceNumber == ref {
			cp := *txn
			return &cp, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

// Update 与真实仓储一致：只允许从 PENDING 迁移
func (r *memTransactionRepo) Update(ctx context.Context, txn *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.txns[txn.TransactionID]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if existing.Status != domain.StatusPending {
		return domain.ErrAlreadyTerminal
	}
	cp := *txn
	r.txns[txn.TransactionID] = &cp
	return nil
}

func (r *memTransactionRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, txn := range r.txns {
		if txn.AccountID == accountID {
			cp := *txn
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memTransactionRepo) FindPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, txn := range r.txns {
		if txn.Status == domain.StatusPending && txn.CreatedAt.Before(cutoff) {
			cp := *txn
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTransactionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.txns)
}

func (r *memTransactionRepo) Stats(ctx context.Context, accountID string) (*domain.TransactionStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.TransactionStats{TotalVolume: decimal.Zero}
	for _, txn := range r.txns {
		if txn.AccountID != accountID {
			continue
		}
		stats.TotalCount++
		switch txn.Status {
		case domain.StatusCompleted:
			stats.CompletedCount++
			stats.TotalVolume = stats.TotalVolume.Add(txn.Amount)
		case domain.StatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

type ledgerEntry struct {
	before decimal.Decimal
	after  decimal.Decimal
}

// memLedger 内存账本，语义对齐 account 仓储的 ApplyDelta：
// 余额不为负、同一交易至多一条账变、可注入若干次版本冲突。
type memLedger struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	entries  map[string]ledgerEntry
	// 在成功入账前先返回这么多次版本冲突
	conflicts int
}

func newMemLedger() *memLedger {
	return &memLedger{
		balances: make(map[string]decimal.Decimal),
		entries:  make(map[string]ledgerEntry),
	}
}

func (l *memLedger) ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal, transactionID string) (decimal.Decimal, decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[transactionID]; ok {
		return entry.before, entry.after, accountdomain.ErrEntryAlreadyApplied
	}
	if l.conflicts > 0 {
		l.conflicts--
		return decimal.Zero, decimal.Zero, accountdomain.ErrVersionConflict
	}

	before := l.balances[accountID]
	after := before.Add(delta)
	if after.IsNegative() {
		return decimal.Zero, decimal.Zero, accountdomain.ErrInsufficientFunds
	}
	l.balances[accountID] = after
	l.entries[transactionID] = ledgerEntry{before: before, after: after}
	return before, after, nil
}

func (l *memLedger) GetEntryByTransaction(ctx context.Context, transactionID string) (*domain.LedgerSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[transactionID]
	if !ok {
		return nil, nil
	}
	return &domain.LedgerSnapshot{BalanceBefore: entry.before, BalanceAfter: entry.after}, nil
}

func (l *memLedger) balance(accountID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[accountID]
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(txns *memTransactionRepo, ledger *memLedger, maxRetries int) *application.SettlementEngine {
	return application.NewSettlementEngine(txns, ledger, metrics.New("test"), testLogger(), maxRetries)
}

func pendingTxn(t *testing.T, repo *memTransactionRepo, id string, txType domain.TransactionType, amount string) *domain.Transaction {
	t.Helper()
	txn, err := domain.NewTransaction(id, "acc-1", txType, decimal.RequireFromString(amount), "USD", "ref-"+id, "")
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	if err := repo.Save(context.Background(), txn); err != nil {
		t.Fatalf("save transaction: %v", err)
	}
	return txn
}

func TestSettlementEngine_Settle(t *testing.T) {
	ctx := context.Background()

	t.Run("deposit completes and records balance snapshots", func(t *testing.T) {
		txns := newMemTransactionRepo()
		ledger := newMemLedger()
		engine := newEngine(txns, ledger, 3)
		pendingTxn(t, txns, "t1", domain.TypeDeposit, "100.00")

		settled, err := engine.Settle(ctx, "t1")
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if settled.Status != domain.StatusCompleted {
			t.Fatalf("status = %s, want COMPLETED", settled.Status)
		}
		if !settled.BalanceBefore.Equal(decimal.Zero) || !settled.BalanceAfter.Equal(decimal.RequireFromString("100.00")) {
			t.Fatalf("snapshots = %s -> %s, want 0 -> 100.00", settled.BalanceBefore, settled.BalanceAfter)
		}
		if !ledger.balance("acc-1").Equal(decimal.RequireFromString("100.00")) {
			t.Fatalf("ledger balance = %s, want 100.00", ledger.balance("acc-1"))
		}
	})

	t.Run("withdrawal beyond balance fails without touching the ledger", func(t *testing.T) {
		txns := newMemTransactionRepo()
		ledger := newMemLedger()
		ledger.balances["acc-1"] = decimal.RequireFromString("50.00")
		engine := newEngine(txns, ledger, 3)
		pendingTxn(t, txns, "t1", domain.TypeWithdrawal, "80.00")

		settled, err := engine.Settle(ctx, "t1")
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if settled.Status != domain.StatusFailed {
			t.Fatalf("status = %s, want FAILED", settled.Status)
		}
		if !ledger.balance("acc-1").Equal(decimal.RequireFromString("50.00")) {
			t.Fatalf("balance changed to %s on failed settlement", ledger.balance("acc-1"))
		}
		if len(ledger.entries) != 0 {
			t.Fatalf("ledger entry written for failed settlement")
		}
	})

	t.Run("settling a completed transaction is rejected", func(t *testing.T) {
		txns := newMemTransactionRepo()
		ledger := newMemLedger()
		engine := newEngine(txns, ledger, 3)
		pendingTxn(t, txns, "t1", domain.TypeDeposit, "10.00")

		if _, err := engine.Settle(ctx, "t1"); err != nil {
			t.Fatalf("first settle: %v", err)
		}
		if _, err := engine.Settle(ctx, "t1"); !errors.Is(err, domain.ErrAlreadyCompleted) {
			t.Fatalf("second settle err = %v, want ErrAlreadyCompleted", err)
		}
		if !ledger.balance("acc-1").Equal(decimal.RequireFromString("10.00")) {
			t.Fatalf("double settlement moved balance to %s", ledger.balance("acc-1"))
		}
	})

	t.Run("existing ledger entry is treated as already applied", func(t *testing.T) {
		// 此前的结算在入账后、记录更新前中断：账本有流水，交易仍是 PENDING
		txns := newMemTransactionRepo()
		ledger := newMemLedger()
		engine := newEngine(txns, ledger, 3)
		pendingTxn(t, txns, "t1", domain.TypeDeposit, "25.00")
		ledger.balances["acc-1"] = decimal.RequireFromString("25.00")
		ledger.entries["t1"] = ledgerEntry{before: decimal.Zero, after: decimal.RequireFromString("25.00")}

		settled, err := engine.Settle(ctx, "t1")
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if settled.Status != domain.StatusCompleted {
			t.Fatalf("status = %s, want COMPLETED", settled.Status)
		}
		if !ledger.balance("acc-1").Equal(decimal.RequireFromString("25.00")) {
			t.Fatalf("repair settlement double-applied, balance = %s", ledger.balance("acc-1"))
		}
	})

	t.Run("version conflicts are retried with backoff until success", func(t *testing.T) {
		txns := newMemTransactionRepo()
		ledger := newMemLedger()
		ledger.conflicts = 2
		engine := newEngine(txns, ledger, 3)
		pendingTxn(t, txns, "t1", domain.TypeDeposit, "10.00")

		start := time.Now()
		settled, err := engine.Settle(ctx, "t1")
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if settled.Status != domain.StatusCompleted {
			t.Fatalf("status = %s, want COMPLETED", settled.Status)
		}
		// 两次冲突意味着至少等待了两个退避基数
		if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
			t.Fatalf("retries finished in %s, want backoff between attempts", elapsed)
		}
	})

	t.Run("exhausted conflict retries abort with ErrSettlementConflict", func(t *testing.T) {
		txns := newMemTransactionRepo()
		ledger := newMemLedger()
		ledger.conflicts = 10
		engine := newEngine(txns, ledger, 3)
		pendingTxn(t, txns, "t1", domain.TypeDeposit, "10.00")

		if _, err := engine.Settle(ctx, "t1"); !errors.Is(err, domain.ErrSettlementConflict) {
			t.Fatalf("err = %v, want ErrSettlementConflict", err)
		}
		stored, _ := txns.Get(ctx, "t1")
		if stored.Status != domain.StatusPending {
			t.Fatalf("status = %s, want PENDING for reconciliation", stored.Status)
		}
	})

	t.Run("concurrent settlements on one account keep the balance exact", func(t *testing.T) {
		txns := newMemTransactionRepo()
		ledger := newMemLedger()
		ledger.balances["acc-1"] = decimal.RequireFromString("1000.00")
		engine := newEngine(txns, ledger, 5)

		const workers = 20
		for i := 0; i < workers; i++ {
			pendingTxn(t, txns, fmt.Sprintf("t%d", i), domain.TypeWithdrawal, "10.00")
		}

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				engine.Settle(ctx, id)
			}(fmt.Sprintf("t%d", i))
		}
		wg.Wait()

		want := decimal.RequireFromString("800.00")
		if !ledger.balance("acc-1").Equal(want) {
			t.Fatalf("balance = %s, want %s", ledger.balance("acc-1"), want)
		}
	})
}

func TestSettlementEngine_MarkFailed(t *testing.T) {
	ctx := context.Background()
	txns := newMemTransactionRepo()
	ledger := newMemLedger()
	engine := newEngine(txns, ledger, 3)
	pendingTxn(t, txns, "t1", domain.TypeTransfer, "10.00")

	settled, err := engine.MarkFailed(ctx, "t1", "transfer record creation failed")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if settled.Status != domain.StatusFailed || settled.FailReason == "" {
		t.Fatalf("status = %s reason = %q", settled.Status, settled.FailReason)
	}
	if len(ledger.entries) != 0 {
		t.Fatalf("MarkFailed touched the ledger")
	}
}
