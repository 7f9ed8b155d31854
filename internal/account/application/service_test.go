package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/digitalbank/internal/account/application"
	"github.com/wyfcoding/digitalbank/internal/account/domain"
)

// memAccountRepo 内存账户仓储
type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	entries  map[string]*domain.LedgerEntry
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{
		accounts: make(map[string]*domain.Account),
		entries:  make(map[string]*domain.LedgerEntry),
	}
}

func (r *memAccountRepo) Save(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.AccountNumber == account.AccountNumber && existing.AccountID != account.AccountID {
			return domain.ErrAccountNumberTaken
		}
	}
	cp := *account
	r.accounts[account.AccountID] = &cp
	return nil
}

func (r *memAccountRepo) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (r *memAccountRepo) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.UserID == userID {
			cp := *account
			return &cp, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *memAccountRepo) GetByAccountNumber(ctx context.Context, number string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.AccountNumber == number {
			cp := *account
			return &cp, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *memAccountRepo) List(ctx context.Context, limit, offset int) ([]*domain.Account, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Account
	for _, account := range r.accounts {
		cp := *account
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (r *memAccountRepo) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.AccountNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAccountRepo) ApplyDelta(ctx context.Context, accountID string, delta decimal.Decimal, transactionID string) (decimal.Decimal, decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[transactionID]; ok {
		return entry.BalanceBefore, entry.BalanceAfter, domain.ErrEntryAlreadyApplied
	}
	account, ok := r.accounts[accountID]
	if !ok {
		return decimal.Zero, decimal.Zero, domain.ErrAccountNotFound
	}
	before := account.Balance
	after := before.Add(delta)
	if after.IsNegative() {
		return decimal.Zero, decimal.Zero, domain.ErrInsufficientFunds
	}
	account.Balance = after
	account.Version++
	r.entries[transactionID] = &domain.LedgerEntry{
		AccountID:     accountID,
		TransactionID: transactionID,
		Delta:         delta,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	return before, after, nil
}

func (r *memAccountRepo) GetEntryByTransaction(ctx context.Context, transactionID string) (*domain.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[transactionID]
	if !ok {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

type stubOtp struct {
	err       error
	validated int
}

func (s *stubOtp) Validate(ctx context.Context, userID, purpose, code string) error {
	if s.err != nil {
		return s.err
	}
	s.validated++
	return nil
}

func newService(repo *memAccountRepo, otp *stubOtp) *application.AccountService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewAccountService(repo, otp, logger)
}

func TestAccountService_OpenAccount(t *testing.T) {
	ctx := context.Background()
	repo := newMemAccountRepo()
	svc := newService(repo, &stubOtp{})

	account, err := svc.OpenAccount(ctx, application.OpenAccountCommand{
		UserID: "user-1",
		Pin:    "1234",
	})
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	if account.Status != domain.AccountStatusPending {
		t.Fatalf("status = %s, want PENDING", account.Status)
	}
	if !strings.HasPrefix(account.AccountID, "ACC-") {
		t.Fatalf("account id %q lacks prefix", account.AccountID)
	}
	if len(account.AccountNumber) != 10 {
		t.Fatalf("account number %q is not 10 digits", account.AccountNumber)
	}
	if !account.Balance.Equal(decimal.Zero) {
		t.Fatalf("opening balance = %s, want 0", account.Balance)
	}
	if account.AccountType != "SAVINGS" || account.Currency != "USD" {
		t.Fatalf("defaults not applied: %s %s", account.AccountType, account.Currency)
	}
}

func TestAccountService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemAccountRepo()
	svc := newService(repo, &stubOtp{})

	account, err := svc.OpenAccount(ctx, application.OpenAccountCommand{UserID: "user-1", Pin: "1234"})
	if err != nil {
		t.Fatalf("open account: %v", err)
	}

	if err := svc.Activate(ctx, account.AccountID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := svc.Freeze(ctx, account.AccountID); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	stored, _ := svc.GetAccount(ctx, account.AccountID)
	if stored.Status != domain.AccountStatusFrozen {
		t.Fatalf("status = %s, want FROZEN", stored.Status)
	}
	if err := svc.Unfreeze(ctx, account.AccountID); err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if err := svc.Close(ctx, account.AccountID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := svc.Activate(ctx, account.AccountID); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("activate closed err = %v, want ErrInvalidStatusTransition", err)
	}
}

func TestAccountService_ChangePin(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a valid reset otp", func(t *testing.T) {
		repo := newMemAccountRepo()
		otp := &stubOtp{}
		svc := newService(repo, otp)
		account, _ := svc.OpenAccount(ctx, application.OpenAccountCommand{UserID: "user-1", Pin: "1234"})

		if err := svc.ChangePin(ctx, application.ChangePinCommand{
			UserID: "user-1", NewPin: "5678", Otp: "482913",
		}); err != nil {
			t.Fatalf("change pin: %v", err)
		}
		if otp.validated != 1 {
			t.Fatalf("otp validated %d times, want 1", otp.validated)
		}
		stored, _ := svc.GetAccount(ctx, account.AccountID)
		if !stored.VerifyPin("5678") {
			t.Fatal("new pin not persisted")
		}
	})

	t.Run("otp failure keeps the old pin", func(t *testing.T) {
		repo := newMemAccountRepo()
		otp := &stubOtp{err: errors.New("otp code invalid")}
		svc := newService(repo, otp)
		account, _ := svc.OpenAccount(ctx, application.OpenAccountCommand{UserID: "user-1", Pin: "1234"})

		if err := svc.ChangePin(ctx, application.ChangePinCommand{
			UserID: "user-1", NewPin: "5678", Otp: "000000",
		}); err == nil {
			t.Fatal("change pin succeeded without valid otp")
		}
		stored, _ := svc.GetAccount(ctx, account.AccountID)
		if !stored.VerifyPin("1234") {
			t.Fatal("old pin lost after failed change")
		}
	})
}
