package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wyfcoding/digitalbank/internal/beneficiary/application"
	"github.com/wyfcoding/digitalbank/internal/beneficiary/domain"
)

type memBeneficiaryRepo struct {
	mu   sync.Mutex
	list []*domain.Beneficiary
}

func (r *memBeneficiaryRepo) Save(ctx context.Context, b *domain.Beneficiary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.list {
		if existing.UserID == b.UserID &&
			existing.AccountNumber == b.AccountNumber &&
			existing.BankCode == b.BankCode {
			return domain.ErrDuplicateBeneficiary
		}
	}
	cp := *b
	r.list = append(r.list, &cp)
	return nil
}

func (r *memBeneficiaryRepo) Get(ctx context.Context, beneficiaryID string) (*domain.Beneficiary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.list {
		if b.BeneficiaryID == beneficiaryID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, domain.ErrBeneficiaryNotFound
}

func (r *memBeneficiaryRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Beneficiary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Beneficiary
	for _, b := range r.list {
		if b.UserID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memBeneficiaryRepo) Update(ctx context.Context, b *domain.Beneficiary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.list {
		if existing.BeneficiaryID == b.BeneficiaryID {
			existing.Nickname = b.Nickname
			existing.IsFavorite = b.IsFavorite
			return nil
		}
	}
	return domain.ErrBeneficiaryNotFound
}

func (r *memBeneficiaryRepo) Delete(ctx context.Context, beneficiaryID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.list {
		if b.BeneficiaryID == beneficiaryID {
			r.list = append(r.list[:i], r.list[i+1:]...)
			return nil
		}
	}
	return domain.ErrBeneficiaryNotFound
}

func (r *memBeneficiaryRepo) TouchLastTransferred(ctx context.Context, userID, accountNumber, bankCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.list {
		if b.UserID == userID && b.AccountNumber == accountNumber && b.BankCode == bankCode {
			now := time.Now()
			b.LastTransferredAt = &now
			return nil
		}
	}
	return nil
}

func newService(repo *memBeneficiaryRepo) *application.BeneficiaryService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewBeneficiaryService(repo, logger)
}

func addCommand(userID string) application.AddBeneficiaryCommand {
	return application.AddBeneficiaryCommand{
		UserID:        userID,
		Nickname:      "rent",
		BankName:      "First National",
		BankCode:      "021000021",
		AccountNumber: "9876543210",
		AccountName:   "Jordan Reyes",
		Currency:      "USD",
		Country:       "US",
	}
}

func TestBeneficiaryService(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate account and bank code per user is rejected", func(t *testing.T) {
		repo := &memBeneficiaryRepo{}
		svc := newService(repo)

		if _, err := svc.Add(ctx, addCommand("user-1")); err != nil {
			t.Fatalf("add: %v", err)
		}
		if _, err := svc.Add(ctx, addCommand("user-1")); !errors.Is(err, domain.ErrDuplicateBeneficiary) {
			t.Fatalf("duplicate add err = %v, want ErrDuplicateBeneficiary", err)
		}
		// 不同用户可以各自留存同一收款人
		if _, err := svc.Add(ctx, addCommand("user-2")); err != nil {
			t.Fatalf("add for another user: %v", err)
		}
	})

	t.Run("ownership is enforced on read update and delete", func(t *testing.T) {
		repo := &memBeneficiaryRepo{}
		svc := newService(repo)
		b, _ := svc.Add(ctx, addCommand("user-1"))

		if _, err := svc.Get(ctx, "user-2", b.BeneficiaryID); !errors.Is(err, domain.ErrNotOwner) {
			t.Fatalf("foreign get err = %v, want ErrNotOwner", err)
		}
		if err := svc.Remove(ctx, "user-2", b.BeneficiaryID); !errors.Is(err, domain.ErrNotOwner) {
			t.Fatalf("foreign remove err = %v, want ErrNotOwner", err)
		}
		if err := svc.Remove(ctx, "user-1", b.BeneficiaryID); err != nil {
			t.Fatalf("owner remove: %v", err)
		}
	})

	t.Run("update touches only nickname and favorite flag", func(t *testing.T) {
		repo := &memBeneficiaryRepo{}
		svc := newService(repo)
		b, _ := svc.Add(ctx, addCommand("user-1"))

		updated, err := svc.Update(ctx, application.UpdateBeneficiaryCommand{
			UserID:        "user-1",
			BeneficiaryID: b.BeneficiaryID,
			Nickname:      "landlord",
			IsFavorite:    true,
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if updated.Nickname != "landlord" || !updated.IsFavorite {
			t.Fatalf("update not applied: %+v", updated)
		}
		stored, _ := svc.Get(ctx, "user-1", b.BeneficiaryID)
		if stored.AccountNumber != "9876543210" || stored.BankCode != "021000021" {
			t.Fatalf("update mutated identity fields: %+v", stored)
		}
	})

	t.Run("save from transfer refreshes existing beneficiaries", func(t *testing.T) {
		repo := &memBeneficiaryRepo{}
		svc := newService(repo)

		if err := svc.SaveFromTransfer(ctx, addCommand("user-1")); err != nil {
			t.Fatalf("first save from transfer: %v", err)
		}
		if err := svc.SaveFromTransfer(ctx, addCommand("user-1")); err != nil {
			t.Fatalf("second save from transfer: %v", err)
		}
		list, _ := svc.List(ctx, "user-1")
		if len(list) != 1 {
			t.Fatalf("beneficiaries = %d, want 1", len(list))
		}
		if list[0].LastTransferredAt == nil {
			t.Fatal("last transferred time not set")
		}
	})
}
