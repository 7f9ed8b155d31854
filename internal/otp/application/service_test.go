package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wyfcoding/digitalbank/internal/otp/application"
	"github.com/wyfcoding/digitalbank/internal/otp/domain"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
)

// memOtpRepo 内存 OTP 仓储，Consume 的 CAS 语义与真实仓储一致
type memOtpRepo struct {
	mu     sync.Mutex
	nextID uint
	otps   []*domain.OtpRequest
}

func newMemOtpRepo() *memOtpRepo {
	return &memOtpRepo{}
}

func (r *memOtpRepo) Save(ctx context.Context, otp *domain.OtpRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	otp.ID = r.nextID
	cp := *otp
	r.otps = append(r.otps, &cp)
	return nil
}

func (r *memOtpRepo) GetLatestUnused(ctx context.Context, userID, purpose string) (*domain.OtpRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.otps) - 1; i >= 0; i-- {
		otp := r.otps[i]
		if otp.UserID == userID && otp.Purpose == purpose && !otp.IsUsed {
			cp := *otp
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memOtpRepo) Consume(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, otp := range r.otps {
		if otp.ID == id {
			if otp.IsUsed {
				return domain.ErrCodeUsed
			}
			now := time.Now()
			otp.IsUsed = true
			otp.VerifiedAt = &now
			return nil
		}
	}
	return domain.ErrCodeInvalid
}

func (r *memOtpRepo) get(id uint) *domain.OtpRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, otp := range r.otps {
		if otp.ID == id {
			cp := *otp
			return &cp
		}
	}
	return nil
}

// memThrottle 内存签发计数器
type memThrottle struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newMemThrottle() *memThrottle {
	return &memThrottle{counts: make(map[string]int64)}
}

func (t *memThrottle) IncrWithWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	if t.err != nil {
		return 0, t.err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[key]++
	return t.counts[key], nil
}

// capturingNotifier 记录投递事件
type capturingNotifier struct {
	mu     sync.Mutex
	events []string
	codes  []string
}

func (n *capturingNotifier) Notify(ctx context.Context, userID, event string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	if code, ok := payload["code"].(string); ok {
		n.codes = append(n.codes, code)
	}
}

func (n *capturingNotifier) lastCode() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.codes) == 0 {
		return ""
	}
	return n.codes[len(n.codes)-1]
}

func newService(repo *memOtpRepo, throttle *memThrottle, notifier *capturingNotifier, cfg application.Config) *application.OtpService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return application.NewOtpService(repo, throttle, notifier, metrics.New("test"), logger, cfg)
}

func defaultConfig() application.Config {
	return application.Config{
		CodeLength:         6,
		TTL:                15 * time.Minute,
		MaxIssuesPerWindow: 5,
		ThrottleWindow:     10 * time.Minute,
	}
}

func TestOtpService_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("issued code reaches the user through the notifier only", func(t *testing.T) {
		repo := newMemOtpRepo()
		notifier := &capturingNotifier{}
		svc := newService(repo, newMemThrottle(), notifier, defaultConfig())

		otp, err := svc.Issue(ctx, "user-1", domain.PurposeTransfer)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if len(otp.Code) != 6 {
			t.Fatalf("code length = %d, want 6", len(otp.Code))
		}
		if notifier.lastCode() != otp.Code {
			t.Fatalf("notifier carried %q, want the issued code", notifier.lastCode())
		}
	})

	t.Run("unknown purpose is rejected", func(t *testing.T) {
		svc := newService(newMemOtpRepo(), newMemThrottle(), &capturingNotifier{}, defaultConfig())
		if _, err := svc.Issue(ctx, "user-1", "LOGIN"); !errors.Is(err, domain.ErrUnknownPurpose) {
			t.Fatalf("err = %v, want ErrUnknownPurpose", err)
		}
	})

	t.Run("issuing beyond the window limit is throttled", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.MaxIssuesPerWindow = 2
		svc := newService(newMemOtpRepo(), newMemThrottle(), &capturingNotifier{}, cfg)

		for i := 0; i < 2; i++ {
			if _, err := svc.Issue(ctx, "user-1", domain.PurposeTransfer); err != nil {
				t.Fatalf("issue %d: %v", i, err)
			}
		}
		if _, err := svc.Issue(ctx, "user-1", domain.PurposeTransfer); !errors.Is(err, domain.ErrIssueThrottled) {
			t.Fatalf("err = %v, want ErrIssueThrottled", err)
		}
	})

	t.Run("throttle outage does not block issuance", func(t *testing.T) {
		throttle := newMemThrottle()
		throttle.err = errors.New("redis down")
		svc := newService(newMemOtpRepo(), throttle, &capturingNotifier{}, defaultConfig())

		if _, err := svc.Issue(ctx, "user-1", domain.PurposeTransfer); err != nil {
			t.Fatalf("issue during throttle outage: %v", err)
		}
	})
}

func TestOtpService_Validate(t *testing.T) {
	ctx := context.Background()

	issue := func(t *testing.T, svc *application.OtpService, notifier *capturingNotifier, purpose string) string {
		t.Helper()
		if _, err := svc.Issue(ctx, "user-1", purpose); err != nil {
			t.Fatalf("issue: %v", err)
		}
		return notifier.lastCode()
	}

	t.Run("valid code is consumed exactly once", func(t *testing.T) {
		repo := newMemOtpRepo()
		notifier := &capturingNotifier{}
		svc := newService(repo, newMemThrottle(), notifier, defaultConfig())
		code := issue(t, svc, notifier, domain.PurposeTransfer)

		if err := svc.Validate(ctx, "user-1", domain.PurposeTransfer, code); err != nil {
			t.Fatalf("validate: %v", err)
		}
		stored := repo.get(1)
		if !stored.IsUsed || stored.VerifiedAt == nil {
			t.Fatalf("consumed otp not marked used")
		}
		// 同一码值的第二次校验必须失败
		if err := svc.Validate(ctx, "user-1", domain.PurposeTransfer, code); !errors.Is(err, domain.ErrCodeInvalid) {
			t.Fatalf("second validate err = %v, want ErrCodeInvalid", err)
		}
	})

	t.Run("expired code is rejected and stays unconsumed", func(t *testing.T) {
		repo := newMemOtpRepo()
		notifier := &capturingNotifier{}
		cfg := defaultConfig()
		cfg.TTL = time.Minute
		svc := newService(repo, newMemThrottle(), notifier, cfg)
		code := issue(t, svc, notifier, domain.PurposeTransfer)

		// 将记录的过期时间拨回到 16 分钟前签发的状态
		repo.mu.Lock()
		repo.otps[0].ExpiresAt = time.Now().Add(-15 * time.Minute)
		repo.mu.Unlock()

		if err := svc.Validate(ctx, "user-1", domain.PurposeTransfer, code); !errors.Is(err, domain.ErrCodeExpired) {
			t.Fatalf("err = %v, want ErrCodeExpired", err)
		}
		if repo.get(1).IsUsed {
			t.Fatalf("expired validation consumed the code")
		}
	})

	t.Run("wrong code is rejected without consuming", func(t *testing.T) {
		repo := newMemOtpRepo()
		notifier := &capturingNotifier{}
		svc := newService(repo, newMemThrottle(), notifier, defaultConfig())
		issue(t, svc, notifier, domain.PurposeTransfer)

		if err := svc.Validate(ctx, "user-1", domain.PurposeTransfer, "000000"); !errors.Is(err, domain.ErrCodeInvalid) {
			t.Fatalf("err = %v, want ErrCodeInvalid", err)
		}
		if repo.get(1).IsUsed {
			t.Fatalf("failed validation consumed the code")
		}
	})

	t.Run("code issued for one purpose cannot serve another", func(t *testing.T) {
		repo := newMemOtpRepo()
		notifier := &capturingNotifier{}
		svc := newService(repo, newMemThrottle(), notifier, defaultConfig())
		code := issue(t, svc, notifier, domain.PurposeTransfer)

		if err := svc.Validate(ctx, "user-1", domain.PurposeWithdrawal, code); !errors.Is(err, domain.ErrCodeInvalid) {
			t.Fatalf("err = %v, want ErrCodeInvalid", err)
		}
		if repo.get(1).IsUsed {
			t.Fatalf("cross-purpose validation consumed the code")
		}
	})

	t.Run("concurrent validations consume the code at most once", func(t *testing.T) {
		repo := newMemOtpRepo()
		notifier := &capturingNotifier{}
		svc := newService(repo, newMemThrottle(), notifier, defaultConfig())
		code := issue(t, svc, notifier, domain.PurposeTransfer)

		const workers = 10
		var wg sync.WaitGroup
		results := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- svc.Validate(ctx, "user-1", domain.PurposeTransfer, code)
			}()
		}
		wg.Wait()
		close(results)

		var succeeded int
		for err := range results {
			if err == nil {
				succeeded++
			}
		}
		if succeeded != 1 {
			t.Fatalf("%d validations succeeded, want exactly 1", succeeded)
		}
	})
}
