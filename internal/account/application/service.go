// 包 application 账户模块的应用服务
package application

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/wyfcoding/digitalbank/internal/account/domain"
	"github.com/wyfcoding/digitalbank/pkg/idgen"
)

// 生成账号时的最大尝试次数。账号最终由存储层唯一约束兜底，
// 预检查只为避免多数情况下把冲突留到插入时。
const maxAccountNumberAttempts = 5

// OtpValidator 校验一次性授权码。由 otp 模块实现。
type OtpValidator interface {
	Validate(ctx context.Context, userID, purpose, code string) error
}

// OpenAccountCommand 开户命令
type OpenAccountCommand struct {
	UserID      string
	AccountType string
	Currency    string
	Pin         string
}

// ChangePinCommand 改密命令，需要 PIN_RESET 用途的 OTP
type ChangePinCommand struct {
	UserID string
	NewPin string
	Otp    string
}

// AccountService 处理账户的读写操作
type AccountService struct {
	repo   domain.AccountRepository
	otp    OtpValidator
	logger *slog.Logger
}

// NewAccountService 创建账户应用服务
func NewAccountService(repo domain.AccountRepository, otp OtpValidator, logger *slog.Logger) *AccountService {
	return &AccountService{repo: repo, otp: otp, logger: logger}
}

// OpenAccount 开户。账户创建后处于 PENDING 状态，验证通过后才可激活。
func (s *AccountService) OpenAccount(ctx context.Context, cmd OpenAccountCommand) (*domain.Account, error) {
	if cmd.Currency == "" {
		cmd.Currency = "USD"
	}
	if cmd.AccountType == "" {
		cmd.AccountType = "SAVINGS"
	}

	number, err := s.generateAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	account := domain.NewAccount(
		idgen.BizID("ACC"),
		number,
		cmd.UserID,
		cmd.AccountType,
		cmd.Currency,
		cmd.Pin,
	)

	if err := s.repo.Save(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "failed to open account", "user_id", cmd.UserID, "error", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "account opened",
		"account_id", account.AccountID,
		"user_id", cmd.UserID,
		"currency", account.Currency,
	)
	return account, nil
}

// generateAccountNumber 生成 10 位账号，带有限次数的唯一性预检查
func (s *AccountService) generateAccountNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAccountNumberAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(9_000_000_000))
		if err != nil {
			return "", fmt.Errorf("failed to generate account number: %w", err)
		}
		number := fmt.Sprintf("%d", n.Int64()+1_000_000_000)

		taken, err := s.repo.AccountNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique account number after %d attempts", maxAccountNumberAttempts)
}

// GetAccount 按账户 ID 查询
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.repo.Get(ctx, accountID)
}

// GetByUser 查询用户的账户
func (s *AccountService) GetByUser(ctx context.Context, userID string) (*domain.Account, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// ListAccounts 分页列出账户
func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.Account, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// Activate 激活账户
func (s *AccountService) Activate(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, (*domain.Account).Activate)
}

// Suspend 暂停账户
func (s *AccountService) Suspend(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, (*domain.Account).Suspend)
}

// Freeze 冻结账户
func (s *AccountService) Freeze(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, (*domain.Account).Freeze)
}

// Unfreeze 解除限制
func (s *AccountService) Unfreeze(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, (*domain.Account).Unfreeze)
}

// Close 销户
func (s *AccountService) Close(ctx context.Context, accountID string) error {
	return s.transition(ctx, accountID, (*domain.Account).Close)
}

func (s *AccountService) transition(ctx context.Context, accountID string, fn func(*domain.Account) error) error {
	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return err
	}
	prev := account.Status
	if err := fn(account); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, account); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account status changed",
		"account_id", accountID,
		"from", prev.String(),
		"to", account.Status.String(),
	)
	return nil
}

// ChangePin 修改交易密码，需要 PIN_RESET 用途的有效 OTP
func (s *AccountService) ChangePin(ctx context.Context, cmd ChangePinCommand) error {
	account, err := s.repo.GetByUserID(ctx, cmd.UserID)
	if err != nil {
		return err
	}

	if err := s.otp.Validate(ctx, cmd.UserID, "PIN_RESET", cmd.Otp); err != nil {
		return err
	}

	if err := account.ChangePin(cmd.NewPin); err != nil {
		return err
	}
	if err := s.repo.Save(ctx, account); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "transaction pin changed", "account_id", account.AccountID)
	return nil
}
