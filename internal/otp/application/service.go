// 包 application OTP 模块的应用服务：签发与校验
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wyfcoding/digitalbank/internal/otp/domain"
	"github.com/wyfcoding/digitalbank/pkg/idgen"
	"github.com/wyfcoding/digitalbank/pkg/metrics"
)

// Throttle 签发限流。由 Redis 计数实现。
type Throttle interface {
	IncrWithWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Notifier 验证码投递，失败只记录不传播
type Notifier interface {
	Notify(ctx context.Context, userID, event string, payload map[string]any)
}

// Config OTP 服务参数
type Config struct {
	CodeLength         int
	TTL                time.Duration
	MaxIssuesPerWindow int
	ThrottleWindow     time.Duration
}

// OtpService 签发并校验一次性授权码
type OtpService struct {
	repo     domain.OtpRepository
	throttle Throttle
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config
}

// NewOtpService 创建 OTP 应用服务
func NewOtpService(
	repo domain.OtpRepository,
	throttle Throttle,
	notifier Notifier,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) *OtpService {
	if cfg.CodeLength < 4 || cfg.CodeLength > 6 {
		cfg.CodeLength = 6
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.MaxIssuesPerWindow <= 0 {
		cfg.MaxIssuesPerWindow = 5
	}
	if cfg.ThrottleWindow <= 0 {
		cfg.ThrottleWindow = 10 * time.Minute
	}
	return &OtpService{
		repo:     repo,
		throttle: throttle,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

// Issue 为用户在某一用途下签发验证码。
// 码值只经由通知通道送达用户，接口返回的是记录 ID 与过期时间。
func (s *OtpService) Issue(ctx context.Context, userID, purpose string) (*domain.OtpRequest, error) {
	if !domain.ValidPurpose(purpose) {
		return nil, domain.ErrUnknownPurpose
	}

	key := fmt.Sprintf("otp:issue:%s", userID)
	count, err := s.throttle.IncrWithWindow(ctx, key, s.cfg.ThrottleWindow)
	if err != nil {
		// 限流器不可用时放行，签发本身仍受审计
		s.logger.WarnContext(ctx, "otp throttle unavailable", "error", err)
	} else if count > int64(s.cfg.MaxIssuesPerWindow) {
		return nil, domain.ErrIssueThrottled
	}

	code, err := idgen.RandomDigits(s.cfg.CodeLength)
	if err != nil {
		return nil, err
	}

	otp := &domain.OtpRequest{
		OtpID:     idgen.BizID("OTP"),
		UserID:    userID,
		Purpose:   purpose,
		Code:      code,
		ExpiresAt: time.Now().Add(s.cfg.TTL),
	}
	if err := s.repo.Save(ctx, otp); err != nil {
		return nil, err
	}

	s.metrics.OTPIssuedTotal.Inc()
	s.logger.InfoContext(ctx, "otp issued",
		"otp_id", otp.OtpID,
		"user_id", userID,
		"purpose", purpose,
		"expires_at", otp.ExpiresAt,
	)

	s.notifier.Notify(ctx, userID, "otp.issued", map[string]any{
		"purpose":    purpose,
		"code":       code,
		"expires_at": otp.ExpiresAt.Format(time.RFC3339),
	})

	return otp, nil
}

// Validate 校验并消费验证码。
// 过期与不匹配都不触碰 is_used；并发的重复消费由仓储 CAS 拦截。
func (s *OtpService) Validate(ctx context.Context, userID, purpose, code string) error {
	if !domain.ValidPurpose(purpose) {
		return domain.ErrUnknownPurpose
	}

	otp, err := s.repo.GetLatestUnused(ctx, userID, purpose)
	if err != nil {
		return err
	}
	if otp == nil {
		s.metrics.OTPValidatedTotal.WithLabelValues("invalid").Inc()
		return domain.ErrCodeInvalid
	}
	if otp.Expired(time.Now()) {
		s.metrics.OTPValidatedTotal.WithLabelValues("expired").Inc()
		return domain.ErrCodeExpired
	}
	if !otp.Matches(code) {
		s.metrics.OTPValidatedTotal.WithLabelValues("invalid").Inc()
		return domain.ErrCodeInvalid
	}

	if err := s.repo.Consume(ctx, otp.ID); err != nil {
		s.metrics.OTPValidatedTotal.WithLabelValues("used").Inc()
		return err
	}

	s.metrics.OTPValidatedTotal.WithLabelValues("ok").Inc()
	s.logger.InfoContext(ctx, "otp consumed",
		"otp_id", otp.OtpID,
		"user_id", userID,
		"purpose", purpose,
	)
	return nil
}
