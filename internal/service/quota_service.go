package service

import (
	"context"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/dont-forgetter-api/pkg/errors"
)

type quotaStore interface {
	ResetQuotas(ctx context.Context, email, sms int) (int64, error)
}

// QuotaService renews the monthly notification allowance.
type QuotaService struct {
	users   quotaStore
	email   int
	sms     int
	metrics *MetricsService
	logger  *zap.Logger
}

// NewQuotaService constructs the service with the per-channel allotments.
func NewQuotaService(users quotaStore, email, sms int, metrics *MetricsService, logger *zap.Logger) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{users: users, email: email, sms: sms, metrics: metrics, logger: logger}
}

// ResetMonthly sets both counters of every user to the configured allotment.
func (s *QuotaService) ResetMonthly(ctx context.Context) (int64, error) {
	n, err := s.users.ResetQuotas(ctx, s.email, s.sms)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset quotas")
	}
	s.metrics.RecordQuotaReset()
	s.logger.Info("monthly quotas reset", zap.Int64("users", n), zap.Int("email", s.email), zap.Int("sms", s.sms))
	return n, nil
}
