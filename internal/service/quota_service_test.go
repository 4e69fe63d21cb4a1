package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quotaStoreStub struct {
	email, sms int
	affected   int64
	err        error
}

func (s *quotaStoreStub) ResetQuotas(ctx context.Context, email, sms int) (int64, error) {
	s.email, s.sms = email, sms
	return s.affected, s.err
}

func TestQuotaServiceResetMonthly(t *testing.T) {
	store := &quotaStoreStub{affected: 12}
	svc := NewQuotaService(store, 100, 10, NewMetricsService(), nil)

	n, err := svc.ResetMonthly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.Equal(t, 100, store.email)
	assert.Equal(t, 10, store.sms)
}

func TestQuotaServiceResetMonthlyError(t *testing.T) {
	svc := NewQuotaService(&quotaStoreStub{err: errors.New("db down")}, 100, 10, nil, nil)
	_, err := svc.ResetMonthly(context.Background())
	assert.Error(t, err)
}
