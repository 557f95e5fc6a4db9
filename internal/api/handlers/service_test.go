package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fizic37/delcampe-ebay/internal/engine"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// mockService stands in for the engine behind every handler.
type mockService struct {
	mock.Mock
}

func (m *mockService) Ready() error {
	return m.Called().Error(0)
}

func (m *mockService) Environments() []domain.Environment {
	envs, _ := m.Called().Get(0).([]domain.Environment)
	return envs
}

func (m *mockService) Accounts() ([]domain.Account, string) {
	args := m.Called()
	accounts, _ := args.Get(0).([]domain.Account)
	return accounts, args.String(1)
}

func (m *mockService) SetActive(key string) error {
	return m.Called(key).Error(0)
}

func (m *mockService) Disconnect(key string) error {
	return m.Called(key).Error(0)
}

func (m *mockService) AuthURL(env domain.Environment) (string, string, error) {
	args := m.Called(env)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *mockService) ConsumeState(state string) (domain.Environment, error) {
	args := m.Called(state)
	return domain.Environment(args.String(0)), args.Error(1)
}

func (m *mockService) Connect(ctx context.Context, env domain.Environment, code string) (domain.Account, error) {
	args := m.Called(ctx, env, code)
	acct, _ := args.Get(0).(domain.Account)
	return acct, args.Error(1)
}

func (m *mockService) Publish(
	ctx context.Context,
	req domain.ListingRequest,
	verify bool,
) (*domain.ProtocolResult, error) {
	args := m.Called(ctx, req, verify)
	res, _ := args.Get(0).(*domain.ProtocolResult)
	return res, args.Error(1)
}

func (m *mockService) UploadImage(
	ctx context.Context,
	filename string,
	data []byte,
	viaTrading bool,
) (*domain.ProtocolResult, error) {
	args := m.Called(ctx, filename, data, viaTrading)
	res, _ := args.Get(0).(*domain.ProtocolResult)
	return res, args.Error(1)
}

func (m *mockService) Quota(ctx context.Context, env domain.Environment) (*engine.QuotaReport, error) {
	args := m.Called(ctx, env)
	rep, _ := args.Get(0).(*engine.QuotaReport)
	return rep, args.Error(1)
}

func newMockService() *mockService {
	return &mockService{}
}

func contextDeadline() error {
	ctx, cancel := context.WithDeadline(context.Background(), time.Unix(0, 0))
	defer cancel()
	<-ctx.Done()
	return ctx.Err()
}
