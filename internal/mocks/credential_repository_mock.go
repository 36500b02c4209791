// Mock of core.CredentialRepository in mockgen's layout. Running go generate
// ./internal/mocks replaces it with mockgen output.

package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	model "github.com/target/mmk-bol-sync/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockCredentialRepository is a mock of CredentialRepository interface.
type MockCredentialRepository struct {
	ctrl     *gomock.Controller
	recorder *MockCredentialRepositoryMockRecorder
	isgomock struct{}
}

// MockCredentialRepositoryMockRecorder is the mock recorder for MockCredentialRepository.
type MockCredentialRepositoryMockRecorder struct {
	mock *MockCredentialRepository
}

// NewMockCredentialRepository creates a new mock instance.
func NewMockCredentialRepository(ctrl *gomock.Controller) *MockCredentialRepository {
	mock := &MockCredentialRepository{ctrl: ctrl}
	mock.recorder = &MockCredentialRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCredentialRepository) EXPECT() *MockCredentialRepositoryMockRecorder {
	return m.recorder
}

// GetActive mocks base method.
func (m *MockCredentialRepository) GetActive(ctx context.Context, tenantID string) (*model.Credential, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetActive", ctx, tenantID)
	ret0, _ := ret[0].(*model.Credential)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetActive indicates an expected call of GetActive.
func (mr *MockCredentialRepositoryMockRecorder) GetActive(ctx, tenantID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetActive", reflect.TypeOf((*MockCredentialRepository)(nil).GetActive), ctx, tenantID)
}

// ListActive mocks base method.
func (m *MockCredentialRepository) ListActive(ctx context.Context) ([]*model.Credential, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListActive", ctx)
	ret0, _ := ret[0].([]*model.Credential)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListActive indicates an expected call of ListActive.
func (mr *MockCredentialRepositoryMockRecorder) ListActive(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListActive", reflect.TypeOf((*MockCredentialRepository)(nil).ListActive), ctx)
}

// MarkSynced mocks base method.
func (m *MockCredentialRepository) MarkSynced(ctx context.Context, tenantID string, at time.Time) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "MarkSynced", ctx, tenantID, at)
	ret0, _ := ret[0].(error)
	return ret0
}

// MarkSynced indicates an expected call of MarkSynced.
func (mr *MockCredentialRepositoryMockRecorder) MarkSynced(ctx, tenantID, at any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "MarkSynced", reflect.TypeOf((*MockCredentialRepository)(nil).MarkSynced), ctx, tenantID, at)
}
