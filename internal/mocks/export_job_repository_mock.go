// Mock of core.ExportJobRepository in mockgen's layout. Running go generate
// ./internal/mocks replaces it with mockgen output.

package mocks

import (
	context "context"
	reflect "reflect"

	core "github.com/target/mmk-bol-sync/internal/core"
	model "github.com/target/mmk-bol-sync/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockExportJobRepository is a mock of ExportJobRepository interface.
type MockExportJobRepository struct {
	ctrl     *gomock.Controller
	recorder *MockExportJobRepositoryMockRecorder
	isgomock struct{}
}

// MockExportJobRepositoryMockRecorder is the mock recorder for MockExportJobRepository.
type MockExportJobRepositoryMockRecorder struct {
	mock *MockExportJobRepository
}

// NewMockExportJobRepository creates a new mock instance.
func NewMockExportJobRepository(ctrl *gomock.Controller) *MockExportJobRepository {
	mock := &MockExportJobRepository{ctrl: ctrl}
	mock.recorder = &MockExportJobRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockExportJobRepository) EXPECT() *MockExportJobRepositoryMockRecorder {
	return m.recorder
}

// Complete mocks base method.
func (m *MockExportJobRepository) Complete(ctx context.Context, p core.CompleteExportJobParams) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Complete", ctx, p)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Complete indicates an expected call of Complete.
func (mr *MockExportJobRepositoryMockRecorder) Complete(ctx, p any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Complete", reflect.TypeOf((*MockExportJobRepository)(nil).Complete), ctx, p)
}

// Create mocks base method.
func (m *MockExportJobRepository) Create(ctx context.Context, req *model.CreateExportJobRequest) (*model.ExportJob, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, req)
	ret0, _ := ret[0].(*model.ExportJob)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Create indicates an expected call of Create.
func (mr *MockExportJobRepositoryMockRecorder) Create(ctx, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockExportJobRepository)(nil).Create), ctx, req)
}

// Fail mocks base method.
func (m *MockExportJobRepository) Fail(ctx context.Context, p core.FailExportJobParams) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Fail", ctx, p)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Fail indicates an expected call of Fail.
func (mr *MockExportJobRepositoryMockRecorder) Fail(ctx, p any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Fail", reflect.TypeOf((*MockExportJobRepository)(nil).Fail), ctx, p)
}

// GetByID mocks base method.
func (m *MockExportJobRepository) GetByID(ctx context.Context, id string) (*model.ExportJob, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*model.ExportJob)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockExportJobRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockExportJobRepository)(nil).GetByID), ctx, id)
}

// HasPending mocks base method.
func (m *MockExportJobRepository) HasPending(ctx context.Context, tenantID string, dataType string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "HasPending", ctx, tenantID, dataType)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// HasPending indicates an expected call of HasPending.
func (mr *MockExportJobRepositoryMockRecorder) HasPending(ctx, tenantID, dataType any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "HasPending", reflect.TypeOf((*MockExportJobRepository)(nil).HasPending), ctx, tenantID, dataType)
}

// IncrementAttempts mocks base method.
func (m *MockExportJobRepository) IncrementAttempts(ctx context.Context, id string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "IncrementAttempts", ctx, id)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// IncrementAttempts indicates an expected call of IncrementAttempts.
func (mr *MockExportJobRepositoryMockRecorder) IncrementAttempts(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "IncrementAttempts", reflect.TypeOf((*MockExportJobRepository)(nil).IncrementAttempts), ctx, id)
}

// ListPending mocks base method.
func (m *MockExportJobRepository) ListPending(ctx context.Context, limit int) ([]*model.ExportJob, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ListPending", ctx, limit)
	ret0, _ := ret[0].([]*model.ExportJob)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// ListPending indicates an expected call of ListPending.
func (mr *MockExportJobRepositoryMockRecorder) ListPending(ctx, limit any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ListPending", reflect.TypeOf((*MockExportJobRepository)(nil).ListPending), ctx, limit)
}

// RecordError mocks base method.
func (m *MockExportJobRepository) RecordError(ctx context.Context, id string, message string) (bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "RecordError", ctx, id, message)
	ret0, _ := ret[0].(bool)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// RecordError indicates an expected call of RecordError.
func (mr *MockExportJobRepositoryMockRecorder) RecordError(ctx, id, message any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "RecordError", reflect.TypeOf((*MockExportJobRepository)(nil).RecordError), ctx, id, message)
}
