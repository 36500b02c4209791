// Mock of core.AnalysisRepository in mockgen's layout. Running go generate
// ./internal/mocks replaces it with mockgen output.

package mocks

import (
	context "context"
	reflect "reflect"

	model "github.com/target/mmk-bol-sync/internal/domain/model"
	gomock "go.uber.org/mock/gomock"
)

// MockAnalysisRepository is a mock of AnalysisRepository interface.
type MockAnalysisRepository struct {
	ctrl     *gomock.Controller
	recorder *MockAnalysisRepositoryMockRecorder
	isgomock struct{}
}

// MockAnalysisRepositoryMockRecorder is the mock recorder for MockAnalysisRepository.
type MockAnalysisRepositoryMockRecorder struct {
	mock *MockAnalysisRepository
}

// NewMockAnalysisRepository creates a new mock instance.
func NewMockAnalysisRepository(ctrl *gomock.Controller) *MockAnalysisRepository {
	mock := &MockAnalysisRepository{ctrl: ctrl}
	mock.recorder = &MockAnalysisRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAnalysisRepository) EXPECT() *MockAnalysisRepositoryMockRecorder {
	return m.recorder
}

// Insert mocks base method.
func (m *MockAnalysisRepository) Insert(ctx context.Context, req *model.CreateAnalysisRequest) (*model.Analysis, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Insert", ctx, req)
	ret0, _ := ret[0].(*model.Analysis)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Insert indicates an expected call of Insert.
func (mr *MockAnalysisRepositoryMockRecorder) Insert(ctx, req any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Insert", reflect.TypeOf((*MockAnalysisRepository)(nil).Insert), ctx, req)
}
