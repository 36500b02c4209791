// Mock of core.RunLocker in mockgen's layout. Running go generate
// ./internal/mocks replaces it with mockgen output.

package mocks

import (
	context "context"
	reflect "reflect"
	time "time"

	core "github.com/target/mmk-bol-sync/internal/core"
	gomock "go.uber.org/mock/gomock"
)

// MockRunLocker is a mock of RunLocker interface.
type MockRunLocker struct {
	ctrl     *gomock.Controller
	recorder *MockRunLockerMockRecorder
	isgomock struct{}
}

// MockRunLockerMockRecorder is the mock recorder for MockRunLocker.
type MockRunLockerMockRecorder struct {
	mock *MockRunLocker
}

// NewMockRunLocker creates a new mock instance.
func NewMockRunLocker(ctrl *gomock.Controller) *MockRunLocker {
	mock := &MockRunLocker{ctrl: ctrl}
	mock.recorder = &MockRunLockerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockRunLocker) EXPECT() *MockRunLockerMockRecorder {
	return m.recorder
}

// TryLock mocks base method.
func (m *MockRunLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (core.ReleaseFunc, bool, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "TryLock", ctx, key, ttl)
	ret0, _ := ret[0].(core.ReleaseFunc)
	ret1, _ := ret[1].(bool)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// TryLock indicates an expected call of TryLock.
func (mr *MockRunLockerMockRecorder) TryLock(ctx, key, ttl any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "TryLock", reflect.TypeOf((*MockRunLocker)(nil).TryLock), ctx, key, ttl)
}
