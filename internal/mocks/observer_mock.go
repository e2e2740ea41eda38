package mocks

import (
	"storyboard-server/internal/model"
	"storyboard-server/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockProgressObserver is a mock type for the ProgressObserver type
type MockProgressObserver struct {
	mock.Mock
}

// PipelineStarted provides a mock function with given fields: totalScenes, totalShots
func (_m *MockProgressObserver) PipelineStarted(totalScenes int, totalShots int) {
	_m.Called(totalScenes, totalShots)
}

// SceneStarted provides a mock function with given fields: sceneIndex, sceneID
func (_m *MockProgressObserver) SceneStarted(sceneIndex int, sceneID string) {
	_m.Called(sceneIndex, sceneID)
}

// SceneCompleted provides a mock function with given fields: progress
func (_m *MockProgressObserver) SceneCompleted(progress service.SceneProgress) {
	_m.Called(progress)
}

// PipelineCompleted provides a mock function with given fields: shots
func (_m *MockProgressObserver) PipelineCompleted(shots []model.Shot) {
	_m.Called(shots)
}

// NewMockProgressObserver creates a new instance of MockProgressObserver. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockProgressObserver(t interface {
	mock.TestingT
	Helper()
}) *MockProgressObserver {
	m := &MockProgressObserver{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ service.ProgressObserver = (*MockProgressObserver)(nil)
