package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockCacheEvicter is a mock implementation of CacheEvicter
type MockCacheEvicter struct {
	mock.Mock
}

func (m *MockCacheEvicter) EvictExpiredCache() int {
	args := m.Called()
	return args.Int(0)
}

// MockAuditTrimmer is a mock implementation of AuditTrimmer
type MockAuditTrimmer struct {
	mock.Mock
}

func (m *MockAuditTrimmer) Trim(ctx context.Context, keep int) (int, error) {
	args := m.Called(ctx, keep)
	return args.Int(0), args.Error(1)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start worker in goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(250 * time.Millisecond)

	// Stop worker
	worker.Stop()
	wg.Wait()

	// Verify ProcessJobs was called at least once
	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	// Start worker in goroutine
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	// Let it run for a bit
	time.Sleep(150 * time.Millisecond)

	// Cancel context
	cancel()
	wg.Wait()

	// Verify ProcessJobs was called
	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestMaintenanceWorker_ProcessJobs tests a full maintenance cycle
func TestMaintenanceWorker_ProcessJobs(t *testing.T) {
	mockCache := new(MockCacheEvicter)
	mockAudit := new(MockAuditTrimmer)

	mockCache.On("EvictExpiredCache").Return(3)
	mockAudit.On("Trim", mock.Anything, 10000).Return(12, nil)

	worker := NewMaintenanceWorker(mockCache, mockAudit, 10000)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockCache.AssertExpectations(t)
	mockAudit.AssertExpectations(t)
}

// TestMaintenanceWorker_ProcessJobs_TrimError tests trim error propagation
func TestMaintenanceWorker_ProcessJobs_TrimError(t *testing.T) {
	mockCache := new(MockCacheEvicter)
	mockAudit := new(MockAuditTrimmer)

	mockCache.On("EvictExpiredCache").Return(0)
	mockAudit.On("Trim", mock.Anything, 500).Return(0, errors.New("database error"))

	worker := NewMaintenanceWorker(mockCache, mockAudit, 500)
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to trim audit log")
	mockCache.AssertExpectations(t)
	mockAudit.AssertExpectations(t)
}

// TestMaintenanceWorker_ProcessJobs_NilDependencies tests skipping absent steps
func TestMaintenanceWorker_ProcessJobs_NilDependencies(t *testing.T) {
	worker := NewMaintenanceWorker(nil, nil, 1000)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
}

// TestMaintenanceWorker_ProcessJobs_ZeroRetentionSkipsTrim tests retention guard
func TestMaintenanceWorker_ProcessJobs_ZeroRetentionSkipsTrim(t *testing.T) {
	mockCache := new(MockCacheEvicter)
	mockAudit := new(MockAuditTrimmer)

	mockCache.On("EvictExpiredCache").Return(0)

	worker := NewMaintenanceWorker(mockCache, mockAudit, 0)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockAudit.AssertNotCalled(t, "Trim", mock.Anything, mock.Anything)
}
