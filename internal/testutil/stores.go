package testutil

import (
	"context"
	"errors"
	"time"
)

// ErrBackendDown is returned by FailingStore for every operation
var ErrBackendDown = errors.New("cache backend unavailable")

// FailingStore is a CacheStore whose every operation fails, simulating a lost connection
type FailingStore struct{}

func (FailingStore) Name() string { return "failing" }

func (FailingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, ErrBackendDown
}

func (FailingStore) Set(context.Context, string, []byte, time.Duration) error {
	return ErrBackendDown
}

func (FailingStore) Delete(context.Context, string) (bool, error) {
	return false, ErrBackendDown
}

func (FailingStore) Exists(context.Context, string) (bool, error) {
	return false, ErrBackendDown
}

func (FailingStore) DeleteByPattern(context.Context, string) (int64, error) {
	return 0, ErrBackendDown
}

func (FailingStore) AddToTags(context.Context, string, []string, time.Duration) error {
	return ErrBackendDown
}

func (FailingStore) DeleteByTag(context.Context, string) (int64, error) {
	return 0, ErrBackendDown
}

func (FailingStore) Ping(context.Context) error { return ErrBackendDown }

func (FailingStore) Close() error { return nil }
