// Package testutil holds shared helpers for behaviour-style package tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/config"
)

var idCounter atomic.Int64

// BehaviorTestSuite provides the base test suite for behavior-driven testing
type BehaviorTestSuite struct {
	suite.Suite
	Ctx    context.Context
	Logger *logrus.Logger
	Config *config.RepositoryConfig
}

// SetupSuite runs once before all tests in the suite
func (s *BehaviorTestSuite) SetupSuite() {
	s.Ctx = context.Background()
	s.Logger = NewTestLogger()
	s.Config = NewTestConfig(config.CacheProviderLocal)
}

// Given sets up the initial state for a test scenario
func (s *BehaviorTestSuite) Given(description string, setup func()) *BehaviorTestSuite {
	s.Logger.WithField("given", description).Debug("Setting up test scenario")
	setup()
	return s
}

// When executes the action being tested
func (s *BehaviorTestSuite) When(description string, action func()) *BehaviorTestSuite {
	s.Logger.WithField("when", description).Debug("Executing test action")
	action()
	return s
}

// Then validates the expected outcome
func (s *BehaviorTestSuite) Then(description string, validation func()) *BehaviorTestSuite {
	s.Logger.WithField("then", description).Debug("Validating test outcome")
	validation()
	return s
}

// And chains additional conditions or actions
func (s *BehaviorTestSuite) And(description string, step func()) *BehaviorTestSuite {
	s.Logger.WithField("and", description).Debug("Additional test step")
	step()
	return s
}

// NewTestLogger returns a logger that discards output below warnings
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

// NewTestConfig returns a configuration with short intervals suitable for tests
func NewTestConfig(provider config.CacheProvider) *config.RepositoryConfig {
	return &config.RepositoryConfig{
		ServiceName: "identity-service",
		Version:     "test",

		CacheProvider:        provider,
		DefaultTTL:           10 * time.Minute,
		KeyPrefix:            "identity-test",
		RedisDB:              -1,
		LocalCleanupInterval: time.Minute,

		BreakerMaxFailures: 3,
		BreakerOpenTimeout: time.Second,

		WarmupEnabled:      true,
		WarmupInitialDelay: 10 * time.Millisecond,
		WarmupInterval:     time.Hour,
		WarmupRetryDelay:   50 * time.Millisecond,
		WarmupPageSize:     20,

		AnalyzerEnabled:            true,
		AnalyzerReportInterval:     time.Hour,
		AnalyzerMaxTrackedKeys:     1000,
		AnalyzerMaxTrackedPatterns: 100,
		AnalyzerTopN:               5,

		HealthCheckInterval: 30 * time.Second,
		Environment:         "test",
	}
}

// GenerateTestID returns a process-unique identifier with the given prefix
func GenerateTestID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), idCounter.Add(1))
}
