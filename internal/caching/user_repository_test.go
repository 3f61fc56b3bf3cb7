package caching

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/cache"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/memory"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/testutil"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

type UserRepositoryBehaviorTestSuite struct {
	testutil.BehaviorTestSuite

	inner   *testutil.MockUserRepository
	service *cache.Service
	repo    *CachedUserRepository
}

func TestUserRepositoryBehaviorSuite(t *testing.T) {
	suite.Run(t, new(UserRepositoryBehaviorTestSuite))
}

func (s *UserRepositoryBehaviorTestSuite) SetupTest() {
	s.inner = new(testutil.MockUserRepository)
	s.service = cache.NewService(memory.NewCacheRepository(s.Logger, s.Config), s.Config.DefaultTTL, nil, s.Logger)
	s.repo = NewCachedUserRepository(s.inner, s.service)
}

func (s *UserRepositoryBehaviorTestSuite) TearDownTest() {
	_ = s.service.Close()
}

func (s *UserRepositoryBehaviorTestSuite) TestActiveCountIsCachedIncludingZero() {
	s.Given("no active users", func() {
		s.inner.On("CountActive", mock.Anything).Return(int64(0), nil).Once()
	}).When("the count is read twice", func() {
		for i := 0; i < 2; i++ {
			count, err := s.repo.CountActive(s.Ctx)
			s.Require().NoError(err)
			s.Equal(int64(0), count)
		}
	}).Then("the repository is queried once", func() {
		s.inner.AssertNumberOfCalls(s.T(), "CountActive", 1)
	})
}

func (s *UserRepositoryBehaviorTestSuite) TestActivePageIsCached() {
	page := &models.PagedResult[*models.UserSummary]{
		Items:      []*models.UserSummary{{ID: "u-1", UserName: "jane", IsActive: true}},
		Page:       1,
		PageSize:   20,
		TotalCount: 1,
	}

	s.Given("one active user", func() {
		s.inner.On("GetActivePaged", mock.Anything, 1, 20).Return(page, nil).Once()
	}).When("the first page is read twice", func() {
		for i := 0; i < 2; i++ {
			result, err := s.repo.GetActivePaged(s.Ctx, 1, 20)
			s.Require().NoError(err)
			s.Require().Len(result.Items, 1)
			s.Equal("jane", result.Items[0].UserName)
		}
	}).Then("the repository is queried once", func() {
		s.inner.AssertNumberOfCalls(s.T(), "GetActivePaged", 1)
		s.True(s.exists(ActiveUsersPageKey(1, 20)))
	})
}

func (s *UserRepositoryBehaviorTestSuite) TestEmptyPagesAndFailuresAreNotCached() {
	dbErr := errors.New("replica lagging")
	s.inner.On("GetActivePaged", mock.Anything, 2, 20).Return(&models.PagedResult[*models.UserSummary]{Page: 2, PageSize: 20}, nil).Twice()
	s.inner.On("CountActive", mock.Anything).Return(int64(0), dbErr).Twice()

	for i := 0; i < 2; i++ {
		result, err := s.repo.GetActivePaged(s.Ctx, 2, 20)
		s.Require().NoError(err)
		s.Empty(result.Items)

		_, err = s.repo.CountActive(s.Ctx)
		s.ErrorIs(err, dbErr)
	}

	s.inner.AssertNumberOfCalls(s.T(), "GetActivePaged", 2)
	s.inner.AssertNumberOfCalls(s.T(), "CountActive", 2)
	s.False(s.exists(ActiveUserCountKey))
}

func (s *UserRepositoryBehaviorTestSuite) TestEntriesAreTagged() {
	s.inner.On("CountActive", mock.Anything).Return(int64(7), nil).Twice()

	_, err := s.repo.CountActive(s.Ctx)
	s.Require().NoError(err)
	s.Require().NoError(s.service.RemoveByTag(s.Ctx, UsersTag))

	count, err := s.repo.CountActive(s.Ctx)
	s.Require().NoError(err)
	s.Equal(int64(7), count)
	s.inner.AssertNumberOfCalls(s.T(), "CountActive", 2)
}

func (s *UserRepositoryBehaviorTestSuite) exists(key string) bool {
	found, err := s.service.Exists(s.Ctx, key)
	s.Require().NoError(err)
	return found
}
