package caching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/cache"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/memory"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/internal/testutil"
	"github.com/quantfidential/trading-ecosystem/identity-data-adapter-go/pkg/models"
)

type RoleRepositoryBehaviorTestSuite struct {
	testutil.BehaviorTestSuite

	inner   *testutil.MockRoleRepository
	service *cache.Service
	repo    *CachedRoleRepository
}

func TestRoleRepositoryBehaviorSuite(t *testing.T) {
	suite.Run(t, new(RoleRepositoryBehaviorTestSuite))
}

func (s *RoleRepositoryBehaviorTestSuite) SetupTest() {
	s.inner = new(testutil.MockRoleRepository)
	s.service = cache.NewService(memory.NewCacheRepository(s.Logger, s.Config), s.Config.DefaultTTL, nil, s.Logger)
	s.repo = NewCachedRoleRepository(s.inner, s.service, s.Logger)
}

func (s *RoleRepositoryBehaviorTestSuite) TearDownTest() {
	_ = s.service.Close()
}

func newRole(id, name string) *models.Role {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.Role{
		ID:             id,
		Name:           name,
		NormalizedName: models.NormalizeRoleName(name),
		Permissions:    []string{"users.read"},
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *RoleRepositoryBehaviorTestSuite) TestCacheHitSkipsRepository() {
	id := testutil.GenerateTestID("role")
	role := newRole(id, "Auditor")

	s.Given("a role stored in the repository", func() {
		s.inner.On("GetByID", mock.Anything, id).Return(role, nil).Once()
	}).When("the role is read twice", func() {
		first, err := s.repo.GetByID(s.Ctx, id)
		s.Require().NoError(err)
		s.Equal("Auditor", first.Name)

		second, err := s.repo.GetByID(s.Ctx, id)
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)
		s.Equal(first.Permissions, second.Permissions)
	}).Then("the repository is queried once", func() {
		s.inner.AssertNumberOfCalls(s.T(), "GetByID", 1)
	})
}

func (s *RoleRepositoryBehaviorTestSuite) TestNotFoundIsNotCached() {
	s.inner.On("GetByID", mock.Anything, "missing").Return(nil, models.ErrNotFound).Twice()

	for i := 0; i < 2; i++ {
		role, err := s.repo.GetByID(s.Ctx, "missing")
		s.ErrorIs(err, models.ErrNotFound)
		s.Nil(role)
	}
	s.inner.AssertNumberOfCalls(s.T(), "GetByID", 2)
}

func (s *RoleRepositoryBehaviorTestSuite) TestEmptyListIsNotCached() {
	s.inner.On("GetActive", mock.Anything).Return([]*models.Role{}, nil).Twice()

	for i := 0; i < 2; i++ {
		roles, err := s.repo.GetActive(s.Ctx)
		s.Require().NoError(err)
		s.Empty(roles)
	}
	s.inner.AssertNumberOfCalls(s.T(), "GetActive", 2)
}

func (s *RoleRepositoryBehaviorTestSuite) TestZeroCountIsCached() {
	s.inner.On("Count", mock.Anything, true).Return(int64(0), nil).Once()

	for i := 0; i < 3; i++ {
		count, err := s.repo.Count(s.Ctx, true)
		s.Require().NoError(err)
		s.Equal(int64(0), count)
	}
	s.inner.AssertNumberOfCalls(s.T(), "Count", 1)
}

func (s *RoleRepositoryBehaviorTestSuite) TestUpdateInvalidatesEveryView() {
	id := testutil.GenerateTestID("role")
	before := newRole(id, "Operator")
	after := newRole(id, "Operator")
	after.Description = "updated"
	query := models.RoleQuery{Page: 1, PageSize: 10, ActiveOnly: true}
	page := &models.PagedResult[*models.Role]{Items: []*models.Role{before}, Page: 1, PageSize: 10, TotalCount: 1}
	updatedPage := &models.PagedResult[*models.Role]{Items: []*models.Role{after}, Page: 1, PageSize: 10, TotalCount: 1}

	s.Given("every view of the role is cached", func() {
		s.inner.On("GetByID", mock.Anything, id).Return(before, nil).Once()
		s.inner.On("GetByName", mock.Anything, "operator").Return(before, nil).Once()
		s.inner.On("GetAll", mock.Anything).Return([]*models.Role{before}, nil).Once()
		s.inner.On("GetPaged", mock.Anything, query).Return(page, nil).Once()
		s.inner.On("Count", mock.Anything, false).Return(int64(1), nil).Once()
		s.inner.On("ExistsByName", mock.Anything, "operator").Return(true, nil).Once()

		_, _ = s.repo.GetByID(s.Ctx, id)
		_, _ = s.repo.GetByName(s.Ctx, "operator")
		_, _ = s.repo.GetAll(s.Ctx)
		_, _ = s.repo.GetPaged(s.Ctx, query)
		_, _ = s.repo.Count(s.Ctx, false)
		_, _ = s.repo.ExistsByName(s.Ctx, "operator")
	}).When("the role is updated", func() {
		s.inner.On("Update", mock.Anything, after).Return(nil).Once()
		s.Require().NoError(s.repo.Update(s.Ctx, after))
	}).Then("every read reflects the new state", func() {
		s.inner.On("GetByID", mock.Anything, id).Return(after, nil).Once()
		s.inner.On("GetByName", mock.Anything, "operator").Return(after, nil).Once()
		s.inner.On("GetAll", mock.Anything).Return([]*models.Role{after}, nil).Once()
		s.inner.On("GetPaged", mock.Anything, query).Return(updatedPage, nil).Once()
		s.inner.On("Count", mock.Anything, false).Return(int64(1), nil).Once()
		s.inner.On("ExistsByName", mock.Anything, "operator").Return(true, nil).Once()

		byID, err := s.repo.GetByID(s.Ctx, id)
		s.Require().NoError(err)
		s.Equal("updated", byID.Description)

		byName, err := s.repo.GetByName(s.Ctx, "operator")
		s.Require().NoError(err)
		s.Equal("updated", byName.Description)

		all, err := s.repo.GetAll(s.Ctx)
		s.Require().NoError(err)
		s.Equal("updated", all[0].Description)

		paged, err := s.repo.GetPaged(s.Ctx, query)
		s.Require().NoError(err)
		s.Equal("updated", paged.Items[0].Description)

		_, _ = s.repo.Count(s.Ctx, false)
		_, _ = s.repo.ExistsByName(s.Ctx, "operator")
	}).And("each view went back to the repository exactly once", func() {
		s.inner.AssertNumberOfCalls(s.T(), "GetByID", 2)
		s.inner.AssertNumberOfCalls(s.T(), "GetByName", 2)
		s.inner.AssertNumberOfCalls(s.T(), "GetAll", 2)
		s.inner.AssertNumberOfCalls(s.T(), "GetPaged", 2)
		s.inner.AssertNumberOfCalls(s.T(), "Count", 2)
		s.inner.AssertNumberOfCalls(s.T(), "ExistsByName", 2)
	})
}

func (s *RoleRepositoryBehaviorTestSuite) TestRenameDropsLookupUnderOldName() {
	id := testutil.GenerateTestID("role")
	original := newRole(id, "Support")
	renamed := newRole(id, "Helpdesk")

	s.inner.On("GetByName", mock.Anything, "Support").Return(original, nil).Once()
	_, err := s.repo.GetByName(s.Ctx, "Support")
	s.Require().NoError(err)

	s.inner.On("Update", mock.Anything, renamed).Return(nil).Once()
	s.Require().NoError(s.repo.Update(s.Ctx, renamed))

	s.inner.On("GetByName", mock.Anything, "Support").Return(nil, models.ErrNotFound).Once()
	_, err = s.repo.GetByName(s.Ctx, "Support")
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *RoleRepositoryBehaviorTestSuite) TestCreateInvalidatesExistenceAndCounts() {
	role := newRole(testutil.GenerateTestID("role"), "Reviewer")

	s.inner.On("ExistsByName", mock.Anything, "Reviewer").Return(false, nil).Once()
	s.inner.On("Count", mock.Anything, false).Return(int64(3), nil).Once()
	exists, err := s.repo.ExistsByName(s.Ctx, "Reviewer")
	s.Require().NoError(err)
	s.False(exists)
	_, _ = s.repo.Count(s.Ctx, false)

	s.inner.On("Create", mock.Anything, role).Return(nil).Once()
	s.Require().NoError(s.repo.Create(s.Ctx, role))

	s.inner.On("ExistsByName", mock.Anything, "Reviewer").Return(true, nil).Once()
	s.inner.On("Count", mock.Anything, false).Return(int64(4), nil).Once()
	exists, err = s.repo.ExistsByName(s.Ctx, "Reviewer")
	s.Require().NoError(err)
	s.True(exists)
	count, err := s.repo.Count(s.Ctx, false)
	s.Require().NoError(err)
	s.Equal(int64(4), count)
}

func (s *RoleRepositoryBehaviorTestSuite) TestFailedWriteStillInvalidates() {
	writeErr := errors.New("deadlock detected")
	role := newRole(testutil.GenerateTestID("role"), "Trader")

	s.inner.On("Count", mock.Anything, true).Return(int64(7), nil).Twice()
	_, _ = s.repo.Count(s.Ctx, true)

	s.inner.On("Update", mock.Anything, role).Return(writeErr).Once()
	err := s.repo.Update(s.Ctx, role)
	s.ErrorIs(err, writeErr)

	_, _ = s.repo.Count(s.Ctx, true)
	s.inner.AssertNumberOfCalls(s.T(), "Count", 2)
}

func (s *RoleRepositoryBehaviorTestSuite) TestDeleteUncachedRoleSucceeds() {
	s.inner.On("Delete", mock.Anything, "never-cached").Return(nil).Once()
	s.NoError(s.repo.Delete(s.Ctx, "never-cached"))
	s.inner.AssertExpectations(s.T())
}

func (s *RoleRepositoryBehaviorTestSuite) TestDeleteInvalidatesUserRoleLists() {
	role := newRole(testutil.GenerateTestID("role"), "Viewer")
	userID := testutil.GenerateTestID("user")

	s.inner.On("GetByUserID", mock.Anything, userID).Return([]*models.Role{role}, nil).Once()
	_, _ = s.repo.GetByUserID(s.Ctx, userID)

	s.inner.On("Delete", mock.Anything, role.ID).Return(nil).Once()
	s.Require().NoError(s.repo.Delete(s.Ctx, role.ID))

	s.inner.On("GetByUserID", mock.Anything, userID).Return([]*models.Role{}, nil).Once()
	roles, err := s.repo.GetByUserID(s.Ctx, userID)
	s.Require().NoError(err)
	s.Empty(roles)
}

func (s *RoleRepositoryBehaviorTestSuite) TestAssignmentInvalidatesOnlyThatUser() {
	role := newRole(testutil.GenerateTestID("role"), "Analyst")
	alice := testutil.GenerateTestID("user")
	bob := testutil.GenerateTestID("user")

	s.inner.On("GetByUserID", mock.Anything, alice).Return([]*models.Role{role}, nil).Once()
	s.inner.On("GetByUserID", mock.Anything, bob).Return([]*models.Role{role}, nil).Once()
	_, _ = s.repo.GetByUserID(s.Ctx, alice)
	_, _ = s.repo.GetByUserID(s.Ctx, bob)

	s.inner.On("RemoveFromUser", mock.Anything, alice, role.ID).Return(nil).Once()
	s.Require().NoError(s.repo.RemoveFromUser(s.Ctx, alice, role.ID))

	s.inner.On("GetByUserID", mock.Anything, alice).Return([]*models.Role{}, nil).Once()
	aliceRoles, err := s.repo.GetByUserID(s.Ctx, alice)
	s.Require().NoError(err)
	s.Empty(aliceRoles)

	bobRoles, err := s.repo.GetByUserID(s.Ctx, bob)
	s.Require().NoError(err)
	s.Len(bobRoles, 1)
	s.inner.AssertExpectations(s.T())
}

func TestCachedRoleRepositoryFallsThroughWhenCacheIsDown(t *testing.T) {
	logger := testutil.NewTestLogger()
	inner := new(testutil.MockRoleRepository)
	svc := cache.NewService(testutil.FailingStore{}, time.Minute, nil, logger)
	repo := NewCachedRoleRepository(inner, svc, logger)

	role := newRole("r-1", "Admin")
	inner.On("GetByID", mock.Anything, "r-1").Return(role, nil).Twice()
	inner.On("Delete", mock.Anything, "r-1").Return(nil).Once()

	for i := 0; i < 2; i++ {
		got, err := repo.GetByID(context.Background(), "r-1")
		if err != nil || got.ID != "r-1" {
			t.Fatalf("expected role from repository, got %v, %v", got, err)
		}
	}
	if err := repo.Delete(context.Background(), "r-1"); err != nil {
		t.Fatalf("cache failure must not fail the write: %v", err)
	}
	inner.AssertExpectations(t)
}
