//go:build integration

package entitlement_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/entitlement"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *entitlement.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = entitlement.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "entitlements")
	s.Require().NoError(err)
}

// TestConcurrentConsume verifies the conditional-update cap guard: racing
// consumers never push usage past the cap.
func (s *PostgresStoreSuite) TestConcurrentConsume() {
	ctx := context.Background()
	now := time.Now().UTC()
	requester := domain.NewAccountRequester(domain.AccountID(uuid.New()))

	err := s.store.Save(ctx, &entitlement.Entitlement{
		Requester:        requester,
		ActiveUntil:      now.Add(30 * 24 * time.Hour),
		CycleOriginalRef: "sub-orig-1",
	})
	s.Require().NoError(err)

	const goroutines = 50
	var wg sync.WaitGroup
	var consumedCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumed, err := s.store.ConsumeMonthlyUnlock(ctx, requester, now)
			s.Require().NoError(err)
			if consumed {
				consumedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(entitlement.MonthlyUnlockCap), consumedCount.Load())

	ent, err := s.store.Active(ctx, requester, now)
	s.Require().NoError(err)
	s.Require().NotNil(ent)
	s.Equal(entitlement.MonthlyUnlockCap, ent.MonthlyUnlocksUsed)
}

// TestLatestCycleWins verifies a renewed cycle supersedes the exhausted one.
func (s *PostgresStoreSuite) TestLatestCycleWins() {
	ctx := context.Background()
	now := time.Now().UTC()
	requester := domain.NewAccountRequester(domain.AccountID(uuid.New()))

	exhausted := &entitlement.Entitlement{
		Requester:          requester,
		ActiveUntil:        now.Add(24 * time.Hour),
		MonthlyUnlocksUsed: entitlement.MonthlyUnlockCap,
		CycleOriginalRef:   "sub-orig-1",
	}
	s.Require().NoError(s.store.Save(ctx, exhausted))

	consumed, err := s.store.ConsumeMonthlyUnlock(ctx, requester, now)
	s.Require().NoError(err)
	s.False(consumed)

	renewed := &entitlement.Entitlement{
		Requester:        requester,
		ActiveUntil:      now.Add(31 * 24 * time.Hour),
		CycleOriginalRef: "sub-orig-1",
		CycleLatestRef:   "sub-renew-2",
	}
	s.Require().NoError(s.store.Save(ctx, renewed))

	consumed, err = s.store.ConsumeMonthlyUnlock(ctx, requester, now)
	s.Require().NoError(err)
	s.True(consumed, "the fresh cycle carries its own quota")
}

// TestGuestAndAccountDoNotCollide verifies identity matching across the
// nullable columns.
func (s *PostgresStoreSuite) TestGuestAndAccountDoNotCollide() {
	ctx := context.Background()
	now := time.Now().UTC()
	shared := uuid.New()
	account := domain.NewAccountRequester(domain.AccountID(shared))
	guest := domain.NewGuestRequester(domain.GuestID(shared))

	s.Require().NoError(s.store.Save(ctx, &entitlement.Entitlement{
		Requester:   account,
		ActiveUntil: now.Add(24 * time.Hour),
	}))

	ent, err := s.store.Active(ctx, guest, now)
	s.Require().NoError(err)
	s.Nil(ent, "a guest must not see an account entitlement, even with the same UUID")
}
