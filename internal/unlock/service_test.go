package unlock

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/credit"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/entitlement"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/provider"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/retention"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/identity"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/snapshot"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
)

var baseTime = time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)

type specStub struct {
	mu     sync.Mutex
	calls  int
	result *provider.SpecResult
	err    error
}

func (s *specStub) Fetch(_ context.Context, _ domain.Registration) (*provider.SpecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	// Copy so callers tagging document metadata never touch stub state.
	res := *s.result
	if s.result.Document != nil {
		doc := *s.result.Document
		res.Document = &doc
	}
	return &res, nil
}

func (s *specStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *specStub) setResult(res *provider.SpecResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
	s.err = err
}

type tyreStub struct {
	tyres []snapshot.TyreConfiguration
	err   error
}

func (s *tyreStub) Fetch(_ context.Context, _ domain.Registration) ([]snapshot.TyreConfiguration, error) {
	return s.tyres, s.err
}

func successResult() *provider.SpecResult {
	return &provider.SpecResult{
		Document: &snapshot.SpecDocument{Content: json.RawMessage(`{"sections":["engine","fluids"]}`)},
		Status:   provider.StatusSuccess,
	}
}

func retentionResult() *provider.SpecResult {
	return &provider.SpecResult{
		Document: &snapshot.SpecDocument{Content: json.RawMessage(`{"sections":["engine"],"partial":true}`)},
		Status:   provider.StatusPlateInRetention,
	}
}

type fixture struct {
	mu  sync.Mutex
	now time.Time

	records *MemoryRecordStore
	snaps   *snapshot.MemoryStore
	ents    *entitlement.MemoryStore
	credits *credit.MemoryStore
	ret     *retention.MemoryStore
	ids     *identity.MemoryCache
	spec    *specStub
	tyres   *tyreStub
	svc     *Service
}

func (f *fixture) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T, spec *specStub) *fixture {
	t.Helper()

	f := &fixture{now: baseTime, spec: spec, tyres: &tyreStub{}}
	clock := f.Now

	f.records = NewMemoryRecords(WithRecordClock(clock))
	f.snaps = snapshot.NewMemory(snapshot.WithClock(clock))
	f.ents = entitlement.NewMemory()
	f.credits = credit.NewMemory(credit.WithClock(clock))
	f.ret = retention.NewMemory()
	f.ids = identity.NewMemoryCache(48 * time.Hour)

	tx := NewMemoryTx(Stores{
		Records:      f.records,
		Snapshots:    f.snaps,
		Entitlements: f.ents,
		Credits:      f.credits,
		Retention:    f.ret,
	})

	svc, err := New(tx, f.ids, spec, f.tyres, WithClock(clock))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seedIdentity(t *testing.T, reg domain.Registration, doc identity.Document) {
	t.Helper()
	err := f.ids.Put(context.Background(), &identity.CachedIdentity{
		Registration: reg,
		Document:     doc,
		FetchedAt:    f.Now(),
	})
	require.NoError(t, err)
}

func (f *fixture) grantPremium(t *testing.T, requester domain.Requester) {
	t.Helper()
	err := f.ents.Save(context.Background(), &entitlement.Entitlement{
		Requester:        requester,
		ActiveUntil:      f.Now().Add(30 * 24 * time.Hour),
		CycleOriginalRef: "sub-orig-1000",
		CycleLatestRef:   "sub-renew-1003",
	})
	require.NoError(t, err)
}

func civicDocument() identity.Document {
	return identity.Document{
		Make:                     "HONDA",
		MonthOfFirstRegistration: "2014-03",
		EngineCapacity:           1339,
		FuelType:                 "Hybrid Electric",
		BodyStyle:                "Hatchback",
		EngineCode:               "LDA3",
	}
}

func newAccount() domain.Requester {
	return domain.NewAccountRequester(domain.AccountID(uuid.New()))
}

func newGuest() domain.Requester {
	return domain.NewGuestRequester(domain.GuestID(uuid.New()))
}

func TestUnlockValidation(t *testing.T) {
	f := newFixture(t, &specStub{result: successResult()})
	ctx := context.Background()

	t.Run("missing registration", func(t *testing.T) {
		_, err := f.svc.Unlock(ctx, Request{Requester: newAccount()})
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	})

	t.Run("missing requester identity", func(t *testing.T) {
		_, err := f.svc.Unlock(ctx, Request{Registration: "AB12CDE"})
		assert.True(t, dErrors.Is(err, dErrors.CodeValidation))
	})
}

func TestUnlockFreeRequiresPremium(t *testing.T) {
	f := newFixture(t, &specStub{result: successResult()})
	f.seedIdentity(t, "AB12CDE", civicDocument())

	_, err := f.svc.Unlock(context.Background(), Request{
		Registration: "AB12CDE",
		Requester:    newAccount(),
	})
	assert.True(t, dErrors.Is(err, dErrors.CodePremiumRequired))
}

func TestUnlockFreeHappyPath(t *testing.T) {
	f := newFixture(t, &specStub{result: successResult()})
	f.tyres.tyres = []snapshot.TyreConfiguration{{Axle: "front", Size: "225/45R17", LoadIndex: "91", SpeedRating: "W"}}
	ctx := context.Background()
	requester := newAccount()
	f.grantPremium(t, requester)
	f.seedIdentity(t, "AB12CDE", civicDocument())

	result, err := f.svc.Unlock(ctx, Request{Registration: "AB12CDE", Requester: requester})
	require.NoError(t, err)

	assert.False(t, result.AlreadyUnlocked)
	assert.False(t, result.Retention)
	assert.Nil(t, result.RetryAfter)
	assert.JSONEq(t, `{"sections":["engine","fluids"]}`, string(result.Spec.Content))

	snap, err := f.snaps.Get(ctx, result.SnapshotID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "LDA3", snap.EngineCode)
	assert.Len(t, snap.TyreData, 1)

	rec, err := f.records.Find(ctx, requester, "AB12CDE")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.UnlockSourceFree, rec.UnlockType)
	assert.Equal(t, ChannelSubscription, rec.SourceChannel)
	assert.Equal(t, "sub-orig-1000", rec.EntitlementCycleRef)

	ent, err := f.ents.Active(ctx, requester, f.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, ent.MonthlyUnlocksUsed)
}

func TestUnlockMonthlyCap(t *testing.T) {
	f := newFixture(t, &specStub{result: successResult()})
	ctx := context.Background()
	requester := newAccount()
	f.grantPremium(t, requester)

	regs := []domain.Registration{"AA11AAA", "BB22BBB", "CC33CCC", "DD44DDD"}
	for i, reg := range regs {
		doc := civicDocument()
		doc.EngineCapacity = 1300 + i // distinct vehicles
		f.seedIdentity(t, reg, doc)
	}
	for i := 0; i < entitlement.MonthlyUnlockCap; i++ {
		_, err := f.svc.Unlock(ctx, Request{Registration: regs[i], Requester: requester})
		require.NoError(t, err)
	}

	_, err := f.svc.Unlock(ctx, Request{Registration: regs[3], Requester: requester})
	assert.True(t, dErrors.Is(err, dErrors.CodeMonthlyLimitReached))

	// A renewed cycle starts with a fresh counter.
	require.NoError(t, f.ents.Save(ctx, &entitlement.Entitlement{
		Requester:        requester,
		ActiveUntil:      f.Now().Add(60 * 24 * time.Hour),
		CycleOriginalRef: "sub-orig-1000",
		CycleLatestRef:   "sub-renew-1004",
	}))
	result, err := f.svc.Unlock(ctx, Request{Registration: regs[3], Requester: requester})
	require.NoError(t, err)
	assert.False(t, result.AlreadyUnlocked)
}

func TestUnlockPaidRequiresCredit(t *testing.T) {
	f := newFixture(t, &specStub{result: successResult()})
	f.seedIdentity(t, "AB12CDE", civicDocument())

	_, err := f.svc.Unlock(context.Background(), Request{
		Registration:  "AB12CDE",
		Requester:     newGuest(),
		TransactionID: "GPA.3333-0001",
		ProductID:     "single_unlock",
		Platform:      domain.PlatformAndroid,
	})
	assert.True(t, dErrors.Is(err, dErrors.CodeNoUnlockCredit))
}

func TestUnlockPaidConsumesOneCredit(t *testing.T) {
	f := newFixture(t, &specStub{result: successResult()})
	ctx := context.Background()
	guest := newGuest()
	f.seedIdentity(t, "AB12CDE", civicDocument())
	require.NoError(t, f.credits.Append(ctx, credit.NewGrant(guest, 2, "GPA.3333-0000")))

	req := Request{
		Registration:  "AB12CDE",
		Requester:     guest,
		TransactionID: "GPA.3333-0001",
		ProductID:     "single_unlock",
		Platform:      domain.PlatformAndroid,
	}
	result, err := f.svc.Unlock(ctx, req)
	require.NoError(t, err)
	assert.False(t, result.AlreadyUnlocked)

	balance, err := f.credits.Balance(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, 1, balance)

	entries := f.credits.Entries(guest)
	require.Len(t, entries, 2)
	assert.Equal(t, credit.ReasonUnlockConsume, entries[1].Reason)
	assert.Equal(t, "GPA.3333-0001", entries[1].TransactionID)

	rec, err := f.records.Find(ctx, guest, "AB12CDE")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.UnlockSourcePaid, rec.UnlockType)
	assert.Equal(t, ChannelIAP, rec.SourceChannel)
	assert.Equal(t, "GPA.3333-0001", rec.ExternalTransactionID)

	t.Run("retry with the same transaction is a dedupe hit", func(t *testing.T) {
		result, err := f.svc.Unlock(ctx, req)
		require.NoError(t, err)
		assert.True(t, result.AlreadyUnlocked)

		balance, err := f.credits.Balance(ctx, guest)
		require.NoError(t, err)
		assert.Equal(t, 1, balance, "retry must not consume a second credit")
	})
}

func TestUnlockStaleIdentity(t *testing.T) {
	f := newFixture(t, &specStub{result: successResult()})
	ctx := context.Background()
	requester := newAccount()
	f.grantPremium(t, requester)

	t.Run("no cached identity", func(t *testing.T) {
		_, err := f.svc.Unlock(ctx, Request{Registration: "AB12CDE", Requester: requester})
		assert.True(t, dErrors.Is(err, dErrors.CodeStaleIdentityData))
	})

	t.Run("identity older than a day", func(t *testing.T) {
		require.NoError(t, f.ids.Put(ctx, &identity.CachedIdentity{
			Registration: "AB12CDE",
			Document:     civicDocument(),
			FetchedAt:    f.Now().Add(-25 * time.Hour),
		}))
		_, err := f.svc.Unlock(ctx, Request{Registration: "AB12CDE", Requester: requester})
		assert.True(t, dErrors.Is(err, dErrors.CodeStaleIdentityData))
	})
}

func TestUnlockFingerprintFailure(t *testing.T) {
	f := newFixture(t, &specStub{result: successResult()})
	requester := newAccount()
	f.grantPremium(t, requester)

	doc := civicDocument()
	doc.Make = ""
	f.seedIdentity(t, "AB12CDE", doc)

	_, err := f.svc.Unlock(context.Background(), Request{Registration: "AB12CDE", Requester: requester})
	assert.True(t, dErrors.Is(err, dErrors.CodeFingerprintFailed))
}

func TestUnlockProviderFailure(t *testing.T) {
	f := newFixture(t, &specStub{err: assert.AnError})
	requester := newAccount()
	f.grantPremium(t, requester)
	f.seedIdentity(t, "AB12CDE", civicDocument())

	_, err := f.svc.Unlock(context.Background(), Request{Registration: "AB12CDE", Requester: requester})
	assert.True(t, dErrors.Is(err, dErrors.CodeSpecUnavailable))
}

func TestUnlockSnapshotReuse(t *testing.T) {
	spec := &specStub{result: successResult()}
	f := newFixture(t, spec)
	ctx := context.Background()
	first, second := newAccount(), newAccount()
	f.grantPremium(t, first)
	f.grantPremium(t, second)
	f.seedIdentity(t, "AB12CDE", civicDocument())

	got1, err := f.svc.Unlock(ctx, Request{Registration: "AB12CDE", Requester: first})
	require.NoError(t, err)
	require.Equal(t, 1, spec.callCount())

	t.Run("second requester reuses the snapshot without a fetch", func(t *testing.T) {
		got2, err := f.svc.Unlock(ctx, Request{Registration: "AB12CDE", Requester: second})
		require.NoError(t, err)
		assert.False(t, got2.AlreadyUnlocked)
		assert.Equal(t, got1.SnapshotID, got2.SnapshotID)
		assert.Equal(t, 1, spec.callCount())
	})

	t.Run("repeat by the same requester is a no-op grant", func(t *testing.T) {
		again, err := f.svc.Unlock(ctx, Request{Registration: "AB12CDE", Requester: first})
		require.NoError(t, err)
		assert.True(t, again.AlreadyUnlocked)
		assert.Equal(t, got1.SnapshotID, again.SnapshotID)
		assert.Equal(t, 1, spec.callCount())
	})
}

func TestUnlockPlateReuse(t *testing.T) {
	spec := &specStub{result: successResult()}
	f := newFixture(t, spec)
	ctx := context.Background()
	requester := newAccount()
	f.grantPremium(t, requester)
	f.seedIdentity(t, "AB12CDE", civicDocument())

	got1, err := f.svc.Unlock(ctx, Request{Registration: "AB12CDE", Requester: requester})
	require.NoError(t, err)

	// The registration is reassigned to a different vehicle.
	reassigned := civicDocument()
	reassigned.Make = "TOYOTA"
	reassigned.EngineCapacity = 1798
	reassigned.EngineCode = "2ZR-FXE"
	f.seedIdentity(t, "AB12CDE", reassigned)

	got2, err := f.svc.Unlock(ctx, Request{Registration: "AB12CDE", Requester: requester})
	require.NoError(t, err)
	assert.False(t, got2.AlreadyUnlocked, "new vehicle behind the plate needs a real unlock")
	assert.NotEqual(t, got1.SnapshotID, got2.SnapshotID)
	assert.Equal(t, 2, spec.callCount())

	rec, err := f.records.Find(ctx, requester, "AB12CDE")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, got2.SnapshotID, rec.SnapshotID, "record repointed, not duplicated")

	ent, err := f.ents.Active(ctx, requester, f.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, ent.MonthlyUnlocksUsed, "the second vehicle consumed quota")
}

func TestUnlockRetentionLifecycle(t *testing.T) {
	spec := &specStub{result: retentionResult()}
	f := newFixture(t, spec)
	ctx := context.Background()
	reporter := newAccount()
	f.grantPremium(t, reporter)
	f.seedIdentity(t, "RE70TAIN", civicDocument())

	result, err := f.svc.Unlock(ctx, Request{Registration: "RE70TAIN", Requester: reporter})
	require.NoError(t, err)
	assert.True(t, result.Retention)
	require.NotNil(t, result.RetryAfter)
	assert.Equal(t, baseTime.Add(retention.RetryWindow), result.RetryAfter.UTC())

	t.Run("window blocks free and paid attempts", func(t *testing.T) {
		blocked := newAccount()
		f.grantPremium(t, blocked)
		_, err := f.svc.Unlock(ctx, Request{Registration: "RE70TAIN", Requester: blocked})
		assert.True(t, dErrors.Is(err, dErrors.CodeRetentionWait))

		payer := newGuest()
		require.NoError(t, f.credits.Append(ctx, credit.NewGrant(payer, 1, "GPA.5555-0000")))
		_, err = f.svc.Unlock(ctx, Request{
			Registration:  "RE70TAIN",
			Requester:     payer,
			TransactionID: "GPA.5555-0001",
			ProductID:     "single_unlock",
		})
		assert.True(t, dErrors.Is(err, dErrors.CodeRetentionWait))
	})

	t.Run("original unlocker keeps access during the window", func(t *testing.T) {
		again, err := f.svc.Unlock(ctx, Request{Registration: "RE70TAIN", Requester: reporter})
		require.NoError(t, err)
		assert.True(t, again.AlreadyUnlocked)
	})

	f.Advance(retention.RetryWindow + time.Hour)
	f.seedIdentity(t, "RE70TAIN", civicDocument())

	t.Run("one free retry after the window asks the provider again", func(t *testing.T) {
		retrier := newAccount()
		f.grantPremium(t, retrier)
		result, err := f.svc.Unlock(ctx, Request{Registration: "RE70TAIN", Requester: retrier})
		require.NoError(t, err)
		assert.False(t, result.AlreadyUnlocked)
		assert.Equal(t, 2, spec.callCount(), "the retry must not reuse the partial snapshot")
		assert.True(t, result.Retention, "the provider still reports retention")

		ent, err := f.ents.Active(ctx, retrier, f.Now())
		require.NoError(t, err)
		assert.Equal(t, 0, ent.MonthlyUnlocksUsed, "the retention retry is not charged against the cap")

		status, err := f.ret.Get(ctx, "RE70TAIN")
		require.NoError(t, err)
		require.NotNil(t, status)
		assert.True(t, status.FreeRetryUsed)
		assert.Equal(t, f.Now().Add(retention.RetryWindow), status.RetryAfter,
			"a repeated retention report restarts the window")
	})

	t.Run("free attempts inside the restarted window wait again", func(t *testing.T) {
		late := newAccount()
		f.grantPremium(t, late)
		_, err := f.svc.Unlock(ctx, Request{Registration: "RE70TAIN", Requester: late})
		assert.True(t, dErrors.Is(err, dErrors.CodeRetentionWait))
	})

	f.Advance(retention.RetryWindow + time.Hour)
	f.seedIdentity(t, "RE70TAIN", civicDocument())

	t.Run("second free retry forces the paid path", func(t *testing.T) {
		late := newAccount()
		f.grantPremium(t, late)
		_, err := f.svc.Unlock(ctx, Request{Registration: "RE70TAIN", Requester: late})
		assert.True(t, dErrors.Is(err, dErrors.CodeRetentionPaidRequired))
		assert.Equal(t, 2, spec.callCount(), "a gated attempt never reaches the provider")
	})

	t.Run("paid attempt passes the gate", func(t *testing.T) {
		payer := newGuest()
		require.NoError(t, f.credits.Append(ctx, credit.NewGrant(payer, 1, "GPA.5555-0002")))
		result, err := f.svc.Unlock(ctx, Request{
			Registration:  "RE70TAIN",
			Requester:     payer,
			TransactionID: "GPA.5555-0003",
			ProductID:     "single_unlock",
		})
		require.NoError(t, err)
		assert.False(t, result.AlreadyUnlocked)
		assert.Equal(t, 3, spec.callCount())
	})

	// The paid attempt re-reported retention and restarted the window.
	f.Advance(retention.RetryWindow + time.Hour)
	f.seedIdentity(t, "RE70TAIN", civicDocument())

	t.Run("full provider data clears the machine", func(t *testing.T) {
		spec.setResult(successResult(), nil)

		clearer := newGuest()
		require.NoError(t, f.credits.Append(ctx, credit.NewGrant(clearer, 1, "GPA.5555-0004")))
		result, err := f.svc.Unlock(ctx, Request{
			Registration:  "RE70TAIN",
			Requester:     clearer,
			TransactionID: "GPA.5555-0005",
			ProductID:     "single_unlock",
		})
		require.NoError(t, err)
		assert.False(t, result.Retention)
		assert.Nil(t, result.RetryAfter)

		status, err := f.ret.Get(ctx, "RE70TAIN")
		require.NoError(t, err)
		assert.Nil(t, status)
	})
}

// A retention'd plate whose identity never changes must still recover: the
// pending row has to force a provider fetch even though the fingerprint still
// matches the cached partial snapshot.
func TestUnlockRetentionRecoveryWithUnchangedIdentity(t *testing.T) {
	spec := &specStub{result: retentionResult()}
	f := newFixture(t, spec)
	ctx := context.Background()
	reporter := newAccount()
	f.grantPremium(t, reporter)
	f.seedIdentity(t, "RE70TAIN", civicDocument())

	result, err := f.svc.Unlock(ctx, Request{Registration: "RE70TAIN", Requester: reporter})
	require.NoError(t, err)
	assert.True(t, result.Retention)
	require.Equal(t, 1, spec.callCount())

	f.Advance(retention.RetryWindow + time.Hour)
	f.seedIdentity(t, "RE70TAIN", civicDocument())
	spec.setResult(successResult(), nil)

	t.Run("free retry refetches and clears", func(t *testing.T) {
		result, err := f.svc.Unlock(ctx, Request{Registration: "RE70TAIN", Requester: reporter})
		require.NoError(t, err)
		assert.False(t, result.AlreadyUnlocked)
		assert.False(t, result.Retention)
		assert.Nil(t, result.RetryAfter)
		assert.Equal(t, 2, spec.callCount(), "an unchanged fingerprint must not mask the pending row")

		status, err := f.ret.Get(ctx, "RE70TAIN")
		require.NoError(t, err)
		assert.Nil(t, status)

		ent, err := f.ents.Active(ctx, reporter, f.Now())
		require.NoError(t, err)
		assert.Equal(t, 0, ent.MonthlyUnlocksUsed)
	})

	t.Run("the record now points at the full document", func(t *testing.T) {
		again, err := f.svc.Unlock(ctx, Request{Registration: "RE70TAIN", Requester: reporter})
		require.NoError(t, err)
		assert.True(t, again.AlreadyUnlocked)
		assert.False(t, again.Retention)
		assert.Equal(t, 2, spec.callCount(), "cleared plates reuse the fresh snapshot")
	})

	t.Run("paid unlocks get the full document too", func(t *testing.T) {
		payer := newGuest()
		require.NoError(t, f.credits.Append(ctx, credit.NewGrant(payer, 1, "GPA.7777-0000")))
		result, err := f.svc.Unlock(ctx, Request{
			Registration:  "RE70TAIN",
			Requester:     payer,
			TransactionID: "GPA.7777-0001",
			ProductID:     "single_unlock",
		})
		require.NoError(t, err)
		assert.False(t, result.Retention)
	})
}

func TestUnlockRetentionWithoutDocument(t *testing.T) {
	f := newFixture(t, &specStub{result: &provider.SpecResult{Status: provider.StatusPlateInRetention}})
	ctx := context.Background()
	requester := newAccount()
	f.grantPremium(t, requester)
	f.seedIdentity(t, "RE70TAIN", civicDocument())

	_, err := f.svc.Unlock(ctx, Request{Registration: "RE70TAIN", Requester: requester})
	assert.True(t, dErrors.Is(err, dErrors.CodeSpecUnavailable))
}

func TestUnlockTyreFetchIsBestEffort(t *testing.T) {
	f := newFixture(t, &specStub{result: successResult()})
	f.tyres.err = assert.AnError
	ctx := context.Background()
	requester := newAccount()
	f.grantPremium(t, requester)
	f.seedIdentity(t, "AB12CDE", civicDocument())

	result, err := f.svc.Unlock(ctx, Request{Registration: "AB12CDE", Requester: requester})
	require.NoError(t, err)

	snap, err := f.snaps.Get(ctx, result.SnapshotID)
	require.NoError(t, err)
	assert.Empty(t, snap.TyreData)
}

// specFetchFunc adapts a function to the SpecProvider interface for tests
// that need per-call control over context handling and shared results.
type specFetchFunc func(ctx context.Context, reg domain.Registration) (*provider.SpecResult, error)

func (f specFetchFunc) Fetch(ctx context.Context, reg domain.Registration) (*provider.SpecResult, error) {
	return f(ctx, reg)
}

func TestFetchSpecSharedResultSafety(t *testing.T) {
	t.Run("collapsed waiters get independent documents", func(t *testing.T) {
		shared := retentionResult()
		release := make(chan struct{})
		svc := &Service{specs: specFetchFunc(func(_ context.Context, _ domain.Registration) (*provider.SpecResult, error) {
			<-release
			return shared, nil
		})}

		const waiters = 4
		results := make([]*provider.SpecResult, waiters)
		var wg sync.WaitGroup
		for i := 0; i < waiters; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := svc.fetchSpec(context.Background(), "AB12CDE")
				if assert.NoError(t, err) {
					results[i] = res
				}
			}(i)
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()

		retry := baseTime.Add(retention.RetryWindow)
		for _, res := range results {
			require.NotNil(t, res)
			require.NotNil(t, res.Document)
			assert.NotSame(t, shared.Document, res.Document)
			res.Document.Meta.Retention = true
			res.Document.Meta.RetryAfter = &retry
		}
		assert.False(t, shared.Document.Meta.Retention,
			"waiter annotations must not reach the shared provider result")
		assert.Nil(t, shared.Document.Meta.RetryAfter)
	})

	t.Run("fetch survives the first caller's cancellation", func(t *testing.T) {
		svc := &Service{specs: specFetchFunc(func(ctx context.Context, _ domain.Registration) (*provider.SpecResult, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return successResult(), nil
		})}

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := svc.fetchSpec(cancelled, "AB12CDE")
		require.NoError(t, err)
		require.NotNil(t, res.Document)
	})
}

func TestUnlockConcurrentSameRequester(t *testing.T) {
	spec := &specStub{result: successResult()}
	f := newFixture(t, spec)
	ctx := context.Background()
	requester := newAccount()
	f.grantPremium(t, requester)
	f.seedIdentity(t, "AB12CDE", civicDocument())

	const workers = 16
	results := make([]*Result, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Unlock(ctx, Request{Registration: "AB12CDE", Requester: requester})
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if !results[i].AlreadyUnlocked {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh, "exactly one call performs the unlock")
	assert.Equal(t, 1, spec.callCount())

	ent, err := f.ents.Active(ctx, requester, f.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, ent.MonthlyUnlocksUsed)
}
