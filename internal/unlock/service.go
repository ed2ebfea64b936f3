package unlock

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/credit"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/entitlement"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/provider"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/retention"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/unlock/metrics"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/fingerprint"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/identity"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/internal/vehicle/snapshot"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain"
	dErrors "github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/domain-errors"
	"github.com/jamesatkinson28/Initial-MOT-backend-sub000/pkg/platform/audit"
)

// identityTTL is how fresh the cached core-identity document must be. Older
// documents force the caller to refresh upstream before unlocking.
const identityTTL = 24 * time.Hour

// Service orchestrates the unlock flow. All datastore work for one call runs
// through a single Tx boundary; provider calls are collaborators with their
// own timeouts.
type Service struct {
	tx         Tx
	identities identity.Cache
	specs      provider.SpecProvider
	tyres      provider.TyreProvider

	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher audit.Publisher
	tracer    trace.Tracer
	clock     func() time.Time

	fetchGroup singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithClock sets the clock for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs the unlock orchestrator.
func New(tx Tx, identities identity.Cache, specs provider.SpecProvider, tyres provider.TyreProvider, opts ...Option) (*Service, error) {
	if tx == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "unlock tx boundary is required")
	}
	if identities == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "identity cache is required")
	}
	if specs == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "spec provider is required")
	}

	s := &Service{
		tx:         tx,
		identities: identities,
		specs:      specs,
		tyres:      tyres,
		logger:     slog.Default(),
		tracer:     otel.Tracer("unlock"),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Unlock grants or denies access to the spec for one registration. Every
// named denial aborts the transaction with no partial writes; only the
// auxiliary tyre fetch is allowed to fail quietly.
func (s *Service) Unlock(ctx context.Context, req Request) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "unlock.Unlock")
	defer span.End()
	start := s.clock()

	if req.Registration.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "registration is required")
	}
	if !req.Requester.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "exactly one of account or guest identity is required")
	}
	source := req.DefaultSource()

	var result *Result
	err := s.tx.RunInTx(ctx, req.Requester, func(st Stores) error {
		var txErr error
		result, txErr = s.unlockInTx(ctx, st, req, source)
		return txErr
	})
	if err != nil {
		s.observeDenial(err)
		return nil, err
	}

	s.observeSuccess(source, result, s.clock().Sub(start))
	return result, nil
}

// unlockInTx runs the ordered unlock algorithm against transaction-scoped
// stores. Gates that deny without mutating run first; writes come last.
func (s *Service) unlockInTx(ctx context.Context, st Stores, req Request, source domain.UnlockSource) (*Result, error) {
	now := s.clock()

	// 1. Retries of the same purchase confirmation are safe: the first call
	// that recorded the transaction owns the unlock.
	if req.TransactionID != "" {
		existing, err := st.Records.FindByTransactionID(ctx, req.TransactionID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "transaction dedupe lookup failed")
		}
		if existing != nil {
			return s.resultForRecord(ctx, st, existing)
		}
	}

	// 2. Paid balance gate. The credit is only reserved conceptually here;
	// the decrement happens after the record insert.
	if source == domain.UnlockSourcePaid {
		balance, err := st.Credits.Balance(ctx, req.Requester)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credit balance lookup failed")
		}
		if balance <= 0 {
			return nil, dErrors.New(dErrors.CodeNoUnlockCredit, "no unlock credits available")
		}
	}

	// 3, 4. Entitlement lookup and free-path gate.
	ent, err := st.Entitlements.Active(ctx, req.Requester, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "entitlement lookup failed")
	}
	if source == domain.UnlockSourceFree && !ent.Active(now) {
		return nil, dErrors.New(dErrors.CodePremiumRequired, "active subscription required for free unlock")
	}

	// 5. Fingerprint from the cached core identity.
	fp, engineCodeHint, err := s.currentFingerprint(ctx, req.Registration, now)
	if err != nil {
		return nil, err
	}

	// The retention status is loaded ahead of step 6: a pending row suspends
	// the reuse short-circuits, otherwise the withheld partial document would
	// be re-served forever and the machine could never leave retention.
	status, err := st.Retention.Get(ctx, req.Registration)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "retention status lookup failed")
	}

	// 6. Owner-match short-circuit: this requester already unlocked this
	// vehicle and the plate still refers to the same vehicle.
	existing, err := st.Records.Find(ctx, req.Requester, req.Registration)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unlock record lookup failed")
	}
	var ownerSnap *snapshot.Snapshot
	if existing != nil {
		snap, err := st.Snapshots.Get(ctx, existing.SnapshotID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "snapshot lookup failed")
		}
		if snap != nil && snap.Fingerprint == fp {
			if status == nil {
				return resultFromSnapshot(snap, true), nil
			}
			// Retention pending: hold the owner's generation back as a
			// fallback and let the gate decide whether to re-ask the provider.
			ownerSnap = snap
		}
		// Fingerprint moved on: plate reuse. Fall through and unlock the new
		// vehicle's spec under the existing record's identity pair.
	}

	// 7. Retention gate, before any provider call. An owner the gate blocks
	// keeps access to what they already unlocked instead of a denial.
	decision, err := retention.Gate(status, source, now)
	if err != nil {
		if ownerSnap != nil {
			return resultFromSnapshot(ownerSnap, true), nil
		}
		if s.metrics != nil {
			s.metrics.RetentionGated.Inc()
		}
		return nil, err
	}
	if decision.MarkFreeRetryUsed {
		if err := st.Retention.MarkFreeRetryUsed(ctx, req.Registration); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "marking free retention retry failed")
		}
	}

	// 8. Snapshot resolution: reuse when the fingerprint is unchanged,
	// otherwise fetch fresh data.
	snap, err := s.resolveSnapshot(ctx, st, req.Registration, fp, engineCodeHint, status != nil, now)
	if err != nil {
		return nil, err
	}

	// 9. Quota consumption, skipped on the one free retention retry.
	if source == domain.UnlockSourceFree && !decision.IsRetentionRetry {
		consumed, err := st.Entitlements.ConsumeMonthlyUnlock(ctx, req.Requester, now)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "quota consumption failed")
		}
		if !consumed {
			return nil, dErrors.New(dErrors.CodeMonthlyLimitReached, "monthly free unlock limit reached")
		}
	}

	// 10. Record write plus, for genuinely new paid unlocks, the single
	// ledger consume. A lost insert race is success without double effects.
	rec := s.buildRecord(req, source, snap.ID, ent)
	if existing != nil {
		// Plate reuse: repoint the requester's record at the new vehicle's
		// snapshot rather than growing a second row for the registration.
		rec.ID = existing.ID
		if err := st.Records.Update(ctx, rec); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unlock record update failed")
		}
	} else {
		inserted, err := st.Records.Insert(ctx, rec)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unlock record insert failed")
		}
		if !inserted {
			winner, err := st.Records.Find(ctx, req.Requester, req.Registration)
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "post-insert existence check failed")
			}
			if winner != nil {
				return s.resultForRecord(ctx, st, winner)
			}
			// Conflict was on the transaction id, owned by another requester.
			return nil, dErrors.New(dErrors.CodeConflict, "transaction already linked to another unlock")
		}
	}
	if source == domain.UnlockSourcePaid {
		if err := st.Credits.Append(ctx, credit.NewConsume(req.Requester, req.TransactionID)); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "credit consume failed")
		}
		audit.LogAudit(ctx, s.logger, s.publisher, audit.Event{
			Category:      audit.CategoryFinancial,
			Action:        audit.ActionCreditConsumed,
			Requester:     req.Requester.Key(),
			Registration:  req.Registration.String(),
			TransactionID: req.TransactionID,
		})
	}

	audit.LogAudit(ctx, s.logger, s.publisher, audit.Event{
		Category:     audit.CategoryOperations,
		Action:       audit.ActionSpecUnlocked,
		Requester:    req.Requester.Key(),
		Registration: req.Registration.String(),
		Reason:       string(source),
	})

	// 11. Success payload.
	return resultFromSnapshot(snap, false), nil
}

// currentFingerprint loads the cached identity document, enforces the 24h
// staleness gate and reduces it to a fingerprint.
func (s *Service) currentFingerprint(ctx context.Context, reg domain.Registration, now time.Time) (domain.Fingerprint, string, error) {
	cached, err := s.identities.Lookup(ctx, reg)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "identity cache lookup failed")
	}
	if cached == nil || cached.Age(now) > identityTTL {
		return "", "", dErrors.New(dErrors.CodeStaleIdentityData, "identity data absent or older than 24h, refresh required")
	}
	ci, err := fingerprint.FromDocument(cached.Document)
	if err != nil {
		return "", "", err
	}
	fp, err := fingerprint.Build(ci)
	if err != nil {
		return "", "", err
	}
	return fp, cached.Document.EngineCode, nil
}

// resolveSnapshot reuses the latest generation when its fingerprint matches,
// otherwise fetches fresh provider data and creates a new generation.
func (s *Service) resolveSnapshot(ctx context.Context, st Stores, reg domain.Registration, fp domain.Fingerprint, engineCodeHint string, hadRetention bool, now time.Time) (*snapshot.Snapshot, error) {
	latest, err := st.Snapshots.MostRecent(ctx, reg)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "snapshot lookup failed")
	}
	if latest != nil && latest.Fingerprint == fp {
		// A pending retention row disqualifies the reuse path: the latest
		// generation is the withheld partial document, and only a fresh
		// provider answer can replace it or clear the row.
		if !hadRetention {
			if s.metrics != nil {
				s.metrics.SnapshotsReused.Inc()
			}
			return latest, nil
		}
	} else if latest != nil {
		// Same registration, different vehicle identity. Accepted risk: a
		// previously-unlocked buyer keeps the stale generation until they
		// unlock again.
		s.logger.WarnContext(ctx, "plate reuse detected",
			"registration", reg,
			"previous_fingerprint", latest.Fingerprint,
			"current_fingerprint", fp,
		)
		audit.LogAudit(ctx, s.logger, s.publisher, audit.Event{
			Category:     audit.CategoryOperations,
			Action:       audit.ActionPlateReuseDetected,
			Registration: reg.String(),
		})
	}

	specResult, err := s.fetchSpec(ctx, reg)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSpecUnavailable, "spec provider fetch failed")
	}
	if s.metrics != nil {
		s.metrics.ProviderFetches.WithLabelValues(string(specResult.Status)).Inc()
	}

	doc := specResult.Document
	switch {
	case specResult.Status.IsRetention():
		rstatus := retention.NewStatus(reg, string(specResult.Status), now)
		if err := st.Retention.Upsert(ctx, rstatus); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "retention status upsert failed")
		}
		audit.LogAudit(ctx, s.logger, s.publisher, audit.Event{
			Category:     audit.CategoryOperations,
			Action:       audit.ActionRetentionReported,
			Registration: reg.String(),
			Reason:       string(specResult.Status),
		})
		if doc == nil {
			return nil, dErrors.New(dErrors.CodeSpecUnavailable, "provider returned no document for plate in retention")
		}
		retryAfter := rstatus.RetryAfter
		doc.Meta.Retention = true
		doc.Meta.RetryAfter = &retryAfter

	case specResult.Status.IsFullSuccess():
		if err := st.Retention.Clear(ctx, reg); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "retention status clear failed")
		}
		if hadRetention {
			audit.LogAudit(ctx, s.logger, s.publisher, audit.Event{
				Category:     audit.CategoryOperations,
				Action:       audit.ActionRetentionCleared,
				Registration: reg.String(),
			})
		}
		if doc == nil {
			return nil, dErrors.New(dErrors.CodeSpecUnavailable, "provider reported success without a document")
		}

	default:
		return nil, dErrors.Newf(dErrors.CodeSpecUnavailable, "provider returned unusable status %q", specResult.Status)
	}

	engineCode := specResult.EngineCode
	if engineCode == "" {
		engineCode = engineCodeHint
	}

	snap := &snapshot.Snapshot{
		Registration: reg,
		SpecDocument: *doc,
		Fingerprint:  fp,
		EngineCode:   engineCode,
		TyreData:     s.fetchTyres(ctx, reg),
		CreatedAt:    now,
	}
	if err := st.Snapshots.Create(ctx, snap); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "snapshot create failed")
	}
	if s.metrics != nil {
		s.metrics.SnapshotsCreated.Inc()
	}
	return snap, nil
}

// fetchSpec collapses concurrent provider fetches for the same registration.
// The collapsed fetch runs detached from the first caller's context so one
// cancelled request cannot fail every waiter, and each waiter gets its own
// copy of the result because callers annotate the document in place.
func (s *Service) fetchSpec(ctx context.Context, reg domain.Registration) (*provider.SpecResult, error) {
	v, err, _ := s.fetchGroup.Do(reg.String(), func() (any, error) {
		return s.specs.Fetch(context.WithoutCancel(ctx), reg)
	})
	if err != nil {
		return nil, err
	}
	return v.(*provider.SpecResult).Clone(), nil
}

// fetchTyres is strictly best-effort: failure is logged and treated as absent.
func (s *Service) fetchTyres(ctx context.Context, reg domain.Registration) []snapshot.TyreConfiguration {
	if s.tyres == nil {
		return nil
	}
	tyres, err := s.tyres.Fetch(ctx, reg)
	if err != nil {
		s.logger.WarnContext(ctx, "tyre data fetch failed, continuing without",
			"registration", reg,
			"error", err,
		)
		return nil
	}
	return tyres
}

func (s *Service) buildRecord(req Request, source domain.UnlockSource, snapshotID uuid.UUID, ent *entitlement.Entitlement) *Record {
	rec := &Record{
		Requester:             req.Requester,
		Registration:          req.Registration,
		SnapshotID:            snapshotID,
		UnlockType:            source,
		ExternalTransactionID: req.TransactionID,
		ProductID:             req.ProductID,
		Platform:              req.Platform,
	}
	if source == domain.UnlockSourcePaid {
		rec.SourceChannel = ChannelIAP
	} else {
		rec.SourceChannel = ChannelSubscription
		if ent != nil {
			rec.EntitlementCycleRef = ent.CycleOriginalRef
		}
	}
	return rec
}

// resultForRecord returns a record's snapshot as an alreadyUnlocked result.
func (s *Service) resultForRecord(ctx context.Context, st Stores, rec *Record) (*Result, error) {
	snap, err := st.Snapshots.Get(ctx, rec.SnapshotID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "snapshot lookup failed")
	}
	if snap == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "unlock record references a missing snapshot")
	}
	return resultFromSnapshot(snap, true), nil
}

func (s *Service) observeSuccess(source domain.UnlockSource, result *Result, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	already := "false"
	if result.AlreadyUnlocked {
		already = "true"
	}
	s.metrics.Unlocks.WithLabelValues(string(source), already).Inc()
	s.metrics.Duration.Observe(elapsed.Seconds())
}

func (s *Service) observeDenial(err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Denials.WithLabelValues(string(dErrors.GetCode(err))).Inc()
}
