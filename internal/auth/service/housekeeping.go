package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aussiebroadwan/warden/internal/auth/metrics"
	"github.com/aussiebroadwan/warden/internal/auth/store"
	"github.com/aussiebroadwan/warden/internal/auth/tenant"
	"github.com/aussiebroadwan/warden/pkg/slogx"
)

// TenantLister lists every known tenant.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// SweepReport summarises a privilege sweep.
type SweepReport struct {
	Tenants int
	Failed  []string
}

// PrivilegeSweeper deletes permissions on privileges applications no longer
// publish. Tenants are swept one at a time and a failing tenant does not
// stop the others.
type PrivilegeSweeper struct {
	Tenants     TenantLister
	Permissions PermissionSource
	Catalog     PrivilegeReader
	Metrics     *metrics.Metrics
}

// Sweep removes, in every tenant, the permissions of app whose privilege is
// neither in active nor one of the tenant's custom privileges of app.
func (s *PrivilegeSweeper) Sweep(ctx context.Context, app string, active []string) (SweepReport, error) {
	tenants, err := s.Tenants.ListTenants(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("list tenants: %w", err)
	}

	report := SweepReport{Tenants: len(tenants)}
	for _, key := range tenants {
		tctx := slogx.WithTenant(tenant.WithKey(ctx, key), key)
		if err := s.sweepTenant(tctx, app, active); err != nil {
			slogx.FromContext(tctx).Error("privilege sweep failed",
				slog.String("app", app),
				slog.Any("error", err))
			s.Metrics.SweepFailure()
			report.Failed = append(report.Failed, key)
		}
	}

	slogx.FromContext(ctx).Info("privilege sweep completed",
		slog.String("app", app),
		slog.Int("tenants", report.Tenants),
		slog.Int("failed", len(report.Failed)))
	return report, nil
}

func (s *PrivilegeSweeper) sweepTenant(ctx context.Context, app string, active []string) error {
	keep := slices.Clone(active)

	// Tenant custom privileges are not published by the app, so even an
	// empty active set keeps their permissions.
	custom, err := s.Catalog.GetCustomPrivileges(ctx)
	if err != nil {
		return fmt.Errorf("read custom privileges: %w", err)
	}
	for _, p := range custom[app] {
		if !slices.Contains(keep, p.Key) {
			keep = append(keep, p.Key)
		}
	}

	return s.Permissions.DeletePermissionsForRemovedPrivileges(ctx, app, keep)
}

// SweepAll sweeps every application of the shared catalog.
func (s *PrivilegeSweeper) SweepAll(ctx context.Context) error {
	catalog, err := s.Catalog.GetPrivileges(ctx)
	if err != nil {
		return fmt.Errorf("read privilege catalog: %w", err)
	}

	for _, app := range sortedKeys(catalog) {
		active := make([]string, 0, len(catalog[app]))
		for _, p := range catalog[app] {
			active = append(active, p.Key)
		}
		if _, err := s.Sweep(ctx, app, active); err != nil {
			return err
		}
	}
	return nil
}

// DefaultHousekeepingInterval is used when no interval is configured.
const DefaultHousekeepingInterval = time.Hour

// HousekeepingService periodically removes expired signing keys and sweeps
// permissions on removed privileges.
type HousekeepingService struct {
	Store    store.Store
	Sweeper  *PrivilegeSweeper // optional
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, DefaultHousekeepingInterval is used.
func NewHousekeepingService(store store.Store, sweeper *PrivilegeSweeper, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}

	return &HousekeepingService{
		Store:    store,
		Sweeper:  sweeper,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each task independently; a failing task does not stop the
// others.
func (s *HousekeepingService) cleanup() {
	ctx := slogx.WithContext(context.Background(), s.Logger)
	s.Logger.Info("starting housekeeping cleanup")

	var succeeded int

	if n, err := s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx); err != nil {
		s.Logger.Error("failed to delete expired signing keys", "error", err)
	} else {
		s.Logger.Debug("deleted expired signing keys", "count", n)
		succeeded++
	}

	if s.Sweeper != nil {
		if err := s.Sweeper.SweepAll(ctx); err != nil {
			s.Logger.Error("failed to sweep removed privileges", "error", err)
		} else {
			succeeded++
		}
	}

	s.Logger.Info("housekeeping cleanup completed", "successful_cleanups", succeeded)
}
