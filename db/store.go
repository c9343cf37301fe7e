package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itsneelabh/gomind/core"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps a *gorm.DB with the operations the lookup service and
// cleanup job need.
type Store struct {
	db     *gorm.DB
	appLog core.Logger
}

// Open connects to Postgres and runs AutoMigrate for both tables, the way
// a small service (rather than a migration-tooling-managed one, which
// spec.md §1 explicitly leaves out of scope) bootstraps its own schema.
func Open(dsn string, appLog core.Logger) (*Store, error) {
	if appLog == nil {
		appLog = &core.NoOpLogger{}
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", core.ErrConnectionFailed)
	}
	if err := gdb.AutoMigrate(&IPRecord{}, &ProviderDailyStat{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: gdb, appLog: appLog}, nil
}

// HealthCheck verifies connectivity for the readiness probe.
func (s *Store) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Get returns the row for ip, or found=false if absent.
func (s *Store) Get(ctx context.Context, ip string) (*IPRecord, bool, error) {
	var rec IPRecord
	err := s.db.WithContext(ctx).First(&rec, "ip = ?", ip).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &rec, true, nil
}

// Upsert writes rec, recomputing its content hash first so callers can
// cheaply detect whether a refreshed live record actually changed.
func (s *Store) Upsert(ctx context.Context, rec *IPRecord) error {
	rec.Hash = contentHash(rec)
	return s.db.WithContext(ctx).Save(rec).Error
}

// CleanupExpired deletes rows whose ExpiresAt is older than now minus the
// spec.md §6 7-day grace period.
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	result := s.db.WithContext(ctx).Where("expires_at < ?", cutoff).Delete(&IPRecord{})
	return result.RowsAffected, result.Error
}

// RecordProviderOutcome upserts today's per-provider counters. Called from
// a background goroutine (spec.md §4.5 point 5: "never blocks the
// response"); failures are logged, not propagated.
func (s *Store) RecordProviderOutcome(ctx context.Context, provider string, success bool, timedOut bool, latencyMs int64, lastError string) {
	day := time.Now().Truncate(24 * time.Hour)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stat ProviderDailyStat
		err := tx.First(&stat, "provider = ? AND date = ?", provider, day).Error
		if err == gorm.ErrRecordNotFound {
			stat = ProviderDailyStat{Provider: provider, Date: day}
		} else if err != nil {
			return err
		}

		total := float64(stat.SuccessCount + stat.FailureCount)
		stat.AvgLatencyMs = (stat.AvgLatencyMs*total + float64(latencyMs)) / (total + 1)
		if success {
			stat.SuccessCount++
		} else {
			stat.FailureCount++
			if timedOut {
				stat.TimeoutCount++
			}
			if lastError != "" {
				stat.LastError = lastError
			}
		}
		return tx.Save(&stat).Error
	})
	if err != nil {
		s.appLog.Warn("failed to record provider daily stat", map[string]interface{}{
			"provider": provider,
			"error":    err.Error(),
		})
	}
}

func contentHash(rec *IPRecord) string {
	// Hash over the user-visible fields only (excludes the hash itself and
	// the bookkeeping timestamps), so an unchanged live refresh doesn't
	// register as a content change.
	snapshot := struct {
		ASN, Org, Country, Region, City, Timezone  string
		Accuracy                                   string
		Latitude, Longitude                        *float64
		IsProxy, IsVpn, IsTor, IsHosting, IsMobile *bool
		VpnProvider, RiskLevel                     string
		AbuseScore                                 *int
		Confidence                                 int
	}{rec.ASN, rec.Org, rec.Country, rec.Region, rec.City, rec.Timezone,
		rec.Accuracy, rec.Latitude, rec.Longitude,
		rec.IsProxy, rec.IsVpn, rec.IsTor, rec.IsHosting, rec.IsMobile,
		rec.VpnProvider, rec.RiskLevel, rec.AbuseScore, rec.Confidence}

	data, _ := json.Marshal(snapshot)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
