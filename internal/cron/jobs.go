package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sokohub/sokohub-backend/pkg/logger"
)

const (
	defaultOTPRetention          = 24 * time.Hour
	defaultOutboxRetentionDays   = 30
	defaultNotificationRetention = 90
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// purgeJob deletes rows older than now minus retention through purge.
type purgeJob struct {
	name      string
	logg      *logger.Logger
	retention time.Duration
	purge     func(ctx context.Context, cutoff time.Time) (int64, error)
	now       func() time.Time
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	}), "purge complete")
	return nil
}

func newPurgeJob(name string, logg *logger.Logger, retention time.Duration, purge func(context.Context, time.Time) (int64, error)) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("%s: logger required", name)
	}
	return &purgeJob{name: name, logg: logg, retention: retention, purge: purge, now: time.Now}, nil
}

// inTx runs a tx-scoped delete and hands back its row count.
func inTx(db txRunner, del func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)) func(context.Context, time.Time) (int64, error) {
	return func(ctx context.Context, cutoff time.Time) (int64, error) {
		var deleted int64
		err := db.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := del(ctx, tx, cutoff)
			deleted = n
			return err
		})
		return deleted, err
	}
}

type OTPPurgeJobParams struct {
	Logger     *logger.Logger
	Repository interface {
		PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
	Retention time.Duration
}

// NewOTPPurgeJob drops login codes older than the retention, spent or not.
func NewOTPPurgeJob(params OTPPurgeJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("otp repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOTPRetention
	}
	return newPurgeJob("otp-purge", params.Logger, retention, params.Repository.PurgeBefore)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository interface {
		DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	}
	Retention int
}

// NewOutboxRetentionJob removes published events older than the retention.
// Undelivered rows are never touched.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.DB == nil || params.Repository == nil {
		return nil, fmt.Errorf("outbox retention needs a db runner and repository")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetentionDays
	}
	return newPurgeJob("outbox-retention", params.Logger, days(retention), inTx(params.DB, params.Repository.DeletePublishedBefore))
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository interface {
		DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	}
	Retention int
}

// NewNotificationCleanupJob deletes notifications read before the retention.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.DB == nil || params.Repository == nil {
		return nil, fmt.Errorf("notification cleanup needs a db runner and repository")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultNotificationRetention
	}
	return newPurgeJob("notification-cleanup", params.Logger, days(retention), inTx(params.DB, params.Repository.DeleteReadBefore))
}
