package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/sokohub/sokohub-backend/internal/notifications"
	"github.com/sokohub/sokohub-backend/internal/otp"
	"github.com/sokohub/sokohub-backend/pkg/db/dbtest"
	"github.com/sokohub/sokohub-backend/pkg/db/models"
	"github.com/sokohub/sokohub-backend/pkg/enums"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/outbox"
)

var jobNow = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

func TestOTPPurgeJobDropsOldCodes(t *testing.T) {
	conn := dbtest.New(t)
	consumed := jobNow.Add(-47 * time.Hour)
	rows := []models.EmailOTP{
		{Email: "old@soko.test", Code: "12345", CreatedAt: jobNow.Add(-48 * time.Hour), ConsumedAt: &consumed},
		{Email: "stale@soko.test", Code: "22222", CreatedAt: jobNow.Add(-25 * time.Hour)},
		{Email: "fresh@soko.test", Code: "54321", CreatedAt: jobNow.Add(-time.Hour)},
	}
	require.NoError(t, conn.Create(&rows).Error)

	job, err := NewOTPPurgeJob(OTPPurgeJobParams{Logger: testLogger(), Repository: otp.NewRepository(conn)})
	require.NoError(t, err)
	job.(*purgeJob).now = func() time.Time { return jobNow }
	require.Equal(t, "otp-purge", job.Name())
	require.NoError(t, job.Run(context.Background()))

	var left []models.EmailOTP
	require.NoError(t, conn.Find(&left).Error)
	require.Len(t, left, 1)
	require.Equal(t, "fresh@soko.test", left[0].Email)
}

func TestOutboxRetentionJobKeepsUndelivered(t *testing.T) {
	client := dbtest.NewClient(t)
	conn := client.DB()
	old := jobNow.Add(-40 * 24 * time.Hour)
	recent := jobNow.Add(-2 * 24 * time.Hour)
	event := func(published *time.Time) models.OutboxEvent {
		return models.OutboxEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       datatypes.JSON(`{}`),
			PublishedAt:   published,
		}
	}
	rows := []models.OutboxEvent{event(&old), event(&recent), event(nil)}
	require.NoError(t, conn.Create(&rows).Error)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     testLogger(),
		DB:         client,
		Repository: outbox.NewRepository(conn),
	})
	require.NoError(t, err)
	job.(*purgeJob).now = func() time.Time { return jobNow }
	require.NoError(t, job.Run(context.Background()))

	var ids []uuid.UUID
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Pluck("id", &ids).Error)
	require.ElementsMatch(t, []uuid.UUID{rows[1].ID, rows[2].ID}, ids)
}

func TestNotificationCleanupJobKeepsUnread(t *testing.T) {
	client := dbtest.NewClient(t)
	conn := client.DB()
	user := uuid.New()
	longAgo := jobNow.Add(-120 * 24 * time.Hour)
	lastWeek := jobNow.Add(-7 * 24 * time.Hour)
	rows := []models.Notification{
		{UserID: user, Message: "read long ago", ReadAt: &longAgo},
		{UserID: user, Message: "read last week", ReadAt: &lastWeek},
		{UserID: user, Message: "never read"},
	}
	require.NoError(t, conn.Create(&rows).Error)

	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     testLogger(),
		DB:         client,
		Repository: notifications.NewRepository(conn),
	})
	require.NoError(t, err)
	job.(*purgeJob).now = func() time.Time { return jobNow }
	require.NoError(t, job.Run(context.Background()))

	var messages []string
	require.NoError(t, conn.Model(&models.Notification{}).Order("message").Pluck("message", &messages).Error)
	require.Equal(t, []string{"never read", "read last week"}, messages)
}

func TestJobConstructorsValidate(t *testing.T) {
	_, err := NewOTPPurgeJob(OTPPurgeJobParams{})
	require.Error(t, err)
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: testLogger()})
	require.Error(t, err)
	_, err = NewNotificationCleanupJob(NotificationCleanupJobParams{Logger: testLogger()})
	require.Error(t, err)
}
