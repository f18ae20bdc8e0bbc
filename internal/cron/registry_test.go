package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	jobA := &stubJob{name: "otp-purge"}
	jobB := &stubJob{name: "outbox-retention"}
	registry := NewRegistry(jobA, nil, jobB)

	jobs := registry.Jobs()
	require.Equal(t, []Job{jobA, jobB}, jobs)

	jobs[0] = nil
	require.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "otp-purge"})
	require.Error(t, registry.Register(&stubJob{name: "otp-purge"}))
	require.Error(t, registry.Register(nil))
	require.Len(t, registry.Jobs(), 1)
}

func TestRegistrySelect(t *testing.T) {
	registry := NewRegistry(
		&stubJob{name: "otp-purge"},
		&stubJob{name: "outbox-retention"},
		&stubJob{name: "notification-cleanup"},
	)
	require.Equal(t, []string{"notification-cleanup", "otp-purge", "outbox-retention"}, registry.Names())

	selected, err := registry.Select("notification-cleanup", "otp-purge")
	require.NoError(t, err)
	names := []string{}
	for _, job := range selected.Jobs() {
		names = append(names, job.Name())
	}
	require.Equal(t, []string{"otp-purge", "notification-cleanup"}, names)

	all, err := registry.Select()
	require.NoError(t, err)
	require.Same(t, registry, all)

	_, err = registry.Select("media-cleanup")
	require.Error(t, err)
}
