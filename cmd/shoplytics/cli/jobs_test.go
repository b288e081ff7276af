package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shoplytics/shoplytics/jobs"
)

func TestTriggerRejectsUnknownJob(t *testing.T) {
	cli := NewJobsCLI("127.0.0.1:0")
	t.Cleanup(func() { _ = cli.Close() })

	err := cli.Trigger(context.Background(), "nightly:mystery", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported job")
}

func TestTriggerShippingSyncNeedsOrderNumber(t *testing.T) {
	cli := NewJobsCLI("127.0.0.1:0")
	t.Cleanup(func() { _ = cli.Close() })

	err := cli.Trigger(context.Background(), jobs.TaskShippingSync, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "order number")
}

func TestTriggerNilClient(t *testing.T) {
	var cli *JobsCLI
	err := cli.Trigger(context.Background(), jobs.TaskMetricsWarmup, "")
	require.Error(t, err)
}

func TestListScheduledNilInspector(t *testing.T) {
	var cli *JobsCLI
	_, err := cli.ListScheduled(context.Background(), 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "inspector not configured")
}
