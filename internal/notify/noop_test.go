package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoOpNotifier_SendAlert(t *testing.T) {
	t.Parallel()

	n := NewNoOpNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := n.SendAlert(context.Background(), &AlertPayload{
		TenantID:  "acme",
		DeviceID:  "sensor-0042",
		AlertType: "THRESHOLD",
	})
	require.NoError(t, err)
}

func TestNoOpNotifier_SendBatchAlert(t *testing.T) {
	t.Parallel()

	n := NewNoOpNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	alerts := []AlertPayload{
		{TenantID: "acme", DeviceID: "sensor-0042", AlertType: "THRESHOLD"},
		{TenantID: "acme", DeviceID: "sensor-0043", AlertType: "ANOMALY"},
	}

	err := n.SendBatchAlert(context.Background(), alerts, "acme")
	require.NoError(t, err)
}

func TestNoOpNotifier_SendBatchAlert_Empty(t *testing.T) {
	t.Parallel()

	n := NewNoOpNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := n.SendBatchAlert(context.Background(), nil, "acme")
	require.NoError(t, err)
}

// compile-time interface checks.
var (
	_ Notifier = (*NoOpNotifier)(nil)
	_ Notifier = (*DiscordNotifier)(nil)
	_ Notifier = (*WebhookNotifier)(nil)
)
