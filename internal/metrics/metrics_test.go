package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistered(t *testing.T) {
	t.Parallel()

	// Verify all metrics are non-nil (registered via promauto on package init).
	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)
	assert.NotNil(t, IngestMessagesTotal)
	assert.NotNil(t, IngestRowsWrittenTotal)
	assert.NotNil(t, IngestInvalidTotal)
	assert.NotNil(t, IngestErrorsTotal)
	assert.NotNil(t, IngestFlushDuration)
	assert.NotNil(t, EvalPassDuration)
	assert.NotNil(t, EvalPassesTotal)
	assert.NotNil(t, EvalWakeupsTotal)
	assert.NotNil(t, EvalTenantErrorsTotal)
	assert.NotNil(t, EvalDeviceErrorsTotal)
	assert.NotNil(t, AlertsOpenedTotal)
	assert.NotNil(t, AlertsClosedTotal)
	assert.NotNil(t, AlertsSilencedTotal)
	assert.NotNil(t, NotificationsSentTotal)
	assert.NotNil(t, NotificationFailuresTotal)
	assert.NotNil(t, ListenerReconnectsTotal)
	assert.NotNil(t, ListenerNotificationsTotal)
}
