package engine

import (
	"testing"

	"github.com/TheLab-ms/formcheckout/engine/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLogger(t *testing.T) {
	ctx := t.Context()
	d := db.OpenTest(t)
	e := NewEventLogger(d)

	e.LogEvent(ctx, "bridge", "FormCaptured", "", true, "form=1")
	e.LogEvent(ctx, "stripe", "APIError", "cs_123", false, "boom")

	var (
		source, eventType, details string
		externalID                 *string
		success                    bool
	)
	err := d.QueryRowContext(ctx, "SELECT source, event_type, external_id, success, details FROM integration_events ORDER BY id LIMIT 1").Scan(&source, &eventType, &externalID, &success, &details)
	require.NoError(t, err)
	assert.Equal(t, "bridge", source)
	assert.Equal(t, "FormCaptured", eventType)
	assert.Nil(t, externalID)
	assert.True(t, success)
	assert.Equal(t, "form=1", details)

	err = d.QueryRowContext(ctx, "SELECT external_id, success FROM integration_events ORDER BY id DESC LIMIT 1").Scan(&externalID, &success)
	require.NoError(t, err)
	require.NotNil(t, externalID)
	assert.Equal(t, "cs_123", *externalID)
	assert.False(t, success)

	// nil loggers are allowed
	var nilLogger *EventLogger
	nilLogger.LogEvent(ctx, "x", "y", "", true, "")
}
