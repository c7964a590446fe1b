package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/davicafu/placementlab/internal/shared/domain/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, eventType string, payload interface{}) events.Envelope {
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Envelope{
		Type:          eventType,
		ID:            uuid.New(),
		Time:          time.Now(),
		Subject:       uuid.NewString(),
		AggregateType: "placement",
		CorrelationID: "corr-1",
		Data:          data,
	}
}

func TestFromEnvelope_SeverityFollowsOutcome(t *testing.T) {
	videoID := uuid.New()
	cases := []struct {
		name     string
		env      events.Envelope
		severity Severity
		contains string
	}{
		{"placement creado", envelope(t, events.PlacementCreated, events.PlacementChanged{ID: uuid.New(), VideoID: videoID, StartTime: 1, EndTime: 2}), SeverityInfo, "created"},
		{"fichero fallido", envelope(t, events.PlacementFileFailed, events.PlacementFileFailedPayload{ID: uuid.New(), Reason: "boom"}), SeverityError, "boom"},
		{"validación con issues", envelope(t, events.VideoValidationCompleted, events.ValidationFinished{RunID: "vr_1", IssuesCount: 2}), SeverityWarning, "2 issue(s)"},
		{"validación limpia", envelope(t, events.VideoValidationCompleted, events.ValidationFinished{RunID: "vr_2"}), SeverityInfo, "passed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := FromEnvelope(tc.env)

			require.NoError(t, err)
			assert.Equal(t, tc.env.ID, n.ID)
			assert.Equal(t, tc.env.Subject, n.AggregateID)
			assert.Equal(t, tc.severity, n.Severity)
			assert.Contains(t, n.Message, tc.contains)
		})
	}
}

func TestFromEnvelope_UnsupportedType(t *testing.T) {
	_, err := FromEnvelope(envelope(t, events.CampaignCreated, events.CampaignChanged{}))

	assert.ErrorIs(t, err, ErrUnsupportedEvent)
}
