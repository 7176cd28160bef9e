package models_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/journeys/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const journeyYAML = `
id: jny_1
account: acct_1
name: Welcome
active: true
start: Pause
states:
  Pause:
    type: wait
    config:
      seconds: 60
    next: Is pro
  Is pro:
    type: match_any
    config:
      filters:
        - field: plan
          operator: equal
          value: pro
    next: Tag
  Tag:
    type: tag_contact
    config:
      tags: [vip]
    end: true
trigger:
  type: event
  config:
    source: contacts
    detail_type: contact.created
    schedule:
      start: 1700000000
`

func TestDecodeJourney_YAML(t *testing.T) {
	journey, err := models.DecodeJourney([]byte(journeyYAML))
	require.NoError(t, err)

	assert.Equal(t, "jny_1", journey.ID)
	assert.Equal(t, "Pause", journey.Start)
	require.Len(t, journey.States, 3)
	assert.Equal(t, models.ActionMatchAny, journey.States["Is pro"].Type)
	assert.True(t, journey.States["Tag"].End)

	require.NotNil(t, journey.Trigger.Event)
	assert.Nil(t, journey.Trigger.Schedule)
	assert.Equal(t, "contact.created", journey.Trigger.Event.DetailType)
	require.NotNil(t, journey.Trigger.Event.Window)
	assert.Equal(t, int64(1700000000), *journey.Trigger.Event.Window.Start)
	assert.Nil(t, journey.Trigger.Event.Window.End)
}

func TestDecodeJourney_JSON(t *testing.T) {
	journey, err := models.DecodeJourney([]byte(`{
		"account": "acct_1",
		"name": "Daily",
		"start": "end",
		"states": {},
		"trigger": {"type": "schedule", "config": {"schedule": {"cron": "0 9 * * ? *", "end": 1800000000}}}
	}`))
	require.NoError(t, err)

	require.NotNil(t, journey.Trigger.Schedule)
	assert.Equal(t, "0 9 * * ? *", journey.Trigger.Schedule.Schedule.Cron)
	assert.Equal(t, int64(1800000000), *journey.Trigger.Schedule.Schedule.End)
}

func TestDecodeJourney_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		document string
		contains string
	}{
		{name: "not a document", document: "a: [", contains: "invalid journey document"},
		{name: "missing account", document: `{"name": "x", "start": "end", "trigger": {"type": "event", "config": {}}}`, contains: "account"},
		{name: "unknown action type", document: `{"account": "a", "name": "x", "start": "A", "states": {"A": {"type": "send_sms", "end": true}}, "trigger": {"type": "event", "config": {}}}`, contains: "type"},
		{name: "unknown trigger type", document: `{"account": "a", "name": "x", "start": "end", "trigger": {"type": "webhook", "config": {}}}`, contains: "type"},
		{name: "negative epoch", document: `{"account": "a", "name": "x", "start": "end", "trigger": {"type": "schedule", "config": {"schedule": {"at": -1}}}}`, contains: "at"},
		{name: "empty next", document: `{"account": "a", "name": "x", "start": "A", "states": {"A": {"type": "wait", "next": ""}}, "trigger": {"type": "event", "config": {}}}`, contains: "next"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := models.DecodeJourney([]byte(tt.document))
			require.ErrorIs(t, err, models.ErrInvalidDocument)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestLoadJourneyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journey.yaml")
	require.NoError(t, os.WriteFile(path, []byte(journeyYAML), 0o600))

	journey, err := models.LoadJourneyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", journey.Name)

	_, err = models.LoadJourneyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read journey file")
}

func TestTrigger_RoundTrip(t *testing.T) {
	trigger := models.Trigger{
		Type: models.TriggerTypeEvent,
		Event: &models.EventTrigger{
			Source:        "contacts",
			DetailType:    "contact.updated",
			DetailFilters: []models.Filter{{Field: "age", Operator: models.OperatorGreaterThan, Value: 18.0}},
		},
	}

	raw, err := json.Marshal(trigger)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"event","config":{"source":"contacts","detail_type":"contact.updated","detail_filters":[{"field":"age","operator":"greater_than","value":18}]}}`, string(raw))

	var decoded models.Trigger
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, trigger, decoded)
}

func TestTrigger_UnknownTypeDecodesWithoutConfig(t *testing.T) {
	var trigger models.Trigger
	require.NoError(t, json.Unmarshal([]byte(`{"type":"webhook","config":{"url":"x"}}`), &trigger))

	assert.Equal(t, models.TriggerType("webhook"), trigger.Type)
	assert.Nil(t, trigger.Event)
	assert.Nil(t, trigger.Schedule)
}

func TestAction_WaitSeconds(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		want    int
		wantErr bool
	}{
		{name: "json number", config: map[string]any{"seconds": 30.0}, want: 30},
		{name: "yaml int", config: map[string]any{"seconds": 45}, want: 45},
		{name: "zero", config: map[string]any{"seconds": 0}, want: 0},
		{name: "numeric string", config: map[string]any{"seconds": "15"}, want: 15},
		{name: "missing", config: map[string]any{}, wantErr: true},
		{name: "negative", config: map[string]any{"seconds": -1}, wantErr: true},
		{name: "fractional", config: map[string]any{"seconds": 5.9}, wantErr: true},
		{name: "fractional string", config: map[string]any{"seconds": "1.5"}, wantErr: true},
		{name: "whole float", config: map[string]any{"seconds": 5.0}, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := &models.Action{Type: models.ActionWait, Config: tt.config}

			seconds, err := action.WaitSeconds()
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, seconds)
		})
	}
}

func TestAction_DecodeConfig(t *testing.T) {
	action := &models.Action{
		Type: models.ActionMatchAll,
		Config: map[string]any{
			"filters": []any{
				map[string]any{"field": "plan", "operator": "not_equal", "value": "free"},
			},
		},
	}

	var cfg models.MatchConfig
	require.NoError(t, action.DecodeConfig(&cfg))
	require.Len(t, cfg.Filters, 1)
	assert.Equal(t, models.OperatorNotEqual, cfg.Filters[0].Operator)
	assert.Equal(t, "free", cfg.Filters[0].Value)
}

func TestActionKind(t *testing.T) {
	assert.False(t, models.ActionWait.FailureProne())
	assert.True(t, models.ActionCreateNote.FailureProne())
	assert.True(t, models.ActionMatchAll.Branching())
	assert.False(t, models.ActionTagContact.Branching())
}

func TestJourney_Clone(t *testing.T) {
	journey, err := models.DecodeJourney([]byte(journeyYAML))
	require.NoError(t, err)

	clone := journey.Clone()
	assert.Equal(t, journey, clone)

	clone.States["Pause"].Next = "Tag"
	clone.Trigger.Event.Source = "orders"

	assert.Equal(t, "Is pro", journey.States["Pause"].Next)
	assert.Equal(t, "contacts", journey.Trigger.Event.Source)
}

func TestJourney_CloneKeepsConfigTypes(t *testing.T) {
	filters := []any{map[string]any{"field": "plan", "operator": "equal", "value": "pro"}}
	journey := &models.Journey{
		Start: "Pause",
		States: map[string]*models.Action{
			"Pause": {Type: models.ActionWait, Config: map[string]any{"seconds": 60}, Next: "Match"},
			"Match": {Type: models.ActionMatchAll, Config: map[string]any{"filters": filters}, End: true},
		},
		Metadata: map[string]any{"tags": []string{"onboarding"}},
	}

	clone := journey.Clone()
	assert.Equal(t, journey, clone)
	assert.IsType(t, 0, clone.States["Pause"].Config["seconds"])

	clone.States["Match"].Config["filters"].([]any)[0].(map[string]any)["value"] = "free"
	clone.Metadata["tags"].([]string)[0] = "changed"

	assert.Equal(t, "pro", filters[0].(map[string]any)["value"])
	assert.Equal(t, []string{"onboarding"}, journey.Metadata["tags"])
}

func TestRunStatus_Terminal(t *testing.T) {
	assert.False(t, models.RunStatusRunning.Terminal())
	assert.True(t, models.RunStatusCompleted.Terminal())
	assert.True(t, models.RunStatusFailed.Terminal())
}
