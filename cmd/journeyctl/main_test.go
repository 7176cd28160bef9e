package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventJourneyYAML = `
id: jny_welcome
account: acct_1
name: Welcome
active: true
start: Pause
states:
  Pause:
    type: wait
    config:
      seconds: 60
    next: Note
  Note:
    type: create_note
    config:
      note: welcome
    end: true
trigger:
  type: event
  config:
    source: contacts
    detail_type: contact.created
    detail_filters:
      - field: plan
        operator: equal
        value: pro
`

const scheduleJourneyYAML = `
id: jny_daily
account: acct_1
name: Daily
start: end
states: {}
trigger:
  type: schedule
  config:
    schedule:
      rate: 1 day
`

func writeJourney(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	err := newCommand(&out).Run(context.Background(), append([]string{"journeyctl"}, args...))

	return out.String(), err
}

func TestCompileCommand(t *testing.T) {
	path := writeJourney(t, "welcome.yaml", eventJourneyYAML)

	out, err := run(t, "--task-resource-arn", "arn:executor", "compile", path)
	require.NoError(t, err)

	var definition struct {
		StartAt string                    `json:"StartAt"`
		States  map[string]map[string]any `json:"States"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &definition))
	assert.Equal(t, "Create run", definition.StartAt)
	assert.Equal(t, "arn:executor", definition.States["Note"]["Resource"])
	assert.Equal(t, "jny_welcome", definition.States["Create run"]["Parameters"].(map[string]any)["journey_id"])

	out, err = run(t, "compile", "--id", "jny_other", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"journey_id": "jny_other"`)
}

func TestPatternCommand(t *testing.T) {
	out, err := run(t, "pattern", writeJourney(t, "welcome.yaml", eventJourneyYAML))
	require.NoError(t, err)

	var pattern map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &pattern))
	assert.Equal(t, []any{"versify"}, pattern["source"])

	detail := pattern["detail"].(map[string]any)
	assert.Equal(t, []any{"acct_1"}, detail["account"])
	assert.Equal(t, map[string]any{"plan": []any{"pro"}}, detail["detail"])

	_, err = run(t, "pattern", writeJourney(t, "daily.yaml", scheduleJourneyYAML))
	assert.ErrorIs(t, err, ErrNotEventJourney)
}

func TestScheduleCommand(t *testing.T) {
	path := writeJourney(t, "daily.yaml", scheduleJourneyYAML)

	out, err := run(t, "schedule", "--next", "2", "--from", "2024-01-01T00:00:00Z", path)
	require.NoError(t, err)

	var schedule struct {
		Expression    string      `json:"expression"`
		NextFireTimes []time.Time `json:"next_fire_times"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &schedule))
	assert.Equal(t, "rate(1 day)", schedule.Expression)
	require.Len(t, schedule.NextFireTimes, 2)
	assert.Equal(t, 24*time.Hour, schedule.NextFireTimes[1].Sub(schedule.NextFireTimes[0]))

	_, err = run(t, "schedule", writeJourney(t, "welcome.yaml", eventJourneyYAML))
	assert.ErrorIs(t, err, ErrNotScheduleJourney)
}

func TestValidateCommand(t *testing.T) {
	valid := writeJourney(t, "welcome.yaml", eventJourneyYAML)
	dangling := writeJourney(t, "dangling.yaml", `
account: acct_1
name: Broken
start: Pause
states:
  Pause:
    type: wait
    config:
      seconds: 1
    next: Nowhere
trigger:
  type: schedule
  config:
    schedule:
      rate: 1 hour
`)

	out, err := run(t, "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, valid+": ok")

	out, err = run(t, "validate", valid, dangling)
	require.ErrorIs(t, err, ErrInvalidJourneys)
	assert.Contains(t, out, dangling+": ")
	assert.Contains(t, out, "unknown state")

	_, err = run(t, "validate")
	assert.ErrorIs(t, err, ErrMissingFile)
}
