package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmohub/internal/config"
	"rmohub/internal/model"
)

type stubStore struct {
	records []model.SurveyRecord
	err     error
}

func (s *stubStore) InsertSurvey(_ context.Context, rec model.SurveyRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type stubLookup map[string]model.Segment

func (l stubLookup) SegmentByID(id string) (model.Segment, bool) {
	seg, ok := l[id]
	return seg, ok
}

type stubHub struct {
	updates []model.ConditionUpdate
}

func (h *stubHub) Broadcast(u model.ConditionUpdate) {
	h.updates = append(h.updates, u)
}

func newTestFeed(store *stubStore, hub *stubHub, invalidated *int) *Feed {
	lookup := stubLookup{"S001": {ID: "S001", Authority: "TRF"}}
	return New(config.MQTTConfig{}, store, lookup, func() { *invalidated++ }, hub, "standard")
}

func TestVehicleFromTopic(t *testing.T) {
	tests := []struct {
		topic   string
		vehicle string
		ok      bool
	}{
		{"rmo/survey/SCANNER-07/observation", "SCANNER-07", true},
		{"rmo/survey/x/observation", "x", true},
		{"rmo/survey//observation", "", false},
		{"rmo/survey/SCANNER-07/status", "", false},
		{"other/survey/SCANNER-07/observation", "", false},
		{"rmo/survey/observation", "", false},
	}
	for _, tt := range tests {
		vehicle, ok := vehicleFromTopic(tt.topic)
		assert.Equal(t, tt.ok, ok, tt.topic)
		assert.Equal(t, tt.vehicle, vehicle, tt.topic)
	}
}

func TestProcessObservation(t *testing.T) {
	store := &stubStore{}
	hub := &stubHub{}
	invalidated := 0
	feed := newTestFeed(store, hub, &invalidated)

	payload := []byte(`{"segment_id": "S001", "kpi": "IRI", "value": 4.2, "year": 2024}`)
	err := feed.process(context.Background(), "rmo/survey/SCANNER-07/observation", payload)
	require.NoError(t, err)

	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, "S001", rec.SegmentID)
	assert.Equal(t, "SCANNER-07", rec.Source)
	assert.Equal(t, 2024, rec.Year)

	assert.Equal(t, 1, invalidated, "caches must be invalidated")

	require.Len(t, hub.updates, 1)
	update := hub.updates[0]
	assert.Equal(t, model.ConditionUpdateType, update.Type, "clients demultiplex frames by type")
	assert.Equal(t, model.Poor, update.Class)
	assert.Equal(t, "Poor", update.Label)
	assert.Equal(t, "TRF", update.Authority)
	assert.NotEmpty(t, update.Color)
}

func TestProcessDefaultsYear(t *testing.T) {
	store := &stubStore{}
	feed := newTestFeed(store, &stubHub{}, new(int))

	payload := []byte(`{"segment_id": "S001", "kpi": "RUT", "value": 3.0}`)
	require.NoError(t, feed.process(context.Background(), "rmo/survey/V1/observation", payload))
	require.Len(t, store.records, 1)
	assert.NotZero(t, store.records[0].Year)
}

func TestProcessRejectsBadMessages(t *testing.T) {
	store := &stubStore{}
	hub := &stubHub{}
	invalidated := 0
	feed := newTestFeed(store, hub, &invalidated)
	ctx := context.Background()

	cases := map[string]struct {
		topic   string
		payload string
	}{
		"bad topic":      {"rmo/other/V1/observation", `{"segment_id": "S001", "kpi": "IRI", "value": 1}`},
		"bad json":       {"rmo/survey/V1/observation", `{not json`},
		"unknown kpi":    {"rmo/survey/V1/observation", `{"segment_id": "S001", "kpi": "XX", "value": 1}`},
		"missing segment": {"rmo/survey/V1/observation", `{"kpi": "IRI", "value": 1}`},
	}
	for name, tc := range cases {
		err := feed.process(ctx, tc.topic, []byte(tc.payload))
		assert.Error(t, err, name)
	}
	assert.Empty(t, store.records)
	assert.Empty(t, hub.updates)
	assert.Zero(t, invalidated)
}
