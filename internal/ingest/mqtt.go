// Package ingest subscribes to the survey-vehicle MQTT feed and folds
// live observations into the store, invalidating cached statistics and
// pushing condition updates to websocket subscribers.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"rmohub/internal/config"
	"rmohub/internal/model"
	"rmohub/internal/render"
)

// SurveyStore is the slice of the store the feed writes to.
type SurveyStore interface {
	InsertSurvey(ctx context.Context, rec model.SurveyRecord) error
}

// SegmentLookup resolves segment attributes for update messages.
type SegmentLookup interface {
	SegmentByID(id string) (model.Segment, bool)
}

// Broadcaster pushes condition updates to connected clients.
type Broadcaster interface {
	Broadcast(update model.ConditionUpdate)
}

// observation is the wire format of one survey reading.
type observation struct {
	SegmentID string  `json:"segment_id"`
	KPI       string  `json:"kpi"`
	Value     float64 `json:"value"`
	Year      int     `json:"year"`
}

// Feed is the live survey-observation subscriber.
type Feed struct {
	cfg        config.MQTTConfig
	store      SurveyStore
	segments   SegmentLookup
	invalidate func()
	hub        Broadcaster
	theme      string

	client mqtt.Client
}

// New creates a feed. invalidate is called after every accepted
// observation so cached statistics and choropleths recompute.
func New(cfg config.MQTTConfig, store SurveyStore, segments SegmentLookup, invalidate func(), hub Broadcaster, theme string) *Feed {
	return &Feed{
		cfg:        cfg,
		store:      store,
		segments:   segments,
		invalidate: invalidate,
		hub:        hub,
		theme:      theme,
	}
}

// Start connects to the broker and subscribes. It blocks until the
// context is cancelled, then disconnects.
func (f *Feed) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(f.cfg.Broker)
	opts.SetClientID(f.cfg.ClientID)
	if f.cfg.Username != "" {
		opts.SetUsername(f.cfg.Username)
		opts.SetPassword(f.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt connection lost, reconnecting")
	})
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		if err := f.process(ctx, msg.Topic(), msg.Payload()); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("dropping survey observation")
		}
	})

	f.client = mqtt.NewClient(opts)
	if token := f.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connecting to MQTT broker %s: %w", f.cfg.Broker, token.Error())
	}
	if token := f.client.Subscribe(f.cfg.Topic, 0, nil); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribing to %s: %w", f.cfg.Topic, token.Error())
	}
	log.WithFields(log.Fields{"broker": f.cfg.Broker, "topic": f.cfg.Topic}).
		Info("survey feed subscribed")

	<-ctx.Done()
	f.client.Disconnect(250)
	return nil
}

// process validates and applies one observation message.
func (f *Feed) process(ctx context.Context, topic string, payload []byte) error {
	vehicle, ok := vehicleFromTopic(topic)
	if !ok {
		return fmt.Errorf("cannot extract vehicle ID from topic %q", topic)
	}

	var obs observation
	if err := json.Unmarshal(payload, &obs); err != nil {
		return fmt.Errorf("decoding observation: %w", err)
	}

	info, ok := model.KPIByCode(obs.KPI)
	if !ok {
		return fmt.Errorf("unknown KPI code %q", obs.KPI)
	}
	if obs.SegmentID == "" {
		return fmt.Errorf("observation is missing segment_id")
	}
	year := obs.Year
	if year == 0 {
		year = time.Now().UTC().Year()
	}

	rec := model.SurveyRecord{
		SegmentID:  obs.SegmentID,
		Year:       year,
		KPI:        obs.KPI,
		Value:      obs.Value,
		Source:     vehicle,
		RecordedAt: time.Now().UTC(),
	}
	if err := f.store.InsertSurvey(ctx, rec); err != nil {
		return fmt.Errorf("storing observation: %w", err)
	}

	f.invalidate()

	class := info.Classify(obs.Value)
	update := model.ConditionUpdate{
		Type:      model.ConditionUpdateType,
		SegmentID: obs.SegmentID,
		KPI:       obs.KPI,
		Year:      year,
		Value:     obs.Value,
		Class:     class,
		Label:     class.String(),
		Color:     render.ClassColor(f.theme, int(class)),
	}
	if seg, ok := f.segments.SegmentByID(obs.SegmentID); ok {
		update.Authority = seg.Authority
	}
	f.hub.Broadcast(update)

	log.WithFields(log.Fields{
		"vehicle": vehicle,
		"segment": obs.SegmentID,
		"kpi":     obs.KPI,
		"value":   obs.Value,
		"class":   update.Label,
	}).Debug("survey observation applied")
	return nil
}

// vehicleFromTopic extracts the vehicle ID from a topic of the form
// rmo/survey/<vehicle>/observation.
func vehicleFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "rmo" || parts[1] != "survey" || parts[3] != "observation" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
