package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/petersohn/home-automation/internal/infrastructure/mqtt"
)

// bridgeTimeout bounds the processing of one MQTT report.
const bridgeTimeout = 30 * time.Second

// Subscriber is the slice of the MQTT client the bridge needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Bridge feeds device reports arriving over MQTT into the same ingestion
// service as the HTTP surface. Devices that publish over MQTT must include
// their IP in the payload; there is no transport peer address to fall back
// on.
type Bridge struct {
	service *Service
	log     *slog.Logger
}

// NewBridge creates a Bridge.
func NewBridge(service *Service, log *slog.Logger) *Bridge {
	return &Bridge{service: service, log: log}
}

// Attach subscribes the bridge to the status report topics.
func (b *Bridge) Attach(sub Subscriber, qos byte) error {
	if err := sub.Subscribe(mqtt.Topics{}.StatusReports(), qos, b.handleMessage); err != nil {
		return fmt.Errorf("subscribing to status reports: %w", err)
	}
	return nil
}

func (b *Bridge) handleMessage(topic string, payload []byte) error {
	var report Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("decoding report from %s: %w", topic, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), bridgeTimeout)
	defer cancel()

	if err := b.service.ProcessReport(ctx, report, ""); err != nil {
		b.log.Error("processing mqtt report failed",
			"topic", topic,
			"device", report.Device.Name,
			"error", err)
		return err
	}
	return nil
}
