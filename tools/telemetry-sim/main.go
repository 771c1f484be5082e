// Package main implements a telemetry simulator for local development.
// It publishes synthetic device telemetry to Kafka so the ingest pipeline
// and alert evaluator can be exercised without a real device fleet.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

type device struct {
	tenantID string
	deviceID string
	siteID   string
	seq      int64

	tempBase    float64
	batteryPct  float64
	anomalyLeft int
	dropoutLeft int
}

func main() {
	brokers := flag.String("brokers", "localhost:9092", "comma-separated Kafka broker addresses")
	topic := flag.String("topic", "telemetry", "Kafka topic to publish to")
	tenants := flag.Int("tenants", 2, "number of simulated tenants")
	devices := flag.Int("devices", 5, "devices per tenant")
	interval := flag.Duration("interval", 5*time.Second, "time between telemetry rounds")
	anomalyRate := flag.Float64("anomaly-rate", 0.02, "per-round probability a device starts a temperature anomaly")
	dropoutRate := flag.Float64("dropout-rate", 0.01, "per-round probability a device goes silent")
	seed := flag.Int64("seed", 0, "random seed (0 uses current time)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	fleet := buildFleet(*tenants, *devices, rng)
	logger.Info("simulating fleet",
		"tenants", *tenants, "devices_per_tenant", *devices,
		"interval", *interval, "seed", *seed)

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
	}
	defer writer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			msgs := buildRound(fleet, rng, *anomalyRate, *dropoutRate, time.Now().UTC())
			if len(msgs) == 0 {
				continue
			}
			if err := writer.WriteMessages(ctx, msgs...); err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("publish failed", "error", err)
				continue
			}
			logger.Debug("published round", "messages", len(msgs))
		}
	}
}

func buildFleet(tenants, devices int, rng *rand.Rand) []*device {
	fleet := make([]*device, 0, tenants*devices)
	for t := 1; t <= tenants; t++ {
		for d := 1; d <= devices; d++ {
			fleet = append(fleet, &device{
				tenantID:   fmt.Sprintf("tenant-%02d", t),
				deviceID:   fmt.Sprintf("dev-%02d-%03d", t, d),
				siteID:     fmt.Sprintf("site-%02d", (d-1)/10+1),
				tempBase:   35 + rng.Float64()*20,
				batteryPct: 60 + rng.Float64()*40,
			})
		}
	}
	return fleet
}

// buildRound advances every device one step and returns the Kafka messages
// to publish. Devices in a dropout window produce nothing, which the
// heartbeat sweep should eventually notice.
func buildRound(fleet []*device, rng *rand.Rand, anomalyRate, dropoutRate float64, now time.Time) []kafka.Message {
	msgs := make([]kafka.Message, 0, len(fleet))
	for _, d := range fleet {
		if d.dropoutLeft > 0 {
			d.dropoutLeft--
			continue
		}
		if rng.Float64() < dropoutRate {
			d.dropoutLeft = 10 + rng.Intn(50)
			continue
		}
		if d.anomalyLeft == 0 && rng.Float64() < anomalyRate {
			d.anomalyLeft = 5 + rng.Intn(10)
		}

		env := d.next(rng, now)
		value, err := json.Marshal(env)
		if err != nil {
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(env.TenantID + "/" + env.DeviceID),
			Value: value,
		})
	}
	return msgs
}

// next produces the device's telemetry for this round.
func (d *device) next(rng *rand.Rand, now time.Time) domain.TelemetryEnvelope {
	d.seq++

	temp := d.tempBase + rng.NormFloat64()*1.5
	if d.anomalyLeft > 0 {
		d.anomalyLeft--
		temp += 25 + rng.Float64()*15
	}

	d.batteryPct -= rng.Float64() * 0.05
	if d.batteryPct < 0 {
		d.batteryPct = 100
	}

	return domain.TelemetryEnvelope{
		TenantID: d.tenantID,
		DeviceID: d.deviceID,
		SiteID:   d.siteID,
		Seq:      d.seq,
		Time:     now,
		Metrics: map[string]any{
			"temp_c":      round1(temp),
			"battery_pct": round1(d.batteryPct),
			"rssi_dbm":    -50 - rng.Float64()*40,
			"online":      true,
			"fw_version":  "1.4.2",
		},
	}
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
