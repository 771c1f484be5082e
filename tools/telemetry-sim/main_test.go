package main

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	domain "github.com/fleetwatch/fleetwatch/pkg/types"
)

func TestBuildFleet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	fleet := buildFleet(3, 4, rng)
	if len(fleet) != 12 {
		t.Fatalf("fleet size=%d, want 12", len(fleet))
	}
	seen := map[string]bool{}
	for _, d := range fleet {
		key := d.tenantID + "/" + d.deviceID
		if seen[key] {
			t.Errorf("duplicate device %s", key)
		}
		seen[key] = true
		if d.tempBase < 35 || d.tempBase > 55 {
			t.Errorf("tempBase=%v out of range", d.tempBase)
		}
	}
}

func TestDeviceNext(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := &device{tenantID: "tenant-01", deviceID: "dev-01-001", siteID: "site-01", tempBase: 40, batteryPct: 80}
	now := time.Now().UTC()

	env := d.next(rng, now)
	if env.Seq != 1 {
		t.Errorf("seq=%d, want 1", env.Seq)
	}
	if env.TenantID != "tenant-01" || env.DeviceID != "dev-01-001" {
		t.Errorf("unexpected identity: %s/%s", env.TenantID, env.DeviceID)
	}
	if err := env.Validate(); err != nil {
		t.Errorf("envelope invalid: %v", err)
	}
	if _, ok := env.Metrics["temp_c"].(float64); !ok {
		t.Error("temp_c missing or not numeric")
	}
	if online, ok := env.Metrics["online"].(bool); !ok || !online {
		t.Error("online should be true")
	}

	env2 := d.next(rng, now)
	if env2.Seq != 2 {
		t.Errorf("seq=%d, want 2", env2.Seq)
	}
}

func TestDeviceNext_AnomalySpikes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	d := &device{tenantID: "t", deviceID: "d", tempBase: 40, batteryPct: 80, anomalyLeft: 3}

	env := d.next(rng, time.Now().UTC())
	temp := env.Metrics["temp_c"].(float64)
	if temp < 55 {
		t.Errorf("temp_c=%v during anomaly, want spike above 55", temp)
	}
	if d.anomalyLeft != 2 {
		t.Errorf("anomalyLeft=%d, want 2", d.anomalyLeft)
	}
}

func TestBuildRound_DropoutSkipsDevice(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	fleet := []*device{
		{tenantID: "t", deviceID: "a", tempBase: 40, batteryPct: 80, dropoutLeft: 2},
		{tenantID: "t", deviceID: "b", tempBase: 40, batteryPct: 80},
	}

	msgs := buildRound(fleet, rng, 0, 0, time.Now().UTC())
	if len(msgs) != 1 {
		t.Fatalf("messages=%d, want 1", len(msgs))
	}
	if fleet[0].dropoutLeft != 1 {
		t.Errorf("dropoutLeft=%d, want 1", fleet[0].dropoutLeft)
	}

	var env domain.TelemetryEnvelope
	if err := json.Unmarshal(msgs[0].Value, &env); err != nil {
		t.Fatalf("decoding message: %v", err)
	}
	if env.DeviceID != "b" {
		t.Errorf("device=%s, want b", env.DeviceID)
	}
	if string(msgs[0].Key) != "t/b" {
		t.Errorf("key=%s, want t/b", msgs[0].Key)
	}
}

func TestBuildRound_DropoutRateStartsWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	fleet := []*device{{tenantID: "t", deviceID: "a", tempBase: 40, batteryPct: 80}}

	msgs := buildRound(fleet, rng, 0, 1.0, time.Now().UTC())
	if len(msgs) != 0 {
		t.Fatalf("messages=%d, want 0 when dropout always triggers", len(msgs))
	}
	if fleet[0].dropoutLeft < 10 {
		t.Errorf("dropoutLeft=%d, want at least 10", fleet[0].dropoutLeft)
	}
}
