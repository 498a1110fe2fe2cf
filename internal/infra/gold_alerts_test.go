package infra

import (
	"testing"

	"marketwatch/internal/domain"
)

func TestGoldAlerts_OnUpdate(t *testing.T) {
	alerts := NewGoldAlerts([]GoldAlertSetting{
		{Region: "europe", Target: 5000},
		{Region: "europe", Target: 4000, Persistent: true},
		{Region: "west", Target: 1},
	})

	// first quote fixes directions: 5000 is UP, 4000 is DOWN
	if fired := alerts.OnUpdate(domain.RegionEurope, GoldQuote{Price: 4500}); len(fired) != 0 {
		t.Fatalf("Nothing should fire at 4500, got %+v", fired)
	}

	fired := alerts.OnUpdate(domain.RegionEurope, GoldQuote{Price: 5200})
	if len(fired) != 1 || fired[0].TargetPrice != 5000 || fired[0].Direction != domain.AlertUp {
		t.Fatalf("Expected the UP alert to fire, got %+v", fired)
	}
	if fired := alerts.OnUpdate(domain.RegionEurope, GoldQuote{Price: 5300}); len(fired) != 0 {
		t.Errorf("One-shot alert fired twice: %+v", fired)
	}

	for i := 0; i < 2; i++ {
		fired = alerts.OnUpdate(domain.RegionEurope, GoldQuote{Price: 3900})
		if len(fired) != 1 || fired[0].TargetPrice != 4000 {
			t.Errorf("Persistent DOWN alert should fire every time, got %+v", fired)
		}
	}

	if fired := alerts.OnUpdate(domain.RegionEast, GoldQuote{Price: 1}); len(fired) != 0 {
		t.Errorf("No alerts configured for east, got %+v", fired)
	}
}
