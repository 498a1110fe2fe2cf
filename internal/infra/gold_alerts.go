package infra

import (
	"log/slog"
	"sync"

	"marketwatch/internal/domain"
)

// GoldAlerts checks configured gold price targets against every new quote.
// Alert directions are fixed by the first quote seen for the region.
type GoldAlerts struct {
	mu       sync.Mutex
	settings []GoldAlertSetting
	alerts   map[domain.Region][]*domain.GoldAlert
}

// NewGoldAlerts creates the alert book. Settings with an unknown region are ignored.
func NewGoldAlerts(settings []GoldAlertSetting) *GoldAlerts {
	return &GoldAlerts{
		settings: settings,
		alerts:   make(map[domain.Region][]*domain.GoldAlert),
	}
}

// OnUpdate matches GoldWatcher's update callback and returns the alerts that fired.
func (g *GoldAlerts) OnUpdate(region domain.Region, quote GoldQuote) []domain.GoldAlert {
	g.mu.Lock()
	defer g.mu.Unlock()

	alerts, ok := g.alerts[region]
	if !ok {
		for _, s := range g.settings {
			if r, ok := domain.ParseRegion(s.Region); ok && r == region {
				alerts = append(alerts, domain.NewGoldAlert(region, s.Target, quote.Price, s.Persistent))
			}
		}
		g.alerts[region] = alerts
	}

	var fired []domain.GoldAlert
	for _, a := range alerts {
		if !a.CheckCondition(quote.Price) {
			continue
		}
		slog.Warn("Gold alert triggered",
			slog.String("region", region.String()),
			slog.String("direction", string(a.Direction)),
			slog.Int64("target", a.TargetPrice),
			slog.Int64("price", quote.Price))
		fired = append(fired, *a)
		if !a.IsPersistent {
			a.SetActive(false)
		}
	}
	return fired
}
