package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates entitlement lifecycle metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	Redemptions   *prometheus.CounterVec // outcome: success|not_found|already_used|invalid|error
	RewardGrants  *prometheus.CounterVec // outcome: success|quota_exceeded|error
	BanDenials    prometheus.Counter
	AdminLogins   *prometheus.CounterVec // outcome: success|failure|locked_out
	KeysActive    prometheus.Gauge
	KeysRedeemed  prometheus.Gauge
	UsersSeen     prometheus.Gauge
	WsSubscribers prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_redemptions_total",
			Help: "License key redemption attempts by outcome",
		}, []string{"outcome"}),
		RewardGrants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_reward_grants_total",
			Help: "Ad reward grant attempts by outcome",
		}, []string{"outcome"}),
		BanDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "keygate_ban_denials_total",
			Help: "Requests denied due to an active ban",
		}),
		AdminLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keygate_admin_logins_total",
			Help: "Admin login attempts by outcome",
		}, []string{"outcome"}),
		KeysActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keygate_keys_total",
			Help: "Total license keys in the registry",
		}),
		KeysRedeemed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keygate_keys_redeemed",
			Help: "Redeemed license keys in the registry",
		}),
		UsersSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keygate_users_seen",
			Help: "Distinct identities ever seen",
		}),
		WsSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "keygate_ws_subscribers",
			Help: "Currently connected websocket subscribers",
		}),
	}

	reg.MustRegister(
		c.Redemptions, c.RewardGrants, c.BanDenials, c.AdminLogins,
		c.KeysActive, c.KeysRedeemed, c.UsersSeen, c.WsSubscribers,
	)
	return c
}

// Handler exposes the registry for /metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
