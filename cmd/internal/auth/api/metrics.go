package authapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the auth counters. A nil *Metrics records nothing.
type Metrics struct {
	login   *prometheus.CounterVec
	refresh *prometheus.CounterVec
	logout  *prometheus.CounterVec
	gate    *prometheus.CounterVec
}

// NewMetrics creates the auth counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "auth",
			Name:      "login_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Refresh attempts by result.",
		}, []string{"result"}),
		logout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "auth",
			Name:      "logout_total",
			Help:      "Logout calls by whether a session was revoked.",
		}, []string{"result"}),
		gate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Subsystem: "auth",
			Name:      "credential_resolutions_total",
			Help:      "Request credential resolutions by source and result.",
		}, []string{"source", "result"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.login, m.refresh, m.logout, m.gate} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) incLogin(result string) {
	if m != nil {
		m.login.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) incRefresh(result string) {
	if m != nil {
		m.refresh.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) incLogout(result string) {
	if m != nil {
		m.logout.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) incGate(source Source, result string) {
	if m != nil {
		m.gate.WithLabelValues(string(source), result).Inc()
	}
}
