// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for role checks and mutations.
var (
	// authorizationChecks counts RequireRole outcomes by role.
	authorizationChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_authorization_checks_total",
		Help: "Total number of role authorization checks",
	}, []string{"role", "result"})

	roleChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_role_changes_total",
		Help: "Total number of committed role binding changes",
	}, []string{"role", "operation"})

	transferTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_transfer_transitions_total",
		Help: "Total number of delayed transfer state transitions",
	}, []string{"role", "transition"})

	// emergencyModeGauge mirrors the last committed emergency flag (0=off, 1=on).
	emergencyModeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warden_emergency_mode",
		Help: "Emergency mode status (0=off, 1=on)",
	})
)

func recordCheck(r Role, allowed bool) {
	result := "denied"
	if allowed {
		result = "allowed"
	}
	authorizationChecks.WithLabelValues(r.String(), result).Inc()
}

// recordEvents updates metrics for a batch of committed events.
func recordEvents(events []Event) {
	for _, e := range events {
		switch e.Type {
		case EventRoleSet:
			roleChanges.WithLabelValues(e.Role.String(), "bind").Inc()
		case EventRoleHoldersSet:
			roleChanges.WithLabelValues(e.Role.String(), "bind_all").Inc()
		case EventTransferCommitted:
			transferTransitions.WithLabelValues(e.Role.String(), "commit").Inc()
		case EventTransferApplied:
			transferTransitions.WithLabelValues(e.Role.String(), "apply").Inc()
		case EventTransferReverted:
			transferTransitions.WithLabelValues(e.Role.String(), "revert").Inc()
		case EventEmergencyModeSet:
			if e.Value {
				emergencyModeGauge.Set(1)
			} else {
				emergencyModeGauge.Set(0)
			}
		case EventAdminInitialized:
		}
	}
}
