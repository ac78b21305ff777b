// Package metrics provides observability for the game server.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance and gameplay metrics.
type Collector struct {
	// Session metrics
	SessionsStarted  int64
	SessionsActive   int64
	SessionsFinished int64

	// Solicitation metrics
	SolicitationsIssued   int64
	SolicitationTimeouts  int64
	SolicitationLatSum    int64 // nanoseconds
	SolicitationLatMax    int64
	InvalidTargetRejected int64

	// Gameplay metrics
	DeathsByWolves int64
	DeathsBySolo   int64
	DeathsByVote   int64
	SavesApplied   int64

	// Event metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesIn        int64
	WSMessagesOut       int64
	WSErrors            int64

	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordSessionStart records a session spinning up.
func (c *Collector) RecordSessionStart() {
	atomic.AddInt64(&c.SessionsStarted, 1)
	atomic.AddInt64(&c.SessionsActive, 1)
}

// RecordSessionEnd records a session finishing for any reason.
func (c *Collector) RecordSessionEnd() {
	atomic.AddInt64(&c.SessionsFinished, 1)
	atomic.AddInt64(&c.SessionsActive, -1)
}

// RecordSolicitation records one completed actor solicitation.
func (c *Collector) RecordSolicitation(latency time.Duration, timedOut bool) {
	atomic.AddInt64(&c.SolicitationsIssued, 1)
	atomic.AddInt64(&c.SolicitationLatSum, int64(latency))
	if int64(latency) > atomic.LoadInt64(&c.SolicitationLatMax) {
		atomic.StoreInt64(&c.SolicitationLatMax, int64(latency))
	}
	if timedOut {
		atomic.AddInt64(&c.SolicitationTimeouts, 1)
	}
}

// RecordInvalidTarget records a rejected pick.
func (c *Collector) RecordInvalidTarget() {
	atomic.AddInt64(&c.InvalidTargetRejected, 1)
}

// RecordDeath records a resolved death by killer group.
func (c *Collector) RecordDeath(group string) {
	switch group {
	case "wolves":
		atomic.AddInt64(&c.DeathsByWolves, 1)
	case "vote":
		atomic.AddInt64(&c.DeathsByVote, 1)
	default:
		atomic.AddInt64(&c.DeathsBySolo, 1)
	}
}

// RecordSave records a protection clearing a pending kill.
func (c *Collector) RecordSave() {
	atomic.AddInt64(&c.SavesApplied, 1)
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if incoming {
		atomic.AddInt64(&c.WSMessagesIn, 1)
	} else {
		atomic.AddInt64(&c.WSMessagesOut, 1)
	}
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	issued := atomic.LoadInt64(&c.SolicitationsIssued)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)

	var solAvg, eventAvg float64
	if issued > 0 {
		solAvg = float64(atomic.LoadInt64(&c.SolicitationLatSum)) / float64(issued) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"sessions": map[string]interface{}{
			"started":  atomic.LoadInt64(&c.SessionsStarted),
			"active":   atomic.LoadInt64(&c.SessionsActive),
			"finished": atomic.LoadInt64(&c.SessionsFinished),
		},

		"solicitations": map[string]interface{}{
			"issued":          issued,
			"timeouts":        atomic.LoadInt64(&c.SolicitationTimeouts),
			"invalid_targets": atomic.LoadInt64(&c.InvalidTargetRejected),
			"avg_latency_ms":  solAvg,
			"max_latency_ms":  float64(atomic.LoadInt64(&c.SolicitationLatMax)) / 1e6,
		},

		"gameplay": map[string]interface{}{
			"deaths_wolves": atomic.LoadInt64(&c.DeathsByWolves),
			"deaths_solo":   atomic.LoadInt64(&c.DeathsBySolo),
			"deaths_vote":   atomic.LoadInt64(&c.DeathsByVote),
			"saves":         atomic.LoadInt64(&c.SavesApplied),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_in":        atomic.LoadInt64(&c.WSMessagesIn),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP wolfden_sessions_active Active game sessions\n")
		fmt.Fprintf(w, "# TYPE wolfden_sessions_active gauge\n")
		fmt.Fprintf(w, "wolfden_sessions_active %d\n\n", atomic.LoadInt64(&c.SessionsActive))

		fmt.Fprintf(w, "# HELP wolfden_sessions_started Total sessions started\n")
		fmt.Fprintf(w, "# TYPE wolfden_sessions_started counter\n")
		fmt.Fprintf(w, "wolfden_sessions_started %d\n\n", atomic.LoadInt64(&c.SessionsStarted))

		fmt.Fprintf(w, "# HELP wolfden_solicitations_total Total actor solicitations\n")
		fmt.Fprintf(w, "# TYPE wolfden_solicitations_total counter\n")
		fmt.Fprintf(w, "wolfden_solicitations_total %d\n\n", atomic.LoadInt64(&c.SolicitationsIssued))

		fmt.Fprintf(w, "# HELP wolfden_solicitation_timeouts Total solicitation timeouts\n")
		fmt.Fprintf(w, "# TYPE wolfden_solicitation_timeouts counter\n")
		fmt.Fprintf(w, "wolfden_solicitation_timeouts %d\n\n", atomic.LoadInt64(&c.SolicitationTimeouts))

		fmt.Fprintf(w, "# HELP wolfden_deaths_total Total deaths by killer group\n")
		fmt.Fprintf(w, "# TYPE wolfden_deaths_total counter\n")
		fmt.Fprintf(w, "wolfden_deaths_total{group=\"wolves\"} %d\n", atomic.LoadInt64(&c.DeathsByWolves))
		fmt.Fprintf(w, "wolfden_deaths_total{group=\"solo\"} %d\n", atomic.LoadInt64(&c.DeathsBySolo))
		fmt.Fprintf(w, "wolfden_deaths_total{group=\"vote\"} %d\n\n", atomic.LoadInt64(&c.DeathsByVote))

		fmt.Fprintf(w, "# HELP wolfden_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE wolfden_ws_connections gauge\n")
		fmt.Fprintf(w, "wolfden_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP wolfden_ws_messages_total Total WebSocket messages\n")
		fmt.Fprintf(w, "# TYPE wolfden_ws_messages_total counter\n")
		fmt.Fprintf(w, "wolfden_ws_messages_total{direction=\"in\"} %d\n", atomic.LoadInt64(&c.WSMessagesIn))
		fmt.Fprintf(w, "wolfden_ws_messages_total{direction=\"out\"} %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
