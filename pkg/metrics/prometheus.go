// Package metrics provides Prometheus metrics for the squad queue service.
//
// A single package-level Manager owns the registry. Components record through
// the exported helper functions so call sites stay one-liners.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket boundaries in milliseconds.
var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// Manager owns all metric vectors and the registry they are registered on.
type Manager struct {
	registry *prometheus.Registry

	// Event lifecycle
	eventsScheduled prometheus.Counter
	eventsClosed    *prometheus.CounterVec
	eventsAnnulled  prometheus.Counter
	eventsArchived  prometheus.Counter
	eventConflicts  prometheus.Counter

	// Roster
	rosterJoins      *prometheus.CounterVec
	rosterDrops      prometheus.Counter
	rosterRejections *prometheus.CounterVec
	registeredTeams  prometheus.Gauge

	// Room assignment
	roomsAssigned    prometheus.Counter
	roomsCancelled   *prometheus.CounterVec
	assignmentStatus *prometheus.CounterVec
	roomRatingSpread prometheus.Histogram

	// Format votes
	votesCast    *prometheus.CounterVec
	votesDecided *prometheus.CounterVec

	// Rating provider
	ratingRefreshes      prometheus.Counter
	ratingRefreshErrors  prometheus.Counter
	ratingPoolSize       prometheus.Gauge

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors by component
	componentErrors *prometheus.CounterVec

	// Settings store
	settingsWrites prometheus.Counter
}

var defaultManager *Manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	defaultManager = NewManager()
}

// NewManager creates a Manager with all vectors registered on a fresh registry.
func NewManager() *Manager {
	m := &Manager{registry: prometheus.NewRegistry()}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	m.eventsScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "squadqueue_events_scheduled_total",
		Help: "Number of events created by the scheduler.",
	})
	m.eventsClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squadqueue_events_closed_total",
		Help: "Number of events closed, by close reason.",
	}, []string{"reason"})
	m.eventsAnnulled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "squadqueue_events_annulled_total",
		Help: "Number of events annulled by an operator.",
	})
	m.eventsArchived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "squadqueue_events_archived_total",
		Help: "Number of events moved to the archive.",
	})
	m.eventConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "squadqueue_event_conflicts_total",
		Help: "Number of scheduled events dropped because another event was gathering.",
	})

	m.rosterJoins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squadqueue_roster_joins_total",
		Help: "Number of accepted joins, by transition kind.",
	}, []string{"transition"})
	m.rosterDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "squadqueue_roster_drops_total",
		Help: "Number of accepted drops.",
	})
	m.rosterRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squadqueue_roster_rejections_total",
		Help: "Number of rejected roster mutations, by reason.",
	}, []string{"reason"})
	m.registeredTeams = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "squadqueue_registered_teams",
		Help: "Confirmed teams registered for the gathering event.",
	})

	m.roomsAssigned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "squadqueue_rooms_assigned_total",
		Help: "Number of rooms seated at event close.",
	})
	m.roomsCancelled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squadqueue_rooms_cancelled_total",
		Help: "Number of rooms cancelled, by reason.",
	}, []string{"reason"})
	m.assignmentStatus = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squadqueue_assignment_status_total",
		Help: "Assignment runs by resulting status code.",
	}, []string{"status"})
	m.roomRatingSpread = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "squadqueue_room_rating_spread",
		Help:    "Adjusted rating spread of seated rooms.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000},
	})

	m.votesCast = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squadqueue_votes_cast_total",
		Help: "Number of format votes cast, by format.",
	}, []string{"format"})
	m.votesDecided = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squadqueue_votes_decided_total",
		Help: "Number of rooms with a decided format, by format and trigger.",
	}, []string{"format", "trigger"})

	m.ratingRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "squadqueue_rating_refreshes_total",
		Help: "Number of successful rating refresh cycles.",
	})
	m.ratingRefreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "squadqueue_rating_refresh_errors_total",
		Help: "Number of failed rating refresh attempts (including retries).",
	})
	m.ratingPoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "squadqueue_rating_pool_size",
		Help: "Number of identities in the rating cache.",
	})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squadqueue_http_requests_total",
		Help: "HTTP requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "squadqueue_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds.",
		Buckets: latencyBuckets,
	}, []string{"endpoint", "method"})

	m.componentErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "squadqueue_errors_total",
		Help: "Errors by component and type.",
	}, []string{"component", "type"})

	m.settingsWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "squadqueue_settings_writes_total",
		Help: "Number of settings snapshot rewrites.",
	})

	m.registry.MustRegister(
		m.eventsScheduled, m.eventsClosed, m.eventsAnnulled, m.eventsArchived, m.eventConflicts,
		m.rosterJoins, m.rosterDrops, m.rosterRejections, m.registeredTeams,
		m.roomsAssigned, m.roomsCancelled, m.assignmentStatus, m.roomRatingSpread,
		m.votesCast, m.votesDecided,
		m.ratingRefreshes, m.ratingRefreshErrors, m.ratingPoolSize,
		m.httpRequests, m.httpRequestDuration,
		m.componentErrors,
		m.settingsWrites,
	)
}

// Handler returns an http.Handler serving the manager's registry.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Event lifecycle helpers.

func RecordEventScheduled()            { defaultManager.eventsScheduled.Inc() }
func RecordEventClosed(reason string)  { defaultManager.eventsClosed.WithLabelValues(reason).Inc() }
func RecordEventAnnulled()             { defaultManager.eventsAnnulled.Inc() }
func RecordEventArchived()             { defaultManager.eventsArchived.Inc() }
func RecordEventConflict()             { defaultManager.eventConflicts.Inc() }

// Roster helpers.

func RecordJoin(transition string)     { defaultManager.rosterJoins.WithLabelValues(transition).Inc() }
func RecordDrop()                      { defaultManager.rosterDrops.Inc() }
func RecordRosterRejection(r string)   { defaultManager.rosterRejections.WithLabelValues(r).Inc() }
func UpdateRegisteredTeams(count int)  { defaultManager.registeredTeams.Set(float64(count)) }

// Room assignment helpers.

func RecordRoomAssigned()              { defaultManager.roomsAssigned.Inc() }
func RecordRoomCancelled(reason string) {
	defaultManager.roomsCancelled.WithLabelValues(reason).Inc()
}
func RecordAssignmentStatus(status string) {
	defaultManager.assignmentStatus.WithLabelValues(status).Inc()
}
func RecordRoomRatingSpread(spread float64) { defaultManager.roomRatingSpread.Observe(spread) }

// Vote helpers.

func RecordVoteCast(format string) { defaultManager.votesCast.WithLabelValues(format).Inc() }
func RecordVoteDecided(format, trigger string) {
	defaultManager.votesDecided.WithLabelValues(format, trigger).Inc()
}

// Rating provider helpers.

func RecordRatingRefresh()          { defaultManager.ratingRefreshes.Inc() }
func RecordRatingRefreshError()     { defaultManager.ratingRefreshErrors.Inc() }
func UpdateRatingPoolSize(size int) { defaultManager.ratingPoolSize.Set(float64(size)) }

// HTTP helpers.

func RecordHTTPRequest(endpoint, method, status string) {
	defaultManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, durationMs float64) {
	defaultManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

// Error helpers.

func RecordErrorByComponent(component, errorType string) {
	defaultManager.componentErrors.WithLabelValues(component, errorType).Inc()
}

// Settings helpers.

func RecordSettingsWrite() { defaultManager.settingsWrites.Inc() }

// Handler returns the HTTP handler for the default registry.
func Handler() http.Handler { return defaultManager.Handler() }

// GetRegistry exposes the default registry for test assertions.
func GetRegistry() *prometheus.Registry { return defaultManager.registry }
