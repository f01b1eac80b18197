package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glowbook",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by status.",
		},
		[]string{"status"},
	)

	reservationTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glowbook",
			Name:      "reservation_transition_total",
			Help:      "Count of reservation status transitions by target status.",
		},
		[]string{"to"},
	)

	slotConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "glowbook",
			Name:      "slot_conflict_total",
			Help:      "Count of creates rejected because the slot was taken.",
		},
	)

	noShowsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "glowbook",
			Name:      "no_show_swept_total",
			Help:      "Count of confirmed reservations marked no_show by the sweep.",
		},
	)

	outboxDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glowbook",
			Name:      "outbox_delivered_total",
			Help:      "Count of outbox events by delivery outcome.",
		},
		[]string{"outcome"},
	)

	availabilityRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "glowbook",
			Name:      "availability_request_total",
			Help:      "Count of availability lookups by cache outcome.",
		},
		[]string{"cache"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationCreated,
			reservationTransition,
			slotConflicts,
			noShowsSwept,
			outboxDelivered,
			availabilityRequests,
		)
	})
}

func IncReservationCreated(status string) {
	reservationCreated.WithLabelValues(status).Inc()
}

func IncReservationTransition(to string) {
	reservationTransition.WithLabelValues(to).Inc()
}

func IncSlotConflict() {
	slotConflicts.Inc()
}

func IncNoShowSwept() {
	noShowsSwept.Inc()
}

func IncOutboxDelivered(outcome string) {
	outboxDelivered.WithLabelValues(outcome).Inc()
}

func IncAvailabilityRequest(cache string) {
	availabilityRequests.WithLabelValues(cache).Inc()
}
