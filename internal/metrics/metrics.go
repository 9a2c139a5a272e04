package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	channelPosts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shala",
			Name:      "channel_posts_total",
			Help:      "Count of channel posts by slot kind.",
		},
		[]string{"slot"},
	)

	channelDeletes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shala",
			Name:      "channel_deletes_total",
			Help:      "Count of channel message deletions by outcome.",
		},
		[]string{"outcome"},
	)

	signups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shala",
			Name:      "signups_total",
			Help:      "Count of sign-up attempts by result.",
		},
		[]string{"result"},
	)

	cancellations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shala",
			Name:      "cancellations_total",
			Help:      "Count of cancellation attempts by result.",
		},
		[]string{"result"},
	)

	adminEdits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shala",
			Name:      "admin_edits_total",
			Help:      "Count of admin schedule edits by kind.",
		},
		[]string{"kind"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(channelPosts, channelDeletes, signups, cancellations, adminEdits)
	})
}

func IncChannelPost(slot string) {
	channelPosts.WithLabelValues(slot).Inc()
}

func IncChannelDelete(outcome string) {
	channelDeletes.WithLabelValues(outcome).Inc()
}

func IncSignup(result string) {
	signups.WithLabelValues(result).Inc()
}

func IncCancellation(result string) {
	cancellations.WithLabelValues(result).Inc()
}

func IncAdminEdit(kind string) {
	adminEdits.WithLabelValues(kind).Inc()
}
