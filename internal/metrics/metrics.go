package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatcore"

// Recorder is a Prometheus-backed core.Recorder.
type Recorder struct {
	rooms     prometheus.Gauge
	members   prometheus.Gauge
	tasks     prometheus.Gauge
	published prometheus.Counter
	delivered prometheus.Counter
	dropped   prometheus.Counter
	failed    prometheus.Counter
}

// NewRecorder creates the broker metrics and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Number of rooms currently open.",
		}),
		members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "members",
			Help:      "Number of room memberships across all rooms.",
		}),
		tasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delivery_tasks",
			Help:      "Number of running delivery tasks.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Messages broadcast to a room.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Message copies rendered by delivery tasks.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Message copies skipped because a receiver fell behind.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Sink render failures.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.rooms, r.members, r.tasks, r.published, r.delivered, r.dropped, r.failed)
	}
	return r
}

func (r *Recorder) RoomCreated()             { r.rooms.Inc() }
func (r *Recorder) RoomRemoved()             { r.rooms.Dec() }
func (r *Recorder) MemberJoined()            { r.members.Inc() }
func (r *Recorder) MemberLeft()              { r.members.Dec() }
func (r *Recorder) DeliveryStarted()         { r.tasks.Inc() }
func (r *Recorder) DeliveryStopped()         { r.tasks.Dec() }
func (r *Recorder) MessagePublished()        { r.published.Inc() }
func (r *Recorder) MessageDelivered()        { r.delivered.Inc() }
func (r *Recorder) MessagesDropped(n uint64) { r.dropped.Add(float64(n)) }
func (r *Recorder) RenderFailed()            { r.failed.Inc() }

// Handler exposes the metrics gathered by g at /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
