// Package metrics declares the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classifieds_http_requests_total",
		Help: "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "classifieds_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	ListingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classifieds_listings_created_total",
		Help: "Listings inserted, by moderation verdict.",
	}, []string{"moderation"})

	ConversationsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classifieds_conversations_started_total",
		Help: "Contact-seller requests, by outcome (created or reused).",
	}, []string{"outcome"})

	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classifieds_messages_sent_total",
		Help: "Messages inserted into conversation threads.",
	})

	UploadsCompensated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classifieds_uploads_compensated_total",
		Help: "Uploaded images deleted again because listing creation failed.",
	})

	OrphansDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classifieds_orphan_objects_deleted_total",
		Help: "Stored objects removed by the janitor because no listing references them.",
	})

	RealtimeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classifieds_realtime_clients",
		Help: "Websocket clients currently subscribed to a conversation.",
	})
)
