package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingest_runs_total",
		Help: "Total number of ingestion runs by terminal status",
	}, []string{"status"})

	IngestionRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_ingest_running",
		Help: "1 while an ingestion run is active",
	})

	ProductsParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_ingest_products_parsed_total",
		Help: "Total number of product pages fetched and extracted",
	})

	ProductsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_ingest_products_added_total",
		Help: "Total number of catalog entries created by ingestion",
	})

	ProductsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_ingest_products_updated_total",
		Help: "Total number of catalog entries updated by ingestion",
	})

	IngestionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingest_errors_total",
		Help: "Total number of per-item ingestion errors",
	}, []string{"stage"})

	ImagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingest_images_total",
		Help: "Image download outcomes",
	}, []string{"result"})

	FetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_ingest_fetch_latency_seconds",
		Help:    "Latency of page fetches",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
