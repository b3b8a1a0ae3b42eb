package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbmirror_sync_total",
			Help: "Total entity sync operations",
		},
		[]string{"entity", "result"},
	)

	UploadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbmirror_upload_total",
			Help: "Total document uploads",
		},
		[]string{"result"},
	)

	BatchSyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kbmirror_batch_sync_duration_seconds",
			Help:    "Batch sync duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbmirror_gateway_requests_total",
			Help: "Total requests issued to remote instances",
		},
		[]string{"operation", "result"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbmirror_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kbmirror_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsUploaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kbmirror_documents_uploaded_total",
			Help: "Total documents successfully uploaded to remote instances",
		},
	)

	ChunksSynced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kbmirror_chunks_synced_total",
			Help: "Total chunks mirrored from remote instances",
		},
	)
)

func Init() {
	prometheus.MustRegister(SyncTotal)
	prometheus.MustRegister(UploadTotal)
	prometheus.MustRegister(BatchSyncDuration)
	prometheus.MustRegister(GatewayRequests)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsUploaded)
	prometheus.MustRegister(ChunksSynced)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
