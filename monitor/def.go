package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	ImagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "converter_images_retained_total",
		Help: "Images copied into the training layout",
	}, []string{"split"})

	AnnotationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "converter_annotations_retained_total",
		Help: "Label lines written",
	}, []string{"split"})

	DroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "converter_dropped_total",
		Help: "Instances or files dropped during conversion, by reason",
	}, []string{"reason"})

	FrameworkRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "framework_runs_total",
		Help: "External framework invocations, by command and outcome",
	}, []string{"command", "outcome"})

	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})

	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})
)

var (
	stateMu    sync.RWMutex
	stage      = "idle"
	stageSince = time.Now()
	counts     = map[string]int{}
)

// SetStage records what the process is doing, for /api/status.
func SetStage(name string) {
	stateMu.Lock()
	stage = name
	stageSince = time.Now()
	stateMu.Unlock()
}

// ObserveSplit adds one converted split to the counters.
func ObserveSplit(split string, images, annotations int, dropped map[string]int) {
	ImagesTotal.WithLabelValues(split).Add(float64(images))
	AnnotationsTotal.WithLabelValues(split).Add(float64(annotations))
	stateMu.Lock()
	counts["images"] += images
	counts["annotations"] += annotations
	for reason, n := range dropped {
		if n > 0 {
			DroppedTotal.WithLabelValues(reason).Add(float64(n))
			counts["dropped_"+reason] += n
		}
	}
	stateMu.Unlock()
}

type Status struct {
	Stage  string         `json:"stage"`
	Since  time.Time      `json:"since"`
	Counts map[string]int `json:"counts"`
}

func CurrentStatus() Status {
	stateMu.RLock()
	defer stateMu.RUnlock()
	c := make(map[string]int, len(counts))
	for k, v := range counts {
		c[k] = v
	}
	return Status{Stage: stage, Since: stageSince, Counts: c}
}

func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(ImagesTotal, AnnotationsTotal, DroppedTotal, FrameworkRuns, memUsage, cpuUsage)
	return registry
}

// Router serves metrics and the run status.
func Router(registry *prometheus.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": CurrentStatus()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))
	return r
}

func checkProcessInfo(p *process.Process) {
	memInfo, err := p.MemoryInfo()
	if err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	cpuPercent, err := p.CPUPercent()
	if err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon serves the status endpoints on port until ctx is cancelled.
// It blocks; run it in a goroutine.
func StartMon(ctx context.Context, port int) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("inspect own process: %w", err)
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: Router(newRegistry()),
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-errCh:
			return fmt.Errorf("monitor server on %s: %w", srv.Addr, err)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case <-ticker.C:
			checkProcessInfo(p)
		}
	}
}
