package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is a point-in-time snapshot of the coordination core.
type MonitoringStats struct {
	SessionsCreated         uint64  `json:"sessions_created"`
	SessionsCompleted       uint64  `json:"sessions_completed"`
	MessagesStored          uint64  `json:"messages_stored"`
	NotificationsDispatched uint64  `json:"notifications_dispatched"`
	PushFailures            uint64  `json:"push_failures"`
	BookingConflicts        uint64  `json:"booking_conflicts"`
	HeartbeatsApplied       uint64  `json:"heartbeats_applied"`
	AllocMemMb              uint64  `json:"alloc_mem_mb"`
	NumGC                   uint32  `json:"num_gc"`
	ProcessRssBytes         uint64  `json:"process_rss_bytes"`
	ProcessCPUPercent       float64 `json:"process_cpu_percent"`
	ProcessStatus           string  `json:"process_status"`
}

// MonitoringManager aggregates real-time telemetry. Counters are atomic;
// the snapshot is refreshed by Listen and read via GetLatest.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats

	sessionsCreated         uint64
	sessionsCompleted       uint64
	messagesStored          uint64
	notificationsDispatched uint64
	pushFailures            uint64
	bookingConflicts        uint64
	heartbeatsApplied       uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (mm *MonitoringManager) IncrSessionsCreated()   { atomic.AddUint64(&mm.sessionsCreated, 1) }
func (mm *MonitoringManager) IncrSessionsCompleted() { atomic.AddUint64(&mm.sessionsCompleted, 1) }
func (mm *MonitoringManager) IncrMessagesStored()    { atomic.AddUint64(&mm.messagesStored, 1) }
func (mm *MonitoringManager) IncrNotificationsDispatched() {
	atomic.AddUint64(&mm.notificationsDispatched, 1)
}
func (mm *MonitoringManager) IncrPushFailures()      { atomic.AddUint64(&mm.pushFailures, 1) }
func (mm *MonitoringManager) IncrBookingConflicts()  { atomic.AddUint64(&mm.bookingConflicts, 1) }
func (mm *MonitoringManager) IncrHeartbeatsApplied() { atomic.AddUint64(&mm.heartbeatsApplied, 1) }

// UpdateProcess merges an external process sample into the snapshot.
func (mm *MonitoringManager) UpdateProcess(rss uint64, cpu float64, status string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latestStats.ProcessRssBytes = rss
	mm.latestStats.ProcessCPUPercent = cpu
	mm.latestStats.ProcessStatus = status
}

// Listen refreshes the snapshot on a fixed cadence until ctx is done.
func (mm *MonitoringManager) Listen(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mm.log.Info("Monitoring manager stopped")
			return
		case <-ticker.C:
			mm.updateStats()
		}
	}
}

func (mm *MonitoringManager) updateStats() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.latestStats.SessionsCreated = atomic.LoadUint64(&mm.sessionsCreated)
	mm.latestStats.SessionsCompleted = atomic.LoadUint64(&mm.sessionsCompleted)
	mm.latestStats.MessagesStored = atomic.LoadUint64(&mm.messagesStored)
	mm.latestStats.NotificationsDispatched = atomic.LoadUint64(&mm.notificationsDispatched)
	mm.latestStats.PushFailures = atomic.LoadUint64(&mm.pushFailures)
	mm.latestStats.BookingConflicts = atomic.LoadUint64(&mm.bookingConflicts)
	mm.latestStats.HeartbeatsApplied = atomic.LoadUint64(&mm.heartbeatsApplied)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC

	mm.log.Debug("Stats refreshed",
		"sessions_created", mm.latestStats.SessionsCreated,
		"messages_stored", mm.latestStats.MessagesStored,
		"notifications", mm.latestStats.NotificationsDispatched,
		"mem_mb", mm.latestStats.AllocMemMb,
	)
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
