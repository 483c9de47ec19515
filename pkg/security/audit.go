package security

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/chatterdocs/entbridge/pkg/config"
	"github.com/chatterdocs/entbridge/pkg/observability"
)

// auditDayFormat is the UTC calendar-day partition key suffix.
const auditDayFormat = "20060102"

// AuditEvent is one security event bound for the audit log.
type AuditEvent struct {
	Timestamp time.Time
	EventType string
	UserID    string
	ClientIP  string
	Success   bool
	Detail    map[string]interface{}
}

// AuditSummary aggregates audit activity over a trailing number of days.
type AuditSummary struct {
	TotalEvents      int            `json:"total_events"`
	SuccessfulLogins int            `json:"successful_logins"`
	FailedLogins     int            `json:"failed_logins"`
	ActiveUsers      int            `json:"active_users"`
	EventTypes       map[string]int `json:"event_types"`
}

// AuditRecorder appends security events to bounded, time-partitioned logs
// in the shared store. Writes go through an in-process bounded queue
// drained by a single background writer, so the hot authentication path
// never stalls on log persistence; when the queue is full the oldest
// pending event is dropped to make room. Store failures are logged and
// swallowed, never surfaced to the caller's auth result.
type AuditRecorder struct {
	redis   *redis.Client
	cfg     config.AuditConfig
	timeout time.Duration
	log     *logrus.Logger
	metrics *observability.Metrics

	queue chan AuditEvent
	done  chan struct{}
	once  sync.Once
}

// NewAuditRecorder creates the recorder and starts its writer goroutine.
// metrics may be nil.
func NewAuditRecorder(client *redis.Client, cfg config.AuditConfig, timeout time.Duration, log *logrus.Logger, metrics *observability.Metrics) *AuditRecorder {
	r := &AuditRecorder{
		redis:   client,
		cfg:     cfg,
		timeout: timeout,
		log:     log,
		metrics: metrics,
		queue:   make(chan AuditEvent, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues a security event without blocking. Overflow drops the
// oldest queued event, not the newest.
func (r *AuditRecorder) Record(eventType, userID string, detail map[string]interface{}, success bool, clientIP string) {
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		ClientIP:  clientIP,
		Success:   success,
		Detail:    detail,
	}

	// Mirror every audit event into the application log as well
	level := logrus.InfoLevel
	if !success {
		level = logrus.WarnLevel
	}
	r.log.WithFields(logrus.Fields{
		"event":   eventType,
		"user_id": userID,
		"ip":      clientIP,
		"success": success,
		"detail":  detail,
	}).Log(level, "security event")

	if r.metrics != nil {
		r.metrics.AuditEventsTotal.Inc()
	}

	select {
	case r.queue <- event:
		return
	default:
	}

	// Queue full: evict the oldest entry and retry once. A second failure
	// means the writer drained in between and the send will succeed, or
	// the queue refilled and this event is the one dropped.
	select {
	case dropped := <-r.queue:
		r.log.WithField("event", dropped.EventType).Warn("audit queue full, dropped oldest event")
		if r.metrics != nil {
			r.metrics.AuditDroppedTotal.Inc()
		}
	default:
	}
	select {
	case r.queue <- event:
	default:
		r.log.WithField("event", eventType).Warn("audit queue full, event dropped")
		if r.metrics != nil {
			r.metrics.AuditDroppedTotal.Inc()
		}
	}
}

// Close drains and stops the writer. Pending events are flushed first.
func (r *AuditRecorder) Close() {
	r.once.Do(func() {
		close(r.queue)
		<-r.done
	})
}

func (r *AuditRecorder) run() {
	defer close(r.done)
	for event := range r.queue {
		if err := r.write(event); err != nil {
			// Swallowed: audit persistence must never affect auth results
			r.log.WithError(err).Warn("audit write failed")
		}
	}
}

func (r *AuditRecorder) write(event AuditEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	userID := event.UserID
	if userID == "" {
		userID = "unknown"
	}
	line := strings.Join([]string{
		strconv.FormatInt(event.Timestamp.Unix(), 10),
		event.EventType,
		userID,
		event.ClientIP,
		strconv.FormatBool(event.Success),
	}, "|")

	key := auditPrefix + event.Timestamp.Format(auditDayFormat)

	pipe := r.redis.TxPipeline()
	pipe.LPush(ctx, key, line)
	pipe.LTrim(ctx, key, 0, r.cfg.MaxEntriesPerDay-1)
	pipe.Expire(ctx, key, r.cfg.Retention)
	_, err := pipe.Exec(ctx)
	return err
}

// Summarize scans the trailing days' partitions and aggregates event
// counts, login outcomes, distinct active users and a per-type histogram.
// Malformed entries are skipped.
func (r *AuditRecorder) Summarize(ctx context.Context, days int) (*AuditSummary, error) {
	summary := &AuditSummary{EventTypes: make(map[string]int)}
	activeUsers := make(map[string]struct{})

	now := time.Now().UTC()
	for i := 0; i < days; i++ {
		key := auditPrefix + now.AddDate(0, 0, -i).Format(auditDayFormat)

		dayCtx, cancel := context.WithTimeout(ctx, r.timeout)
		lines, err := r.redis.LRange(dayCtx, key, 0, -1).Result()
		cancel()
		if err != nil {
			return nil, err
		}

		for _, line := range lines {
			parts := strings.Split(line, "|")
			if len(parts) < 5 {
				continue
			}
			eventType, userID, success := parts[1], parts[2], parts[4]

			summary.TotalEvents++
			summary.EventTypes[eventType]++

			if eventType == EventLogin {
				if success == "true" {
					summary.SuccessfulLogins++
					if userID != "unknown" {
						activeUsers[userID] = struct{}{}
					}
				} else {
					summary.FailedLogins++
				}
			}
		}
	}

	summary.ActiveUsers = len(activeUsers)
	return summary, nil
}
