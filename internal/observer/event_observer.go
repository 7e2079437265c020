package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DocumentEvent describes one step of processing a card image.
type DocumentEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Side           string                 `json:"side,omitempty"`
	Source         string                 `json:"source,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of document event
type EventType string

const (
	DocumentReceived    EventType = "document_received"
	DocumentProcessed   EventType = "document_processed"
	DocumentFailed      EventType = "document_failed"
	ImageFetched        EventType = "image_fetched"
	ImageFetchFailed    EventType = "image_fetch_failed"
	ValidationCompleted EventType = "validation_completed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event DocumentEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event DocumentEvent)
}

// LoggingObserver logs document events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent logs the event at a level matching its type.
func (o *LoggingObserver) OnEvent(ctx context.Context, event DocumentEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"side":            event.Side,
		"source":          event.Source,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case DocumentReceived:
		entry.Info("Document received")
	case DocumentProcessed:
		entry.Info("Document processed")
	case DocumentFailed:
		entry.Error("Document processing failed")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	case ValidationCompleted:
		entry.Info("Validation completed")
	default:
		entry.Info("Document event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver aggregates processing counts and durations per side.
type MetricsObserver struct {
	mu        sync.RWMutex
	received  map[string]int64
	processed map[string]int64
	failed    map[string]int64
	totalTime map[string]time.Duration
}

// SideMetrics is the aggregate for one document side.
type SideMetrics struct {
	Received          int64         `json:"received"`
	Processed         int64         `json:"processed"`
	Failed            int64         `json:"failed"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		received:  make(map[string]int64),
		processed: make(map[string]int64),
		failed:    make(map[string]int64),
		totalTime: make(map[string]time.Duration),
	}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event DocumentEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case DocumentReceived:
		o.received[event.Side]++
	case DocumentProcessed:
		o.processed[event.Side]++
		o.totalTime[event.Side] += event.ProcessingTime
	case DocumentFailed:
		o.failed[event.Side]++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns a snapshot keyed by side.
func (o *MetricsObserver) GetMetrics() map[string]SideMetrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	sides := make(map[string]struct{})
	for _, m := range []map[string]int64{o.received, o.processed, o.failed} {
		for side := range m {
			sides[side] = struct{}{}
		}
	}

	out := make(map[string]SideMetrics, len(sides))
	for side := range sides {
		m := SideMetrics{
			Received:  o.received[side],
			Processed: o.processed[side],
			Failed:    o.failed[side],
		}
		if m.Processed > 0 {
			m.AvgProcessingTime = o.totalTime[side] / time.Duration(m.Processed)
		}
		out[side] = m
	}
	return out
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers the event to every observer concurrently.
// Observers must not rely on ctx outliving the request.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event DocumentEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.pending.Add(1)
		go func(obs Observer) {
			defer p.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until every notification sent so far has been handled.
func (p *EventPublisher) Wait() {
	p.pending.Wait()
}
