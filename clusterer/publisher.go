package clusterer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ClusterSummary is the payload published after every pass
type ClusterSummary struct {
	Zoom          int            `json:"zoom"`
	BBox          []float64      `json:"bbox,omitempty"`
	TotalClusters int            `json:"totalClusters"`
	TotalMarkers  int            `json:"totalMarkers"`
	Clusters      []ClusterEntry `json:"clusters"`
	Timestamp     int64          `json:"timestamp"`
}

// ClusterEntry describes one visible cluster
type ClusterEntry struct {
	ID     int     `json:"id"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Count  int     `json:"count"`
	Bucket int     `json:"bucket"`
	Label  string  `json:"label"`
}

// Publisher publishes cluster summaries to <prefix>/clusters
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	last          *ClusterSummary
	mu            sync.RWMutex

	// pending holds at most the newest snapshot not yet published
	pending chan Snapshot
}

// NewPublisher creates a publisher. An empty prefix falls back to "geocluster".
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = "geocluster"
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true,
		pending:       make(chan Snapshot, 1),
	}
}

// Enqueue queues snap for Run, replacing any snapshot still waiting.
// It never blocks, so it is safe to call from an OnPass hook.
func (p *Publisher) Enqueue(snap Snapshot) {
	for {
		select {
		case p.pending <- snap:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

// Run publishes queued snapshots one at a time until ctx is done. A retained
// summary is therefore never overwritten by an older one.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-p.pending:
			if err := p.PublishClusters(snap); err != nil {
				log.Printf("[MQTT] publishing clusters: %v", err)
			}
		}
	}
}

// Topic returns the summary topic
func (p *Publisher) Topic() string {
	return p.publishPrefix + "/clusters"
}

// Summarize builds the summary of a snapshot
func Summarize(snap Snapshot) ClusterSummary {
	visible := snap.VisibleClusters()
	summary := ClusterSummary{
		Zoom:          snap.Zoom,
		BBox:          snap.BBox,
		TotalClusters: len(snap.Clusters),
		TotalMarkers:  snap.TotalMarkers,
		Clusters:      make([]ClusterEntry, 0, len(visible)),
		Timestamp:     time.Now().Unix(),
	}
	for _, c := range visible {
		summary.Clusters = append(summary.Clusters, ClusterEntry{
			ID:     c.ID,
			Lat:    c.Center.Lat(),
			Lng:    c.Center.Lon(),
			Count:  c.Size,
			Bucket: c.Sums.Index,
			Label:  c.Sums.Text,
		})
	}
	return summary
}

// PublishClusters publishes the summary of snap
func (p *Publisher) PublishClusters(snap Snapshot) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	summary := Summarize(snap)
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshaling cluster summary: %w", err)
	}

	topic := p.Topic()
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	p.mu.Lock()
	p.last = &summary
	p.mu.Unlock()
	return nil
}

// Last returns the most recently published summary
func (p *Publisher) Last() (ClusterSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return ClusterSummary{}, false
	}
	return *p.last, true
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether summaries are retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
