// Package events publishes a change event for every successful write to
// the document store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

type Type string

const (
	DocumentCreated  Type = "document.created"
	DocumentReplaced Type = "document.replaced"
	DocumentPatched  Type = "document.patched"
	ViewerRegistered Type = "viewer.registered"
)

type Event struct {
	Type       Type      `json:"type"`
	DocumentID string    `json:"documentId"`
	Revision   int64     `json:"revision"`
	Actor      string    `json:"actor,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers change events. Publish failures never undo the write
// that produced the event.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the log only.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, e Event) error {
	logrus.WithFields(logrus.Fields{
		"event":       e.Type,
		"document_id": e.DocumentID,
		"revision":    e.Revision,
		"actor":       e.Actor,
	}).Debug("Document event")
	return nil
}

func (LogPublisher) Close() error { return nil }

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaProducer connects a synchronous producer to brokers.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	kafkaCfg := sarama.NewConfig()
	// SyncProducer requires Return.Successes.
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	return sarama.NewSyncProducer(brokers, kafkaCfg)
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends e keyed by document id so one document's events stay in
// one partition and in order.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.DocumentID),
		Value: sarama.ByteEncoder(b),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish %s for %s: %w", e.Type, e.DocumentID, err)
	}
	logrus.WithFields(logrus.Fields{
		"document_id": e.DocumentID,
		"partition":   partition,
		"offset":      offset,
	}).Debug("Document event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
