package events

import (
	"context"

	"github.com/IBM/sarama"
	jsoniter "github.com/json-iterator/go"

	"github.com/Astemirdum/library-kv-service/library/internal/model"
	"github.com/Astemirdum/library-kv-service/pkg/breaker"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Publisher interface {
	Publish(ctx context.Context, e model.EmpruntEvent) error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, model.EmpruntEvent) error { return nil }

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	cb       *breaker.Breaker
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string, cb *breaker.Breaker) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		topic:    topic,
		cb:       cb,
	}
}

// Publish sends the event keyed by loan id, so events of one loan stay ordered.
func (p *KafkaPublisher) Publish(_ context.Context, e model.EmpruntEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.EmpruntID),
		Value: sarama.ByteEncoder(data),
	}
	return p.cb.Call(func() error {
		_, _, err := p.producer.SendMessage(msg)
		return err
	})
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
