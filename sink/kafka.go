package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"chronicle/audit"
)

// kafkaProducer is the slice of *kgo.Client the sink uses.
type kafkaProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Kafka publishes committed audit records to a topic, one message per
// record, keyed by table name so consumers see per-table ordering.
type Kafka struct {
	client kafkaProducer
	topic  string
}

func NewKafka(client *kgo.Client, topic string) *Kafka {
	return &Kafka{client: client, topic: topic}
}

func (k *Kafka) Write(ctx context.Context, records []audit.Record) error {
	msgs := make([]*kgo.Record, 0, len(records))
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal audit record %s: %w", rec.ID, err)
		}
		msgs = append(msgs, &kgo.Record{
			Topic: k.topic,
			Key:   []byte(rec.TableName),
			Value: payload,
		})
	}
	if err := k.client.ProduceSync(ctx, msgs...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit records: %w", err)
	}
	return nil
}
