package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"chronicle/audit"
)

type fakeProducer struct {
	produced []*kgo.Record
	err      error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.produced = append(f.produced, rs...)
	return kgo.ProduceResults{{Err: f.err}}
}

func TestKafka_OneMessagePerRecordKeyedByTable(t *testing.T) {
	producer := &fakeProducer{}
	k := &Kafka{client: producer, topic: "chronicle.audit"}

	records := []audit.Record{
		{ID: uuid.New(), ChangeType: "Added", TableName: "customers"},
		{ID: uuid.New(), ChangeType: "Deleted", TableName: "orders"},
	}
	require.NoError(t, k.Write(context.Background(), records))

	require.Len(t, producer.produced, 2)
	assert.Equal(t, "chronicle.audit", producer.produced[0].Topic)
	assert.Equal(t, []byte("customers"), producer.produced[0].Key)
	assert.Equal(t, []byte("orders"), producer.produced[1].Key)
	assert.Contains(t, string(producer.produced[0].Value), `"change_type":"Added"`)
}

func TestKafka_ProduceFailureSurfaces(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	k := &Kafka{client: producer, topic: "chronicle.audit"}

	err := k.Write(context.Background(), []audit.Record{{ID: uuid.New(), TableName: "customers"}})
	assert.Error(t, err)
}
