package kafka

import (
	"encoding/json"
	"testing"

	"github.com/adred-codev/taghub/internal/tag"
)

type fakeSink struct {
	received []tag.QueryResult
}

func (s *fakeSink) ValueReceived(v tag.QueryResult) bool {
	s.received = append(s.received, v)
	return true
}

type fakeLogger struct {
	errors []string
}

func (l *fakeLogger) Error(msg string, kv ...any) {
	l.errors = append(l.errors, msg)
}

func TestDecodeAndDispatchForwardsValidRecord(t *testing.T) {
	sink := &fakeSink{}
	qr := tag.QueryResult{TagId: "A", TagName: "Pump Speed", Value: tag.NewBuilder().WithValue(tag.NumericVariant(12.5)).Build()}
	payload, err := json.Marshal(qr)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}

	ok := decodeAndDispatch(payload, sink, nil)
	if !ok {
		t.Fatalf("expected decodeAndDispatch to report success")
	}
	if len(sink.received) != 1 || sink.received[0].TagId != "A" {
		t.Fatalf("expected record A to be forwarded, got %+v", sink.received)
	}
}

func TestDecodeAndDispatchSkipsMalformedPayload(t *testing.T) {
	sink := &fakeSink{}
	logger := &fakeLogger{}

	ok := decodeAndDispatch([]byte("not json"), sink, logger)
	if ok {
		t.Fatalf("expected decodeAndDispatch to report failure on bad JSON")
	}
	if len(sink.received) != 0 {
		t.Fatalf("expected no records forwarded for a malformed payload")
	}
	if len(logger.errors) != 1 {
		t.Fatalf("expected the decode failure to be logged, got %d entries", len(logger.errors))
	}
}

func TestDecodeAndDispatchToleratesNilLogger(t *testing.T) {
	sink := &fakeSink{}
	if decodeAndDispatch([]byte("{"), sink, nil) {
		t.Fatalf("expected failure on truncated JSON")
	}
}

func TestNewConsumerRejectsMissingBrokers(t *testing.T) {
	_, err := NewConsumer(Config{Topic: "tags", Sink: &fakeSink{}})
	if err == nil {
		t.Fatalf("expected an error when no brokers are configured")
	}
}

func TestNewConsumerRejectsMissingTopic(t *testing.T) {
	_, err := NewConsumer(Config{Brokers: []string{"localhost:9092"}, Sink: &fakeSink{}})
	if err == nil {
		t.Fatalf("expected an error when no topic is configured")
	}
}

func TestNewConsumerRejectsMissingSink(t *testing.T) {
	_, err := NewConsumer(Config{Brokers: []string{"localhost:9092"}, Topic: "tags"})
	if err == nil {
		t.Fatalf("expected an error when no sink is configured")
	}
}
