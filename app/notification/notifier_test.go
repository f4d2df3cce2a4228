package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestKafkaNotifierPublishesJob(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "lms.email.jobs" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "sari@example.com" {
			return errors.New("unexpected key " + string(key))
		}
		raw, _ := msg.Value.Encode()
		var job EmailJob
		if err := json.Unmarshal(raw, &job); err != nil {
			return err
		}
		if job.Template != TemplatePaymentSuccess || job.ID == "" || job.Data["order_id"] != "LMS-1" {
			return errors.New("unexpected job payload " + string(raw))
		}
		return nil
	})

	notifier := NewKafkaNotifier(producer, "lms.email.jobs")
	err := notifier.Enqueue(context.Background(), EmailJob{
		Template: TemplatePaymentSuccess,
		To:       "sari@example.com",
		Name:     "Sari",
		Data:     map[string]string{"order_id": "LMS-1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := notifier.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestKafkaNotifierReturnsProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	notifier := NewKafkaNotifier(producer, "lms.email.jobs")
	err := notifier.Enqueue(context.Background(), EmailJob{Template: TemplatePaymentInstructions, To: "sari@example.com"})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	_ = notifier.Close()
}

func TestNewSyncProducerRequiresBrokers(t *testing.T) {
	if _, err := NewSyncProducer(nil); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestLazyKafkaNotifierRedialsAfterBrokerOutage(t *testing.T) {
	dials := 0
	var producer *mocks.SyncProducer
	notifier := NewLazyKafkaNotifier(func() (sarama.SyncProducer, error) {
		dials++
		if dials == 1 {
			return nil, sarama.ErrOutOfBrokers
		}
		cfg := mocks.NewTestConfig()
		cfg.Producer.Return.Successes = true
		producer = mocks.NewSyncProducer(t, cfg)
		producer.ExpectSendMessageAndSucceed()
		return producer, nil
	}, "lms.email.jobs", time.Minute)

	clock := time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC)
	notifier.now = func() time.Time { return clock }
	job := EmailJob{Template: TemplatePaymentSuccess, To: "sari@example.com"}

	if err := notifier.Enqueue(context.Background(), job); !errors.Is(err, ErrProducerUnavailable) {
		t.Fatalf("expected ErrProducerUnavailable, got %v", err)
	}
	if err := notifier.Enqueue(context.Background(), job); !errors.Is(err, ErrProducerUnavailable) {
		t.Fatalf("expected ErrProducerUnavailable inside the retry window, got %v", err)
	}
	if dials != 1 {
		t.Fatalf("expected a single dial inside the retry window, got %d", dials)
	}

	clock = clock.Add(time.Minute)
	if err := notifier.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("expected publish after reconnect, got %v", err)
	}
	if dials != 2 {
		t.Fatalf("expected a second dial, got %d", dials)
	}
	if err := notifier.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestLazyKafkaNotifierCloseWithoutProducer(t *testing.T) {
	notifier := NewLazyKafkaNotifier(func() (sarama.SyncProducer, error) {
		return nil, sarama.ErrOutOfBrokers
	}, "lms.email.jobs", 0)
	if err := notifier.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
