package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-checkout/app/factory"
)

const (
	TemplatePaymentInstructions = "payment_instructions"
	TemplatePaymentSuccess      = "payment_success"
)

// EmailJob is the message consumed by the mailer service.
type EmailJob struct {
	ID        string            `json:"id"`
	Template  string            `json:"template"`
	To        string            `json:"to"`
	Name      string            `json:"name"`
	Data      map[string]string `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
}

// ErrProducerUnavailable is returned while no Kafka producer could be built.
var ErrProducerUnavailable = errors.New("kafka producer unavailable")

// ProducerFactory dials a new producer. It is called again after a failed attempt.
type ProducerFactory func() (sarama.SyncProducer, error)

type KafkaNotifier struct {
	mu          sync.Mutex
	producer    sarama.SyncProducer
	connect     ProducerFactory
	retryAfter  time.Duration
	nextAttempt time.Time
	now         func() time.Time
	topic       string
	logger      logrus.FieldLogger
}

func NewKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		producer: producer,
		now:      time.Now,
		topic:    topic,
		logger:   factory.NewModuleLogger("email-notifier"),
	}
}

// NewLazyKafkaNotifier builds the producer on first use and re-dials at most once per retryAfter
// while the brokers stay unreachable.
func NewLazyKafkaNotifier(connect ProducerFactory, topic string, retryAfter time.Duration) *KafkaNotifier {
	if retryAfter <= 0 {
		retryAfter = 30 * time.Second
	}
	n := NewKafkaNotifier(nil, topic)
	n.connect = connect
	n.retryAfter = retryAfter
	return n
}

// Connect dials the producer now if it is not connected yet.
func (n *KafkaNotifier) Connect() error {
	_, err := n.currentProducer()
	return err
}

func (n *KafkaNotifier) currentProducer() (sarama.SyncProducer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.producer != nil {
		return n.producer, nil
	}
	if n.connect == nil {
		return nil, ErrProducerUnavailable
	}
	now := n.now()
	if now.Before(n.nextAttempt) {
		return nil, ErrProducerUnavailable
	}
	producer, err := n.connect()
	if err != nil {
		n.nextAttempt = now.Add(n.retryAfter)
		return nil, fmt.Errorf("%w: %v", ErrProducerUnavailable, err)
	}
	n.producer = producer
	n.logger.Info("Kafka producer connected")
	return producer, nil
}

func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Idempotent = false
	return sarama.NewSyncProducer(brokers, cfg)
}

// Enqueue publishes the job keyed by recipient so jobs for one user stay ordered.
func (n *KafkaNotifier) Enqueue(ctx context.Context, job EmailJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(job.To),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("template"), Value: []byte(job.Template)},
			{Key: []byte("job_id"), Value: []byte(job.ID)},
		},
	}

	producer, err := n.currentProducer()
	if err != nil {
		return err
	}
	partition, offset, err := producer.SendMessage(msg)
	if err != nil {
		return err
	}
	factory.LoggerWithRequestContext(n.logger, ctx).WithFields(logrus.Fields{
		"template":  job.Template,
		"job_id":    job.ID,
		"partition": partition,
		"offset":    offset,
	}).Debug("Email job published")
	return nil
}

func (n *KafkaNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.producer == nil {
		return nil
	}
	return n.producer.Close()
}
