package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPQueue carries reminder tasks through a durable RabbitMQ queue so several
// habitd instances can share the delivery work.
type AMQPQueue struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   amqp.Queue
	proc    *Processor
	workers int
	log     *zap.Logger

	pubMu  sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// DialAMQP connects to the broker and declares queueName.
func DialAMQP(url, queueName string, proc *Processor, workers int, log *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	if workers <= 0 {
		workers = 1
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	notifyClose := make(chan *amqp.Error, 1)
	conn.NotifyClose(notifyClose)
	go func() {
		if err := <-notifyClose; err != nil {
			log.Error("rabbitmq connection closed", zap.Error(err))
		}
	}()

	return &AMQPQueue{conn: conn, ch: ch, queue: q, proc: proc, workers: workers, log: log}, nil
}

// Enqueue publishes task as a persistent JSON message.
func (q *AMQPQueue) Enqueue(_ context.Context, task ReminderNotification) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	err = q.ch.Publish(
		"",           // exchange
		q.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    task.ID,
			Type:         task.Type,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	return nil
}

// Start consumes the queue with the configured number of workers.
func (q *AMQPQueue) Start(ctx context.Context) error {
	msgs, err := q.ch.Consume(
		q.queue.Name,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.consume(ctx, msgs)
	}
	return nil
}

func (q *AMQPQueue) consume(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			q.handle(ctx, d)
		}
	}
}

func (q *AMQPQueue) handle(ctx context.Context, d amqp.Delivery) {
	var task ReminderNotification
	if err := json.Unmarshal(d.Body, &task); err != nil {
		q.log.Error("discarding malformed reminder task", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	outcome, next, _ := q.proc.Process(ctx, task)
	if outcome == Retry && ctx.Err() != nil {
		// Not attempted; let the broker hand it to another consumer.
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
	if outcome != Retry {
		return
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-ctx.Done():
			// Persist the retry immediately rather than lose it.
		case <-time.After(next.Backoff):
		}
		if err := q.Enqueue(context.Background(), next); err != nil {
			q.log.Error("republish reminder retry failed", zap.String("task_id", next.ID), zap.Error(err))
		}
	}()
}

// Close stops consumers and closes the broker connection.
func (q *AMQPQueue) Close() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	_ = q.ch.Close()
	_ = q.conn.Close()
}
