package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"gopherai-tutor/internal/model"
	"gopherai-tutor/internal/platform/rabbitmq"
)

// AnalysisStore persists audit records consumed from the queue.
type AnalysisStore interface {
	Create(record *model.AnalysisRecord) error
}

type AnalysisPersistWorker struct {
	conn      *amqp.Connection
	repo      AnalysisStore
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAnalysisPersistWorker(conn *amqp.Connection, repo AnalysisStore, queueName string, logger *zap.Logger) *AnalysisPersistWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisPersistWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
		logger:    logger.Named("analysis-worker"),
	}
}

func (w *AnalysisPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(d)
			}
		}
	}()

	return nil
}

func (w *AnalysisPersistWorker) handle(d amqp.Delivery) {
	if err := w.persist(d.Body); err != nil {
		w.logger.Warn("drop analysis record", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (w *AnalysisPersistWorker) persist(body []byte) error {
	var record model.AnalysisRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return fmt.Errorf("decode analysis record failed: %w", err)
	}
	// ids are assigned by the database
	record.ID = 0
	return w.repo.Create(&record)
}

func (w *AnalysisPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
