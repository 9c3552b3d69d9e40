package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/toponn/utils"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var errLabelsChanged = errors.New("shared label table differs from the loaded one")

// Message asks the worker to tag the CoNLL-X document stored under InputKey.
type Message struct {
	InputKey      string `json:"input_key"`
	OutputKey     string `json:"output_key"`
	CorrelationID string `json:"correlation_id"`
	Sender        string `json:"sender"`
}

// Result is published once a message has been handled.
type Result struct {
	Message
	Status      string  `json:"status"`
	Sentences   int     `json:"sentences"`
	Error       string  `json:"error,omitempty"`
	CompletedAt *string `json:"completed_at"`
}

type Task struct {
	delivery   *amqp.Delivery
	message    *Message
	taskLogger *zerolog.Logger
}

func (worker *Worker) processMessage(delivery *amqp.Delivery) {
	task, err := worker.createTask(delivery)
	rejectLogger := worker.workerLogger.With().Str("message_id", delivery.MessageId).Logger()
	if err != nil {
		worker.workerLogger.Err(err).
			Str("message_id", delivery.MessageId).
			Str("body", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	result, err := worker.processTask(task)
	if err != nil {
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.publishResult(task, *result); err != nil {
		task.taskLogger.Err(err).Msg("Got error while publishing result")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.acknowledgeDelivery(delivery); err != nil {
		task.taskLogger.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.taskLogger.Info().Str("status", result.Status).Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(delivery *amqp.Delivery) (*Task, error) {
	var message Message
	err := json.Unmarshal(delivery.Body, &message)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	if message.InputKey == "" {
		return nil, errors.New("message has no input_key")
	}
	if message.OutputKey == "" {
		message.OutputKey = defaultOutputKey(message.InputKey)
	}
	if message.CorrelationID == "" {
		message.CorrelationID = uuid.New().String()
	}
	taskLogger := worker.workerLogger.With().
		Str("correlation_id", message.CorrelationID).
		Str("input_key", message.InputKey).
		Logger()
	task := Task{
		delivery:   delivery,
		message:    &message,
		taskLogger: &taskLogger,
	}
	return &task, nil
}

// processTask returns an error only for failures worth a redelivery. A
// document that cannot be tagged yields a failed Result instead.
func (worker *Worker) processTask(task *Task) (*Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(worker.config.TaskTimeoutSeconds)*time.Second)
	defer cancel()

	if err := worker.checkLabels(ctx); err != nil {
		if errors.Is(err, errLabelsChanged) {
			task.taskLogger.Err(err).Msg("Refusing to tag with an outdated label table")
			return failedResult(task, err), nil
		}
		task.taskLogger.Err(err).Msg("Could not load shared label table")
		return nil, err
	}

	task.taskLogger.Info().Msg("Processing message from RMQ")
	data, err := worker.s3.getInputDocument(ctx, task)
	if err != nil {
		task.taskLogger.Err(err).Caller().Msg("Could not fetch document from s3")
		return nil, fmt.Errorf("failed fetch document from s3: %w", err)
	}

	output, sentences, err := worker.tagDocument(ctx, data)
	if err != nil {
		task.taskLogger.Err(err).Msg("Got error while tagging document")
		return failedResult(task, err), nil
	}

	task.taskLogger.Info().Int("sentences", sentences).Msg("Tagged document, saving results to s3")
	if err = worker.s3.saveTaggedDocument(ctx, task, output); err != nil {
		task.taskLogger.Err(err).Msg("Failed to save tagged document")
		return nil, fmt.Errorf("failed to save tagged document: %w", err)
	}
	return &Result{
		Message:     *task.message,
		Status:      StatusCompleted,
		Sentences:   sentences,
		CompletedAt: getFormattedNow(),
	}, nil
}

func (worker *Worker) tagDocument(ctx context.Context, data []byte) (output []byte, sentences int, err error) {
	defer utils.RecoverWithError(&err)
	var buf bytes.Buffer
	sentences, err = worker.tagger.TagDocument(ctx, bytes.NewReader(data), &buf)
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), sentences, nil
}

func (worker *Worker) checkLabels(ctx context.Context) error {
	if worker.redis == nil {
		return nil
	}
	shared, err := worker.redis.getSharedLabels(ctx)
	if err != nil {
		return err
	}
	if shared.Fingerprint() != worker.labels.Fingerprint() {
		return fmt.Errorf("%w: %d labels shared, %d loaded", errLabelsChanged, shared.Len(), worker.labels.Len())
	}
	return nil
}

func failedResult(task *Task, err error) *Result {
	return &Result{
		Message:     *task.message,
		Status:      StatusFailed,
		Error:       err.Error(),
		CompletedAt: getFormattedNow(),
	}
}
