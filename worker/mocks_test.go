package worker

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"text2phenotype.com/toponn/numberer"
)

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type taggerMock struct {
	config taggerMockConfig
	calls  taggerCalls
}

type taggerMockConfig struct {
	fail   bool
	panics bool
	output string
}

type taggerCalls struct {
	tagDocument bool
}

type redisMock struct {
	config redisMockConfig
	calls  redisMockCalls
}

type redisMockConfig struct {
	getSharedLabels withValue
}

type redisMockCalls struct {
	getSharedLabels bool
}

type rmqMock struct {
	config    rmqMockConfig
	calls     rmqMockCalls
	published []Result
}

type rmqMockConfig struct {
	publishResult       failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	publishResult       bool
	acknowledgeDelivery bool
	rejectDelivery      bool
}

type s3Mock struct {
	config s3MockConfig
	calls  s3MockCalls
	saved  map[string][]byte
}

type s3MockConfig struct {
	getInputDocument   withValue
	saveTaggedDocument failingMethod
}

type s3MockCalls struct {
	getInputDocument   bool
	saveTaggedDocument bool
}

func (mock *s3Mock) close() {}

func (mock *rmqMock) close() {}

func (mock *redisMock) close() {}

func (mock *taggerMock) TagDocument(ctx context.Context, r io.Reader, w io.Writer) (int, error) {
	mock.calls.tagDocument = true
	if mock.config.panics {
		panic("tagger exploded")
	}
	if mock.config.fail {
		return 0, errors.New("mock: failed to tag document")
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(w, mock.config.output); err != nil {
		return 0, err
	}
	return 1, nil
}

func (mock *redisMock) getSharedLabels(ctx context.Context) (*numberer.Numberer, error) {
	mock.calls.getSharedLabels = true
	if mock.config.getSharedLabels.fail {
		return nil, errors.New("failed to get shared labels")
	}
	switch value := mock.config.getSharedLabels.returnedValue.(type) {
	case []string:
		return numberer.FromLabels(value), nil
	default:
		return numberer.FromLabels(testLabels), nil
	}
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, rejectLogger *zerolog.Logger) {
	mock.calls.rejectDelivery = true
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return nil
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) publishResult(task *Task, result Result) error {
	mock.calls.publishResult = true
	if mock.config.publishResult.fail {
		return errors.New("failed to publish result")
	}
	mock.published = append(mock.published, result)
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}

func (mock *s3Mock) getInputDocument(ctx context.Context, task *Task) ([]byte, error) {
	mock.calls.getInputDocument = true
	if mock.config.getInputDocument.fail {
		return nil, errors.New("mock: failed to load from s3")
	}
	switch value := mock.config.getInputDocument.returnedValue.(type) {
	case []byte:
		return value, nil
	default:
		return []byte("1\tEr\t_\t_\tPPER\t_\t_\t_\t_\t_\n\n"), nil
	}
}

func (mock *s3Mock) saveTaggedDocument(ctx context.Context, task *Task, data []byte) error {
	mock.calls.saveTaggedDocument = true
	if mock.config.saveTaggedDocument.fail {
		return errors.New("failed to upload results")
	}
	if mock.saved == nil {
		mock.saved = make(map[string][]byte)
	}
	mock.saved[task.message.OutputKey] = data
	return nil
}
