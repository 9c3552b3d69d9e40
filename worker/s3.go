package worker

import (
	"context"

	"text2phenotype.com/toponn/s3client"
)

type s3Transactions interface {
	saveTaggedDocument(ctx context.Context, task *Task, data []byte) error
	getInputDocument(ctx context.Context, task *Task) ([]byte, error)
	close()
}

type s3ClientWrapper struct {
	s3Client *s3client.Client
}

func (wrapper *s3ClientWrapper) close() {
	wrapper.s3Client.Close()
}

func (wrapper *s3ClientWrapper) saveTaggedDocument(ctx context.Context, task *Task, data []byte) error {
	_, err := wrapper.s3Client.Upload(ctx, data, task.message.OutputKey)
	return err
}

func (wrapper *s3ClientWrapper) getInputDocument(ctx context.Context, task *Task) ([]byte, error) {
	return wrapper.s3Client.Download(ctx, task.message.InputKey)
}
