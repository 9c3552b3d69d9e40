// Package s3client moves CoNLL-X documents between the tagger and object
// storage. All keys are resolved below an optional prefix.
package s3client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"text2phenotype.com/toponn/logger"
)

const maxRetries = 4

var errClosed = errors.New("s3 client is closed")

type EnvironmentConfig struct {
	BucketName  string `envconfig:"TOPONN_S3_BUCKET" required:"true"`
	KeyPrefix   string `envconfig:"TOPONN_S3_PREFIX" default:""`
	Env         string `envconfig:"TOPONN_ENV" default:"prod"`
	Region      string `envconfig:"TOPONN_AWS_REGION" required:"true"`
	AwsEndpoint string `envconfig:"TOPONN_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"TOPONN_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"TOPONN_AWS_ACCESS_KEY" default:""`
}

type Client struct {
	mu        sync.RWMutex
	sess      *session.Session
	env       EnvironmentConfig
	s3Logger  zerolog.Logger
	sdkLogger aws.Logger
}

func New() (*Client, error) {
	s3Logger := logger.NewLogger("S3Client")
	var env EnvironmentConfig
	if err := envconfig.Process("", &env); err != nil {
		s3Logger.Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	client := newClient(env, s3Logger)
	if err := client.refreshSession(nil); err != nil {
		return nil, err
	}
	return client, nil
}

func newClient(env EnvironmentConfig, s3Logger zerolog.Logger) *Client {
	sdkLog := logger.NewLogger("S3-SDK").With().Str("bucket", env.BucketName).Logger()
	return &Client{
		env:       env,
		s3Logger:  s3Logger.With().Str("bucket", env.BucketName).Logger(),
		sdkLogger: sdkLogger(sdkLog),
	}
}

// Upload stores data under key.
func (client *Client) Upload(ctx context.Context, data []byte, key string) (*s3manager.UploadOutput, error) {
	objectKey := client.objectKey(key)
	docLogger := client.s3Logger.With().Str("key", objectKey).Int("bytes", len(data)).Logger()

	var output *s3manager.UploadOutput
	err := client.withSession(ctx, func(sess *session.Session) error {
		var err error
		output, err = s3manager.NewUploader(sess).UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(client.env.BucketName),
			Key:    aws.String(objectKey),
			Body:   bytes.NewReader(data),
		})
		return err
	})
	if err != nil {
		docLogger.Err(err).Msg("Failed to upload document")
		return nil, err
	}
	docLogger.Debug().Msg("Uploaded document")
	return output, nil
}

// Download reads the object stored under key.
func (client *Client) Download(ctx context.Context, key string) ([]byte, error) {
	objectKey := client.objectKey(key)
	docLogger := client.s3Logger.With().Str("key", objectKey).Logger()

	var data []byte
	err := client.withSession(ctx, func(sess *session.Session) error {
		buf := aws.NewWriteAtBuffer([]byte{})
		_, err := s3manager.NewDownloader(sess).DownloadWithContext(ctx, buf, &s3.GetObjectInput{
			Bucket: aws.String(client.env.BucketName),
			Key:    aws.String(objectKey),
		})
		data = buf.Bytes()
		return err
	})
	if err != nil {
		docLogger.Err(err).Msg("Failed to download document")
		return nil, err
	}
	docLogger.Debug().Int("bytes", len(data)).Msg("Downloaded document")
	return data, nil
}

// Close drops the session; later calls fail.
func (client *Client) Close() {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.sess = nil
}

func (client *Client) objectKey(key string) string {
	if client.env.KeyPrefix == "" {
		return key
	}
	return path.Join(client.env.KeyPrefix, key)
}

// withSession runs op and, if it fails for another reason than ctx, runs it
// once more on a fresh session. Expired credentials are the usual cause.
func (client *Client) withSession(ctx context.Context, op func(sess *session.Session) error) error {
	client.mu.RLock()
	sess := client.sess
	client.mu.RUnlock()
	if sess == nil {
		return errClosed
	}

	err := op(sess)
	if err == nil || ctx.Err() != nil {
		return err
	}
	client.s3Logger.Warn().Err(err).Msg("S3 request failed, refreshing session")
	if refreshErr := client.refreshSession(sess); refreshErr != nil {
		return fmt.Errorf("%v (session refresh failed: %w)", err, refreshErr)
	}

	client.mu.RLock()
	sess = client.sess
	client.mu.RUnlock()
	if sess == nil {
		return errClosed
	}
	return op(sess)
}

// refreshSession replaces failed with a new session. A concurrent caller
// that already replaced it wins.
func (client *Client) refreshSession(failed *session.Session) error {
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.sess != failed {
		return nil
	}

	for _, cfg := range client.sessionConfigs() {
		sess, err := session.NewSession(cfg)
		if err != nil {
			continue
		}
		if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err != nil {
			client.s3Logger.Debug().Err(err).Msg("Credentials rejected")
			continue
		}
		client.sess = sess
		client.s3Logger.Info().Msg("S3 session initialized")
		return nil
	}
	return errors.New("could not initialize S3 session")
}

// sessionConfigs lists the instance credential chain first and the static
// credentials from the environment second, when there are any.
func (client *Client) sessionConfigs() []*aws.Config {
	base := func() *aws.Config {
		cfg := aws.NewConfig().
			WithRegion(client.env.Region).
			WithMaxRetries(maxRetries).
			WithLogger(client.sdkLogger).
			WithLogLevel(aws.LogDebug)
		if client.env.Env == "dev" && client.env.AwsEndpoint != "" {
			cfg = cfg.WithEndpoint(client.env.AwsEndpoint).WithS3ForcePathStyle(true)
		}
		return cfg
	}

	configs := []*aws.Config{base()}
	if client.env.AccessKeyID != "" {
		creds := credentials.NewStaticCredentials(client.env.AccessKeyID, client.env.AccessKey, "")
		configs = append(configs, base().WithCredentials(creds))
	}
	return configs
}

func sdkLogger(log zerolog.Logger) aws.Logger {
	return aws.LoggerFunc(func(args ...interface{}) {
		log.Debug().Msg(fmt.Sprint(args...))
	})
}
