package modules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/midbel/xq/xpath"
)

// S3Resolver reads library modules from s3://bucket/key locations.
type S3Resolver struct {
	Client s3iface.S3API
}

// NewS3Resolver creates a resolver from the shared AWS configuration of
// the environment. An empty region keeps the one of the configuration.
func NewS3Resolver(region string) (*S3Resolver, error) {
	opts := session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}
	if region != "" {
		opts.Config.Region = aws.String(region)
	}
	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, err
	}
	return &S3Resolver{Client: s3.New(sess)}, nil
}

func (r *S3Resolver) Resolve(ctx context.Context, namespace string, hints []string) ([]xpath.ModuleSource, error) {
	if len(hints) == 0 {
		return nil, fmt.Errorf("%s: %w", namespace, ErrLocation)
	}
	var list []xpath.ModuleSource
	for _, h := range hints {
		bucket, key, err := splitS3(h)
		if err != nil {
			return nil, err
		}
		text, err := r.get(ctx, bucket, key)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", h, err)
		}
		src := xpath.ModuleSource{
			URI:  h,
			Text: text,
		}
		list = append(list, src)
	}
	return list, nil
}

func (r *S3Resolver) get(ctx context.Context, bucket, key string) (string, error) {
	in := s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	res, err := r.Client.GetObjectWithContext(ctx, &in)
	if err != nil {
		if notExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	defer res.Body.Close()
	buf, err := io.ReadAll(res.Body)
	return string(buf), err
}

func notExist(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey, "NoSuchVersion", "NotFound":
		return true
	default:
		return false
	}
}

func splitS3(location string) (string, string, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme != "s3" {
		return "", "", fmt.Errorf("%s: %w", location, ErrScheme)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%s: bucket and key expected", location)
	}
	return u.Host, key, nil
}
