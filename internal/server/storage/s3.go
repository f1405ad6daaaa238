package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/server/models"
)

// metaName carries the display filename as S3 user metadata.
const metaName = "name"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type S3Config struct {
	Region       string
	Bucket       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	// Prefix is prepended to every object key, e.g. "resumes/".
	Prefix string
}

type S3Store struct {
	client S3API
	bucket string
	prefix string
	newKey func() string
}

// NewS3Store builds a client from cfg. Static credentials are used when
// AccessKey is set, the default AWS chain otherwise. A BaseEndpoint switches
// to path-style addressing for MinIO and similar.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: aws config: %v", common.ErrStorage, err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewS3StoreWithClient(client S3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, newKey: uuid.NewString}
}

func (s *S3Store) key(id string) string { return s.prefix + id }

func (s *S3Store) Upload(ctx context.Context, in UploadInput) (*models.StoredObject, error) {
	id := s.newKey()

	put := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        in.Body,
		ContentType: aws.String(in.ContentType),
		Metadata:    map[string]string{metaName: in.Name},
	}
	if in.Size >= 0 {
		put.ContentLength = aws.Int64(in.Size)
	}

	if _, err := s.client.PutObject(ctx, put); err != nil {
		return nil, fmt.Errorf("%w: s3 put: %v", common.ErrStorage, err)
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3 head: %v", common.ErrStorage, err)
	}

	return objectFromHead(id, in.Name, head), nil
}

func (s *S3Store) List(ctx context.Context) ([]*models.StoredObject, error) {
	var out []*models.StoredObject

	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: s3 list: %v", common.ErrStorage, err)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			id := strings.TrimPrefix(key, s.prefix)

			head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: o.Key})
			if err != nil {
				if isNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("%w: s3 head: %v", common.ErrStorage, err)
			}
			out = append(out, objectFromHead(id, "", head))
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedTime.After(out[j].CreatedTime) })
	return out, nil
}

func (s *S3Store) Download(ctx context.Context, id string) (*models.ObjectStream, error) {
	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: s3 get: %v", common.ErrStorage, err)
	}

	return &models.ObjectStream{
		Body:        obj.Body,
		ContentType: aws.ToString(obj.ContentType),
		Size:        aws.ToInt64(obj.ContentLength),
	}, nil
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("%w: s3 delete: %v", common.ErrStorage, err)
	}
	return nil
}

func objectFromHead(id, name string, head *s3.HeadObjectOutput) *models.StoredObject {
	if name == "" {
		name = head.Metadata[metaName]
	}
	if name == "" {
		name = id
	}
	created := time.Time{}
	if head.LastModified != nil {
		created = head.LastModified.UTC()
	}
	return &models.StoredObject{
		ID:          id,
		Name:        name,
		MimeType:    aws.ToString(head.ContentType),
		Size:        aws.ToInt64(head.ContentLength),
		CreatedTime: created,
	}
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}
