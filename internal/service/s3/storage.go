package s3

import (
	"context"
	"io"
)

// Object определяет интерфейс для объектов, прочитанных из хранилища
type Object interface {
	io.ReadCloser
	ContentLength() int64
	ContentType() string
}

// object реализует интерфейс Object
type object struct {
	io.ReadCloser
	contentLength int64
	contentType   string
}

func (o *object) ContentLength() int64 {
	return o.contentLength
}

func (o *object) ContentType() string {
	return o.contentType
}

// Storage определяет интерфейс для работы с S3-совместимым хранилищем
type Storage interface {
	Upload(ctx context.Context, key string, contentType string, body io.Reader) error
	GetObject(ctx context.Context, key string) (Object, error)
	GetObjectRange(ctx context.Context, key string, start, end int64) (Object, error)
	DeleteObject(ctx context.Context, key string) error
}
