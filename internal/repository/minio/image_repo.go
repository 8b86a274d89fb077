package minio

import (
	"context"
	"strings"

	"github.com/DRSN-tech/go-similarity/internal/usecase"
	"github.com/DRSN-tech/go-similarity/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ObjectClient: часть minio.Client, нужная репозиторию.
type ObjectClient interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error
}

// ImageRepo читает изображения датасета из бакета MinIO.
type ImageRepo struct {
	mc     ObjectClient
	bucket string
	prefix string
}

func NewImageRepo(mc ObjectClient, bucket string, prefix string) *ImageRepo {
	return &ImageRepo{
		mc:     mc,
		bucket: bucket,
		prefix: prefix,
	}
}

// List возвращает все объекты под префиксом датасета.
func (i *ImageRepo) List(ctx context.Context) ([]usecase.DatasetObject, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var objects []usecase.DatasetObject
	for obj := range i.mc.ListObjects(ctx, i.bucket, minio.ListObjectsOptions{
		Prefix:    i.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), obj.Err)
		}
		// маркеры «папок» пропускаются
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		objects = append(objects, usecase.DatasetObject{Key: obj.Key, Size: obj.Size})
	}

	return objects, nil
}

// Download сохраняет объект в локальный файл. MinIO пишет во временный файл и переименовывает его.
func (i *ImageRepo) Download(ctx context.Context, key string, dstPath string) error {
	if err := i.mc.FGetObject(ctx, i.bucket, key, dstPath, minio.GetObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
