package minio

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakeObjectClient struct {
	objects    []minio.ObjectInfo
	gotPrefix  string
	downloaded map[string]string
	err        error
}

func (f *fakeObjectClient) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.gotPrefix = opts.Prefix
	ch := make(chan minio.ObjectInfo, len(f.objects))
	for _, obj := range f.objects {
		ch <- obj
	}
	close(ch)
	return ch
}

func (f *fakeObjectClient) FGetObject(_ context.Context, _, objectName, filePath string, _ minio.GetObjectOptions) error {
	if f.err != nil {
		return f.err
	}
	f.downloaded[objectName] = filePath
	return nil
}

func TestImageRepo_List(t *testing.T) {
	client := &fakeObjectClient{objects: []minio.ObjectInfo{
		{Key: "dataset/", Size: 0},
		{Key: "dataset/a.jpg", Size: 10},
		{Key: "dataset/b.png", Size: 20},
	}}
	repo := NewImageRepo(client, "images", "dataset/")

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if client.gotPrefix != "dataset/" {
		t.Errorf("prefix = %q, want dataset/", client.gotPrefix)
	}
	if len(got) != 2 || got[0].Key != "dataset/a.jpg" || got[1].Size != 20 {
		t.Errorf("List() = %+v", got)
	}
}

func TestImageRepo_ListError(t *testing.T) {
	boom := errors.New("access denied")
	client := &fakeObjectClient{objects: []minio.ObjectInfo{{Err: boom}}}

	if _, err := NewImageRepo(client, "images", "").List(context.Background()); !errors.Is(err, boom) {
		t.Errorf("List() error = %v, want %v", err, boom)
	}
}

func TestImageRepo_Download(t *testing.T) {
	client := &fakeObjectClient{downloaded: map[string]string{}}
	repo := NewImageRepo(client, "images", "")

	if err := repo.Download(context.Background(), "a.jpg", "/tmp/a.jpg"); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if client.downloaded["a.jpg"] != "/tmp/a.jpg" {
		t.Errorf("downloaded = %v", client.downloaded)
	}
}
