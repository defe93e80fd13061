// ABOUTME: S3-compatible publisher that mirrors each committed version's files into object storage.
// ABOUTME: Objects are keyed <prefix>/<project>/v<version>/<path> with a manifest.json per version.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/2389-research/sitegen/store"
)

// ManifestName is the per-version index object.
const ManifestName = "manifest.json"

// S3Config describes the bucket versions are published to.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"useSSL"`
}

// objectStore is the subset of *minio.Client the publisher uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Publisher writes version files to an S3-compatible bucket.
type S3Publisher struct {
	client objectStore
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

// ManifestEntry lists one published file.
type ManifestEntry struct {
	Path    string `json:"path"`
	Type    string `json:"fileType,omitempty"`
	Section string `json:"sectionType,omitempty"`
	Size    int    `json:"size"`
}

// Manifest indexes a published version.
type Manifest struct {
	ProjectID string          `json:"projectId"`
	Version   int             `json:"versionNumber"`
	Files     []ManifestEntry `json:"files"`
}

// NewS3Publisher connects to the configured endpoint. The bucket is created
// on first publish when missing.
func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return newS3Publisher(client, bucket, region, cfg.Prefix), nil
}

func newS3Publisher(client objectStore, bucket, region, prefix string) *S3Publisher {
	return &S3Publisher{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}
}

func (p *S3Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Publish uploads every file of a version followed by its manifest. A
// reader that finds the manifest can rely on all files being present.
func (p *S3Publisher) Publish(ctx context.Context, projectID string, version int, files []store.File) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("project id is required")
	}
	if err := p.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	m := Manifest{ProjectID: projectID, Version: version, Files: make([]ManifestEntry, 0, len(files))}
	for _, f := range files {
		key := p.ObjectKey(projectID, version, f.Path)
		if err := p.put(ctx, key, []byte(f.Content), ContentType(f.Path)); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		m.Files = append(m.Files, ManifestEntry{Path: f.Path, Type: f.Type, Section: f.Section, Size: len(f.Content)})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	key := p.ObjectKey(projectID, version, ManifestName)
	if err := p.put(ctx, key, data, "application/json"); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (p *S3Publisher) put(ctx context.Context, key string, content []byte, contentType string) error {
	_, err := p.client.PutObject(ctx, p.bucket, key, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

// ObjectKey returns the key a version file is stored under.
func (p *S3Publisher) ObjectKey(projectID string, version int, filePath string) string {
	rel := strings.TrimLeft(path.Clean("/"+strings.TrimSpace(filePath)), "/")
	key := fmt.Sprintf("%s/v%d/%s", projectID, version, rel)
	if p.prefix != "" {
		key = p.prefix + "/" + key
	}
	return key
}

// ContentType guesses a MIME type from the file extension.
func ContentType(filePath string) string {
	switch ext := strings.ToLower(path.Ext(filePath)); ext {
	case ".tsx", ".ts", ".jsx", ".mjs":
		return "text/plain; charset=utf-8"
	case "":
		return "application/octet-stream"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
