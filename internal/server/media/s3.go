package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config содержит настройки S3-совместимого хранилища (AWS, MinIO)
type S3Config struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string // пустой = стандартный AWS endpoint
	PublicURL    string // база публичных ссылок, например https://media.example.com
}

// S3Uploader загружает файлы в S3-совместимое хранилище
type S3Uploader struct {
	cfg    S3Config
	client *s3.Client
}

// NewS3Uploader создает новый S3 uploader
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region), // обязательный параметр
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"", // токен (не нужен)
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			// MinIO и другие self-hosted S3 требуют path-style адресацию
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{cfg: cfg, client: client}, nil
}

// storageKey генерирует уникальный ключ объекта, сохраняя расширение файла
func storageKey(localPath string) string {
	d := time.Now()
	ext := filepath.Ext(localPath)
	return fmt.Sprintf("uploads/%d/%02d/%v%s", d.Year(), int(d.Month()), uuid.New(), ext)
}

// Upload загружает локальный файл и возвращает его публичный URL
// Локальный файл удаляется после успешной загрузки; при ошибке файл
// тоже удаляется, чтобы не накапливать temp файлы
func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("local path cannot be empty")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(localPath)
	}()

	key := storageKey(localPath)
	bucket := u.cfg.Bucket

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return u.publicURL(key), nil
}

// publicURL собирает публичную ссылку на загруженный объект
func (u *S3Uploader) publicURL(key string) string {
	if u.cfg.PublicURL != "" {
		return strings.TrimRight(u.cfg.PublicURL, "/") + "/" + key
	}
	if u.cfg.BaseEndpoint != "" {
		return strings.TrimRight(u.cfg.BaseEndpoint, "/") + "/" + u.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
}
