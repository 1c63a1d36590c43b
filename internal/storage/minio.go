package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"jobgate-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage 对象存储接口。CV文件由上游采集服务写入，
// 本服务只负责为交付列表生成限时下载链接。
type ObjectStorage interface {
	// GetPresignedURL 获取预签名下载URL
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client   *minio.Client
	cfg      *config.MinIOConfig
	cvBucket string
	logger   *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	logger.Printf("[MinIO] Initializing MinIO client with endpoint: %s, cvBucket: %s", cfg.Endpoint, cfg.CVBucket)

	// 创建MinIO客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logger.Printf("[MinIO] Initialization failed: %v", err)
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	cvBucket := cfg.CVBucket
	if cvBucket == "" {
		cvBucket = "cv-files" // 默认值
	}

	m := &MinIO{
		client:   client,
		cfg:      cfg,
		cvBucket: cvBucket,
		logger:   logger,
	}

	// 确保存储桶存在
	if err := m.ensureBucketExists(cvBucket, cfg.Location); err != nil {
		logger.Printf("[MinIO] Failed to ensure cv bucket %s exists: %v", cvBucket, err)
		return nil, fmt.Errorf("确保CV文件存储桶 %s 存在失败: %w", cvBucket, err)
	}

	logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		m.logger.Printf("[MinIO] Bucket %s does not exist, attempting to create...", bucketName)
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] Bucket %s created successfully.", bucketName)
	}
	return nil
}

// GetPresignExpiry 返回配置的预签名URL有效期
func (m *MinIO) GetPresignExpiry() time.Duration {
	return config.GetDuration(m.cfg.PresignExpiry, 24*time.Hour)
}

// GetPresignedURL 获取预签名下载URL。
// 交付列表接口用它为公司侧生成限时的CV下载链接。
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = m.GetPresignExpiry()
	}

	reqParams := make(url.Values)
	presignedURL, err := m.client.PresignedGetObject(ctx, m.cvBucket, objectName, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败 %s/%s: %w", m.cvBucket, objectName, err)
	}
	return presignedURL.String(), nil
}
