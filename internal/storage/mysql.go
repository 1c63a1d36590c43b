package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"jobgate-go/internal/config"
	"jobgate-go/internal/storage/models"
	"jobgate-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("jobgate-go/storage/mysql")

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	dbSystem       string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	// 为所有CRUD操作注册Before和After回调
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		// 获取SQL语句（如果有），截断后再作为属性记录
		sqlStatement := db.Statement.SQL.String()
		if sqlStatement != "" {
			opts = append(opts, trace.WithAttributes(
				attribute.String("db.statement", tracing.SafeSQL(sqlStatement)),
			))
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, "otel-span", span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value("otel-span").(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		if db.Statement.RowsAffected > 0 {
			span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		} else {
			span.SetAttributes(attribute.Int64("db.rows_affected", 0))
		}

		// 记录错误（如果有），但正确处理ErrRecordNotFound
		if db.Error != nil {
			if db.Error == gorm.ErrRecordNotFound {
				// ErrRecordNotFound 是业务逻辑正常情况的一部分，不应作为错误处理
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		dbSystem:       "mysql",
		disableErrSkip: true,
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	// 配置GORM日志级别
	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	// 设置连接池参数
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	// 注册OpenTelemetry追踪插件
	tracingPlugin := NewGormTracingPlugin(cfg.Database)
	if err := db.Use(tracingPlugin); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	// 使用 GORM 的 AutoMigrate 功能自动迁移表结构
	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 创建一个静默的logger以关闭迁移期间的SQL日志打印
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.Company{},
		&models.CV{},
		&models.CVFeature{},
		&models.CVRequest{},
		&models.Delivery{},
		&models.OutboxMessage{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// GetCVRequestByID 通过 RequestID 获取 CVRequest 记录
func (m *MySQL) GetCVRequestByID(db *gorm.DB, requestID string) (*models.CVRequest, error) {
	var request models.CVRequest
	if err := db.Where("request_id = ?", requestID).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// GetCVRequestForUpdate 在事务中以行级锁获取 CVRequest 记录，
// 防止并发匹配运行命中同一请求。
func (m *MySQL) GetCVRequestForUpdate(tx *gorm.DB, requestID string) (*models.CVRequest, error) {
	var request models.CVRequest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("request_id = ?", requestID).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// CreateCVRequest 创建一条新的CV请求
func (m *MySQL) CreateCVRequest(ctx context.Context, request *models.CVRequest) error {
	return m.db.WithContext(ctx).Create(request).Error
}

// ListCVRequests 获取全部CV请求，按创建时间倒序，预加载所属公司
func (m *MySQL) ListCVRequests(ctx context.Context) ([]models.CVRequest, error) {
	var requests []models.CVRequest
	err := m.db.WithContext(ctx).
		Preload("Company").
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// ListCompanyCVRequests 获取某公司自己的CV请求，按创建时间倒序
func (m *MySQL) ListCompanyCVRequests(ctx context.Context, companyID string) ([]models.CVRequest, error) {
	var requests []models.CVRequest
	err := m.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// UpdateCVRequestStatus 更新CV请求状态 (可在事务中执行)
func (m *MySQL) UpdateCVRequestStatus(tx *gorm.DB, requestID string, status string) error {
	return tx.Model(&models.CVRequest{}).
		Where("request_id = ?", requestID).
		Update("status", status).Error
}

// GetCompanyByID 通过 CompanyID 获取公司记录
func (m *MySQL) GetCompanyByID(ctx context.Context, companyID string) (*models.Company, error) {
	var company models.Company
	if err := m.db.WithContext(ctx).Where("company_id = ?", companyID).First(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

// ScanEligibleCandidates 分页遍历所有携带特征记录的CV。
// 只有 cv_features 中存在记录的CV才可参与打分，无特征的CV天然被排除。
// 以 cv_id 为游标分批读取，避免一次性将全量候选集装入内存。
func (m *MySQL) ScanEligibleCandidates(ctx context.Context, tx *gorm.DB, batchSize int, fn func(features []models.CVFeature) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	db := m.db
	if tx != nil {
		db = tx
	}

	cursor := ""
	for {
		var features []models.CVFeature
		query := db.WithContext(ctx).Order("cv_id ASC").Limit(batchSize)
		if cursor != "" {
			query = query.Where("cv_id > ?", cursor)
		}
		if err := query.Find(&features).Error; err != nil {
			return fmt.Errorf("扫描候选CV特征失败: %w", err)
		}

		if len(features) == 0 {
			return nil
		}

		if err := fn(features); err != nil {
			return err
		}

		if len(features) < batchSize {
			return nil
		}
		cursor = features[len(features)-1].CVID
	}
}

// BatchUpsertDeliveries 批量插入交付记录。
// (request_id, cv_id) 冲突时跳过，保证重复匹配运行的幂等性；
// 返回实际新插入的行数。
func (m *MySQL) BatchUpsertDeliveries(ctx context.Context, tx *gorm.DB, deliveries []models.Delivery) (int64, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.BatchUpsertDeliveries",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("db.operation", "INSERT_IGNORE"),
		attribute.String("db.sql.table", "company_cv_deliveries"),
		attribute.Int("batch.size", len(deliveries)),
	)

	if len(deliveries) == 0 {
		span.SetStatus(codes.Ok, "no deliveries to insert")
		return 0, nil
	}

	db := m.db
	if tx != nil {
		db = tx
	}

	result := db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}, {Name: "cv_id"}},
			DoNothing: true,
		}).Create(&deliveries)

	if result.Error != nil {
		tracing.RecordError(span, result.Error, tracing.ErrorTypeDB)
		return 0, result.Error
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", result.RowsAffected))
	span.SetStatus(codes.Ok, "")
	return result.RowsAffected, nil
}

// ListDeliveriesByRequest 获取某请求下的全部交付记录，预加载CV
func (m *MySQL) ListDeliveriesByRequest(ctx context.Context, requestID string) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	err := m.db.WithContext(ctx).
		Preload("CV").
		Where("request_id = ?", requestID).
		Order("match_score DESC").
		Find(&deliveries).Error
	return deliveries, err
}

// CountDeliveriesByRequest 统计某请求的交付行数
func (m *MySQL) CountDeliveriesByRequest(ctx context.Context, requestID string) (int64, error) {
	var count int64
	err := m.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("request_id = ?", requestID).
		Count(&count).Error
	return count, err
}

// UpsertCVFeature 整体覆写某CV的特征记录 (AI服务重新分析时调用)
func (m *MySQL) UpsertCVFeature(ctx context.Context, feature *models.CVFeature) error {
	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "cv_id"}},
			UpdateAll: true,
		}).Create(feature).Error
}

// GetCVFeature 获取某CV的特征记录
func (m *MySQL) GetCVFeature(ctx context.Context, cvID string) (*models.CVFeature, error) {
	var feature models.CVFeature
	if err := m.db.WithContext(ctx).Where("cv_id = ?", cvID).First(&feature).Error; err != nil {
		return nil, err
	}
	return &feature, nil
}

// CreateOutboxMessage 在事务中写入待发布的outbox消息
func (m *MySQL) CreateOutboxMessage(tx *gorm.DB, msg *models.OutboxMessage) error {
	return tx.Create(msg).Error
}

// IsNotFound 判断错误是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
