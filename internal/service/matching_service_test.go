package service

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"jobgate-go/internal/config"
	"jobgate-go/internal/constants"
	"jobgate-go/internal/storage"
	"jobgate-go/internal/storage/models"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStorage 连接测试MySQL，环境不可用时跳过测试
func setupTestStorage(t *testing.T) *storage.Storage {
	t.Helper()

	host := os.Getenv("JOBGATE_TEST_MYSQL_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	database := os.Getenv("JOBGATE_TEST_MYSQL_DATABASE")
	if database == "" {
		database = "jobgate_test"
	}

	mysqlCfg := &config.MySQLConfig{
		Host:                   host,
		Port:                   3306,
		Username:               envOr("JOBGATE_TEST_MYSQL_USER", "root"),
		Password:               envOr("JOBGATE_TEST_MYSQL_PASSWORD", "root"),
		Database:               database,
		MaxIdleConns:           2,
		MaxOpenConns:           5,
		ConnMaxLifetimeMinutes: 10,
		ConnMaxIdleTimeMinutes: 5,
		ConnectTimeoutSeconds:  3,
		ReadTimeoutSeconds:     10,
		WriteTimeoutSeconds:    10,
		LogLevel:               1,
	}

	mysql, err := storage.NewMySQL(mysqlCfg)
	if err != nil {
		t.Skipf("测试MySQL不可用，跳过: %v", err)
	}
	t.Cleanup(func() { _ = mysql.Close() })

	return &storage.Storage{MySQL: mysql}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Matching.SkillWeight = 40
	cfg.Matching.ExperienceWeight = 30
	cfg.Matching.ATSWeight = 30
	cfg.Matching.DeliverThreshold = 60
	cfg.Matching.ScanBatchSize = 500
	cfg.RabbitMQ.DeliveryExchange = "cv_request_events"
	cfg.RabbitMQ.DeliveredRoutingKey = "cv_request.delivered"
	cfg.RabbitMQ.RequestStatusRouting = "cv_request.status_changed"
	return cfg
}

func mustUUID(t *testing.T) string {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	return id.String()
}

func createTestCompany(t *testing.T, st *storage.Storage) *models.Company {
	t.Helper()
	company := &models.Company{
		CompanyID:    mustUUID(t),
		CompanyName:  "Acme Test",
		ContactEmail: fmt.Sprintf("acme-%s@example.com", mustUUID(t)),
		Status:       constants.CompanyStatusApproved,
	}
	require.NoError(t, st.MySQL.DB().Create(company).Error)
	return company
}

func createCVWithFeatures(t *testing.T, st *storage.Storage, skills []string, years float64, ats *float64) *models.CV {
	t.Helper()
	cv := &models.CV{
		CVID:        mustUUID(t),
		SeekerName:  "Test Seeker",
		SeekerEmail: fmt.Sprintf("seeker-%s@example.com", mustUUID(t)),
		Title:       "Backend Engineer",
		FilePathOSS: "cvs/test.pdf",
		FileType:    "pdf",
	}
	require.NoError(t, st.MySQL.DB().Create(cv).Error)

	skillsJSON, err := models.SliceToJSON(skills)
	require.NoError(t, err)
	feature := &models.CVFeature{
		CVID:                 cv.CVID,
		ATSScore:             ats,
		TotalYearsExperience: years,
		KeySkillsJSON:        skillsJSON,
		HasExperience:        years > 0,
	}
	require.NoError(t, st.MySQL.DB().Create(feature).Error)
	return cv
}

func floatRef(v float64) *float64 { return &v }

// 全链路场景: 候选打分、阈值过滤、无特征CV天然排除、
// 已交付行不重复插入、状态在同一事务内流转到delivered。
func TestMatchAndDeliverScenario(t *testing.T) {
	st := setupTestStorage(t)
	cfg := testConfig()
	ctx := context.Background()

	company := createTestCompany(t, st)

	// 用随机后缀保证技能要求不会与库中历史数据撞车
	suffix := mustUUID(t)
	reqSkills := []string{"golang-" + suffix, "distsys-" + suffix}

	skillsJSON, err := models.SliceToJSON(reqSkills)
	require.NoError(t, err)
	request := &models.CVRequest{
		RequestID:       mustUUID(t),
		CompanyID:       company.CompanyID,
		RequestedRole:   "Backend Engineer",
		ExperienceYears: floatRef(10),
		SkillsJSON:      skillsJSON,
		CVCount:         5,
		Status:          constants.RequestStatusApproved,
	}
	require.NoError(t, st.MySQL.DB().Create(request).Error)

	// 高分候选: 技能全中 + 经验达标 + ATS 90 => 40+30+27=97
	cvMatch := createCVWithFeatures(t, st, reqSkills, 10, floatRef(90))
	// 低分候选: 技能不沾边, 经验1年, 无ATS分 => 3
	createCVWithFeatures(t, st, []string{"unrelated-" + suffix}, 1, nil)
	// 无特征候选: 不进入扫描
	cvBare := &models.CV{CVID: mustUUID(t), SeekerName: "No Features", FileType: "pdf"}
	require.NoError(t, st.MySQL.DB().Create(cvBare).Error)

	// 预置一条该候选的交付行，模拟上一次运行已交付，验证重复触发不产生重复行
	preExisting := &models.Delivery{
		RequestID:    request.RequestID,
		CVID:         cvMatch.CVID,
		MatchScore:   50,
		MatchDetails: models.StringToJSON(`{"skill_score":50}`),
		DeliveredAt:  time.Now(),
	}
	require.NoError(t, st.MySQL.DB().Create(preExisting).Error)

	svc, err := NewMatchingService(cfg, st, nil)
	require.NoError(t, err)

	summary, err := svc.MatchAndDeliver(ctx, request.RequestID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.MatchedCount)
	// 唯一的达标候选已有交付行，本次没有新插入
	assert.Equal(t, int64(0), summary.DeliveredCount)
	assert.Equal(t, constants.RequestStatusDelivered, summary.Status)

	// 台帐上只有一行，且保留首次交付的分数
	deliveries, err := st.MySQL.ListDeliveriesByRequest(ctx, request.RequestID)
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.Equal(t, cvMatch.CVID, deliveries[0].CVID)
	assert.Equal(t, 50, deliveries[0].MatchScore)

	// 状态已在同一事务内流转
	updated, err := st.MySQL.GetCVRequestByID(st.MySQL.DB().WithContext(ctx), request.RequestID)
	require.NoError(t, err)
	assert.Equal(t, constants.RequestStatusDelivered, updated.Status)

	// 已交付的请求不能再次触发
	_, err = svc.MatchAndDeliver(ctx, request.RequestID)
	assert.ErrorIs(t, err, ErrRequestNotApproved)
}

func TestMatchAndDeliverRequestNotFound(t *testing.T) {
	st := setupTestStorage(t)
	svc, err := NewMatchingService(testConfig(), st, nil)
	require.NoError(t, err)

	_, err = svc.MatchAndDeliver(context.Background(), mustUUID(t))
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestMatchAndDeliverRequiresApproval(t *testing.T) {
	st := setupTestStorage(t)
	cfg := testConfig()
	ctx := context.Background()

	company := createTestCompany(t, st)
	svc, err := NewMatchingService(cfg, st, nil)
	require.NoError(t, err)

	// pending 和 rejected 的请求都不能触发匹配，也不能留下交付行
	for _, status := range []string{constants.RequestStatusPending, constants.RequestStatusRejected} {
		request := &models.CVRequest{
			RequestID:     mustUUID(t),
			CompanyID:     company.CompanyID,
			RequestedRole: "Backend Engineer",
			CVCount:       3,
			Status:        status,
		}
		require.NoError(t, st.MySQL.DB().Create(request).Error)

		_, err = svc.MatchAndDeliver(ctx, request.RequestID)
		assert.ErrorIs(t, err, ErrRequestNotApproved, status)

		count, err := st.MySQL.CountDeliveriesByRequest(ctx, request.RequestID)
		require.NoError(t, err)
		assert.Zero(t, count, status)
	}
}
