package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Company 公司主表
type Company struct {
	CompanyID    string    `gorm:"type:char(36);primaryKey"`
	CompanyName  string    `gorm:"type:varchar(255);not null"`
	ContactEmail string    `gorm:"type:varchar(255);uniqueIndex:idx_companies_contact_email_unique"`
	Status       string    `gorm:"type:varchar(50);default:'PENDING';index:idx_companies_status"`
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Company) TableName() string {
	return "companies"
}

// CV 求职者简历文件表
type CV struct {
	CVID           string    `gorm:"type:char(36);primaryKey"`
	SeekerName     string    `gorm:"type:varchar(255)"`
	SeekerEmail    string    `gorm:"type:varchar(255);index:idx_cvs_seeker_email"`
	Title          string    `gorm:"type:varchar(255)"`
	FilePathOSS    string    `gorm:"type:varchar(1024)"` // MinIO对象键
	FileType       string    `gorm:"type:varchar(50)"`
	AllowPromotion bool      `gorm:"default:false;index:idx_cvs_allow_promotion"`
	CreatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt      time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (CV) TableName() string {
	return "cvs"
}

// CVFeature CV特征分析表，由外部AI分析服务在(重新)分析时整体覆写。
// 匹配引擎只读。ATSScore为指针: NULL表示AI未给出ATS数据，0表示真实的零分。
type CVFeature struct {
	CVID                 string         `gorm:"type:char(36);primaryKey"`
	ATSScore             *float64       `gorm:"type:float"`
	TotalYearsExperience float64        `gorm:"type:float;default:0"`
	KeySkillsJSON        datatypes.JSON `gorm:"type:json"`
	AchievementCount     int            `gorm:"default:0"`
	HasContactInfo       bool           `gorm:"default:false"`
	HasEducation         bool           `gorm:"default:false"`
	HasExperience        bool           `gorm:"default:false"`
	IsATSCompliant       bool           `gorm:"default:false"`
	AnalyzedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	CV *CV `gorm:"foreignKey:CVID;references:CVID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (CVFeature) TableName() string {
	return "cv_features"
}

// KeySkills 反序列化key_skills JSON列
func (f *CVFeature) KeySkills() []string {
	var skills []string
	if len(f.KeySkillsJSON) == 0 {
		return skills
	}
	_ = json.Unmarshal(f.KeySkillsJSON, &skills)
	return skills
}

// CVRequest 公司CV请求表
type CVRequest struct {
	RequestID       string         `gorm:"type:char(36);primaryKey"`
	CompanyID       string         `gorm:"type:char(36);not null;index:idx_cv_requests_company_id"`
	RequestedRole   string         `gorm:"type:varchar(255);not null"`
	ExperienceYears *float64       `gorm:"type:float"`
	SkillsJSON      datatypes.JSON `gorm:"type:json"`
	Location        *string        `gorm:"type:varchar(255)"` // 仅作元数据记录，不参与打分
	CVCount         int            `gorm:"not null"`
	Status          string         `gorm:"type:varchar(50);default:'pending';index:idx_cv_requests_status"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_cv_requests_created_at"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Company *Company `gorm:"foreignKey:CompanyID;references:CompanyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (CVRequest) TableName() string {
	return "company_cv_requests"
}

// Skills 反序列化skills JSON列
func (r *CVRequest) Skills() []string {
	var skills []string
	if len(r.SkillsJSON) == 0 {
		return skills
	}
	_ = json.Unmarshal(r.SkillsJSON, &skills)
	return skills
}

// Delivery CV交付台账表。只追加，(request_id, cv_id)唯一，
// 重复匹配运行通过upsert跳过已交付的CV。
type Delivery struct {
	DeliveryID   uint64         `gorm:"primaryKey;autoIncrement"`
	RequestID    string         `gorm:"type:char(36);not null;index:idx_deliveries_request_id;uniqueIndex:idx_deliveries_request_cv_unique,priority:1"`
	CVID         string         `gorm:"type:char(36);not null;uniqueIndex:idx_deliveries_request_cv_unique,priority:2"`
	MatchScore   int            `gorm:"not null;default:0"`
	MatchDetails datatypes.JSON `gorm:"type:json"`
	DeliveredAt  time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Request *CVRequest `gorm:"foreignKey:RequestID;references:RequestID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CV      *CV        `gorm:"foreignKey:CVID;references:CVID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (Delivery) TableName() string {
	return "company_cv_deliveries"
}

// StringToJSON Helper function to convert string to datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}

// SliceToJSON Helper function to convert a string slice to datatypes.JSON
func SliceToJSON(items []string) (datatypes.JSON, error) {
	if items == nil {
		items = []string{}
	}
	bytes, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// MapToJSON Helper function to convert map[string]interface{} to datatypes.JSON
func MapToJSON(m map[string]interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
