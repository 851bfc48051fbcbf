package models

import "time"

// AnnouncementAudience defines who can see a notice-board entry.
type AnnouncementAudience string

const (
	AnnouncementAudienceAll      AnnouncementAudience = "ALL"
	AnnouncementAudienceStaff    AnnouncementAudience = "STAFF"
	AnnouncementAudienceParents  AnnouncementAudience = "PARENTS"
	AnnouncementAudienceStudents AnnouncementAudience = "STUDENTS"
	AnnouncementAudienceClass    AnnouncementAudience = "CLASS"
)

// AnnouncementCategory groups notices for board filtering.
type AnnouncementCategory string

const (
	AnnouncementCategoryGeneral AnnouncementCategory = "GENERAL"
	AnnouncementCategoryFees    AnnouncementCategory = "FEES"
	AnnouncementCategoryEvents  AnnouncementCategory = "EVENTS"
	AnnouncementCategoryExams   AnnouncementCategory = "EXAMS"
)

// AnnouncementPriority defines ordering for notices.
type AnnouncementPriority string

const (
	AnnouncementPriorityLow    AnnouncementPriority = "LOW"
	AnnouncementPriorityNormal AnnouncementPriority = "NORMAL"
	AnnouncementPriorityHigh   AnnouncementPriority = "HIGH"
)

// Announcement represents a persisted notice-board entry.
type Announcement struct {
	ID            string               `db:"id" json:"id"`
	Title         string               `db:"title" json:"title"`
	Content       string               `db:"content" json:"content"`
	Audience      AnnouncementAudience `db:"audience" json:"audience"`
	Category      AnnouncementCategory `db:"category" json:"category"`
	TargetClassID *string              `db:"target_class_id" json:"target_class_id,omitempty"`
	Priority      AnnouncementPriority `db:"priority" json:"priority"`
	IsPinned      bool                 `db:"is_pinned" json:"is_pinned"`
	PublishedAt   time.Time            `db:"published_at" json:"published_at"`
	ExpiresAt     *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	CreatedBy     string               `db:"created_by" json:"created_by"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at" json:"updated_at"`
}

// AnnouncementFilter allows listing notices for a board view.
type AnnouncementFilter struct {
	AudienceRoles []UserRole
	Category      *AnnouncementCategory
	ClassIDs      []string
	IncludePinned bool
	Page          int
	PageSize      int
}
