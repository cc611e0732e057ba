package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/civicdesk/civicdesk/internal/apperr"
	"github.com/civicdesk/civicdesk/internal/models"
)

type ComplaintFilter struct {
	Status       string
	Priority     string
	Channel      string
	WardID       string
	DepartmentID string
	Search       string
	From         *time.Time
	To           *time.Time
	Offset       int
	Limit        int
}

// NextComplaintNumber allocates the next human-facing complaint number.
func (r *GormRepo) NextComplaintNumber(ctx context.Context) (int64, error) {
	seq := models.ComplaintSequence{}
	if err := r.db(ctx).Create(&seq).Error; err != nil {
		return 0, translate(err, "complaint number")
	}
	return seq.ID, nil
}

// ComplaintBySource looks up a complaint, deleted or not, by its intake
// idempotency key. Nil keys are ignored; (nil, nil) means no match.
func (r *GormRepo) ComplaintBySource(ctx context.Context, messageID, callID *string) (*models.Complaint, error) {
	if messageID == nil && callID == nil {
		return nil, nil
	}
	q := r.db(ctx).Unscoped()
	switch {
	case messageID != nil && callID != nil:
		q = q.Where("source_message_id = ? OR source_call_id = ?", *messageID, *callID)
	case messageID != nil:
		q = q.Where("source_message_id = ?", *messageID)
	default:
		q = q.Where("source_call_id = ?", *callID)
	}

	var c models.Complaint
	err := q.Limit(1).Find(&c).Error
	if err != nil {
		return nil, translate(err, "complaint")
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

func (r *GormRepo) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	return translate(r.db(ctx).Omit(clause.Associations).Create(c).Error, "complaint")
}

func (r *GormRepo) ComplaintByID(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var c models.Complaint
	if err := r.db(ctx).Preload("Citizen").Where("id = ?", id).First(&c).Error; err != nil {
		return nil, translate(err, "complaint")
	}
	return &c, nil
}

// LockComplaint reads a complaint for update inside a transaction.
func (r *GormRepo) LockComplaint(ctx context.Context, id uuid.UUID) (*models.Complaint, error) {
	var c models.Complaint
	err := r.db(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, translate(err, "complaint")
	}
	return &c, nil
}

func (r *GormRepo) ComplaintByNumber(ctx context.Context, number int64) (*models.Complaint, error) {
	var c models.Complaint
	err := r.db(ctx).Preload("Citizen").
		Where("complaint_number = ?", number).
		First(&c).Error
	if err != nil {
		return nil, translate(err, "complaint")
	}
	return &c, nil
}

func (r *GormRepo) UpdateComplaint(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db(ctx).Model(&models.Complaint{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return translate(res.Error, "complaint")
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "complaint not found")
	}
	return nil
}

func (r *GormRepo) SoftDeleteComplaint(ctx context.Context, id uuid.UUID) error {
	res := r.db(ctx).Where("id = ?", id).Delete(&models.Complaint{})
	if res.Error != nil {
		return translate(res.Error, "complaint")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "complaint")
	}
	return nil
}

// likeEscaper makes a search term match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *GormRepo) ListComplaints(ctx context.Context, f ComplaintFilter) ([]models.Complaint, int64, error) {
	q := r.db(ctx).Model(&models.Complaint{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Channel != "" {
		q = q.Where("channel = ?", f.Channel)
	}
	if f.WardID != "" {
		q = q.Where("ward_id = ?", f.WardID)
	}
	if f.DepartmentID != "" {
		q = q.Where("department_id = ?", f.DepartmentID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		q = q.Where(`(LOWER(raw_text) LIKE ? ESCAPE '\' OR LOWER(location_text) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\')`, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "complaints")
	}

	var items []models.Complaint
	err := q.Order("created_at DESC").Order("complaint_number DESC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&items).Error
	if err != nil {
		return nil, 0, translate(err, "complaints")
	}
	return items, total, nil
}
