package db

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	"github.com/ststudios/whitelist/types"
)

const pgUniqueViolation = "23505"

// PostgresStore is the hosted-Postgres Store built on gorm. The unique index
// on applicant_id makes concurrent inserts for the same user fail cleanly
// with a uniqueness violation instead of racing into two rows.
type PostgresStore struct {
	db *gorm.DB
}

type applicationRow struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	ApplicantID     string `gorm:"uniqueIndex;not null"`
	ApplicantName   string `gorm:"not null"`
	ApplicantAvatar string
	GameHandle      string `gorm:"not null"`
	Age             int64  `gorm:"not null"`
	Experience      string `gorm:"type:text;not null"`
	Status          string `gorm:"index;not null"`
	RejectionReason string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (applicationRow) TableName() string { return "formularios" }

// NewPostgresStore migrates the schema and returns the Store
func NewPostgresStore(db *gorm.DB) (*PostgresStore, error) {
	if err := db.AutoMigrate(&applicationRow{}); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) FindByApplicantID(ctx context.Context, applicantID string) (*types.Application, error) {
	var row applicationRow
	err := s.db.WithContext(ctx).Where("applicant_id = ?", applicantID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	app := fromRow(row)
	return &app, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*types.Application, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}
	var row applicationRow
	err = s.db.WithContext(ctx).First(&row, numericID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	app := fromRow(row)
	return &app, nil
}

func (s *PostgresStore) Insert(ctx context.Context, app *types.Application) (*types.Application, error) {
	row := toRow(*app)
	err := s.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateApplicant
		}
		return nil, err
	}
	stored := fromRow(row)
	return &stored, nil
}

func (s *PostgresStore) Update(ctx context.Context, app *types.Application) (*types.Application, error) {
	numericID, err := strconv.ParseInt(app.ID, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}
	updates := map[string]interface{}{
		"applicant_name":   app.ApplicantName,
		"applicant_avatar": app.ApplicantAvatar,
		"game_handle":      app.GameHandle,
		"age":              app.Age,
		"experience":       app.Experience,
		"status":           string(app.Status),
		"rejection_reason": app.RejectionReason,
		"updated_at":       time.Now().UTC(),
	}
	res := s.db.WithContext(ctx).Model(&applicationRow{}).Where("id = ?", numericID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, app.ID)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status types.Status, limit int64) ([]types.Application, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	if limit > 0 {
		q = q.Limit(int(limit))
	}
	var rows []applicationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[types.Status]int64, error) {
	var results []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&applicationRow{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[types.Status]int64)
	for _, r := range results {
		counts[types.Status(r.Status)] = r.Count
	}
	return counts, nil
}

func (s *PostgresStore) Search(ctx context.Context, query string, limit int64) ([]types.Application, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC").
		Where("applicant_id = ? OR applicant_name ILIKE ? OR game_handle ILIKE ?",
			query, "%"+query+"%", "%"+query+"%")
	if numericID, err := strconv.ParseInt(query, 10, 64); err == nil {
		q = q.Or("id = ?", numericID)
	}
	if limit > 0 {
		q = q.Limit(int(limit))
	}
	var rows []applicationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromRows(rows), nil
}

func toRow(app types.Application) applicationRow {
	return applicationRow{
		ApplicantID:     app.ApplicantID,
		ApplicantName:   app.ApplicantName,
		ApplicantAvatar: app.ApplicantAvatar,
		GameHandle:      app.GameHandle,
		Age:             app.Age,
		Experience:      app.Experience,
		Status:          string(app.Status),
		RejectionReason: app.RejectionReason,
	}
}

func fromRow(row applicationRow) types.Application {
	return types.Application{
		ID:              strconv.FormatInt(row.ID, 10),
		ApplicantID:     row.ApplicantID,
		ApplicantName:   row.ApplicantName,
		ApplicantAvatar: row.ApplicantAvatar,
		GameHandle:      row.GameHandle,
		Age:             row.Age,
		Experience:      row.Experience,
		Status:          types.Status(row.Status),
		RejectionReason: row.RejectionReason,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func fromRows(rows []applicationRow) []types.Application {
	apps := make([]types.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, fromRow(row))
	}
	return apps
}
