package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/fulfillment/internal/domain/sales"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDocumentRepository implements sales.DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// FindByID finds a document with its lines
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderedLines).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate locks the document header with SELECT ... FOR UPDATE and
// loads its lines
func (r *GormDocumentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*sales.Document, error) {
	var model models.DocumentModel
	db := r.db.WithContext(ctx)
	if err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, translateError(err)
	}
	if err := orderedLines(db).
		Where("document_id = ?", id).
		Find(&model.Lines).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a document by its document number
func (r *GormDocumentRepository) FindByNumber(ctx context.Context, number string) (*sales.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderedLines).
		Where("number = ?", number).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDownstream finds documents of filter.Type referencing the source
// directly or descending from the order. Cancelled documents are included;
// callers decide whether they count.
func (r *GormDocumentRepository) FindDownstream(ctx context.Context, filter sales.DownstreamFilter) ([]*sales.Document, error) {
	if filter.SourceID == nil && filter.OrderID == nil {
		return nil, shared.NewValidationError("A source or order reference is required")
	}

	query := r.db.WithContext(ctx).Model(&models.DocumentModel{}).Where("type = ?", filter.Type)
	switch {
	case filter.SourceID != nil && filter.OrderID != nil:
		query = query.Where("(source_id = ? OR order_id = ?)", *filter.SourceID, *filter.OrderID)
	case filter.SourceID != nil:
		query = query.Where("source_id = ?", *filter.SourceID)
	default:
		query = query.Where("order_id = ?", *filter.OrderID)
	}

	var rows []models.DocumentModel
	if err := query.
		Preload("Lines", orderedLines).
		Order("created_at ASC, number ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDocuments(rows), nil
}

// List lists documents with paging and returns the total count
func (r *GormDocumentRepository) List(ctx context.Context, filter sales.DocumentFilter) ([]*sales.Document, int64, error) {
	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.DocumentModel{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DocumentModel{}), filter).
		Scopes(paginate(filter.Filter, documentSortColumns, "created_at"))

	var rows []models.DocumentModel
	if err := query.Preload("Lines", orderedLines).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDocuments(rows), total, nil
}

// applyFilter applies filter conditions without pagination
func (r *GormDocumentRepository) applyFilter(query *gorm.DB, filter sales.DocumentFilter) *gorm.DB {
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("(number LIKE ? OR remark LIKE ?)", like, like)
	}
	return query
}

// Create inserts a new document and its lines
func (r *GormDocumentRepository) Create(ctx context.Context, doc *sales.Document) error {
	assignLineIDs(doc)
	model := models.DocumentModelFromDomain(doc)
	lines := model.Lines
	model.Lines = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return translateError(err)
		}
		if len(lines) > 0 {
			if err := tx.Create(&lines).Error; err != nil {
				return translateError(err)
			}
		}
		return nil
	})
}

// SaveWithLock saves with optimistic locking (version check). The stored
// version must equal doc.Version; it is bumped on success.
func (r *GormDocumentRepository) SaveWithLock(ctx context.Context, doc *sales.Document) error {
	assignLineIDs(doc)
	model := models.DocumentModelFromDomain(doc)
	now := time.Now()
	nextVersion := doc.Version + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Get current version from database
		var current models.DocumentModel
		if err := tx.Select("id", "version").First(&current, "id = ?", doc.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if current.Version != doc.Version {
			return shared.NewConcurrencyError("%s %s has been modified by another process", doc.Type, doc.Number)
		}

		result := tx.Model(&models.DocumentModel{}).
			Where("id = ? AND version = ?", doc.ID, doc.Version).
			Updates(map[string]interface{}{
				"status":          model.Status,
				"customer_id":     model.CustomerID,
				"document_date":   model.DocumentDate,
				"due_date":        model.DueDate,
				"discount_amount": model.DiscountAmount,
				"tax_amount":      model.TaxAmount,
				"paid_amount":     model.PaidAmount,
				"total_amount":    model.TotalAmount,
				"payable_amount":  model.PayableAmount,
				"due_amount":      model.DueAmount,
				"remark":          model.Remark,
				"closed_at":       model.ClosedAt,
				"cancelled_at":    model.CancelledAt,
				"version":         nextVersion,
				"updated_at":      now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewConcurrencyError("%s %s has been modified by another process", doc.Type, doc.Number)
		}

		return saveLines(tx, doc.ID, model.Lines)
	})
	if err != nil {
		return translateError(err)
	}

	doc.MarkSaved(now)
	return nil
}

// saveLines deletes lines no longer on the document and upserts the rest
func saveLines(tx *gorm.DB, documentID uuid.UUID, lines []models.DocumentLineModel) error {
	ids := make([]uuid.UUID, len(lines))
	for i := range lines {
		ids[i] = lines[i].ID
	}

	stale := tx.Where("document_id = ?", documentID)
	if len(ids) > 0 {
		stale = stale.Where("id NOT IN ?", ids)
	}
	if err := stale.Delete(&models.DocumentLineModel{}).Error; err != nil {
		return err
	}

	for i := range lines {
		if err := tx.Save(&lines[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// NextNumber generates the next document number for docType in the year of at.
// Format: <PREFIX>-YYYY-NNNNN (e.g., SO-2026-00001). Two transactions racing
// for the same number collide on the unique index and one of them retries.
func (r *GormDocumentRepository) NextNumber(ctx context.Context, docType sales.DocumentType, at time.Time) (string, error) {
	prefix := fmt.Sprintf("%s-%d-", docType.NumberPrefix(), at.Year())

	var last string
	err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Select("number").
		Where("number LIKE ?", prefix+"%").
		Order("number DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", err
	}

	var nextNum int64 = 1
	if last != "" {
		var num int64
		if _, parseErr := fmt.Sscanf(strings.TrimPrefix(last, prefix), "%d", &num); parseErr == nil {
			nextNum = num + 1
		}
	}
	return fmt.Sprintf("%s%05d", prefix, nextNum), nil
}

func assignLineIDs(doc *sales.Document) {
	now := time.Now()
	for i := range doc.Lines {
		line := &doc.Lines[i]
		if line.ID == uuid.Nil {
			line.ID = uuid.New()
		}
		if line.CreatedAt.IsZero() {
			line.CreatedAt = now
		}
		line.UpdatedAt = now
		line.DocumentID = doc.ID
	}
}

func toDocuments(rows []models.DocumentModel) []*sales.Document {
	docs := make([]*sales.Document, len(rows))
	for i := range rows {
		docs[i] = rows[i].ToDomain()
	}
	return docs
}

// Ensure GormDocumentRepository implements DocumentRepository
var _ sales.DocumentRepository = (*GormDocumentRepository)(nil)
