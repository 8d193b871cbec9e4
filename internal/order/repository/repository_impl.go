package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/crmfeed/internal/order/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) ListAll(ctx context.Context) ([]domain.Order, error) {
	var records []OrderRecord
	err := r.base(ctx).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toDomain(records)
}

func (r *repository) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	var records []OrderRecord
	err := r.base(ctx).
		Where("customer_id = ?", customerID).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return toDomain(records)
}

func (r *repository) FindByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	var record OrderRecord
	err := r.base(ctx).Where("id = ?", orderID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	order, err := record.toDomain()
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListProjectRefs(ctx context.Context) ([]domain.ProjectRef, error) {
	var refs []domain.ProjectRef
	err := r.db.WithContext(ctx).Raw(
		`SELECT id AS order_id, customer_id, status
		 FROM orders
		 ORDER BY id ASC`,
	).Scan(&refs).Error
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *repository) base(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&OrderRecord{}).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Order("modified_at DESC, id DESC")
}

func toDomain(records []OrderRecord) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(records))
	for i := range records {
		order, err := records[i].toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
