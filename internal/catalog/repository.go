// Package catalog serves product and promotion lookups to the engine from the
// lane database, optionally fronted by a redis cache.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/lanecalc/pkg/db/models"
	pkgerrors "github.com/angelmondragon/lanecalc/pkg/errors"
	"github.com/angelmondragon/lanecalc/pkg/txn"
)

// Repository reads the catalog tables.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) withAssociations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("TaxComponents", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, tax_id ASC") }).
		Preload("PriceTiers", func(db *gorm.DB) *gorm.DB { return db.Order("min_qty ASC") }).
		Preload("GroupPrices")
}

// ProductByID loads an active product by SKU.
func (r *Repository) ProductByID(ctx context.Context, id string) (txn.Product, error) {
	return r.findProduct(ctx, "id = ? AND is_active = ?", id, true)
}

// ProductByBarcode loads an active product by barcode.
func (r *Repository) ProductByBarcode(ctx context.Context, barcode string) (txn.Product, error) {
	return r.findProduct(ctx, "barcode = ? AND is_active = ?", barcode, true)
}

func (r *Repository) findProduct(ctx context.Context, query string, args ...any) (txn.Product, error) {
	var row models.Product
	if err := r.withAssociations(ctx).Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return txn.Product{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return txn.Product{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return productFromModel(row), nil
}

// ActivePromotions returns promotions whose window covers at, in evaluation
// order.
func (r *Repository) ActivePromotions(ctx context.Context, at time.Time) ([]txn.Promotion, error) {
	at = at.UTC()
	var rows []models.Promotion
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("starts_at IS NULL OR starts_at <= ?", at).
		Where("ends_at IS NULL OR ends_at > ?", at).
		Order("rank ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotions")
	}
	out := make([]txn.Promotion, 0, len(rows))
	for _, row := range rows {
		promo, err := promotionFromModel(row)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("promotion %s", row.ID))
		}
		out = append(out, promo)
	}
	return out, nil
}

// SaveProduct upserts a product and replaces its tax, tier and group rows.
func (r *Repository) SaveProduct(ctx context.Context, p txn.Product) error {
	row := productToModel(p)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		for _, model := range []any{&models.ProductTaxComponent{}, &models.ProductPriceTier{}, &models.ProductGroupPrice{}} {
			if err := tx.Where("product_id = ?", row.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		if len(row.TaxComponents) > 0 {
			if err := tx.Create(&row.TaxComponents).Error; err != nil {
				return err
			}
		}
		if len(row.PriceTiers) > 0 {
			if err := tx.Create(&row.PriceTiers).Error; err != nil {
				return err
			}
		}
		if len(row.GroupPrices) > 0 {
			return tx.Create(&row.GroupPrices).Error
		}
		return nil
	})
}

// SavePromotion upserts a promotion. rank orders evaluation.
func (r *Repository) SavePromotion(ctx context.Context, p txn.Promotion, rank int) error {
	row, err := promotionToModel(p, rank)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Deactivate hides a product from lookups.
func (r *Repository) Deactivate(ctx context.Context, productID string) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", productID).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}
