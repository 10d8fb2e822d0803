package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

// ProductRepository reads the catalog owned by the product service. It never writes.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

var textColumns = map[domain.TextField]string{
	domain.FieldDesignation: "designation",
	domain.FieldDescription: "description",
}

// FetchTextBatch returns up to limit rows with id > afterID, ordered by id.
func (r *ProductRepository) FetchTextBatch(ctx context.Context, field domain.TextField, afterID int64, limit int) ([]domain.TextRow, error) {
	column, ok := textColumns[field]
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "fetch text batch", fmt.Errorf("unsupported field %q", field))
	}
	query, args, err := psql.Select("id", fmt.Sprintf("COALESCE(%s, '')", column)).
		From("products").
		Where(sq.Gt{"id": afterID}).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build text batch query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query text batch: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TextRow, 0, limit)
	for rows.Next() {
		var row domain.TextRow
		if err := rows.Scan(&row.ID, &row.Text); err != nil {
			return nil, fmt.Errorf("scan text row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate text rows: %w", err)
	}
	return out, nil
}

func (r *ProductRepository) FetchLabeledBatch(ctx context.Context, afterID int64, limit int) ([]domain.LabeledText, error) {
	query, args, err := psql.Select("id", "COALESCE(designation, '')", "COALESCE(description, '')", "category_id").
		From("products").
		Where(sq.And{sq.Gt{"id": afterID}, sq.NotEq{"category_id": nil}}).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build labeled batch query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query labeled batch: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LabeledText, 0, limit)
	for rows.Next() {
		var row domain.LabeledText
		if err := rows.Scan(&row.ID, &row.Designation, &row.Description, &row.CategoryID); err != nil {
			return nil, fmt.Errorf("scan labeled row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labeled rows: %w", err)
	}
	return out, nil
}

func (r *ProductRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}
