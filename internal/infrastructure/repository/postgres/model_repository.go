package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

const modelColumns = `m.id, m.name, m.description, m.start_date, m.end_date, m.status, m.is_active, m.file_name,
	m.key_to_category_map, m.error_message, m.version, m.created_at, m.updated_at,
	s.macro_accuracy, s.micro_accuracy, s.log_loss, s.confusion_matrix`

const modelFrom = `classification_models m LEFT JOIN model_stats s ON s.model_id = m.id`

type ModelRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewModelRepository(db *sql.DB) *ModelRepository {
	return &ModelRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *ModelRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS classification_models (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	start_date TIMESTAMPTZ NOT NULL,
	end_date TIMESTAMPTZ,
	status TEXT NOT NULL CHECK (status IN ('started', 'finished', 'cancelled')),
	is_active BOOLEAN NOT NULL DEFAULT FALSE,
	file_name TEXT,
	key_to_category_map TEXT,
	error_message TEXT,
	version BIGINT NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_classification_models_single_active
	ON classification_models(is_active) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_classification_models_created_at ON classification_models(created_at);

CREATE TABLE IF NOT EXISTS model_stats (
	model_id UUID PRIMARY KEY REFERENCES classification_models(id) ON DELETE CASCADE,
	macro_accuracy DOUBLE PRECISION NOT NULL,
	micro_accuracy DOUBLE PRECISION NOT NULL,
	log_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
	confusion_matrix JSONB
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ModelRepository) Create(ctx context.Context, model *domain.ClassificationModel) error {
	now := r.now()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	model.UpdatedAt = model.CreatedAt
	model.IsActive = false
	model.Version = 1

	_, err := r.db.ExecContext(ctx, `
INSERT INTO classification_models (
	id, name, description, start_date, end_date, status, is_active, file_name, key_to_category_map,
	error_message, version, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,FALSE,$7,$8,$9,1,$10,$11)
`,
		model.ID, model.Name, nullString(model.Description), model.StartDate, model.EndDate, string(model.Status),
		nullString(model.FileName), nullString(model.KeyToCategoryMap), nullString(model.ErrorMessage),
		model.CreatedAt, model.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "insert model", err)
		}
		return fmt.Errorf("insert model: %w", err)
	}
	return nil
}

func (r *ModelRepository) GetByID(ctx context.Context, id string) (*domain.ClassificationModel, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM `+modelFrom+` WHERE m.id = $1`, id)
	model, err := scanModel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrModelNotFound, "get model", fmt.Errorf("model %s", id))
		}
		return nil, fmt.Errorf("scan model: %w", err)
	}
	return model, nil
}

func (r *ModelRepository) GetActive(ctx context.Context) (*domain.ClassificationModel, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM `+modelFrom+` WHERE m.is_active`)
	model, err := scanModel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNoActiveModel, "get active model", errors.New("no record has is_active=true"))
		}
		return nil, fmt.Errorf("scan active model: %w", err)
	}
	return model, nil
}

// List pages by created_at; search is a case-insensitive substring match over text and date columns.
func (r *ModelRepository) List(ctx context.Context, query domain.ListQuery) ([]domain.ClassificationModel, int64, error) {
	query = query.Normalize()
	var where sq.Sqlizer = sq.Expr("TRUE")
	if query.Search != "" {
		pattern := "%" + escapeLike(query.Search) + "%"
		where = sq.Or{
			sq.Expr("LOWER(m.id::text) LIKE ?", pattern),
			sq.Expr("LOWER(m.name) LIKE ?", pattern),
			sq.Expr("LOWER(COALESCE(m.description, '')) LIKE ?", pattern),
			sq.Expr("LOWER(COALESCE(m.file_name, '')) LIKE ?", pattern),
			sq.Expr("to_char(m.start_date, 'YYYY-MM-DD HH24:MI:SS') LIKE ?", pattern),
			sq.Expr("COALESCE(to_char(m.end_date, 'YYYY-MM-DD HH24:MI:SS'), '') LIKE ?", pattern),
		}
	}

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("classification_models m").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count models: %w", err)
	}

	listSQL, listArgs, err := psql.Select(modelColumns).
		From(modelFrom).
		Where(where).
		OrderBy("m.created_at ASC", "m.id ASC").
		Limit(uint64(query.Take)).
		Offset(uint64(query.Skip)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	models := make([]domain.ClassificationModel, 0, query.Take)
	for rows.Next() {
		model, err := scanModel(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan model: %w", err)
		}
		models = append(models, *model)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate models: %w", err)
	}
	return models, total, nil
}

// Update writes the record under its expected version. Activating deactivates every other record
// in the same transaction.
func (r *ModelRepository) Update(ctx context.Context, model *domain.ClassificationModel) error {
	return r.inTx(ctx, "update model", func(tx *sql.Tx) error {
		now := r.now()
		if model.IsActive {
			if err := deactivateOthers(ctx, tx, model.ID, now); err != nil {
				return err
			}
		}
		result, err := tx.ExecContext(ctx, `
UPDATE classification_models
SET name = $2, description = $3, start_date = $4, end_date = $5, status = $6, is_active = $7,
	file_name = $8, key_to_category_map = $9, version = version + 1, updated_at = $10
WHERE id = $1 AND version = $11
`,
			model.ID, model.Name, nullString(model.Description), model.StartDate, model.EndDate, string(model.Status),
			model.IsActive, nullString(model.FileName), nullString(model.KeyToCategoryMap), now, model.Version,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return missingOrStale(ctx, tx, model.ID, model.Version)
		}
		return nil
	})
}

// Activate re-checks eligibility in SQL so a concurrent status change cannot slip through.
func (r *ModelRepository) Activate(ctx context.Context, id string) error {
	return r.inTx(ctx, "activate model", func(tx *sql.Tx) error {
		now := r.now()
		if err := deactivateOthers(ctx, tx, id, now); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
UPDATE classification_models
SET is_active = TRUE, version = version + 1, updated_at = $2
WHERE id = $1 AND status = 'finished' AND COALESCE(file_name, '') <> ''
`, id, now)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			if err := ensureExists(ctx, tx, id); err != nil {
				return err
			}
			return domain.WrapError(domain.ErrActivationRejected, "activate model",
				fmt.Errorf("model %s is not finished or has no file", id))
		}
		return nil
	})
}

func (r *ModelRepository) CompleteTraining(ctx context.Context, model *domain.ClassificationModel) error {
	if model.Stats == nil {
		return domain.WrapError(domain.ErrInvalidInput, "complete training", errors.New("stats are required"))
	}
	matrix, err := json.Marshal(model.Stats.ConfusionMatrix)
	if err != nil {
		return fmt.Errorf("marshal confusion matrix: %w", err)
	}
	return r.inTx(ctx, "complete training", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE classification_models
SET end_date = $2, status = 'finished', file_name = $3, key_to_category_map = $4, error_message = NULL,
	version = version + 1, updated_at = $5
WHERE id = $1 AND status = 'started'
`, model.ID, model.EndDate, model.FileName, model.KeyToCategoryMap, r.now())
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			if err := ensureExists(ctx, tx, model.ID); err != nil {
				return err
			}
			return domain.WrapError(domain.ErrConflict, "complete training", fmt.Errorf("model %s is no longer started", model.ID))
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO model_stats (model_id, macro_accuracy, micro_accuracy, log_loss, confusion_matrix)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (model_id) DO UPDATE
SET macro_accuracy = EXCLUDED.macro_accuracy, micro_accuracy = EXCLUDED.micro_accuracy,
	log_loss = EXCLUDED.log_loss, confusion_matrix = EXCLUDED.confusion_matrix
`, model.ID, model.Stats.MacroAccuracy, model.Stats.MicroAccuracy, model.Stats.LogLoss, matrix)
		return err
	})
}

func (r *ModelRepository) MarkCancelled(ctx context.Context, id string, errMessage string) error {
	now := r.now()
	result, err := r.db.ExecContext(ctx, `
UPDATE classification_models
SET status = 'cancelled', error_message = $2, end_date = $3, version = version + 1, updated_at = $3
WHERE id = $1 AND status = 'started'
`, id, errMessage, now)
	if err != nil {
		return fmt.Errorf("cancel model: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConflict, "cancel model", fmt.Errorf("model %s is missing or not started", id))
	}
	return nil
}

func (r *ModelRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM classification_models WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrModelNotFound, "delete model", fmt.Errorf("model %s", id))
	}
	return nil
}

func (r *ModelRepository) inTx(ctx context.Context, op string, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, op, err)
		}
		if errors.Is(err, domain.ErrModelNotFound) || errors.Is(err, domain.ErrConflict) ||
			errors.Is(err, domain.ErrActivationRejected) || errors.Is(err, domain.ErrInvalidInput) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit tx: %w", op, err)
	}
	return nil
}

// deactivateOthers takes the activation lock first so concurrent activations serialize.
func deactivateOthers(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, activationLockKey); err != nil {
		return fmt.Errorf("acquire activation lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE classification_models
SET is_active = FALSE, version = version + 1, updated_at = $2
WHERE is_active AND id <> $1
`, id, now); err != nil {
		return fmt.Errorf("deactivate other models: %w", err)
	}
	return nil
}

func ensureExists(ctx context.Context, tx *sql.Tx, id string) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM classification_models WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check model exists: %w", err)
	}
	if !exists {
		return domain.WrapError(domain.ErrModelNotFound, "get model", fmt.Errorf("model %s", id))
	}
	return nil
}

func missingOrStale(ctx context.Context, tx *sql.Tx, id string, version int64) error {
	if err := ensureExists(ctx, tx, id); err != nil {
		return err
	}
	return domain.WrapError(domain.ErrConflict, "update model", fmt.Errorf("model %s version %d is stale", id, version))
}

type modelScanner interface {
	Scan(dest ...any) error
}

func scanModel(row modelScanner) (*domain.ClassificationModel, error) {
	var (
		m                                     domain.ClassificationModel
		description, fileName, keyMap, errMsg sql.NullString
		endDate                               sql.NullTime
		status                                string
		macroAccuracy, microAccuracy, logLoss sql.NullFloat64
		matrixRaw                             []byte
	)
	if err := row.Scan(
		&m.ID, &m.Name, &description, &m.StartDate, &endDate, &status, &m.IsActive, &fileName,
		&keyMap, &errMsg, &m.Version, &m.CreatedAt, &m.UpdatedAt,
		&macroAccuracy, &microAccuracy, &logLoss, &matrixRaw,
	); err != nil {
		return nil, err
	}
	m.Description = description.String
	m.FileName = fileName.String
	m.KeyToCategoryMap = keyMap.String
	m.ErrorMessage = errMsg.String
	m.Status = domain.ModelStatus(status)
	if endDate.Valid {
		end := endDate.Time.UTC()
		m.EndDate = &end
	}
	if macroAccuracy.Valid {
		m.Stats = &domain.ModelStats{
			MacroAccuracy: macroAccuracy.Float64,
			MicroAccuracy: microAccuracy.Float64,
			LogLoss:       logLoss.Float64,
		}
		if len(matrixRaw) > 0 && string(matrixRaw) != "null" {
			var matrix domain.ConfusionMatrix
			if err := json.Unmarshal(matrixRaw, &matrix); err != nil {
				return nil, fmt.Errorf("unmarshal confusion matrix: %w", err)
			}
			m.Stats.ConfusionMatrix = &matrix
		}
	}
	return &m, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
