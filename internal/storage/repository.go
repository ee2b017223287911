package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"previsto/internal/core"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// GetMonthPlan implements services.PlanStore. A plan owned by another user
// is reported as not found.
func (r *SQLiteRepository) GetMonthPlan(ctx context.Context, planID, userID string) (core.MonthPlan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, month_year, status
		 FROM month_plans WHERE id = ? AND user_id = ?`, planID, userID)

	var plan core.MonthPlan
	var monthYear string
	if err := row.Scan(&plan.ID, &plan.UserID, &monthYear, &plan.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.MonthPlan{}, core.ErrNotFound
		}
		return core.MonthPlan{}, fmt.Errorf("get month plan: %w", err)
	}

	ts, err := time.Parse(dateLayout, monthYear)
	if err != nil {
		return core.MonthPlan{}, fmt.Errorf("parse month_year %q: %w", monthYear, err)
	}
	plan.MonthYear = ts

	return plan, nil
}

// ListMonthPlans implements services.PlanStore, ascending by month_year.
func (r *SQLiteRepository) ListMonthPlans(ctx context.Context, userID string, start, end time.Time) ([]core.MonthPlan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, month_year, status
		 FROM month_plans
		 WHERE user_id = ? AND month_year >= ? AND month_year <= ?
		 ORDER BY month_year ASC`,
		userID, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list month plans: %w", err)
	}
	defer rows.Close()

	var plans []core.MonthPlan
	for rows.Next() {
		var plan core.MonthPlan
		var monthYear string
		if err := rows.Scan(&plan.ID, &plan.UserID, &monthYear, &plan.Status); err != nil {
			return nil, fmt.Errorf("scan month plan: %w", err)
		}
		ts, err := time.Parse(dateLayout, monthYear)
		if err != nil {
			return nil, fmt.Errorf("parse month_year %q: %w", monthYear, err)
		}
		plan.MonthYear = ts
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate month plans: %w", err)
	}

	return plans, nil
}

// ListExpectedTransactions implements services.PlanStore. Vendor, payment
// method and matched transaction come from one joined query; tags are
// attached from a second query over the join table. All raw-row to domain
// mapping happens in scanExpectedTransaction so shape assumptions about the
// schema stay in this package.
func (r *SQLiteRepository) ListExpectedTransactions(ctx context.Context, planID, userID string) ([]core.ExpectedTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT et.id, et.user_id, et.template_id, et.month_plan_id, et.description,
		        et.expected_amount, et.original_currency, et.transaction_type,
		        et.expected_date, et.status,
		        et.actual_amount, et.variance_amount, et.variance_percentage,
		        v.id, v.name,
		        pm.id, pm.name,
		        t.id, t.transaction_date, t.amount, t.description
		 FROM expected_transactions et
		 LEFT JOIN vendors v ON v.id = et.vendor_id
		 LEFT JOIN payment_methods pm ON pm.id = et.payment_method_id
		 LEFT JOIN transactions t ON t.id = et.matched_transaction_id
		 WHERE et.month_plan_id = ? AND et.user_id = ?
		 ORDER BY et.expected_date ASC, et.created_at ASC`,
		planID, userID)
	if err != nil {
		return nil, fmt.Errorf("list expected transactions: %w", err)
	}
	defer rows.Close()

	var result []core.ExpectedTransaction
	index := make(map[string]int)
	for rows.Next() {
		et, err := scanExpectedTransaction(rows)
		if err != nil {
			return nil, err
		}
		index[et.ID] = len(result)
		result = append(result, et)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expected transactions: %w", err)
	}

	if len(result) == 0 {
		return result, nil
	}

	tagRows, err := r.db.QueryContext(ctx,
		`SELECT ett.expected_transaction_id, tg.id, tg.name, tg.color
		 FROM expected_transaction_tags ett
		 JOIN tags tg ON tg.id = ett.tag_id
		 JOIN expected_transactions et ON et.id = ett.expected_transaction_id
		 WHERE et.month_plan_id = ? AND et.user_id = ?`,
		planID, userID)
	if err != nil {
		return nil, fmt.Errorf("list expected transaction tags: %w", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var etID string
		var tag core.Tag
		if err := tagRows.Scan(&etID, &tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		if i, ok := index[etID]; ok {
			result[i].Tags = append(result[i].Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}

	return result, nil
}

// scanExpectedTransaction maps one joined row to the domain entity. Nullable
// join columns become nil pointers, never zero values, so the engine can
// distinguish "no vendor" from an empty vendor.
func scanExpectedTransaction(rows *sql.Rows) (core.ExpectedTransaction, error) {
	var (
		et           core.ExpectedTransaction
		templateID   sql.NullString
		expectedAmt  string
		expectedDate string
		actualAmt    sql.NullString
		varianceAmt  sql.NullString
		variancePct  sql.NullFloat64
		vendorID     sql.NullString
		vendorName   sql.NullString
		pmID         sql.NullString
		pmName       sql.NullString
		txID         sql.NullString
		txDate       sql.NullString
		txAmount     sql.NullString
		txDesc       sql.NullString
	)

	err := rows.Scan(&et.ID, &et.UserID, &templateID, &et.MonthPlanID, &et.Description,
		&expectedAmt, &et.Currency, &et.TransactionType,
		&expectedDate, &et.Status,
		&actualAmt, &varianceAmt, &variancePct,
		&vendorID, &vendorName,
		&pmID, &pmName,
		&txID, &txDate, &txAmount, &txDesc)
	if err != nil {
		return core.ExpectedTransaction{}, fmt.Errorf("scan expected transaction: %w", err)
	}

	et.TemplateID = templateID.String

	if et.ExpectedAmount, err = decimal.NewFromString(expectedAmt); err != nil {
		return core.ExpectedTransaction{}, fmt.Errorf("parse expected_amount %q: %w", expectedAmt, err)
	}
	if et.ExpectedDate, err = time.Parse(dateLayout, expectedDate); err != nil {
		return core.ExpectedTransaction{}, fmt.Errorf("parse expected_date %q: %w", expectedDate, err)
	}

	if et.ActualAmount, err = nullDecimal(actualAmt, "actual_amount"); err != nil {
		return core.ExpectedTransaction{}, err
	}
	if et.VarianceAmount, err = nullDecimal(varianceAmt, "variance_amount"); err != nil {
		return core.ExpectedTransaction{}, err
	}
	if variancePct.Valid {
		pct := variancePct.Float64
		et.VariancePercentage = &pct
	}

	if vendorID.Valid {
		et.Vendor = &core.Vendor{ID: vendorID.String, Name: vendorName.String}
	}
	if pmID.Valid {
		et.PaymentMethod = &core.PaymentMethod{ID: pmID.String, Name: pmName.String}
	}
	if txID.Valid {
		matched := &core.MatchedTransaction{ID: txID.String, Description: txDesc.String}
		if txDate.Valid {
			if matched.Date, err = time.Parse(dateLayout, txDate.String); err != nil {
				return core.ExpectedTransaction{}, fmt.Errorf("parse transaction_date %q: %w", txDate.String, err)
			}
		}
		if txAmount.Valid {
			if matched.Amount, err = decimal.NewFromString(txAmount.String); err != nil {
				return core.ExpectedTransaction{}, fmt.Errorf("parse transaction amount %q: %w", txAmount.String, err)
			}
		}
		et.Matched = matched
	}

	return et, nil
}

func nullDecimal(v sql.NullString, field string) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, fmt.Errorf("parse %s %q: %w", field, v.String, err)
	}
	return &d, nil
}

// EnsureMonthPlan implements services.TemplateStore: returns the owner's
// plan for the month, creating an active one when absent.
func (r *SQLiteRepository) EnsureMonthPlan(ctx context.Context, userID string, monthYear time.Time) (core.MonthPlan, error) {
	monthStr := core.MonthStart(monthYear).Format(dateLayout)

	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, month_year, status FROM month_plans
		 WHERE user_id = ? AND month_year = ?`, userID, monthStr)

	var plan core.MonthPlan
	var stored string
	err := row.Scan(&plan.ID, &plan.UserID, &stored, &plan.Status)
	switch {
	case err == nil:
		plan.MonthYear = core.MonthStart(monthYear)
		return plan, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	default:
		return core.MonthPlan{}, fmt.Errorf("get month plan for %s: %w", monthStr, err)
	}

	plan = core.MonthPlan{
		ID:        uuid.NewString(),
		UserID:    userID,
		MonthYear: core.MonthStart(monthYear),
		Status:    core.PlanActive,
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO month_plans (id, user_id, month_year, status) VALUES (?, ?, ?, ?)`,
		plan.ID, plan.UserID, monthStr, plan.Status)
	if err != nil {
		return core.MonthPlan{}, fmt.Errorf("create month plan: %w", err)
	}

	slog.InfoContext(ctx, "Month plan created",
		"plan_id", plan.ID,
		"user_id", userID,
		"month_year", monthStr)

	return plan, nil
}

// ListActiveTemplates implements services.TemplateStore.
func (r *SQLiteRepository) ListActiveTemplates(ctx context.Context, userID string) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, description, expected_amount, original_currency,
		        transaction_type, frequency, anchor_date, vendor_id, payment_method_id
		 FROM recurring_templates
		 WHERE user_id = ? AND active = 1
		 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	defer rows.Close()

	var templates []core.RecurringTemplate
	index := make(map[string]int)
	for rows.Next() {
		var tpl core.RecurringTemplate
		var amount, anchor string
		var vendorID, pmID sql.NullString
		if err := rows.Scan(&tpl.ID, &tpl.UserID, &tpl.Description, &amount, &tpl.Currency,
			&tpl.TransactionType, &tpl.Frequency, &anchor, &vendorID, &pmID); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		if tpl.ExpectedAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse template amount %q: %w", amount, err)
		}
		if tpl.AnchorDate, err = time.Parse(dateLayout, anchor); err != nil {
			return nil, fmt.Errorf("parse anchor_date %q: %w", anchor, err)
		}
		tpl.VendorID = vendorID.String
		tpl.PaymentMethodID = pmID.String
		tpl.Active = true
		index[tpl.ID] = len(templates)
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}

	if len(templates) == 0 {
		return templates, nil
	}

	tagRows, err := r.db.QueryContext(ctx,
		`SELECT tt.template_id, tt.tag_id
		 FROM template_tags tt
		 JOIN recurring_templates rt ON rt.id = tt.template_id
		 WHERE rt.user_id = ? AND rt.active = 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list template tags: %w", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var templateID, tagID string
		if err := tagRows.Scan(&templateID, &tagID); err != nil {
			return nil, fmt.Errorf("scan template tag: %w", err)
		}
		if i, ok := index[templateID]; ok {
			templates[i].TagIDs = append(templates[i].TagIDs, tagID)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template tags: %w", err)
	}

	return templates, nil
}

// HasMaterialized implements services.TemplateStore.
func (r *SQLiteRepository) HasMaterialized(ctx context.Context, templateID, planID string) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM expected_transactions
		   WHERE template_id = ? AND month_plan_id = ?
		 )`, templateID, planID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check materialized: %w", err)
	}
	return exists, nil
}

// CreateExpectedTransaction implements services.TemplateStore. The engine
// itself never writes; only the materializer uses this.
func (r *SQLiteRepository) CreateExpectedTransaction(ctx context.Context, et core.ExpectedTransaction, tagIDs []string) (string, error) {
	if err := et.Validate(); err != nil {
		return "", fmt.Errorf("validate expected transaction: %w", err)
	}

	id := et.ID
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expected_transactions
		   (id, user_id, template_id, month_plan_id, vendor_id, payment_method_id,
		    description, expected_amount, original_currency, transaction_type,
		    expected_date, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, et.UserID, nullString(et.TemplateID), et.MonthPlanID,
		nullVendor(et), nullPaymentMethod(et),
		et.Description, et.ExpectedAmount.String(), et.Currency, et.TransactionType,
		et.ExpectedDate.Format(dateLayout), et.Status)
	if err != nil {
		return "", fmt.Errorf("create expected transaction: %w", err)
	}

	for _, tagID := range tagIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO expected_transaction_tags (expected_transaction_id, tag_id) VALUES (?, ?)`,
			id, tagID)
		if err != nil {
			return "", fmt.Errorf("attach tag %s: %w", tagID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit expected transaction: %w", err)
	}

	slog.DebugContext(ctx, "Expected transaction created",
		"id", id,
		"plan_id", et.MonthPlanID,
		"description", et.Description,
		"expected_date", et.ExpectedDate.Format(dateLayout))

	return id, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullVendor(et core.ExpectedTransaction) any {
	if et.Vendor != nil {
		return et.Vendor.ID
	}
	return nil
}

func nullPaymentMethod(et core.ExpectedTransaction) any {
	if et.PaymentMethod != nil {
		return et.PaymentMethod.ID
	}
	return nil
}
