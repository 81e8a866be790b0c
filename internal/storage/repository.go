package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertSaleSQL = `INSERT INTO sales_records (
        owner_id,
        product_name,
        category,
        price,
        quantity,
        sold_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, created_at;`

	insertSaleBatchSQL = `INSERT INTO sales_records (
        owner_id,
        product_name,
        category,
        price,
        quantity,
        sold_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	listSalesSQL = `SELECT
        id,
        owner_id,
        product_name,
        category,
        price,
        quantity,
        sold_at,
        created_at
    FROM sales_records
    WHERE owner_id = $1
      AND ($2 = '' OR product_name = $2)
    ORDER BY sold_at DESC, id DESC
    LIMIT $3;`

	listSalesForAnalysisSQL = `SELECT
        id,
        owner_id,
        product_name,
        category,
        price,
        quantity,
        sold_at,
        created_at
    FROM sales_records
    WHERE owner_id = $1
    ORDER BY sold_at, id;`

	listProductSalesSQL = `SELECT
        id,
        owner_id,
        product_name,
        category,
        price,
        quantity,
        sold_at,
        created_at
    FROM sales_records
    WHERE owner_id = $1
      AND product_name = $2
    ORDER BY sold_at, id;`

	deleteSaleSQL = `DELETE FROM sales_records WHERE owner_id = $1 AND id = $2;`

	countSalesSQL = `SELECT COUNT(*) FROM sales_records WHERE owner_id = $1;`

	distinctOwnersSQL = `SELECT DISTINCT owner_id FROM sales_records ORDER BY owner_id;`

	upsertAnalysisSQL = `INSERT INTO product_analyses (
        owner_id,
        product_name,
        category,
        current_price,
        recommended_price,
        elasticity_score,
        r_squared,
        product_type,
        expected_revenue_change,
        optimization_target,
        observations
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (owner_id, product_name) DO UPDATE
    SET
        category                = EXCLUDED.category,
        current_price           = EXCLUDED.current_price,
        recommended_price       = EXCLUDED.recommended_price,
        elasticity_score        = EXCLUDED.elasticity_score,
        r_squared               = EXCLUDED.r_squared,
        product_type            = EXCLUDED.product_type,
        expected_revenue_change = EXCLUDED.expected_revenue_change,
        optimization_target     = EXCLUDED.optimization_target,
        observations            = EXCLUDED.observations,
        created_at              = now();`

	listAnalysesSQL = `SELECT
        owner_id,
        product_name,
        category,
        current_price,
        recommended_price,
        elasticity_score,
        r_squared,
        product_type,
        expected_revenue_change,
        optimization_target,
        observations,
        created_at
    FROM product_analyses
    WHERE owner_id = $1
    ORDER BY product_name;`

	getAnalysisSQL = `SELECT
        owner_id,
        product_name,
        category,
        current_price,
        recommended_price,
        elasticity_score,
        r_squared,
        product_type,
        expected_revenue_change,
        optimization_target,
        observations,
        created_at
    FROM product_analyses
    WHERE owner_id = $1
      AND product_name = $2;`

	deleteAnalysesSQL = `DELETE FROM product_analyses WHERE owner_id = $1;`

	countAnalysesSQL = `SELECT COUNT(*) FROM product_analyses WHERE owner_id = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SaleStore defines operations for sales record persistence.
type SaleStore interface {
	InsertSale(ctx context.Context, rec SaleRecord) (SaleRecord, error)
	InsertSales(ctx context.Context, records []SaleRecord) (int64, error)
	ListSales(ctx context.Context, owner, product string, limit int) ([]SaleRecord, error)
	ListSalesForAnalysis(ctx context.Context, owner string) ([]SaleRecord, error)
	ListProductSales(ctx context.Context, owner, product string) ([]SaleRecord, error)
	DeleteSale(ctx context.Context, owner string, id int64) error
	CountSales(ctx context.Context, owner string) (int64, error)
	DistinctOwners(ctx context.Context) ([]string, error)
}

// AnalysisStore defines operations for stored elasticity analyses.
type AnalysisStore interface {
	UpsertAnalysis(ctx context.Context, analysis ProductAnalysis) error
	ListAnalyses(ctx context.Context, owner string) ([]ProductAnalysis, error)
	GetAnalysis(ctx context.Context, owner, product string) (ProductAnalysis, error)
	DeleteAnalyses(ctx context.Context, owner string) error
	CountAnalyses(ctx context.Context, owner string) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to sales records and product analyses.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertSale persists a single sales record and returns it with its assigned id.
func (s *Store) InsertSale(ctx context.Context, rec SaleRecord) (SaleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SaleRecord{}, err
	}

	row := pool.QueryRow(ctx, insertSaleSQL,
		rec.OwnerID,
		rec.ProductName,
		rec.Category,
		rec.Price.String(),
		rec.Quantity,
		rec.SoldAt,
	)
	if scanErr := row.Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return SaleRecord{}, fmt.Errorf("insert sale: %w", scanErr)
	}
	return rec, nil
}

// InsertSales persists a batch of sales records in one round trip.
func (s *Store) InsertSales(ctx context.Context, records []SaleRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(insertSaleBatchSQL,
			rec.OwnerID,
			rec.ProductName,
			rec.Category,
			rec.Price.String(),
			rec.Quantity,
			rec.SoldAt,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range records {
		if _, execErr := results.Exec(); execErr != nil {
			return inserted, fmt.Errorf("insert sales batch: %w", execErr)
		}
		inserted++
	}
	return inserted, nil
}

// ListSales lists an owner's most recent sales, optionally filtered by product.
func (s *Store) ListSales(ctx context.Context, owner, product string, limit int) ([]SaleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSalesSQL, owner, product, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list sales: %w", queryErr)
	}
	defer rows.Close()

	return collectSales(rows, limit)
}

// ListSalesForAnalysis returns all of an owner's sales ordered by sale date
// with insertion order breaking ties, the order analysis runs consume.
func (s *Store) ListSalesForAnalysis(ctx context.Context, owner string) ([]SaleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSalesForAnalysisSQL, owner)
	if queryErr != nil {
		return nil, fmt.Errorf("list sales for analysis: %w", queryErr)
	}
	defer rows.Close()

	return collectSales(rows, 0)
}

// ListProductSales returns one product's sales ordered by sale date.
func (s *Store) ListProductSales(ctx context.Context, owner, product string) ([]SaleRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listProductSalesSQL, owner, product)
	if queryErr != nil {
		return nil, fmt.Errorf("list product sales: %w", queryErr)
	}
	defer rows.Close()

	return collectSales(rows, 0)
}

// DeleteSale removes one owner-scoped sales record.
func (s *Store) DeleteSale(ctx context.Context, owner string, id int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteSaleSQL, owner, id)
	if execErr != nil {
		return fmt.Errorf("delete sale: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountSales counts an owner's stored sales records.
func (s *Store) CountSales(ctx context.Context, owner string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSalesSQL, owner).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count sales: %w", scanErr)
	}
	return count, nil
}

// DistinctOwners lists every owner with at least one sales record.
func (s *Store) DistinctOwners(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, distinctOwnersSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("distinct owners: %w", queryErr)
	}
	defer rows.Close()

	owners := make([]string, 0)
	for rows.Next() {
		var owner string
		if scanErr := rows.Scan(&owner); scanErr != nil {
			return nil, scanErr
		}
		owners = append(owners, owner)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return owners, nil
}

// UpsertAnalysis persists or overwrites the analysis row for (owner, product).
func (s *Store) UpsertAnalysis(ctx context.Context, analysis ProductAnalysis) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertAnalysisSQL,
		analysis.OwnerID,
		analysis.ProductName,
		analysis.Category,
		analysis.CurrentPrice.String(),
		analysis.RecommendedPrice.String(),
		analysis.ElasticityScore,
		analysis.RSquared,
		analysis.ProductType,
		analysis.ExpectedRevenueChange,
		analysis.OptimizationTarget,
		analysis.Observations,
	)
	if execErr != nil {
		return fmt.Errorf("upsert analysis: %w", execErr)
	}
	return nil
}

// ListAnalyses lists an owner's stored analyses ordered by product name.
func (s *Store) ListAnalyses(ctx context.Context, owner string) ([]ProductAnalysis, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAnalysesSQL, owner)
	if queryErr != nil {
		return nil, fmt.Errorf("list analyses: %w", queryErr)
	}
	defer rows.Close()

	analyses := make([]ProductAnalysis, 0)
	for rows.Next() {
		analysis, scanErr := scanAnalysis(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		analyses = append(analyses, analysis)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return analyses, nil
}

// GetAnalysis fetches one stored analysis; pgx.ErrNoRows when absent.
func (s *Store) GetAnalysis(ctx context.Context, owner, product string) (ProductAnalysis, error) {
	pool, err := s.getPool()
	if err != nil {
		return ProductAnalysis{}, err
	}

	rows, queryErr := pool.Query(ctx, getAnalysisSQL, owner, product)
	if queryErr != nil {
		return ProductAnalysis{}, fmt.Errorf("get analysis: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return ProductAnalysis{}, rows.Err()
		}
		return ProductAnalysis{}, pgx.ErrNoRows
	}
	return scanAnalysis(rows)
}

// DeleteAnalyses removes all stored analyses for an owner.
func (s *Store) DeleteAnalyses(ctx context.Context, owner string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAnalysesSQL, owner); execErr != nil {
		return fmt.Errorf("delete analyses: %w", execErr)
	}
	return nil
}

// CountAnalyses counts an owner's stored analyses.
func (s *Store) CountAnalyses(ctx context.Context, owner string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countAnalysesSQL, owner).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count analyses: %w", scanErr)
	}
	return count, nil
}

func collectSales(rows pgx.Rows, sizeHint int) ([]SaleRecord, error) {
	records := make([]SaleRecord, 0, sizeHint)
	for rows.Next() {
		rec, scanErr := scanSale(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanSale(rows pgx.Rows) (SaleRecord, error) {
	var (
		rec      SaleRecord
		priceStr string
	)

	if err := rows.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.ProductName,
		&rec.Category,
		&priceStr,
		&rec.Quantity,
		&rec.SoldAt,
		&rec.CreatedAt,
	); err != nil {
		return SaleRecord{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return SaleRecord{}, fmt.Errorf("parse price: %w", err)
	}
	rec.Price = price

	return rec, nil
}

func scanAnalysis(rows pgx.Rows) (ProductAnalysis, error) {
	var (
		analysis       ProductAnalysis
		currentStr     string
		recommendedStr string
	)

	if err := rows.Scan(
		&analysis.OwnerID,
		&analysis.ProductName,
		&analysis.Category,
		&currentStr,
		&recommendedStr,
		&analysis.ElasticityScore,
		&analysis.RSquared,
		&analysis.ProductType,
		&analysis.ExpectedRevenueChange,
		&analysis.OptimizationTarget,
		&analysis.Observations,
		&analysis.CreatedAt,
	); err != nil {
		return ProductAnalysis{}, err
	}

	current, err := decimal.NewFromString(currentStr)
	if err != nil {
		return ProductAnalysis{}, fmt.Errorf("parse current price: %w", err)
	}
	recommended, err := decimal.NewFromString(recommendedStr)
	if err != nil {
		return ProductAnalysis{}, fmt.Errorf("parse recommended price: %w", err)
	}
	analysis.CurrentPrice = current
	analysis.RecommendedPrice = recommended

	return analysis, nil
}
