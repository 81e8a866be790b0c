package storage

import (
	"context"
	"fmt"
)

const (
	createSalesTableSQL = `CREATE TABLE IF NOT EXISTS sales_records (
        id           BIGSERIAL PRIMARY KEY,
        owner_id     TEXT NOT NULL,
        product_name TEXT NOT NULL,
        category     TEXT NOT NULL DEFAULT '',
        price        NUMERIC(18,6) NOT NULL,
        quantity     BIGINT NOT NULL,
        sold_at      DATE NOT NULL,
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	createSalesIndexSQL = `CREATE INDEX IF NOT EXISTS idx_sales_owner_product_date
        ON sales_records (owner_id, product_name, sold_at);`

	createAnalysesTableSQL = `CREATE TABLE IF NOT EXISTS product_analyses (
        owner_id                TEXT NOT NULL,
        product_name            TEXT NOT NULL,
        category                TEXT NOT NULL DEFAULT '',
        current_price           NUMERIC(18,6) NOT NULL,
        recommended_price       NUMERIC(18,6) NOT NULL,
        elasticity_score        DOUBLE PRECISION NOT NULL,
        r_squared               DOUBLE PRECISION NOT NULL,
        product_type            TEXT NOT NULL,
        expected_revenue_change DOUBLE PRECISION NOT NULL,
        optimization_target     TEXT NOT NULL,
        observations            INTEGER NOT NULL DEFAULT 0,
        created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (owner_id, product_name)
    );`
)

// EnsureSchema creates the required tables and indexes when missing. It is
// safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for _, ddl := range []string{createSalesTableSQL, createSalesIndexSQL, createAnalysesTableSQL} {
		if _, execErr := pool.Exec(ctx, ddl); execErr != nil {
			return fmt.Errorf("ensure schema: %w", execErr)
		}
	}
	return nil
}
