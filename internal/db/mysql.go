package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ozone-his/eip-hcwathome-openmrs/pkg/encoding"

	_ "github.com/go-sql-driver/mysql"
)

// Row is one result row keyed by column name
type Row map[string]any

// MySQLGateway runs read queries against the OpenMRS database
type MySQLGateway struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewMySQLGateway opens and pings a connection pool for the OpenMRS schema
func NewMySQLGateway(dsn string, logger *slog.Logger) (*MySQLGateway, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping failed: %w", err)
	}

	logger.Info("Connected to OpenMRS database")

	return NewMySQLGatewayFromDB(db, logger), nil
}

// NewMySQLGatewayFromDB wraps an existing pool
func NewMySQLGatewayFromDB(db *sql.DB, logger *slog.Logger) *MySQLGateway {
	return &MySQLGateway{db: db, logger: logger}
}

// Query executes a parameterized read and returns the rows in result order
// Text columns come back as strings, NULL as nil
func (g *MySQLGateway) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	opCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := g.db.QueryContext(opCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = encoding.ToUTF8(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	g.logger.Debug("Query executed", "rows", len(result))
	return result, nil
}

// Close shuts down the connection pool
func (g *MySQLGateway) Close() error {
	g.logger.Info("Closing OpenMRS connection pool")
	return g.db.Close()
}
