package postgres

import (
	"context"
	"database/sql"
	"errors"

	"storeledger/internal/interfaces"
	"storeledger/internal/models"
)

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// EnsureSchema creates the ledger tables if they do not exist.
func (p *PostgresLedgerStore) EnsureSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS catalog_entries (
		id          BIGINT PRIMARY KEY,
		name        TEXT NOT NULL,
		category    TEXT NOT NULL,
		image       TEXT NOT NULL,
		description TEXT NOT NULL,
		price       BIGINT NOT NULL,
		rating      BIGINT NOT NULL,
		stock       BIGINT NOT NULL CHECK (stock >= 0)
	);
	CREATE TABLE IF NOT EXISTS orders (
		buyer            TEXT NOT NULL,
		number           BIGINT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL,
		item_id          BIGINT NOT NULL,
		item_name        TEXT NOT NULL,
		item_category    TEXT NOT NULL,
		item_image       TEXT NOT NULL,
		item_description TEXT NOT NULL,
		item_price       BIGINT NOT NULL,
		item_rating      BIGINT NOT NULL,
		item_stock       BIGINT NOT NULL,
		PRIMARY KEY (buyer, number)
	);
	CREATE TABLE IF NOT EXISTS order_counts (
		buyer TEXT PRIMARY KEY,
		count BIGINT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS custody (
		id      INT PRIMARY KEY CHECK (id = 1),
		balance BIGINT NOT NULL CHECK (balance >= 0)
	);
	INSERT INTO custody (id, balance) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;`

	_, err := p.db.ExecContext(ctx, schema)
	return err
}

func (p *PostgresLedgerStore) PutCatalogEntry(ctx context.Context, entry models.CatalogEntry) error {
	const query = `INSERT INTO catalog_entries (id, name, category, image, description, price, rating, stock)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, category = EXCLUDED.category, image = EXCLUDED.image,
		description = EXCLUDED.description, price = EXCLUDED.price,
		rating = EXCLUDED.rating, stock = EXCLUDED.stock`

	_, err := p.db.ExecContext(ctx, query,
		entry.ID, entry.Name, entry.Category, entry.Image, entry.Description,
		entry.Price, entry.Rating, entry.Stock)
	return err
}

func (p *PostgresLedgerStore) GetCatalogEntry(ctx context.Context, id uint64) (models.CatalogEntry, bool, error) {
	const query = `SELECT id, name, category, image, description, price, rating, stock
	FROM catalog_entries WHERE id = $1`

	var entry models.CatalogEntry
	err := p.db.QueryRowContext(ctx, query, id).Scan(
		&entry.ID, &entry.Name, &entry.Category, &entry.Image, &entry.Description,
		&entry.Price, &entry.Rating, &entry.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CatalogEntry{}, false, nil
	}
	if err != nil {
		return models.CatalogEntry{}, false, err
	}
	return entry, true, nil
}

// RecordPurchase commits the decremented entry, the order, the buyer's
// order count and the custody credit in a single database transaction.
func (p *PostgresLedgerStore) RecordPurchase(ctx context.Context, entry models.CatalogEntry, order models.Order, payment uint64) error {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	err = p.saveCatalogEntry(ctx, entry, dbTx)
	if err != nil {
		return err
	}

	err = p.saveOrder(ctx, order, dbTx)
	if err != nil {
		return err
	}

	const countQuery = `INSERT INTO order_counts (buyer, count) VALUES ($1, $2)
	ON CONFLICT (buyer) DO UPDATE SET count = EXCLUDED.count`
	_, err = dbTx.ExecContext(ctx, countQuery, order.Buyer, order.Number)
	if err != nil {
		return err
	}

	const custodyQuery = `UPDATE custody SET balance = balance + $1 WHERE id = 1`
	_, err = dbTx.ExecContext(ctx, custodyQuery, payment)
	if err != nil {
		return err
	}
	return dbTx.Commit()
}

func (p *PostgresLedgerStore) saveCatalogEntry(ctx context.Context, entry models.CatalogEntry, dbTx *sql.Tx) error {
	const query = `UPDATE catalog_entries SET name=$2, category=$3, image=$4, description=$5,
	price=$6, rating=$7, stock=$8 WHERE id=$1`

	_, err := dbTx.ExecContext(ctx, query,
		entry.ID, entry.Name, entry.Category, entry.Image, entry.Description,
		entry.Price, entry.Rating, entry.Stock)
	return err
}

func (p *PostgresLedgerStore) saveOrder(ctx context.Context, order models.Order, dbTx *sql.Tx) error {
	const query = `INSERT INTO orders (buyer, number, created_at,
	item_id, item_name, item_category, item_image, item_description, item_price, item_rating, item_stock)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err := dbTx.ExecContext(ctx, query,
		order.Buyer, order.Number, order.CreatedAt,
		order.Item.ID, order.Item.Name, order.Item.Category, order.Item.Image,
		order.Item.Description, order.Item.Price, order.Item.Rating, order.Item.Stock)
	return err
}

func (p *PostgresLedgerStore) GetOrder(ctx context.Context, buyer string, number uint64) (models.Order, bool, error) {
	const query = `SELECT buyer, number, created_at,
	item_id, item_name, item_category, item_image, item_description, item_price, item_rating, item_stock
	FROM orders WHERE buyer = $1 AND number = $2`

	var order models.Order
	err := p.db.QueryRowContext(ctx, query, buyer, number).Scan(
		&order.Buyer, &order.Number, &order.CreatedAt,
		&order.Item.ID, &order.Item.Name, &order.Item.Category, &order.Item.Image,
		&order.Item.Description, &order.Item.Price, &order.Item.Rating, &order.Item.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, false, nil
	}
	if err != nil {
		return models.Order{}, false, err
	}
	return order, true, nil
}

func (p *PostgresLedgerStore) OrdersByBuyer(ctx context.Context, buyer string) ([]models.Order, error) {
	const query = `SELECT buyer, number, created_at,
	item_id, item_name, item_category, item_image, item_description, item_price, item_rating, item_stock
	FROM orders WHERE buyer = $1 ORDER BY number`

	rows, err := p.db.QueryContext(ctx, query, buyer)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(
			&order.Buyer, &order.Number, &order.CreatedAt,
			&order.Item.ID, &order.Item.Name, &order.Item.Category, &order.Item.Image,
			&order.Item.Description, &order.Item.Price, &order.Item.Rating, &order.Item.Stock); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (p *PostgresLedgerStore) OrderCount(ctx context.Context, buyer string) (uint64, error) {
	const query = `SELECT count FROM order_counts WHERE buyer = $1`

	var count uint64
	err := p.db.QueryRowContext(ctx, query, buyer).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (p *PostgresLedgerStore) CustodyBalance(ctx context.Context) (uint64, error) {
	const query = `SELECT balance FROM custody WHERE id = 1`

	var balance uint64
	err := p.db.QueryRowContext(ctx, query).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (p *PostgresLedgerStore) DebitCustody(ctx context.Context, amount uint64) error {
	const query = `UPDATE custody SET balance = balance - $1 WHERE id = 1 AND balance >= $1`

	res, err := p.db.ExecContext(ctx, query, amount)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("debit exceeds custody balance")
	}
	return nil
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
