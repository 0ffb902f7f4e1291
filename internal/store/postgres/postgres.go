package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"tableside-pos/internal/order"
	"tableside-pos/internal/utils"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the order store on PostgreSQL. Inside InTx every open-order read
// takes a transaction-scoped advisory lock on the table id, which serializes
// writers per table.
type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

var schema = []string{
	`create table if not exists dining_tables (
		id bigint primary key,
		name text not null default ''
	)`,
	`create table if not exists orders (
		id bigserial primary key,
		table_id bigint not null,
		status text not null,
		created_at timestamptz not null default now(),
		completed_at timestamptz
	)`,
	`create unique index if not exists orders_one_open_per_table on orders (table_id) where status = 'OPEN'`,
	`create table if not exists order_lines (
		id bigserial primary key,
		order_id bigint not null references orders (id) on delete cascade,
		menu_item_id bigint not null,
		name text not null,
		unit_price numeric(14,4) not null,
		options text not null default '',
		memo text not null default '',
		quantity integer not null check (quantity >= 0),
		station text not null default 'kitchen',
		status text not null default 'ORDERED'
	)`,
	`create index if not exists order_lines_order_id_idx on order_lines (order_id)`,
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) GetOpenOrder(ctx context.Context, tableID int64) (*order.Order, error) {
	lock := ""
	if s.inTx {
		if _, err := s.q.Exec(ctx, `select pg_advisory_xact_lock($1)`, tableID); err != nil {
			return nil, err
		}
		lock = " for update"
	}

	var (
		o           order.Order
		status      string
		completedAt pgtype.Timestamptz
	)
	err := s.q.QueryRow(ctx, `
		select id, table_id, status, created_at, completed_at
		from orders
		where table_id = $1 and status = 'OPEN'`+lock, tableID).
		Scan(&o.ID, &o.TableID, &status, &o.CreatedAt, &completedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	if completedAt.Valid {
		at := completedAt.Time
		o.CompletedAt = &at
	}

	lines, err := s.lines(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func (s *Store) lines(ctx context.Context, orderID int64) ([]order.Line, error) {
	rows, err := s.q.Query(ctx, `
		select id, order_id, menu_item_id, name, unit_price, options, memo, quantity, station, status
		from order_lines
		where order_id = $1
		order by id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Line
	for rows.Next() {
		var (
			line    order.Line
			price   pgtype.Numeric
			station string
			status  string
		)
		if err := rows.Scan(&line.ID, &line.OrderID, &line.MenuItemID, &line.Name, &price,
			&line.Options, &line.Memo, &line.Quantity, &station, &status); err != nil {
			return nil, err
		}
		line.UnitPrice = utils.NumericToFloat64(price)
		line.Station = order.ParseStation(station)
		line.Status = order.LineStatus(status)
		out = append(out, line)
	}
	return out, rows.Err()
}

func (s *Store) CreateOrder(ctx context.Context, tableID int64, at time.Time) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `
		insert into orders (table_id, status, created_at)
		values ($1, 'OPEN', $2)
		returning id`, tableID, at).Scan(&id)
	return id, err
}

func (s *Store) InsertLines(ctx context.Context, orderID int64, lines []order.Line) ([]int64, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		status := line.Status
		if status == "" {
			status = order.LineOrdered
		}
		var id int64
		err := s.q.QueryRow(ctx, `
			insert into order_lines (order_id, menu_item_id, name, unit_price, options, memo, quantity, station, status)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			returning id`,
			orderID, line.MenuItemID, line.Name, utils.Float64ToNumeric(line.UnitPrice, order.PricePlaces),
			line.Options, line.Memo, line.Quantity, string(line.Station), string(status),
		).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) UpdateLine(ctx context.Context, line order.Line) error {
	tag, err := s.q.Exec(ctx, `
		update order_lines
		set quantity = $2, memo = $3, status = $4
		where id = $1`, line.ID, line.Quantity, line.Memo, string(line.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return order.ErrLineNotFound
	}
	return nil
}

func (s *Store) DeleteLine(ctx context.Context, lineID int64) error {
	tag, err := s.q.Exec(ctx, `delete from order_lines where id = $1`, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return order.ErrLineNotFound
	}
	return nil
}

func (s *Store) MarkPaid(ctx context.Context, orderID int64, completedAt time.Time) error {
	tag, err := s.q.Exec(ctx, `
		update orders set status = 'PAID', completed_at = $2
		where id = $1 and status = 'OPEN'`, orderID, completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNoOpenOrder
	}
	return nil
}

func (s *Store) TableName(ctx context.Context, tableID int64) (string, error) {
	var name string
	err := s.q.QueryRow(ctx, `select name from dining_tables where id = $1`, tableID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && strings.TrimSpace(name) == "") {
		return strconv.FormatInt(tableID, 10), nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// SetTableName upserts the display name used on ticket headers.
func (s *Store) SetTableName(ctx context.Context, tableID int64, name string) error {
	_, err := s.q.Exec(ctx, `
		insert into dining_tables (id, name) values ($1, $2)
		on conflict (id) do update set name = excluded.name`, tableID, name)
	return err
}

func (s *Store) InTx(ctx context.Context, fn func(tx order.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&Store{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
