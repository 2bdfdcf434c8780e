// Package products stores structured-note products and runs the lifecycle engine
// over them on behalf of the HTTP API and the barrier monitor.
package products

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/noteengine/internal/database"
	"github.com/aristath/noteengine/internal/domain"
	"github.com/aristath/noteengine/internal/modules/lifecycle"
	"github.com/aristath/noteengine/internal/modules/triggers"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const dateLayout = "2006-01-02"

var (
	// ErrUnknownUnderlying is returned when a price or override names a symbol outside the basket.
	ErrUnknownUnderlying = errors.New("unknown underlying")
	// ErrIssuerCallRecorded is returned when a product was already called.
	ErrIssuerCallRecorded = errors.New("issuer call already recorded")
)

// productColumns is the column list of the products table, in scan order
const productColumns = `id, name, currency, notional, terms, basket_type, trade_date,
initial_fixing_date, maturity_date, settlement_date, issuer_call_date, issuer_call_month`

// Repository persists products in notes.db.
//
// Everything except current prices, fixings, breach events, coupon states and the
// issuer-call record is written once at creation.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new product repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "products").Logger(),
	}
}

func formatDate(t time.Time) string {
	return domain.DateOnly(t).Format(dateLayout)
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(t), Valid: true}
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func parseNullDate(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return parseDate(s.String)
}

// Create stores in and returns its id. A missing id is generated.
func (r *Repository) Create(in lifecycle.ProductInput) (string, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	terms, err := msgpack.Marshal(&in.Terms)
	if err != nil {
		return "", fmt.Errorf("failed to encode terms: %w", err)
	}
	now := time.Now().Unix()

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var callDate sql.NullString
		var callMonth sql.NullInt64
		if in.IssuerCall != nil {
			callDate = nullDate(in.IssuerCall.Date)
			callMonth = sql.NullInt64{Int64: int64(in.IssuerCall.Month), Valid: true}
		}

		_, err := tx.Exec(`
			INSERT INTO products (`+productColumns+`, bucket, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			in.ID, in.Name, strings.ToUpper(in.Currency), in.Notional, terms,
			strings.ToLower(string(in.BasketType)), formatDate(in.TradeDate),
			nullDate(in.InitialFixingDate), formatDate(in.MaturityDate), nullDate(in.SettlementDate),
			callDate, callMonth, strings.ToLower(in.Terms.Bucket), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}

		for i, u := range in.Underlyings {
			_, err := tx.Exec(`
				INSERT INTO underlyings (product_id, position, symbol, name, initial_price, current_price, price_updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, in.ID, i, u.Symbol, u.Name, u.InitialPrice, u.CurrentPrice, now)
			if err != nil {
				return fmt.Errorf("failed to insert underlying %s: %w", u.Symbol, err)
			}
			for _, e := range u.Breaches {
				if _, err := insertBreach(tx, in.ID, u.Symbol, e, now); err != nil {
					return err
				}
			}
		}

		for _, f := range in.Fixings {
			if _, err := insertFixing(tx, in.ID, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	r.log.Info().Str("product_id", in.ID).Str("bucket", in.Terms.Bucket).Msg("Product created")
	return in.ID, nil
}

func insertBreach(tx *sql.Tx, productID, symbol string, e domain.BreachEvent, now int64) (bool, error) {
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO breach_events (product_id, symbol, kind, date, reference_level, level_pct, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, productID, symbol, string(e.Kind), formatDate(e.Date), e.ReferenceLevel, e.LevelPct, now)
	if err != nil {
		return false, fmt.Errorf("failed to insert breach event for %s: %w", symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func insertFixing(tx *sql.Tx, productID string, f domain.Fixing) (bool, error) {
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO fixings (product_id, date, level) VALUES (?, ?, ?)
	`, productID, formatDate(f.Date), f.Level)
	if err != nil {
		return false, fmt.Errorf("failed to insert fixing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetByID loads a product. It returns nil, nil when no product has that id.
func (r *Repository) GetByID(id string) (*lifecycle.ProductInput, error) {
	row := r.db.QueryRow("SELECT "+productColumns+" FROM products WHERE id = ?", id)
	in, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", id, err)
	}

	if err := r.loadUnderlyings(in); err != nil {
		return nil, err
	}
	if in.Fixings, err = r.loadFixings(id); err != nil {
		return nil, err
	}
	return in, nil
}

// List loads every product ordered by creation time.
func (r *Repository) List() ([]lifecycle.ProductInput, error) {
	rows, err := r.db.Query(`SELECT id FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]lifecycle.ProductInput, 0, len(ids))
	for _, id := range ids {
		in, err := r.GetByID(id)
		if err != nil {
			return nil, err
		}
		if in != nil {
			result = append(result, *in)
		}
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*lifecycle.ProductInput, error) {
	var (
		in                                  lifecycle.ProductInput
		terms                               []byte
		basketType, trade, maturity         string
		initialFixing, settlement, callDate sql.NullString
		callMonth                           sql.NullInt64
	)
	err := row.Scan(&in.ID, &in.Name, &in.Currency, &in.Notional, &terms, &basketType, &trade,
		&initialFixing, &maturity, &settlement, &callDate, &callMonth)
	if err != nil {
		return nil, err
	}

	if err := msgpack.Unmarshal(terms, &in.Terms); err != nil {
		return nil, fmt.Errorf("failed to decode terms: %w", err)
	}
	in.BasketType = domain.BasketType(basketType)
	if in.TradeDate, err = parseDate(trade); err != nil {
		return nil, err
	}
	if in.MaturityDate, err = parseDate(maturity); err != nil {
		return nil, err
	}
	if in.InitialFixingDate, err = parseNullDate(initialFixing); err != nil {
		return nil, err
	}
	if in.SettlementDate, err = parseNullDate(settlement); err != nil {
		return nil, err
	}
	if callDate.Valid {
		d, err := parseDate(callDate.String)
		if err != nil {
			return nil, err
		}
		in.IssuerCall = &domain.IssuerCallRecord{Date: d, Month: int(callMonth.Int64)}
	}
	return &in, nil
}

func (r *Repository) loadUnderlyings(in *lifecycle.ProductInput) error {
	breaches, err := r.loadBreaches(in.ID)
	if err != nil {
		return err
	}

	rows, err := r.db.Query(`
		SELECT symbol, COALESCE(name, ''), initial_price, current_price
		FROM underlyings WHERE product_id = ? ORDER BY position
	`, in.ID)
	if err != nil {
		return fmt.Errorf("failed to query underlyings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u lifecycle.UnderlyingInput
		if err := rows.Scan(&u.Symbol, &u.Name, &u.InitialPrice, &u.CurrentPrice); err != nil {
			return fmt.Errorf("failed to scan underlying: %w", err)
		}
		u.Breaches = breaches[u.Symbol]
		in.Underlyings = append(in.Underlyings, u)
	}
	return rows.Err()
}

func (r *Repository) loadBreaches(productID string) (map[string][]domain.BreachEvent, error) {
	rows, err := r.db.Query(`
		SELECT symbol, kind, date, reference_level, level_pct
		FROM breach_events WHERE product_id = ? ORDER BY date, kind
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query breach events: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.BreachEvent)
	for rows.Next() {
		var symbol, kind, date string
		var e domain.BreachEvent
		if err := rows.Scan(&symbol, &kind, &date, &e.ReferenceLevel, &e.LevelPct); err != nil {
			return nil, fmt.Errorf("failed to scan breach event: %w", err)
		}
		e.Kind = domain.BreachKind(kind)
		if e.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		result[symbol] = append(result[symbol], e)
	}
	return result, rows.Err()
}

func (r *Repository) loadFixings(productID string) ([]domain.Fixing, error) {
	rows, err := r.db.Query(`SELECT date, level FROM fixings WHERE product_id = ? ORDER BY date`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fixings: %w", err)
	}
	defer rows.Close()

	var fixings []domain.Fixing
	for rows.Next() {
		var date string
		var f domain.Fixing
		if err := rows.Scan(&date, &f.Level); err != nil {
			return nil, fmt.Errorf("failed to scan fixing: %w", err)
		}
		if f.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		fixings = append(fixings, f)
	}
	return fixings, rows.Err()
}

// UpdatePrices sets the current price of each listed underlying. Symbols outside
// the basket fail the whole update.
func (r *Repository) UpdatePrices(id string, prices map[string]float64) error {
	now := time.Now().Unix()
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for symbol, price := range prices {
			res, err := tx.Exec(`
				UPDATE underlyings SET current_price = ?, price_updated_at = ?
				WHERE product_id = ? AND symbol = ?
			`, price, now, id, symbol)
			if err != nil {
				return fmt.Errorf("failed to update price for %s: %w", symbol, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%w: %s", ErrUnknownUnderlying, symbol)
			}
		}
		_, err := tx.Exec(`UPDATE products SET updated_at = ? WHERE id = ?`, now, id)
		return err
	})
}

// AddFixing stores a reference-level observation. It reports false when a fixing
// already exists for that date; the stored one is kept.
func (r *Repository) AddFixing(id string, f domain.Fixing) (bool, error) {
	var inserted bool
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var err error
		inserted, err = insertFixing(tx, id, f)
		return err
	})
	return inserted, err
}

// RecordIssuerCall stores the early redemption. It is write-once.
func (r *Repository) RecordIssuerCall(id string, call domain.IssuerCallRecord) error {
	res, err := r.db.Exec(`
		UPDATE products SET issuer_call_date = ?, issuer_call_month = ?, updated_at = ?
		WHERE id = ? AND issuer_call_date IS NULL
	`, formatDate(call.Date), call.Month, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to record issuer call: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrIssuerCallRecorded
	}
	return nil
}

// AppendBreachEvents stores newly observed breaches and returns how many were new.
// Existing events are never touched.
func (r *Repository) AppendBreachEvents(id string, breaches []triggers.RecordedBreach) (int, error) {
	if len(breaches) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	added := 0
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, b := range breaches {
			inserted, err := insertBreach(tx, id, b.Symbol, b.Event, now)
			if err != nil {
				return err
			}
			if inserted {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// SaveCouponStates upserts the schedule. Rows already marked paid are left as stored.
func (r *Repository) SaveCouponStates(id string, entries []domain.CouponEntry) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, c := range entries {
			_, err := tx.Exec(`
				INSERT INTO coupon_states (product_id, observation_date, payment_date, coupon_rate, amount,
					status, barrier_checked, barrier_breached)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (product_id, observation_date) DO UPDATE SET
					payment_date = excluded.payment_date,
					coupon_rate = excluded.coupon_rate,
					amount = excluded.amount,
					status = excluded.status,
					barrier_checked = excluded.barrier_checked,
					barrier_breached = excluded.barrier_breached
				WHERE coupon_states.status != 'paid'
			`, id, formatDate(c.ObservationDate), formatDate(c.PaymentDate), c.CouponRate, c.Amount,
				string(c.Status), c.BarrierChecked, c.BarrierBreached)
			if err != nil {
				return fmt.Errorf("failed to save coupon state: %w", err)
			}
		}
		return nil
	})
}

// GetCouponStates returns the stored schedule ordered by observation date.
func (r *Repository) GetCouponStates(id string) ([]domain.CouponEntry, error) {
	rows, err := r.db.Query(`
		SELECT observation_date, payment_date, coupon_rate, amount, status, barrier_checked, barrier_breached
		FROM coupon_states WHERE product_id = ? ORDER BY observation_date
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query coupon states: %w", err)
	}
	defer rows.Close()

	var entries []domain.CouponEntry
	for rows.Next() {
		var obs, pay, status string
		var c domain.CouponEntry
		if err := rows.Scan(&obs, &pay, &c.CouponRate, &c.Amount, &status, &c.BarrierChecked, &c.BarrierBreached); err != nil {
			return nil, fmt.Errorf("failed to scan coupon state: %w", err)
		}
		c.Status = domain.CouponStatus(status)
		if c.ObservationDate, err = parseDate(obs); err != nil {
			return nil, err
		}
		if c.PaymentDate, err = parseDate(pay); err != nil {
			return nil, err
		}
		entries = append(entries, c)
	}
	return entries, rows.Err()
}
