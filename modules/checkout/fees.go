package checkout

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

const feesMigration = `
CREATE TABLE IF NOT EXISTS checkout_fees (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    fee_id TEXT NOT NULL,
    created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    label TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL,
    type TEXT NOT NULL DEFAULT 'fee',
    PRIMARY KEY (session_id, fee_id)
) STRICT;
`

// Fee is an extra line item attached to a visitor's cart.
type Fee struct {
	ID     string
	Label  string
	Amount decimal.Decimal
	Type   string
}

// Fees stores the fees of every cart, keyed by session.
type Fees struct {
	db *sql.DB
}

// Add attaches fee to the session's cart, replacing any fee with the same ID.
func (f *Fees) Add(ctx context.Context, sessionID string, fee Fee) error {
	if fee.ID == "" {
		return fmt.Errorf("fee id is required")
	}
	if fee.Type == "" {
		fee.Type = "fee"
	}

	_, err := f.db.ExecContext(ctx, `
		INSERT INTO checkout_fees (session_id, fee_id, label, amount, type) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, fee_id) DO UPDATE SET label = $3, amount = $4, type = $5`,
		sessionID, fee.ID, fee.Label, formatAmount(fee.Amount), fee.Type)
	if err != nil {
		return fmt.Errorf("adding fee: %w", err)
	}

	slog.Info("added fee to cart", "sessionID", sessionID, "feeID", fee.ID, "amount", fee.Amount.String())
	return nil
}

// formatAmount renders at least two decimal places without dropping finer precision.
func formatAmount(d decimal.Decimal) string {
	places := max(-d.Exponent(), 2)
	return d.StringFixed(places)
}

// List returns the session's fees in the order they were added.
func (f *Fees) List(ctx context.Context, sessionID string) ([]Fee, error) {
	rows, err := f.db.QueryContext(ctx, "SELECT fee_id, label, amount, type FROM checkout_fees WHERE session_id = ? ORDER BY created, rowid", sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing fees: %w", err)
	}
	defer rows.Close()

	var fees []Fee
	for rows.Next() {
		var fee Fee
		var amount string
		if err := rows.Scan(&fee.ID, &fee.Label, &amount, &fee.Type); err != nil {
			return nil, err
		}
		fee.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parsing amount of fee %q: %w", fee.ID, err)
		}
		fees = append(fees, fee)
	}
	return fees, rows.Err()
}

// Clear empties the session's cart.
func (f *Fees) Clear(ctx context.Context, sessionID string) error {
	_, err := f.db.ExecContext(ctx, "DELETE FROM checkout_fees WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("clearing fees: %w", err)
	}
	return nil
}

// Total sums the fee amounts.
func Total(fees []Fee) decimal.Decimal {
	total := decimal.Zero
	for _, fee := range fees {
		total = total.Add(fee.Amount)
	}
	return total
}
