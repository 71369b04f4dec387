package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const (
	OrderSequence = "PO"
	orderNoDigits = 8
)

// NextSequenceInTx bumps the named counter in code_sequences and formats the
// new value as prefix followed by a zero-padded number.
func NextSequenceInTx(tx *sqlx.Tx, name, prefix string, padding int) (string, error) {
	var newNo int64
	err := tx.Get(&newNo, tx.Rebind(`UPDATE code_sequences SET last_no = last_no + 1 WHERE name = ? RETURNING last_no`), name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("sequence '%s' not found", name)
		}
		return "", fmt.Errorf("failed to advance sequence '%s': %w", name, err)
	}
	return fmt.Sprintf("%s%0*d", prefix, padding, newNo), nil
}

func NextOrderNoInTx(tx *sqlx.Tx) (string, error) {
	return NextSequenceInTx(tx, OrderSequence, OrderSequence, orderNoDigits)
}

// InitializeOrderSequence realigns the PO counter with the highest order
// number on file, e.g. after orders were restored from a backup.
func InitializeOrderSequence(tx *sqlx.Tx) error {
	var maxNo sql.NullString
	err := tx.Get(&maxNo, tx.Rebind(`SELECT order_no FROM orders WHERE order_no LIKE ? ORDER BY order_no DESC LIMIT 1`), OrderSequence+"%")

	var maxNum int64
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read highest order number: %w", err)
	}
	if maxNo.Valid {
		maxNum, _ = strconv.ParseInt(strings.TrimPrefix(maxNo.String, OrderSequence), 10, 64)
	}

	zap.L().Info("setting order sequence", zap.String("sequence", OrderSequence), zap.Int64("lastNo", maxNum))

	const q = `
		INSERT INTO code_sequences (name, last_no) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET last_no = excluded.last_no`
	if _, err := tx.Exec(tx.Rebind(q), OrderSequence, maxNum); err != nil {
		return fmt.Errorf("failed to set order sequence: %w", err)
	}
	return nil
}
