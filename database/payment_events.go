package database

import "fmt"

// RecordPaymentEvent remembers a gateway webhook event. It reports false when
// the event was seen before, so replays can be acknowledged and ignored.
func RecordPaymentEvent(dbtx DBTX, eventID, eventType, intentID string) (bool, error) {
	const q = `
		INSERT INTO payment_events (event_id, event_type, intent_id, received_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`
	res, err := dbtx.Exec(dbtx.Rebind(q), eventID, eventType, intentID, now())
	if err != nil {
		return false, fmt.Errorf("failed to record payment event %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to record payment event %s: %w", eventID, err)
	}
	return n == 1, nil
}
