package sqlite

import (
	"context"
	"time"

	tourbook "github.com/eugener/tourbook/internal"
)

// GetState returns the stored value for key, or tourbook.ErrNotFound.
func (s *Store) GetState(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.read.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key=?`, key).Scan(&value)
	if err != nil {
		if err = notFoundErr(err); err == tourbook.ErrNotFound {
			return nil, err
		}
		return nil, storageErr("get state", err)
	}
	return []byte(value), nil
}

// PutState upserts the value for key.
func (s *Store) PutState(ctx context.Context, key string, value []byte) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO app_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, string(value), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return storageErr("put state", err)
	}
	return nil
}
