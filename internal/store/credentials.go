package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
)

// HashSecret returns the hex-encoded SHA-256 hash of a raw credential secret.
// Only this hash is ever stored or compared.
func HashSecret(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// CreateCredential inserts a new credential. ID and CreatedAt are populated
// after a successful insert.
func (s *Store) CreateCredential(ctx context.Context, c *model.Credential) error {
	c.CreatedAt = time.Now().UTC()
	if c.Tier == "" {
		c.Tier = model.TierStandard
	}

	const q = `INSERT INTO credentials
		(key_hash, key_prefix, label, tier, is_active, use_count, created_at)
		VALUES
		(:key_hash, :key_prefix, :label, :tier, :is_active, :use_count, :created_at)`

	id, err := s.insertGetID(ctx, q, c)
	if err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}
	c.ID = id
	return nil
}

// GetCredentialByHash returns the credential whose stored hash matches.
func (s *Store) GetCredentialByHash(ctx context.Context, keyHash string) (*model.Credential, error) {
	var c model.Credential
	err := s.db.GetContext(ctx, &c,
		s.rebind("SELECT * FROM credentials WHERE key_hash = ?"), keyHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credential by hash: %w", err)
	}
	return &c, nil
}

// GetCredential returns a credential by ID.
func (s *Store) GetCredential(ctx context.Context, id int64) (*model.Credential, error) {
	var c model.Credential
	err := s.db.GetContext(ctx, &c,
		s.rebind("SELECT * FROM credentials WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return &c, nil
}

// ListCredentials returns all credentials, newest first.
func (s *Store) ListCredentials(ctx context.Context) ([]model.Credential, error) {
	var list []model.Credential
	err := s.db.SelectContext(ctx, &list,
		"SELECT * FROM credentials ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return list, nil
}

// TouchCredential bumps the use counter and last-used timestamp in a single
// atomic update. Lost-update races across processes are tolerated; the
// counter is approximate by contract.
func (s *Store) TouchCredential(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE credentials SET use_count = use_count + 1, last_used = ? WHERE id = ?"),
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch credential: %w", err)
	}
	return nil
}

// DeactivateCredential revokes a credential. Credentials are never deleted.
func (s *Store) DeactivateCredential(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE credentials SET is_active = ? WHERE id = ?"), false, id)
	if err != nil {
		return fmt.Errorf("deactivate credential: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateCredentialTier moves a credential to a different rate-limit tier.
func (s *Store) UpdateCredentialTier(ctx context.Context, id int64, tier string) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE credentials SET tier = ? WHERE id = ?"), tier, id)
	if err != nil {
		return fmt.Errorf("update credential tier: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
