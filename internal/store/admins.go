package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
)

// CreateAdmin inserts a new operator account.
func (s *Store) CreateAdmin(ctx context.Context, a *model.Admin) error {
	a.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO admins (email, password_hash, name, is_active, created_at)
		VALUES (:email, :password_hash, :name, :is_active, :created_at)`

	id, err := s.insertGetID(ctx, q, a)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	a.ID = id
	return nil
}

// GetAdminByEmail returns an admin account by its unique email.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var a model.Admin
	err := s.db.GetContext(ctx, &a,
		s.rebind("SELECT * FROM admins WHERE email = ?"), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &a, nil
}

// ListAdmins returns all operator accounts, newest first.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var list []model.Admin
	err := s.db.SelectContext(ctx, &list,
		"SELECT * FROM admins ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return list, nil
}

// HasAnyAdmin reports whether at least one operator account exists.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// TouchAdminLogin records a successful login.
func (s *Store) TouchAdminLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE admins SET last_login_at = ? WHERE id = ?"),
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch admin login: %w", err)
	}
	return nil
}
