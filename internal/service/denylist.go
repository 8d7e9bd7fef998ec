package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
	"github.com/dataontap/DeviceInsights-sub000/internal/store"
)

// ErrDenyConflict is returned when adding a deny entry that already exists
// for the same target and scope.
var ErrDenyConflict = errors.New("deny entry already exists")

// DenyList screens target identifiers against blocked entries. Global
// entries block every caller; scoped entries block only their owning
// credential.
type DenyList struct {
	store *store.Store
}

func NewDenyList(st *store.Store) *DenyList {
	return &DenyList{store: st}
}

// IsDenied returns the matching active entry for a target, or nil when the
// target is not blocked. The global list is consulted first; the scoped list
// only when a credential identity is known (unauthenticated traffic sees the
// global list alone).
func (d *DenyList) IsDenied(ctx context.Context, targetID string, scopeCredentialID *int64) (*model.DenyEntry, error) {
	entry, err := d.store.GetGlobalDenyEntry(ctx, targetID)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("deny list check: %w", err)
	}

	if scopeCredentialID == nil {
		return nil, nil
	}

	entry, err = d.store.GetScopedDenyEntry(ctx, targetID, *scopeCredentialID)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("deny list check: %w", err)
	}
	return nil, nil
}

// Add creates a deny entry. Adding a target already present in the same
// scope returns ErrDenyConflict rather than a duplicate.
func (d *DenyList) Add(ctx context.Context, targetID, reason string, credentialID *int64) (*model.DenyEntry, error) {
	entry := &model.DenyEntry{
		TargetID:     targetID,
		Reason:       reason,
		CredentialID: credentialID,
	}
	if err := d.store.CreateDenyEntry(ctx, entry); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrDenyConflict
		}
		return nil, err
	}
	return entry, nil
}

// Remove deactivates a deny entry. Removing a non-existent entry is a no-op
// reported as store.ErrNotFound.
func (d *DenyList) Remove(ctx context.Context, targetID string, credentialID *int64) error {
	return d.store.RemoveDenyEntry(ctx, targetID, credentialID)
}

// List returns all active entries.
func (d *DenyList) List(ctx context.Context) ([]model.DenyEntry, error) {
	return d.store.ListDenyEntries(ctx)
}
