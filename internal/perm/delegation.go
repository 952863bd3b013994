// Package perm manages the delegated managers of a single item and their
// capability flags.
package perm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/taxilian/tplan/internal/model"
)

var (
	ErrUnknownManager = errors.New("user is not a manager of this item")
	ErrEmptyPatch     = errors.New("no capabilities to change")
)

// Gateway is the server side of delegation.
type Gateway interface {
	Managers(ctx context.Context, itemID model.ItemID) ([]model.Manager, error)
	UpdatePermission(ctx context.Context, permissionID int64, patch model.CapabilityPatch) error
	RemoveManager(ctx context.Context, itemID model.ItemID, userID int64) error
	Invite(ctx context.Context, inv model.Invitation) error
}

// Delegation is the manager list of one item.
type Delegation struct {
	itemID model.ItemID
	gw     Gateway
	logger *log.Logger

	mu       sync.Mutex
	managers []model.Manager
}

func New(gw Gateway, itemID model.ItemID, logger *log.Logger) *Delegation {
	if logger == nil {
		logger = log.Default()
	}
	return &Delegation{itemID: itemID, gw: gw, logger: logger}
}

func (d *Delegation) ItemID() model.ItemID { return d.itemID }

// Managers returns a copy of the current list.
func (d *Delegation) Managers() []model.Manager {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Manager(nil), d.managers...)
}

// ListManagers fetches the delegation list and replaces the local copy.
func (d *Delegation) ListManagers(ctx context.Context) ([]model.Manager, error) {
	managers, err := d.gw.Managers(ctx, d.itemID)
	if err != nil {
		d.logger.Printf("[perm] warning: failed to list managers of %s: %v", d.itemID, err)
		return nil, err
	}
	d.mu.Lock()
	d.managers = append([]model.Manager(nil), managers...)
	d.mu.Unlock()
	return d.Managers(), nil
}

// GrantOrUpdate flips the patched flags of userID locally, then confirms
// them under permissionID. If the server refuses, exactly the patched flags
// go back to what they were.
func (d *Delegation) GrantOrUpdate(ctx context.Context, permissionID, userID int64, patch model.CapabilityPatch) error {
	if patch.IsEmpty() {
		return ErrEmptyPatch
	}

	d.mu.Lock()
	i := d.indexOf(userID)
	if i < 0 {
		d.mu.Unlock()
		return fmt.Errorf("%w: user %d", ErrUnknownManager, userID)
	}
	prior := d.managers[i].Permissions
	patch.Apply(&d.managers[i].Permissions)
	d.mu.Unlock()

	if err := d.gw.UpdatePermission(ctx, permissionID, patch); err != nil {
		d.logger.Printf("[perm] warning: failed to update permission %d: %v", permissionID, err)
		d.mu.Lock()
		if i := d.indexOf(userID); i >= 0 {
			rollback(patch, prior).Apply(&d.managers[i].Permissions)
		}
		d.mu.Unlock()
		return err
	}
	return nil
}

// Revoke removes userID from the managers once the server agrees.
func (d *Delegation) Revoke(ctx context.Context, userID int64) error {
	if err := d.gw.RemoveManager(ctx, d.itemID, userID); err != nil {
		d.logger.Printf("[perm] warning: failed to remove manager %d from %s: %v", userID, d.itemID, err)
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if i := d.indexOf(userID); i >= 0 {
		d.managers = append(d.managers[:i], d.managers[i+1:]...)
	}
	return nil
}

// Invite asks username to manage the item. The list is unchanged until the
// invitation is accepted.
func (d *Delegation) Invite(ctx context.Context, username, title, message string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return &model.ValidationRejection{Op: "invite", Reason: "username is required"}
	}
	inv := model.Invitation{ItemID: d.itemID, Username: username, Title: title, Message: message}
	if err := d.gw.Invite(ctx, inv); err != nil {
		d.logger.Printf("[perm] warning: failed to invite %s to %s: %v", username, d.itemID, err)
		return err
	}
	return nil
}

func (d *Delegation) indexOf(userID int64) int {
	for i, m := range d.managers {
		if m.User.ID == userID {
			return i
		}
	}
	return -1
}

// rollback restores the fields patch touched to their values in prior.
func rollback(patch model.CapabilityPatch, prior model.Capabilities) model.CapabilityPatch {
	pick := func(touched *bool, v bool) *bool {
		if touched == nil {
			return nil
		}
		return &v
	}
	return model.CapabilityPatch{
		CanEdit:         pick(patch.CanEdit, prior.CanEdit),
		CanFinish:       pick(patch.CanFinish, prior.CanFinish),
		CanAdd:          pick(patch.CanAdd, prior.CanAdd),
		CanDelete:       pick(patch.CanDelete, prior.CanDelete),
		CanAddMember:    pick(patch.CanAddMember, prior.CanAddMember),
		CanRemoveMember: pick(patch.CanRemoveMember, prior.CanRemoveMember),
	}
}
