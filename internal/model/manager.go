package model

// Capabilities are the boolean grants a delegated manager holds on an item.
type Capabilities struct {
	CanEdit         bool `json:"canEdit"`
	CanFinish       bool `json:"canFinish"`
	CanAdd          bool `json:"canAdd"`
	CanDelete       bool `json:"canDelete"`
	CanAddMember    bool `json:"canAddMember"`
	CanRemoveMember bool `json:"canRemoveMember"`
}

// Manager is one delegated user on one item, keyed by User.ID.
type Manager struct {
	User         User         `json:"user"`
	PermissionID int64        `json:"permissionId"`
	Permissions  Capabilities `json:"permissions"`
}

// CapabilityPatch is a partial update of Capabilities; nil fields are untouched.
type CapabilityPatch struct {
	CanEdit         *bool `json:"canEdit,omitempty"`
	CanFinish       *bool `json:"canFinish,omitempty"`
	CanAdd          *bool `json:"canAdd,omitempty"`
	CanDelete       *bool `json:"canDelete,omitempty"`
	CanAddMember    *bool `json:"canAddMember,omitempty"`
	CanRemoveMember *bool `json:"canRemoveMember,omitempty"`
}

func (p CapabilityPatch) IsEmpty() bool {
	return p.CanEdit == nil && p.CanFinish == nil && p.CanAdd == nil &&
		p.CanDelete == nil && p.CanAddMember == nil && p.CanRemoveMember == nil
}

// Apply sets the patched flags on c.
func (p CapabilityPatch) Apply(c *Capabilities) {
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.CanEdit, p.CanEdit)
	set(&c.CanFinish, p.CanFinish)
	set(&c.CanAdd, p.CanAdd)
	set(&c.CanDelete, p.CanDelete)
	set(&c.CanAddMember, p.CanAddMember)
	set(&c.CanRemoveMember, p.CanRemoveMember)
}

// Invitation asks a user to become a manager of an item.
type Invitation struct {
	ItemID   ItemID `json:"itemId"`
	Username string `json:"username"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}
