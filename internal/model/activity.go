package model

import "time"

// Activity is one line of the audit trail.
type Activity struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	EntityID  string    `json:"entity_id,omitempty"`
}

// Activity actions.
const (
	ActionAddItem        = "add_item"
	ActionEditItem       = "edit_item"
	ActionDeleteItem     = "delete_item"
	ActionUpdateQuantity = "update_quantity"
	ActionItemPhoto      = "item_photo"

	ActionAddCategory    = "add_category"
	ActionEditCategory   = "edit_category"
	ActionDeleteCategory = "delete_category"

	ActionAddSupplier    = "add_supplier"
	ActionEditSupplier   = "edit_supplier"
	ActionDeleteSupplier = "delete_supplier"

	ActionBorrow = "borrow"
	ActionReturn = "return"

	ActionAddNote    = "add_note"
	ActionEditNote   = "edit_note"
	ActionDeleteNote = "delete_note"

	ActionAddUser     = "add_user"
	ActionEditUser    = "edit_user"
	ActionDeleteUser  = "delete_user"
	ActionRegister    = "register_user"
	ActionApproveUser = "approve_user"
)
