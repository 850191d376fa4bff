package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Notification types.
const (
	NotifyLowStock       = "low_stock"
	NotifyOutOfStock     = "out_of_stock"
	NotifyNearExpiration = "near_expiration"
	NotifyNearDue        = "near_due_date"
	NotifyPastDue        = "past_due"
	NotifyItemRestocked  = "item_restocked"
	NotifyUserApproval   = "user_approval"
	NotifyGeneral        = "general"
)

// Notification is one entry of the notification ledger.
type Notification struct {
	ID             int64      `json:"id"`
	Type           string     `json:"type"`
	Message        string     `json:"message"`
	Details        Details    `json:"details"`
	DedupKey       string     `json:"-"`
	CreatedAt      time.Time  `json:"timestamp"`
	Read           bool       `json:"read"`
	Resolved       bool       `json:"resolved"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     *int64     `json:"resolved_by,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
	UserID         *int64     `json:"user_id,omitempty"`
}

// UnmarshalJSON decodes the details payload according to the notification type.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	var aux struct {
		alias
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*n = Notification(aux.alias)
	d, err := DecodeDetails(n.Type, aux.Details)
	if err != nil {
		return err
	}
	n.Details = d
	return nil
}

// NotificationFilter narrows a ledger listing.
type NotificationFilter struct {
	// UserID limits results to notifications addressed to that user plus
	// broadcasts. Nil lists everything.
	UserID          *int64
	IncludeResolved bool
	UnreadOnly      bool
	Type            string
	Limit           int
}

// Details is the typed payload of a notification. Each notification type
// has exactly one variant.
type Details interface {
	// Type is the notification type this payload belongs to.
	Type() string
	// Subject identifies the entity the condition is about, e.g. "item:20240105001".
	Subject() string
	// Validate reports missing required fields.
	Validate() error
}

// DedupKey is the stable identity of a logical condition for one audience.
// At most one unread notification exists per key. Owner is the addressed
// user, zero for broadcasts.
type DedupKey struct {
	Type    string
	Subject string
	Owner   int64
}

func (k DedupKey) String() string {
	s := k.Type + ":" + k.Subject
	if k.Owner != 0 {
		s += "@" + strconv.FormatInt(k.Owner, 10)
	}
	return s
}

// For returns the key addressed to userID, or the broadcast key when nil.
func (k DedupKey) For(userID *int64) DedupKey {
	k.Owner = 0
	if userID != nil {
		k.Owner = *userID
	}
	return k
}

// Condition returns the key with its owner cleared.
func (k DedupKey) Condition() DedupKey {
	k.Owner = 0
	return k
}

// KeyOf returns the broadcast dedup key of a details payload.
func KeyOf(d Details) DedupKey {
	return DedupKey{Type: d.Type(), Subject: d.Subject()}
}

func itemSubject(id string) string { return "item:" + id }
func borrowSubject(id int64) string { return fmt.Sprintf("borrow:%d", id) }
func userSubject(id int64) string { return fmt.Sprintf("user:%d", id) }
func missing(field string) error { return fmt.Errorf("%s is required", field) }
func requireItem(id, name string) error {
	if id == "" {
		return missing("itemId")
	}
	if name == "" {
		return missing("itemName")
	}
	return nil
}

// LowStockDetails describes an item at or below its category threshold.
type LowStockDetails struct {
	ItemID          string `json:"itemId"`
	ItemName        string `json:"itemName"`
	CurrentQuantity int    `json:"currentQuantity"`
	Category        string `json:"category"`
	Threshold       int    `json:"threshold"`
	UnitsBelow      int    `json:"unitsBelow"`
}

func (LowStockDetails) Type() string { return NotifyLowStock }
func (d LowStockDetails) Subject() string { return itemSubject(d.ItemID) }
func (d LowStockDetails) Validate() error { return requireItem(d.ItemID, d.ItemName) }

// OutOfStockDetails describes an item with no units left.
type OutOfStockDetails struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Category string `json:"category"`
}

func (OutOfStockDetails) Type() string { return NotifyOutOfStock }
func (d OutOfStockDetails) Subject() string { return itemSubject(d.ItemID) }
func (d OutOfStockDetails) Validate() error { return requireItem(d.ItemID, d.ItemName) }

// NearExpirationDetails describes an item expiring soon. DaysRemaining is
// computed at evaluation time.
type NearExpirationDetails struct {
	ItemID         string `json:"itemId"`
	ItemName       string `json:"itemName"`
	ExpirationDate string `json:"expirationDate"`
	DaysRemaining  int    `json:"daysRemaining"`
}

func (NearExpirationDetails) Type() string { return NotifyNearExpiration }
func (d NearExpirationDetails) Subject() string { return itemSubject(d.ItemID) }
func (d NearExpirationDetails) Validate() error {
	if err := requireItem(d.ItemID, d.ItemName); err != nil {
		return err
	}
	if d.ExpirationDate == "" {
		return missing("expirationDate")
	}
	return nil
}

// NearDueDetails describes an open borrow whose due date is approaching.
type NearDueDetails struct {
	BorrowID      int64  `json:"borrowId"`
	ItemID        string `json:"itemId"`
	ItemName      string `json:"itemName"`
	Borrower      string `json:"borrower"`
	Department    string `json:"department"`
	DueDate       string `json:"dueDate"`
	DaysRemaining int    `json:"daysRemaining"`
}

func (NearDueDetails) Type() string { return NotifyNearDue }
func (d NearDueDetails) Subject() string { return borrowSubject(d.BorrowID) }
func (d NearDueDetails) Validate() error { return validateBorrowRef(d.BorrowID, d.Borrower, d.DueDate) }

// PastDueDetails describes an open borrow past its due date.
type PastDueDetails struct {
	BorrowID    int64  `json:"borrowId"`
	ItemID      string `json:"itemId"`
	ItemName    string `json:"itemName"`
	Borrower    string `json:"borrower"`
	Department  string `json:"department"`
	DueDate     string `json:"dueDate"`
	DaysOverdue int    `json:"daysOverdue"`
}

func (PastDueDetails) Type() string { return NotifyPastDue }
func (d PastDueDetails) Subject() string { return borrowSubject(d.BorrowID) }
func (d PastDueDetails) Validate() error { return validateBorrowRef(d.BorrowID, d.Borrower, d.DueDate) }

func validateBorrowRef(id int64, borrower, due string) error {
	if id <= 0 {
		return missing("borrowId")
	}
	if borrower == "" {
		return missing("borrower")
	}
	if due == "" {
		return missing("dueDate")
	}
	return nil
}

// ItemRestockedDetails is raised when a previously low item is back above
// its threshold.
type ItemRestockedDetails struct {
	ItemID    string `json:"itemId"`
	ItemName  string `json:"itemName"`
	Quantity  int    `json:"quantity"`
	Threshold int    `json:"threshold"`
}

func (ItemRestockedDetails) Type() string { return NotifyItemRestocked }
func (d ItemRestockedDetails) Subject() string { return itemSubject(d.ItemID) }
func (d ItemRestockedDetails) Validate() error { return requireItem(d.ItemID, d.ItemName) }

// UserApprovalDetails is raised when a user registers and awaits approval.
type UserApprovalDetails struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

func (UserApprovalDetails) Type() string { return NotifyUserApproval }
func (d UserApprovalDetails) Subject() string { return userSubject(d.UserID) }
func (d UserApprovalDetails) Validate() error {
	if d.UserID <= 0 {
		return missing("userId")
	}
	if d.Username == "" {
		return missing("username")
	}
	return nil
}

// GeneralDetails carries free-form notifications posted through the API.
// Kind holds the posted type so unknown types round-trip unchanged.
type GeneralDetails struct {
	Kind  string `json:"-"`
	Topic string `json:"subject,omitempty"`
	Text  string `json:"text,omitempty"`
}

func (d GeneralDetails) Type() string {
	if d.Kind == "" {
		return NotifyGeneral
	}
	return d.Kind
}

func (d GeneralDetails) Subject() string {
	if d.Topic == "" {
		return "general"
	}
	return "general:" + d.Topic
}

func (GeneralDetails) Validate() error { return nil }

// DecodeDetails decodes a raw details payload into the variant for typ.
// Unknown types decode into GeneralDetails.
func DecodeDetails(typ string, raw []byte) (Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte("{}")
	}
	var (
		d   Details
		err error
	)
	switch typ {
	case NotifyLowStock:
		d, err = decode[LowStockDetails](raw)
	case NotifyOutOfStock:
		d, err = decode[OutOfStockDetails](raw)
	case NotifyNearExpiration:
		d, err = decode[NearExpirationDetails](raw)
	case NotifyNearDue:
		d, err = decode[NearDueDetails](raw)
	case NotifyPastDue:
		d, err = decode[PastDueDetails](raw)
	case NotifyItemRestocked:
		d, err = decode[ItemRestockedDetails](raw)
	case NotifyUserApproval:
		d, err = decode[UserApprovalDetails](raw)
	default:
		var g GeneralDetails
		err = json.Unmarshal(raw, &g)
		g.Kind = typ
		d = g
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s details: %w", typ, err)
	}
	return d, nil
}

func decode[T Details](raw []byte) (Details, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
