package model

import "time"

// Borrow records a quantity of an item lent out to a borrower.
type Borrow struct {
	ID         int64      `json:"id"`
	ItemID     string     `json:"item_id"`
	Quantity   int        `json:"quantity"`
	Borrower   string     `json:"borrower"`
	Department string     `json:"department"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueDate    time.Time  `json:"due_date"`
	Status     string     `json:"status"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	BorrowedBy *int64     `json:"borrowed_by,omitempty"`

	// Joined fields (not always populated).
	ItemName string `json:"item_name,omitempty"`
	Category string `json:"category,omitempty"`
}

// Borrow statuses.
const (
	BorrowStatusBorrowed = "Borrowed"
	BorrowStatusReturned = "Returned"
	BorrowStatusPastDue  = "Past Due"
)

// Open reports whether the borrowed quantity has not been returned yet.
func (b Borrow) Open() bool {
	return b.Status != BorrowStatusReturned
}
