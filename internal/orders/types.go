package orders

import "time"

// Order statuses. PENDING is the only initial state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusPurchased Status = "PURCHASED"
	StatusDelivered Status = "DELIVERED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

var allStatuses = map[Status]bool{
	StatusPending:   true,
	StatusApproved:  true,
	StatusPurchased: true,
	StatusDelivered: true,
	StatusRejected:  true,
	StatusCancelled: true,
}

func (s Status) Valid() bool { return allStatuses[s] }

// Priority of a purchase request.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Requester is the immutable snapshot of the subject that created the order.
// It is captured server-side at creation and never client-supplied.
type Requester struct {
	UserID string `dynamodbav:"user_id" json:"userId"`
	Name   string `dynamodbav:"name" json:"name"`
	Email  string `dynamodbav:"email" json:"email"`
}

// Comment is one entry in an order's append-only discussion thread.
type Comment struct {
	Text       string    `dynamodbav:"text" json:"text"`
	AuthorID   string    `dynamodbav:"author_id" json:"authorId"`
	AuthorName string    `dynamodbav:"author_name" json:"authorName"`
	CreatedAt  time.Time `dynamodbav:"created_at" json:"createdAt"`
}

// Order represents the item stored in the orders DynamoDB table.
// Timestamps are stored RFC3339 UTC so lexicographic order matches
// chronological order, and render as ISO-8601 at the JSON boundary.
type Order struct {
	OrderID     string    `dynamodbav:"order_id" json:"id"` // PK
	Title       string    `dynamodbav:"title" json:"title"`
	Description string    `dynamodbav:"description" json:"description"`
	Status      Status    `dynamodbav:"status" json:"status"`
	Priority    Priority  `dynamodbav:"priority" json:"priority"`
	RequestedBy Requester `dynamodbav:"requested_by" json:"requestedBy"`
	Quantity    int       `dynamodbav:"quantity" json:"quantity"`
	Price       *float64  `dynamodbav:"price,omitempty" json:"price,omitempty"` // absent until staff sets it
	URL         string    `dynamodbav:"url,omitempty" json:"url,omitempty"`
	Comments    []Comment `dynamodbav:"comments,omitempty" json:"comments"`
	CreatedAt   time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}

// OrderUpdate enumerates exactly the fields a caller intends to change.
// Nil means "leave untouched"; there is no way to accidentally clear a
// field by omitting it.
type OrderUpdate struct {
	Status *Status
	Price  *float64
	URL    *string
}

// Empty reports whether the update carries no recognized field.
func (u OrderUpdate) Empty() bool {
	return u.Status == nil && u.Price == nil && u.URL == nil
}
