package validation

// CreateOrderRequest is the payload for POST /orders. The requester identity
// never comes from the body; it is derived from the verified credential.
type CreateOrderRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Priority    string `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"` // must be >= 1
	URL         string `json:"url,omitempty" validate:"omitempty,url"`
}

// UpdateOrderRequest is the payload for PATCH /orders/:id. Every field is a
// pointer so "absent" and "set to zero value" stay distinguishable; at least
// one field must be present (struct-level rule).
type UpdateOrderRequest struct {
	Status *string  `json:"status,omitempty" validate:"omitempty,oneof=PENDING APPROVED PURCHASED DELIVERED REJECTED CANCELLED"`
	Price  *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	URL    *string  `json:"url,omitempty" validate:"omitempty,url"`
}

// AddCommentRequest is the payload for POST /orders/:id/comments.
type AddCommentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

// CreateProfileRequest is the payload for POST /users. Email comes from the
// token claims, never from the body.
type CreateProfileRequest struct {
	Name       string `json:"name" validate:"required"`
	Role       string `json:"role" validate:"required,oneof=user staff admin"`
	Department string `json:"department,omitempty"`
}
