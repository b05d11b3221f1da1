package users

import "time"

// Role tiers. admin implies staff; staff implies user.
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

var roleRank = map[Role]int{
	RoleUser:  1,
	RoleStaff: 2,
	RoleAdmin: 3,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r grants the privileges of min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// Profile is the directory record for a subject, keyed by the identity
// gateway's subject id. The role here is authoritative for every
// authorization decision; it is read through on each call so role changes
// take effect immediately.
type Profile struct {
	UserID     string    `dynamodbav:"user_id" json:"id"`
	Name       string    `dynamodbav:"name" json:"name"`
	Email      string    `dynamodbav:"email" json:"email"`
	Role       Role      `dynamodbav:"role" json:"role"`
	Department string    `dynamodbav:"department,omitempty" json:"department,omitempty"`
	CreatedAt  time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}
