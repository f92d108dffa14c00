package services

import "learnhub/models"

// Actor is the authenticated caller of an operation. Controllers build it from the JWT claims.
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// CanAuthor reports whether the actor may create and edit courses.
func (a Actor) CanAuthor() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleInstructor
}
