package notice

import "github.com/trezcool/masomo-notices/core/user"

// AssertCanToggleRead only lets the recipient change a delivery's read state.
func AssertCanToggleRead(d Delivery, requesterID string) error {
	if requesterID == "" || requesterID != d.RecipientID {
		return ErrForbidden
	}
	return nil
}

// AssertCanDelete only lets the author or an admin delete a delivery.
func AssertCanDelete(d Delivery, requesterID string, requesterRoles []string) error {
	if requesterID != "" && requesterID == d.AuthorID {
		return nil
	}
	if user.IsAdminRoles(requesterRoles) {
		return nil
	}
	return ErrForbidden
}
