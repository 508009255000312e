// Copyright (c) 2026 Medora Health. All rights reserved.
// Author: dev@medora.health

package sec

// AccountRole classifies an account within the platform.
//
// The set is closed: every account is exactly one of patient, doctor, or admin.
type AccountRole string

const (
	// RolePatient is the default classification for self-registered accounts.
	RolePatient AccountRole = "patient"

	// RoleDoctor marks practitioner accounts managed by the clinic.
	RoleDoctor AccountRole = "doctor"

	// RoleAdmin has full administrative access, including account listing.
	RoleAdmin AccountRole = "admin"
)

// roleRank orders roles by privilege for [AccountRole.AtLeast].
var roleRank = map[AccountRole]int{
	RolePatient: 1,
	RoleDoctor:  2,
	RoleAdmin:   3,
}

// Valid reports whether the role belongs to the closed set.
func (r AccountRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role meets or exceeds the target privilege level.
// Unknown roles never satisfy any requirement.
func (r AccountRole) AtLeast(target AccountRole) bool {
	mine, ok := roleRank[r]
	if !ok {
		return false
	}
	required, ok := roleRank[target]
	if !ok {
		return false
	}
	return mine >= required
}

// Principal is the authenticated caller attached to a request context after
// bearer validation. It is a projection of the owning account — the full
// entity stays in the identity layer.
type Principal struct {
	AccountID int64
	Email     string
	Role      AccountRole
}
