package models

import "fmt"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSeller   Role = "seller"
	RoleCustomer Role = "customer"
)

// DefaultRole is assigned on registration.
const DefaultRole = RoleCustomer

var (
	CatalogManagers = []Role{RoleAdmin, RoleSeller}
	FulfilmentStaff = []Role{RoleAdmin, RoleSeller}
	Administrators  = []Role{RoleAdmin}
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleSeller, RoleCustomer:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}
