package testutil

import (
	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
)

// BackendUserBuilder provides a fluent interface for building backend user records.
type BackendUserBuilder struct {
	user domainauth.BackendUser
}

// NewBackendUser creates a BackendUserBuilder with sensible defaults.
func NewBackendUser() *BackendUserBuilder {
	return &BackendUserBuilder{
		user: domainauth.BackendUser{
			Email:     "owner@shop.test",
			Role:      "OWNER",
			CompanyID: "company-1",
			FirstName: "Olga",
			LastName:  "Owner",
		},
	}
}

// WithEmail sets the email.
func (b *BackendUserBuilder) WithEmail(email string) *BackendUserBuilder {
	b.user.Email = email
	return b
}

// WithRole sets the backend role string.
func (b *BackendUserBuilder) WithRole(role string) *BackendUserBuilder {
	b.user.Role = role
	return b
}

// WithCompany sets the company identifier.
func (b *BackendUserBuilder) WithCompany(id string) *BackendUserBuilder {
	b.user.CompanyID = id
	return b
}

// WithName sets the first and last name.
func (b *BackendUserBuilder) WithName(first, last string) *BackendUserBuilder {
	b.user.FirstName = first
	b.user.LastName = last
	return b
}

// WithPhone sets the phone number.
func (b *BackendUserBuilder) WithPhone(phone string) *BackendUserBuilder {
	b.user.PhoneNumber = phone
	return b
}

// Build returns the backend user.
func (b *BackendUserBuilder) Build() domainauth.BackendUser {
	return b.user
}

// UserBuilder builds normalized session users.
type UserBuilder struct {
	user domainauth.User
}

// NewUser creates a UserBuilder for a cashier at company-1.
func NewUser() *UserBuilder {
	return &UserBuilder{
		user: domainauth.User{
			ID:            "company-1",
			Name:          "Carla Cashier",
			Email:         "carla@shop.test",
			Role:          domainauth.RoleCashier,
			PointOfSaleID: "company-1",
		},
	}
}

// WithRole sets the frontend role.
func (b *UserBuilder) WithRole(role domainauth.Role) *UserBuilder {
	b.user.Role = role
	return b
}

// WithEmail sets the email.
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.user.Email = email
	return b
}

// WithName sets the display name.
func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.user.Name = name
	return b
}

// WithAvatar sets the avatar URL.
func (b *UserBuilder) WithAvatar(url string) *UserBuilder {
	b.user.Avatar = url
	return b
}

// Build returns the user.
func (b *UserBuilder) Build() domainauth.User {
	return b.user
}
