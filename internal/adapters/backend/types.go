package backend

import (
	"bytes"
	"encoding/json"
	"strings"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
)

// flexString decodes a JSON string or number into its string form.
// The backend is not consistent about numeric identifiers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         userPayload `json:"user"`
}

// userPayload is the backend user record shared by login, register and /users/me.
type userPayload struct {
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	CompanyID   flexString `json:"company_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	PhoneNumber flexString `json:"phone_number"`
}

func (u userPayload) toDomain() domainauth.BackendUser {
	return domainauth.BackendUser{
		Email:       strings.TrimSpace(u.Email),
		Role:        u.Role,
		CompanyID:   string(u.CompanyID),
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: string(u.PhoneNumber),
	}
}

type registerRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	BusinessName  string `json:"business_name"`
	OwnerName     string `json:"owner_name"`
	OwnerLastName string `json:"owner_lastname"`
	PhoneNumber   int64  `json:"phone_number"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// errorMessage extracts a human-readable message from an error body.
// Accepts {"message": "..."}, {"message": ["...", "..."]} and {"error": "..."}.
func errorMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if len(payload.Message) > 0 {
		var s string
		if err := json.Unmarshal(payload.Message, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
		var list []string
		if err := json.Unmarshal(payload.Message, &list); err == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
	}
	return payload.Error
}
