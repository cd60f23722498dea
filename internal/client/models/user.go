package models

// StoredUser is the cached profile of the signed-in user. Every field is
// optional because older backends omit some of them.
type StoredUser struct {
	ID       int64  `json:"id,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// DisplayName picks the friendliest non-empty identifier.
func (u *StoredUser) DisplayName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// RegisterRequest is the body of /auth/register. The validate tags mirror
// the backend rules; username and password* are custom validations.
type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Username string `json:"username" validate:"required,min=3,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,hasupper,haslower,hasdigit"`
}

// LoginResult is the body returned by /auth/login.
type LoginResult struct {
	Message     string      `json:"message"`
	AccessToken string      `json:"access_token"`
	User        *StoredUser `json:"user,omitempty"`
}

// RegisterResult is the body returned by /auth/register.
type RegisterResult struct {
	Message   string      `json:"message"`
	User      *StoredUser `json:"user,omitempty"`
	EmailSent bool        `json:"email_sent"`
}

// MessageResult covers endpoints that only answer with a message.
type MessageResult struct {
	Message   string      `json:"message"`
	Email     string      `json:"email,omitempty"`
	EmailSent bool        `json:"email_sent,omitempty"`
	User      *StoredUser `json:"user,omitempty"`
}
