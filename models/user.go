package models

// User is the persisted account record, keyed by Username in the store
// PasswordHash is "salt:digest" (or a bcrypt hash); never return it in API responses
type User struct {
	UserID         string          `json:"user_id"`
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	PasswordHash   string          `json:"password_hash"`
	CreatedAt      Timestamp       `json:"created_at"`
	LastLogin      *Timestamp      `json:"last_login"`
	IsActive       *bool           `json:"is_active,omitempty"` // Absent in older documents; nil means active
	SessionToken   *string         `json:"session_token,omitempty"`
	SessionExpires *Timestamp      `json:"session_expires,omitempty"`
	Chats          map[string]Chat `json:"chats"`
}

// Active reports whether the account may log in
func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

// SetActive stores the flag explicitly
func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

// ClearSession drops the session token and its expiry
func (u *User) ClearSession() {
	u.SessionToken = nil
	u.SessionExpires = nil
}

// Clone returns a deep copy so callers cannot mutate store state
func (u *User) Clone() *User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	if u.IsActive != nil {
		b := *u.IsActive
		c.IsActive = &b
	}
	if u.SessionToken != nil {
		s := *u.SessionToken
		c.SessionToken = &s
	}
	if u.SessionExpires != nil {
		t := *u.SessionExpires
		c.SessionExpires = &t
	}
	c.Chats = CloneChats(u.Chats)
	return &c
}

// UserProfile is the public view returned after authentication and by /api/auth/me
type UserProfile struct {
	UserID   string          `json:"user_id"`
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Chats    map[string]Chat `json:"chats,omitempty"`
}

// UserSummary is the admin listing entry
type UserSummary struct {
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	CreatedAt Timestamp  `json:"created_at"`
	LastLogin *Timestamp `json:"last_login"`
	IsActive  bool       `json:"is_active"`
}

// SessionUser is the identity resolved from a valid session token
type SessionUser struct {
	Username string `json:"username"`
	UserID   string `json:"user_id"`
}

// RegisterRequest represents the request to create an account
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"` // Plaintext; hashed by the store
}

// LoginRequest for /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login
// Business failures set Success=false with a message and no user data
type AuthResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	UserData     *UserProfile `json:"user_data,omitempty"`
	SessionToken string       `json:"session_token,omitempty"`
}

// MessageResponse is the generic {success, message} body
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Note: user_id and chat_id are opaque URL-safe strings; timestamps serialize as RFC 3339 and also load from zone-less ISO 8601.
