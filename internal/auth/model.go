package auth

import "time"

type User struct {
	ID         string
	Username   string
	Email      string
	Phone      string
	SecretHash string
	Role       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AccessToken is one row of the access-token audit trail. Flags only ever
// flip false to true; rows are never deleted on the request path.
type AccessToken struct {
	ID             string
	Token          string
	UserID         string
	RefreshTokenID string
	Revoked        bool
	Expired        bool
	CreatedAt      time.Time
}

type RefreshToken struct {
	ID        string
	Token     string
	Revoked   bool
	Expired   bool
	CreatedAt time.Time
}

func (t AccessToken) Valid() bool {
	return !t.Revoked && !t.Expired
}

func (t RefreshToken) Valid() bool {
	return !t.Revoked && !t.Expired
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Identity is the resolved caller attached to a request context once its
// bearer token has been validated. Downstream handlers read it instead of
// touching the token store.
type Identity struct {
	UserID   string
	Username string
	Role     string
}

type SignupInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Secret   string `json:"secret"`
}
