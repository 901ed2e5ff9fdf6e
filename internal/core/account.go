package core

type (
	Profile struct {
		ID              int64  `json:"id,omitempty"`
		Username        string `json:"username"`
		Email           string `json:"email,omitempty"`
		FirstName       string `json:"firstName,omitempty"`
		LastName        string `json:"lastName,omitempty"`
		DefaultCurrency string `json:"defaultCurrency,omitempty"`
	}

	// ProfileUpdate carries the user-editable profile fields. Nil fields are
	// left out of the request body.
	ProfileUpdate struct {
		Email           *string `json:"email,omitempty"`
		FirstName       *string `json:"firstName,omitempty"`
		LastName        *string `json:"lastName,omitempty"`
		DefaultCurrency *string `json:"defaultCurrency,omitempty"`
	}

	Credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	Registration struct {
		Username        string `json:"username"`
		Password        string `json:"password"`
		FirstName       string `json:"firstName,omitempty"`
		LastName        string `json:"lastName,omitempty"`
		DefaultCurrency string `json:"defaultCurrency,omitempty"`
	}

	// AuthSession is the payload returned by login and register.
	AuthSession struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType,omitempty"`
		Username  string `json:"username,omitempty"`
		ExpiresIn int64  `json:"expiresIn,omitempty"`
	}
)

// DisplayName returns "First Last" when available, otherwise the username.
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.Username
	}
}
