package domain

// AuthSession is the per-session authentication record. TokenValue references
// the session's current token inside the token store; AfterLoginURL carries
// the URL the user should land on once login completes.
type AuthSession struct {
	TokenValue    string `json:"token_value,omitempty"`
	AfterLoginURL string `json:"after_login_url,omitempty"`
}

// Authenticated reports whether the session currently references a token.
// The token itself may still turn out to be expired on lookup.
func (a AuthSession) Authenticated() bool { return a.TokenValue != "" }
