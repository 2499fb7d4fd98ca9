// Package auth builds authenticated HTTP calling clients from declarative
// auth descriptors. It owns the OAuth2 client-credentials token cache.
package auth

// Auth describes how a client authenticates against an upstream endpoint.
// It is a closed set: APIKey, OAuth2 or None.
type Auth interface {
	isAuth()
}

// Placement says where an API key goes on the request.
type Placement int

const (
	InHeader Placement = iota
	InParams
)

// APIKey is a static credential baked into every request, either as a header
// or as a query parameter.
type APIKey struct {
	In    Placement
	Name  string
	Value string
}

// OAuth2 is a client-credentials grant against a token endpoint.
type OAuth2 struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
}

// None is an unauthenticated client.
type None struct{}

func (APIKey) isAuth() {}
func (OAuth2) isAuth() {}
func (None) isAuth()   {}
