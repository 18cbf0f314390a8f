package remote

// Authenticator provides authentication for OCI registry operations.
type Authenticator interface {
	// Authenticate returns credentials for the given registry. An empty
	// username falls back to the docker keychain.
	Authenticate(registry string) (username, password string, err error)
}

// StaticAuthenticator returns the same credentials for every registry.
type StaticAuthenticator struct {
	Username string
	Password string
}

// NewStaticAuthenticator creates an authenticator from fixed credentials.
func NewStaticAuthenticator(username, password string) *StaticAuthenticator {
	return &StaticAuthenticator{Username: username, Password: password}
}

// Authenticate returns the configured credentials.
func (a *StaticAuthenticator) Authenticate(registry string) (string, string, error) {
	return a.Username, a.Password, nil
}
