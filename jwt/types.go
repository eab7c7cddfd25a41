package jwt

const (
	Type      = "JWT"
	Algorithm = "GREENLEDGER"
)

// Header is the JOSE header. KeyID, when set, names the signer instead of the issuer.
type Header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
}

// Claims are the registered claims used by the registry. Times are Unix
// seconds encoded as decimal strings.
type Claims struct {
	Issuer         string `json:"iss,omitempty"`
	Subject        string `json:"sub,omitempty"`
	Audience       string `json:"aud,omitempty"`
	ExpirationTime string `json:"exp,omitempty"`
	IssuedAt       string `json:"iat,omitempty"`
	JWTID          string `json:"jti,omitempty"`
}
