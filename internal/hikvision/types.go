package hikvision

import "encoding/json"

// Every vendor reply is wrapped in this envelope. Code "0" means success.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

type TokenRequest struct {
	AppKey    string `json:"appKey"`
	SecretKey string `json:"secretKey"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
	TokenType    string `json:"tokenType"`
	Scope        string `json:"scope,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// PersonPrivilegeRequest replaces the full door set of one device-side person.
// An empty Doors slice revokes every privilege.
type PersonPrivilegeRequest struct {
	PersonID   string   `json:"personId"`
	PersonName string   `json:"personName,omitempty"`
	Doors      []string `json:"doors"`
	ValidFrom  string   `json:"validFrom,omitempty"` // RFC3339
	ValidTo    string   `json:"validTo,omitempty"`   // RFC3339
}
