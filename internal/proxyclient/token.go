package proxyclient

import (
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/remotezip/remotezip/core"
	"github.com/remotezip/remotezip/internal/config"
)

// linkTokenData is the payload signed and partially encrypted into a proxy
// link JWT, mirroring the teacher's proxyLinkTokenData shape generalized
// to a single opaque origin link with no store/debrid fields.
type linkTokenData struct {
	EncLink   string `json:"enc_link"`
	EncFormat string `json:"enc_format"`
}

// LinkInfo is what a proxy link token resolves back to.
type LinkInfo struct {
	Link    string
	Headers map[string]string
}

// MintLink builds an opaque, signed baseURL + "/" + token URL for link (the
// relay mints under "/v0/proxy/link" and serves "/v0/proxy/link/{token}"),
// expiring after ttl (0 = no expiry). headers are request headers the
// relay should forward to the origin (e.g. an upstream auth cookie).
func MintLink(policy *config.Policy, baseURL, link string, headers map[string]string, ttl time.Duration) (string, error) {
	blob := link
	for k, v := range headers {
		blob += "\n" + k + ": " + v
	}

	encLink, err := core.Encrypt(policy.ProxyLinkSecret, blob)
	if err != nil {
		return "", err
	}

	claims := core.JWTClaims[linkTokenData]{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "remotezip",
		},
		Data: &linkTokenData{EncLink: encLink, EncFormat: core.EncryptionFormat},
	}
	if ttl > 0 {
		claims.RegisteredClaims.ExpiresAt = core.ExpiresAt(ttl)
	}

	token, err := core.CreateJWT(policy.ProxyLinkSecret, claims)
	if err != nil {
		return "", err
	}

	base := strings.TrimRight(baseURL, "/")
	return base + "/" + url.PathEscape(token), nil
}

// ResolveLink reverses MintLink, validating the signature against secret.
func ResolveLink(policy *config.Policy, token string) (*LinkInfo, error) {
	claims := &core.JWTClaims[linkTokenData]{}
	keyFunc := func(t *jwt.Token) (any, error) {
		return []byte(policy.ProxyLinkSecret), nil
	}
	if _, err := core.ParseJWT(keyFunc, token, claims); err != nil {
		return nil, err
	}

	blob, err := core.Decrypt(policy.ProxyLinkSecret, claims.Data.EncLink)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(blob, "\n")
	info := &LinkInfo{Link: lines[0], Headers: map[string]string{}}
	for _, line := range lines[1:] {
		if k, v, ok := strings.Cut(line, ": "); ok {
			info.Headers[k] = v
		}
	}
	return info, nil
}
