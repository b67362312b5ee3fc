package proxyclient

import "net/url"

// originRoot returns the scheme+host root of rawURL, used to set a
// plausible Referer header when relaying to an origin.
func originRoot(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	root := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	return root.String(), nil
}
