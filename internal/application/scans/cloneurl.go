package scans

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

// BuildCloneURL splices credential into the authority of an https repoURL,
// giving https://CREDENTIAL@host/path. Without a credential repoURL is
// returned unmodified. A credential for any other scheme is rejected rather
// than dropped.
func BuildCloneURL(repoURL, credential string) (string, error) {
	if credential == "" {
		return repoURL, nil
	}

	u, err := url.Parse(repoURL)
	if err != nil {
		return "", domain.NewError(domain.KindBadRequest, "invalid repo_url", err)
	}
	if u.Scheme != "https" {
		scheme := u.Scheme
		if scheme == "" {
			scheme = "none"
		}
		return "", domain.NewError(domain.KindCredentialURL,
			fmt.Sprintf("gitkey requires an https repo_url (scheme: %s)", scheme), nil)
	}
	if u.Host == "" {
		return "", domain.NewError(domain.KindBadRequest, "repo_url has no host", nil)
	}

	if user, pass, ok := strings.Cut(credential, ":"); ok {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(credential)
	}
	return u.String(), nil
}

// RedactURL strips userinfo so a URL can be logged or stored.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return u.String()
}

// scrub masks the credential, and its password half for user:token
// credentials, in b. Both raw and URL-escaped spellings are masked.
func scrub(b []byte, credential string) string {
	if credential == "" {
		return string(b)
	}
	secrets := []string{credential}
	if _, pass, ok := strings.Cut(credential, ":"); ok && pass != "" {
		secrets = append(secrets, pass)
	}

	out := b
	for _, secret := range secrets {
		out = bytes.ReplaceAll(out, []byte(secret), []byte(redacted))
		if esc := url.PathEscape(secret); esc != secret {
			out = bytes.ReplaceAll(out, []byte(esc), []byte(redacted))
		}
		if esc := url.QueryEscape(secret); esc != secret {
			out = bytes.ReplaceAll(out, []byte(esc), []byte(redacted))
		}
	}
	return string(out)
}

const redacted = "***"
