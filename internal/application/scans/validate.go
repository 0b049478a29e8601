package scans

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	domain "github.com/bryanwahyu/horusec-scan/internal/domain/scans"
)

// MsgMissingRepoURL is the error returned when repo_url is absent.
const MsgMissingRepoURL = "Missing repo_url"

const maxRepoURLLen = 2048

// scp-like git address: user@host:path
var scpLike = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+:[^/\\][^\\]*$`)

var allowedSchemes = map[string]bool{
	"https": true,
	"http":  true,
	"ssh":   true,
	"git":   true,
}

// ValidateRepoURL rejects inputs that must never reach the git client.
func ValidateRepoURL(raw string, blockPrivate bool) error {
	if strings.TrimSpace(raw) == "" {
		return domain.NewError(domain.KindBadRequest, MsgMissingRepoURL, nil)
	}
	if len(raw) > maxRepoURLLen {
		return domain.NewError(domain.KindBadRequest, "repo_url is too long", nil)
	}
	if strings.HasPrefix(raw, "-") {
		return domain.NewError(domain.KindBadRequest, "repo_url must not start with '-'", nil)
	}
	for _, r := range raw {
		if r <= ' ' || r == 0x7f {
			return domain.NewError(domain.KindBadRequest, "repo_url contains whitespace or control characters", nil)
		}
	}

	if !strings.Contains(raw, "://") {
		if !scpLike.MatchString(raw) {
			return domain.NewError(domain.KindBadRequest, "invalid repo_url format", nil)
		}
		host := raw[strings.Index(raw, "@")+1 : strings.Index(raw, ":")]
		return checkHost(host, blockPrivate)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return domain.NewError(domain.KindBadRequest, "invalid repo_url format", err)
	}
	if !allowedSchemes[u.Scheme] {
		return domain.NewError(domain.KindBadRequest,
			fmt.Sprintf("invalid repo_url scheme: %s (allowed: https, http, ssh, git)", u.Scheme), nil)
	}
	if u.Hostname() == "" {
		return domain.NewError(domain.KindBadRequest, "repo_url has no host", nil)
	}
	return checkHost(u.Hostname(), blockPrivate)
}

// checkHost blocks loopback and private literal addresses when asked to.
// Names are not resolved.
func checkHost(host string, blockPrivate bool) error {
	if !blockPrivate {
		return nil
	}
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return domain.NewError(domain.KindBadRequest, "localhost/internal hosts are not allowed", nil)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
			return domain.NewError(domain.KindBadRequest, "private IP ranges are not allowed", nil)
		}
	}
	return nil
}
