package instance

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"atlauth/pkg/logging"
)

// Kind is the deployment topology of an Atlassian instance.
type Kind int

const (
	// KindCloud is an Atlassian-hosted SaaS deployment, addressed by a
	// platform-managed domain and identified by a cloud ID.
	KindCloud Kind = iota

	// KindServerDC is a self-hosted Server or Data Center deployment.
	KindServerDC
)

// String returns the string representation of the instance kind.
func (k Kind) String() string {
	switch k {
	case KindCloud:
		return "cloud"
	case KindServerDC:
		return "server/dc"
	default:
		return "unknown"
	}
}

// Override forces a detection result, bypassing the hostname heuristic.
// Needed for self-hosted deployments on Cloud-compatible domains and for
// Cloud instances behind custom domains.
type Override int

const (
	OverrideNone Override = iota
	OverrideCloud
	OverrideServerDC
)

// ParseOverride converts a configuration string ("cloud", "server", "") to
// an Override. Unknown values return an error so a typo never silently
// falls back to the heuristic.
func ParseOverride(s string) (Override, error) {
	switch s {
	case "":
		return OverrideNone, nil
	case "cloud":
		return OverrideCloud, nil
	case "server", "datacenter", "server/dc":
		return OverrideServerDC, nil
	default:
		return OverrideNone, fmt.Errorf("unknown instance override %q", s)
	}
}

// ErrDetectionAmbiguous is returned when a base URL cannot be classified:
// it is missing, relative, or not parseable as an absolute URL.
var ErrDetectionAmbiguous = errors.New("instance type detection ambiguous")

// cloudSuffixes are hostname suffixes that signal an Atlassian Cloud
// deployment. Anything else defaults to Server/DC.
var cloudSuffixes = []string{
	".atlassian.net",
	".atlassian.com",
	".jira.com",
}

// Profile describes one detected instance. It is immutable once constructed;
// re-detection happens only on explicit configuration reload.
type Profile struct {
	// BaseURL is the configured base URL of the instance.
	BaseURL string

	// Kind is the detected (or overridden) deployment topology.
	Kind Kind

	// DetectedAt records when this classification was made.
	DetectedAt time.Time
}

// Detect classifies a base URL as Cloud or Server/DC.
//
// Cloud is signaled by the platform's managed domain suffixes (or the
// api.atlassian.com gateway host); anything else defaults to Server/DC.
// An override short-circuits the heuristic entirely. Detection is a local,
// best-effort computation: liveness against the instance is never checked
// here, and the session factory re-validates when a scheme turns out to be
// incompatible with the detected kind.
func Detect(baseURL string, override Override) (Profile, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return Profile{}, fmt.Errorf("%w: base URL %q is not an absolute URL", ErrDetectionAmbiguous, baseURL)
	}

	profile := Profile{
		BaseURL:    baseURL,
		DetectedAt: time.Now(),
	}

	switch override {
	case OverrideCloud:
		profile.Kind = KindCloud
		logging.Debug("Instance", "override forces cloud for %s", u.Hostname())
		return profile, nil
	case OverrideServerDC:
		profile.Kind = KindServerDC
		logging.Debug("Instance", "override forces server/dc for %s", u.Hostname())
		return profile, nil
	}

	profile.Kind = classifyHost(u.Hostname())
	logging.Debug("Instance", "detected %s instance at %s", profile.Kind, u.Hostname())
	return profile, nil
}

func classifyHost(host string) Kind {
	host = strings.ToLower(host)

	// The multi-cloud API gateway addresses Cloud sites directly.
	if host == "api.atlassian.com" {
		return KindCloud
	}

	for _, suffix := range cloudSuffixes {
		if strings.HasSuffix(host, suffix) {
			return KindCloud
		}
	}

	return KindServerDC
}
