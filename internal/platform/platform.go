package platform

import (
	"fmt"
	"runtime"
)

// Platform holds the release asset naming tokens for a supported
// operating system and architecture pair.
type Platform struct {
	// OS is the publisher's operating system token, e.g. "Linux".
	OS string
	// Arch is the publisher's architecture token, e.g. "x86_64".
	Arch string
	// RawArch is the unmapped host architecture, used as the tool
	// cache key segment.
	RawArch string
}

var archTokens = map[string]string{
	"amd64": "x86_64",
	"arm64": "arm64",
}

var osTokens = map[string]string{
	"linux":  "Linux",
	"darwin": "Darwin",
}

// Resolve maps Go's GOOS/GOARCH identifiers to the tokens used in the
// published release asset names. Unsupported values are terminal errors
// carrying the offending identifier.
func Resolve(goos, goarch string) (*Platform, error) {
	archToken, ok := archTokens[goarch]
	if !ok {
		return nil, fmt.Errorf("unsupported architecture: %s", goarch)
	}
	osToken, ok := osTokens[goos]
	if !ok {
		return nil, fmt.Errorf("unsupported operating system: %s", goos)
	}
	return &Platform{OS: osToken, Arch: archToken, RawArch: goarch}, nil
}

// Current resolves the platform of the running process.
func Current() (*Platform, error) {
	return Resolve(runtime.GOOS, runtime.GOARCH)
}

// AssetName renders the release asset filename for the given tool,
// e.g. "lekko_Linux_x86_64.tar.gz".
func (p *Platform) AssetName(tool string) string {
	return fmt.Sprintf("%s_%s_%s.tar.gz", tool, p.OS, p.Arch)
}
