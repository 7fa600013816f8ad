package release

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v59/github"
	"golang.org/x/oauth2"

	"github.com/lekkodev/setup-lekko/internal/platform"
)

const (
	// ToolName is the binary and asset name prefix of the published tool.
	ToolName = "lekko"

	releaseOwner = "lekkodev"
	releaseRepo  = "cli"

	// VersionLatest selects the most recent published release.
	VersionLatest = "latest"
)

// Asset is the remote metadata of a single downloadable release artifact.
// DownloadURL is the asset API URL; downloading it requires bearer
// authentication and an application/octet-stream Accept header.
type Asset struct {
	Name        string
	DownloadURL string
}

// Locator resolves a version string to the download URL of the release
// asset matching the host platform.
type Locator struct {
	ghClient *github.Client
	owner    string
	repo     string
}

// NewLocator creates a Locator talking to the canonical release
// repository, authenticated with the given token. An empty token yields
// an unauthenticated client, deferring auth failures to the registry.
func NewLocator(token string) *Locator {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	return NewLocatorWithClient(github.NewClient(httpClient), releaseOwner, releaseRepo)
}

// NewLocatorWithClient creates a Locator against an arbitrary repository
// with a preconfigured client.
func NewLocatorWithClient(ghClient *github.Client, owner, repo string) *Locator {
	return &Locator{ghClient: ghClient, owner: owner, repo: repo}
}

// NormalizeTag converts a version input to its release tag by prepending
// "v" when absent. Idempotent; no further validation, unknown versions
// surface as registry lookup failures.
func NormalizeTag(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// LocateAsset finds the download URL of the asset named
// <tool>_<OS>_<Arch>.tar.gz in the requested release. version is either
// "latest" or a semantic version with optional "v" prefix.
func (l *Locator) LocateAsset(ctx context.Context, version string, p *platform.Platform) (*Asset, error) {
	release, err := l.getRelease(ctx, version)
	if err != nil {
		return nil, err
	}
	assetName := p.AssetName(ToolName)
	for _, asset := range release.Assets {
		if asset.GetName() == assetName {
			return &Asset{Name: assetName, DownloadURL: asset.GetURL()}, nil
		}
	}
	return nil, fmt.Errorf("release %s has no asset for %s/%s (expected %s)", release.GetTagName(), p.OS, p.Arch, assetName)
}

func (l *Locator) getRelease(ctx context.Context, version string) (*github.RepositoryRelease, error) {
	if version == VersionLatest {
		releases, _, err := l.ghClient.Repositories.ListReleases(ctx, l.owner, l.repo, &github.ListOptions{Page: 1, PerPage: 1})
		if err != nil {
			return nil, fmt.Errorf("failed to list releases: %w", err)
		}
		if len(releases) == 0 {
			return nil, fmt.Errorf("no releases found for %s/%s", l.owner, l.repo)
		}
		return releases[0], nil
	}
	tag := NormalizeTag(version)
	release, _, err := l.ghClient.Repositories.GetReleaseByTag(ctx, l.owner, l.repo, tag)
	if err != nil {
		return nil, fmt.Errorf("failed to get release %s: %w", tag, err)
	}
	return release, nil
}
