package release

import (
	"context"
	"testing"

	"github.com/google/go-github/v59/github"
	"github.com/migueleliasweb/go-github-mock/src/mock"
	"github.com/stretchr/testify/require"

	"github.com/lekkodev/setup-lekko/internal/platform"
)

func TestNormalizeTag(t *testing.T) {
	require.Equal(t, "v0.2.15", NormalizeTag("0.2.15"))
	require.Equal(t, "v0.2.15", NormalizeTag("v0.2.15"))
	// idempotent
	require.Equal(t, NormalizeTag("0.2.15"), NormalizeTag(NormalizeTag("0.2.15")))
}

func linuxAmd64(t *testing.T) *platform.Platform {
	t.Helper()
	p, err := platform.Resolve("linux", "amd64")
	require.NoError(t, err)
	return p
}

func TestLocateAssetLatest(t *testing.T) {
	mockedHTTPClient := mock.NewMockedHTTPClient(
		mock.WithRequestMatch(
			mock.GetReposReleasesByOwnerByRepo,
			[]*github.RepositoryRelease{
				{
					TagName: github.String("v0.3.0"),
					Assets: []*github.ReleaseAsset{
						{Name: github.String("lekko_Darwin_arm64.tar.gz"), URL: github.String("https://api.example.com/assets/1")},
						{Name: github.String("lekko_Linux_x86_64.tar.gz"), URL: github.String("https://api.example.com/assets/2")},
					},
				},
			},
		),
	)
	l := NewLocatorWithClient(github.NewClient(mockedHTTPClient), "lekkodev", "cli")

	asset, err := l.LocateAsset(context.Background(), VersionLatest, linuxAmd64(t))
	require.NoError(t, err)
	require.Equal(t, "lekko_Linux_x86_64.tar.gz", asset.Name)
	require.Equal(t, "https://api.example.com/assets/2", asset.DownloadURL)
}

func TestLocateAssetByTag(t *testing.T) {
	mockedHTTPClient := mock.NewMockedHTTPClient(
		mock.WithRequestMatch(
			mock.GetReposReleasesTagsByOwnerByRepoByTag,
			&github.RepositoryRelease{
				TagName: github.String("v0.2.15"),
				Assets: []*github.ReleaseAsset{
					{Name: github.String("lekko_Linux_x86_64.tar.gz"), URL: github.String("https://api.example.com/assets/3")},
				},
			},
		),
	)
	l := NewLocatorWithClient(github.NewClient(mockedHTTPClient), "lekkodev", "cli")

	asset, err := l.LocateAsset(context.Background(), "0.2.15", linuxAmd64(t))
	require.NoError(t, err)
	require.Equal(t, "https://api.example.com/assets/3", asset.DownloadURL)
}

func TestLocateAssetNotFound(t *testing.T) {
	mockedHTTPClient := mock.NewMockedHTTPClient(
		mock.WithRequestMatch(
			mock.GetReposReleasesByOwnerByRepo,
			[]*github.RepositoryRelease{
				{
					TagName: github.String("v0.3.0"),
					Assets: []*github.ReleaseAsset{
						{Name: github.String("lekko_Windows_x86_64.zip"), URL: github.String("https://api.example.com/assets/4")},
					},
				},
			},
		),
	)
	l := NewLocatorWithClient(github.NewClient(mockedHTTPClient), "lekkodev", "cli")

	_, err := l.LocateAsset(context.Background(), VersionLatest, linuxAmd64(t))
	require.Error(t, err)
	require.ErrorContains(t, err, "Linux")
	require.ErrorContains(t, err, "x86_64")
}

func TestLocateAssetNoReleases(t *testing.T) {
	mockedHTTPClient := mock.NewMockedHTTPClient(
		mock.WithRequestMatch(
			mock.GetReposReleasesByOwnerByRepo,
			[]*github.RepositoryRelease{},
		),
	)
	l := NewLocatorWithClient(github.NewClient(mockedHTTPClient), "lekkodev", "cli")

	_, err := l.LocateAsset(context.Background(), VersionLatest, linuxAmd64(t))
	require.ErrorContains(t, err, "no releases found")
}
