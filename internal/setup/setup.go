package setup

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/lekkodev/setup-lekko/internal/platform"
	"github.com/lekkodev/setup-lekko/internal/release"
	"github.com/lekkodev/setup-lekko/internal/toolcache"
)

// AssetLocator resolves a version to the downloadable release asset of
// the given platform.
type AssetLocator interface {
	LocateAsset(ctx context.Context, version string, p *platform.Platform) (*release.Asset, error)
}

// Setup installs the lekko binary: resolves it from the tool cache or
// downloads, extracts, and caches it, then puts it on the search path.
type Setup struct {
	log            *logrus.Logger
	cache          *toolcache.Cache
	locator        AssetLocator
	client         *retryablehttp.Client
	githubPathFile string

	goos   string
	goarch string
}

// New creates a Setup. githubPathFile is the runner's persistent PATH
// file and may be empty outside of a CI run.
func New(log *logrus.Logger, cache *toolcache.Cache, locator AssetLocator, client *retryablehttp.Client, githubPathFile string) *Setup {
	return &Setup{
		log:            log,
		cache:          cache,
		locator:        locator,
		client:         client,
		githubPathFile: githubPathFile,
		goos:           runtime.GOOS,
		goarch:         runtime.GOARCH,
	}
}

// EnsureInstalled returns the directory holding the extracted artifact
// for the requested version. A cache hit returns immediately without any
// network activity; a miss resolves the platform, locates the release
// asset, downloads and extracts it, and populates the cache.
func (s *Setup) EnsureInstalled(ctx context.Context, version, token string) (string, error) {
	if dir := s.cache.Find(release.ToolName, version, s.goarch); dir != "" {
		s.log.Infof("found %s %s in tool cache: %s", release.ToolName, version, dir)
		return dir, nil
	}

	p, err := platform.Resolve(s.goos, s.goarch)
	if err != nil {
		return "", err
	}
	asset, err := s.locator.LocateAsset(ctx, version, p)
	if err != nil {
		return "", err
	}

	s.log.Infof("downloading %s", asset.Name)
	tmpDir, err := s.cache.TempDir()
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	if err := s.downloadAndExtract(ctx, asset.DownloadURL, token, tmpDir); err != nil {
		return "", err
	}

	dir, err := s.cache.Add(tmpDir, release.ToolName, version, s.goarch)
	if err != nil {
		return "", err
	}
	s.log.Infof("cached %s %s at %s", release.ToolName, version, dir)
	return dir, nil
}

func (s *Setup) downloadAndExtract(ctx context.Context, url, token, dst string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/octet-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download artifact: %s", resp.Status)
	}
	return toolcache.ExtractTarGz(resp.Body, dst)
}

// Install prepends the binary directory of installDir to the search path
// and verifies the tool resolves. On darwin the install root itself
// holds the binary; everywhere else it lives in a bin subdirectory.
func (s *Setup) Install(installDir string) (string, error) {
	binDir := installDir
	if s.goos != "darwin" {
		binDir = filepath.Join(installDir, "bin")
	}
	if err := s.addPath(binDir); err != nil {
		return "", err
	}
	binPath, err := exec.LookPath(release.ToolName)
	if err != nil {
		return "", fmt.Errorf("%s binary not found on search path after install: %w", release.ToolName, err)
	}
	return binPath, nil
}

func (s *Setup) addPath(dir string) error {
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH")); err != nil {
		return fmt.Errorf("failed to update PATH: %w", err)
	}
	if s.githubPathFile == "" {
		return nil
	}
	// downstream steps of the run pick the directory up from this file
	f, err := os.OpenFile(s.githubPathFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open GITHUB_PATH file: %w", err)
	}
	if _, err := fmt.Fprintln(f, dir); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append to GITHUB_PATH file: %w", err)
	}
	return f.Close()
}

// VerifyVersion runs the installed binary with its version flag and logs
// the output. Diagnostics only: failures are logged, never fatal.
func (s *Setup) VerifyVersion(ctx context.Context, binPath string) {
	out, err := exec.CommandContext(ctx, binPath, "--version").CombinedOutput()
	if err != nil {
		s.log.Warnf("failed to run %s --version: %v", release.ToolName, err)
		return
	}
	s.log.Infof("installed %s", strings.TrimSpace(string(out)))
}
