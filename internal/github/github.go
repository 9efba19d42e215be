package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/amber/internal/fetch"
	"github.com/dshills/amber/internal/gitctx"
)

const (
	defaultAPIURL = "https://api.github.com"
	// fetchWindow bounds concurrent content downloads.
	fetchWindow = 4
	// maxErrBody caps how much of an error response is carried in errors.
	maxErrBody = 2048
)

// Client provides read access to repository content over the GitHub REST API.
type Client struct {
	token  string
	apiURL string
	http   *http.Client
	policy fetch.Policy
	log    *zap.Logger
}

// NewClient creates a Client. Requires the GITHUB_TOKEN environment
// variable; GITHUB_API_URL overrides the endpoint for GitHub Enterprise.
func NewClient(policy fetch.Policy, log *zap.Logger) (*Client, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN environment variable is not set")
	}
	apiURL := os.Getenv("GITHUB_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		token:  token,
		apiURL: strings.TrimRight(apiURL, "/"),
		http:   &http.Client{Timeout: 60 * time.Second},
		policy: policy,
		log:    log,
	}, nil
}

// treeEntry is one node of a git tree response.
type treeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

type treeResponse struct {
	Tree      []treeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// ListTree returns the blobs of a repository tree at ref, carrying
// GitHub's blob SHAs as content hashes. ref defaults to HEAD.
func (c *Client) ListTree(ctx context.Context, owner, repo, ref string) ([]gitctx.TrackedFile, error) {
	if ref == "" {
		ref = "HEAD"
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", c.apiURL, owner, repo, url.PathEscape(ref))
	target := fmt.Sprintf("%s/%s@%s", owner, repo, ref)

	var body []byte
	err := fetch.Do(ctx, c.policy, target, func(ctx context.Context) error {
		data, err := c.get(ctx, endpoint, "application/vnd.github.v3+json")
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	var tree treeResponse
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("parsing tree for %s: %w", target, err)
	}
	if tree.Truncated {
		c.log.Warn("tree listing truncated by the API", zap.String("target", target))
	}

	var files []gitctx.TrackedFile
	for _, e := range tree.Tree {
		if e.Type != "blob" {
			continue
		}
		files = append(files, gitctx.TrackedFile{Path: e.Path, Hash: e.SHA, Size: e.Size})
	}
	return files, nil
}

// FetchFile downloads one file's raw bytes at ref.
func (c *Client) FetchFile(ctx context.Context, owner, repo, ref, path string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiURL, owner, repo, escapePath(path))
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}
	target := fmt.Sprintf("%s/%s@%s:%s", owner, repo, ref, path)

	var body []byte
	err := fetch.Do(ctx, c.policy, target, func(ctx context.Context) error {
		data, err := c.get(ctx, endpoint, "application/vnd.github.v3.raw")
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// FetchAll downloads many files in a bounded concurrency window. The first
// failed file cancels the batch.
func (c *Client) FetchAll(ctx context.Context, owner, repo, ref string, paths []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(paths))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWindow)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			data, err := c.FetchFile(ctx, owner, repo, ref, path)
			if err != nil {
				return err
			}
			mu.Lock()
			out[path] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Loader adapts the client to the bundle loader shape for one repository.
type Loader struct {
	Client *Client
	Owner  string
	Repo   string
	Ref    string
}

func (l Loader) Load(ctx context.Context, path string) ([]byte, error) {
	return l.Client.FetchFile(ctx, l.Owner, l.Repo, l.Ref, path)
}

// get performs one authenticated request, converting non-2xx responses to
// StatusError so the fetch policy can classify them.
func (c *Client) get(ctx context.Context, endpoint, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > maxErrBody {
			snippet = snippet[:maxErrBody]
		}
		return nil, &fetch.StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

// escapePath escapes each path segment, keeping the separators.
func escapePath(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// Target is a parsed owner/repo@ref reference.
type Target struct {
	Owner string
	Repo  string
	Ref   string
}

// ParseTarget parses "owner/repo" or "owner/repo@ref".
func ParseTarget(s string) (Target, error) {
	rest, ref, _ := strings.Cut(s, "@")
	owner, repo, ok := strings.Cut(rest, "/")
	if !ok || owner == "" || repo == "" {
		return Target{}, fmt.Errorf("invalid remote target %q (want owner/repo[@ref])", s)
	}
	return Target{Owner: owner, Repo: repo, Ref: ref}, nil
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo parses owner/repo from the git remote origin URL of dir.
func DetectRepo(dir string) (owner, repo string, err error) {
	cmd := exec.Command("git", "remote", "get-url", "origin")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(u string) (owner, repo string, err error) {
	u = strings.TrimSuffix(u, ".git")
	if m := httpsRemoteRe.FindStringSubmatch(u); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(u); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", u)
}
