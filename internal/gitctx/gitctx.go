package gitctx

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// TrackedFile is one entry from a tracked-file listing: a path, the blob
// hash git assigned to its content, and its size in bytes.
type TrackedFile struct {
	Path string
	Hash string
	Size int64
}

// Commit is one commit from a history walk with the blobs it touched.
// Files holds the post-image blob hash per touched path; deletions are
// omitted since they leave no blob behind.
type Commit struct {
	SHA   string
	When  time.Time
	Files []TrackedFile
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// Inspector is the narrow repository surface the cache layer depends on.
type Inspector interface {
	// Meta returns repository metadata, or an error when the directory is
	// not under version control.
	Meta() (RepoMeta, error)
	// ListTracked enumerates all tracked files at HEAD with blob hashes.
	ListTracked() ([]TrackedFile, error)
	// HistoryBefore returns commits older than cutoff, newest first, each
	// with the blobs its changes introduced.
	HistoryBefore(cutoff time.Time) ([]Commit, error)
}

// Git implements Inspector by shelling out to the git CLI, rooted at dir.
type Git struct {
	dir string
}

// New returns a Git inspector for the repository containing dir.
func New(dir string) *Git {
	return &Git{dir: dir}
}

// Meta collects repository metadata from git.
func (g *Git) Meta() (RepoMeta, error) {
	root, err := g.output("rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := g.output("rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := g.output("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// ListTracked enumerates tracked files at HEAD using `git ls-tree -r -l`,
// which reports the blob hash and size per path without reading content.
func (g *Git) ListTracked() ([]TrackedFile, error) {
	out, err := g.output("ls-tree", "-r", "-l", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("git ls-tree: %w", err)
	}
	return parseLsTree(out)
}

// HistoryBefore walks commits older than cutoff via `git log --raw` and
// resolves the post-image blob hash of every file each commit touched.
func (g *Git) HistoryBefore(cutoff time.Time) ([]Commit, error) {
	out, err := g.output("log",
		"--before="+cutoff.UTC().Format(time.RFC3339),
		"--format=%H %ct",
		"--raw", "--no-renames", "--no-abbrev")
	if err != nil {
		return nil, fmt.Errorf("git log --raw: %w", err)
	}
	return parseRawLog(out)
}

// parseLsTree parses `git ls-tree -r -l` output lines of the form
// "<mode> blob <hash> <size>\t<path>".
func parseLsTree(out string) ([]TrackedFile, error) {
	var files []TrackedFile
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		meta, path, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(meta)
		if len(fields) != 4 || fields[1] != "blob" {
			// Submodules list as "commit"; skip anything that is not a blob.
			continue
		}
		size, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			// "-" appears for objects without a size (should not happen for
			// blobs); skip rather than abort the listing.
			continue
		}
		files = append(files, TrackedFile{
			Path: path,
			Hash: fields[2],
			Size: size,
		})
	}
	return files, nil
}

const zeroHash = "0000000000000000000000000000000000000000"

// parseRawLog parses `git log --format=%H %ct --raw --no-abbrev` output.
// Commit headers are "<sha> <unixtime>" lines; raw change entries are
// ":<oldmode> <newmode> <oldhash> <newhash> <status>\t<path>" lines.
func parseRawLog(out string) ([]Commit, error) {
	var commits []Commit
	var current *Commit

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if current == nil {
				continue
			}
			meta, path, ok := strings.Cut(line[1:], "\t")
			if !ok {
				continue
			}
			fields := strings.Fields(meta)
			if len(fields) < 5 {
				continue
			}
			newHash := fields[3]
			if newHash == zeroHash {
				continue // deletion, no post-image blob
			}
			current.Files = append(current.Files, TrackedFile{
				Path: path,
				Hash: newHash,
			})
			continue
		}

		sha, ts, ok := strings.Cut(line, " ")
		if !ok || len(sha) != 40 {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
		if err != nil {
			continue
		}
		if current != nil {
			commits = append(commits, *current)
		}
		current = &Commit{SHA: sha, When: time.Unix(unix, 0).UTC()}
	}
	if current != nil {
		commits = append(commits, *current)
	}
	return commits, nil
}

func (g *Git) output(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = g.dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}

// Fake is an in-memory Inspector for tests.
type Fake struct {
	MetaVal    RepoMeta
	Tracked    []TrackedFile
	Commits    []Commit
	MetaErr    error
	TrackedErr error
	HistoryErr error
}

func (f *Fake) Meta() (RepoMeta, error) {
	if f.MetaErr != nil {
		return RepoMeta{}, f.MetaErr
	}
	return f.MetaVal, nil
}

func (f *Fake) ListTracked() ([]TrackedFile, error) {
	if f.TrackedErr != nil {
		return nil, f.TrackedErr
	}
	return f.Tracked, nil
}

func (f *Fake) HistoryBefore(cutoff time.Time) ([]Commit, error) {
	if f.HistoryErr != nil {
		return nil, f.HistoryErr
	}
	var out []Commit
	for _, c := range f.Commits {
		if c.When.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}
