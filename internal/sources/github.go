package sources

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	githubReposPerPage = 100
	// GitHub only serves the first 1000 search results.
	githubMaxResults = 1000
)

// GithubSampleOptions configures a GithubSampleSource.
type GithubSampleOptions struct {
	// Name identifies the Source. Empty defaults to "github_sample".
	Name string

	// SearchQuery is an optional GitHub repository search query.
	SearchQuery string

	// Language constrains results to GitHub's repository language tag.
	Language string

	// MaxKB limits the size of sampled repositories in kilobytes, to avoid
	// downloading excessively large clones. 0 means no limit.
	MaxKB int

	// Sort is the GitHub search sort order. Matters because only the first
	// 1000 results can be sampled from. Empty defaults to "updated".
	Sort string

	// Token is a GitHub access token. Optional, but unauthenticated
	// requests have much lower rate limits.
	Token string

	// RandomSeed seeds the page sampler. 0 uses a time-based seed.
	RandomSeed int64

	// MinSearchInterval throttles search API calls. 0 defaults to 2s.
	MinSearchInterval time.Duration

	// APIBaseURL overrides the GitHub API endpoint (tests).
	APIBaseURL string
}

// GithubSampleSource samples Repos from randomly selected pages of GitHub
// search results and clones them into temporary directories for analysis.
// Its candidate stream is effectively infinite while the search keeps
// matching repositories.
type GithubSampleSource struct {
	name    string
	opts    GithubSampleOptions
	client  *github.Client
	limiter *rate.Limiter
	clones  singleflight.Group
}

// NewGithubSampleSource creates a Source sampling repositories from the
// GitHub search API.
func NewGithubSampleSource(opts GithubSampleOptions) (*GithubSampleSource, error) {
	name := opts.Name
	if name == "" {
		name = "github_sample"
	}
	if opts.Sort == "" {
		opts.Sort = "updated"
	}
	interval := opts.MinSearchInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var client *github.Client
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}
	if opts.APIBaseURL != "" {
		base := opts.APIBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("source %q: invalid API base URL %q: %w", name, opts.APIBaseURL, err)
		}
		client.BaseURL = u
	}

	return &GithubSampleSource{
		name:    name,
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}, nil
}

func (s *GithubSampleSource) Name() string { return s.name }

// searchQuery assembles the GitHub search expression from the configured
// query, language, and size constraints.
func (s *GithubSampleSource) searchQuery() string {
	var parts []string
	if s.opts.SearchQuery != "" {
		parts = append(parts, s.opts.SearchQuery)
	}
	if s.opts.Language != "" {
		parts = append(parts, "language:"+s.opts.Language)
	}
	if s.opts.MaxKB > 0 {
		parts = append(parts, fmt.Sprintf("size:<=%d", s.opts.MaxKB))
	}
	return strings.Join(parts, " ")
}

// searchRepos fetches one page of search results and reports how many pages
// are available to sample from.
func (s *GithubSampleSource) searchRepos(ctx context.Context, page int) ([]*github.Repository, int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}
	res, _, err := s.client.Search.Repositories(ctx, s.searchQuery(), &github.SearchOptions{
		Sort: s.opts.Sort,
		ListOptions: github.ListOptions{
			PerPage: githubReposPerPage,
			Page:    page,
		},
	})
	if err != nil {
		return nil, 0, fmt.Errorf("source %q: search repositories: %w", s.name, err)
	}

	total := res.GetTotal()
	if total > githubMaxResults {
		total = githubMaxResults
	}
	pageCount := total / githubReposPerPage
	if total%githubReposPerPage != 0 {
		pageCount++
	}

	// Keep only repos matching the requested language tag; the search index
	// can return near-misses.
	var repos []*github.Repository
	for _, r := range res.Repositories {
		if s.opts.Language != "" && !strings.EqualFold(r.GetLanguage(), s.opts.Language) {
			continue
		}
		repos = append(repos, r)
	}
	return repos, pageCount, nil
}

// cloneRepo prepares a sampled repository for analysis, recording popularity
// metadata from the search result.
func (s *GithubSampleSource) cloneRepo(ctx context.Context, repoData *github.Repository) (*Repo, error) {
	key := repoData.GetFullName()
	v, err, _ := s.clones.Do(key, func() (any, error) {
		return cloneGitRepo(ctx, repoData.GetCloneURL())
	})
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", s.name, err)
	}
	dir := v.(string)
	return &Repo{
		Source:  s,
		Key:     key,
		Path:    dir,
		Cleanup: func() { _ = os.RemoveAll(dir) },
		Metadata: map[string]any{
			"stars":    repoData.GetStargazersCount(),
			"language": repoData.GetLanguage(),
		},
	}, nil
}

func (s *GithubSampleSource) FetchRepo(ctx context.Context, key string) (*Repo, error) {
	owner, name, ok := strings.Cut(key, "/")
	if !ok {
		return nil, fmt.Errorf("source %q: repo key %q is not OWNER/REPO", s.name, key)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	repoData, _, err := s.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("source %q: get repository %q: %w", s.name, key, err)
	}
	return s.cloneRepo(ctx, repoData)
}

func (s *GithubSampleSource) Repos(ctx context.Context) RepoIterator {
	seed := s.opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	pageCount := 1
	var buf []Item

	return iteratorFunc(func(ctx context.Context) (Item, error) {
		if len(buf) == 0 {
			page := 1
			if pageCount > 1 {
				page = 1 + rng.Intn(pageCount)
			}
			repos, pages, err := s.searchRepos(ctx, page)
			if err != nil {
				return Item{}, err
			}
			if pages > 0 {
				pageCount = pages
			}
			if len(repos) == 0 && pages == 0 {
				// Nothing matches the search; the stream is done.
				return Item{}, io.EOF
			}
			for _, repoData := range repos {
				repoData := repoData
				buf = append(buf, Item{Thunk: &RepoThunk{
					Source: s,
					Key:    repoData.GetFullName(),
					Fetch: func(ctx context.Context) (*Repo, error) {
						return s.cloneRepo(ctx, repoData)
					},
				}})
			}
			if len(buf) == 0 {
				return Item{}, fmt.Errorf("source %q: search page %d held no usable repositories", s.name, page)
			}
		}
		it := buf[0]
		buf = buf[1:]
		return it, nil
	})
}
