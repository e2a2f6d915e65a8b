// Package viewstate implements a reactive state container: a supervisory
// task scope paired with last-value cells that downstream consumers read
// synchronously. Start launches the container's background fetches, Stop
// cancels them all and blocks until none is running.
package viewstate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NetPo4ki/go-viewstate/cell"
	"github.com/NetPo4ki/go-viewstate/scope"
)

// User is the result of the user-data operation.
type User struct {
	Name string
}

// NewsItem is one entry of the news feed. Ordering uses PublishedAt only.
type NewsItem struct {
	Title       string
	PublishedAt time.Time
}

// UserFetcher loads the current user. It may suspend until the result is
// available and must honour ctx cancellation.
type UserFetcher func(ctx context.Context) (User, error)

// NewsFetcher loads the news feed, in no particular order.
type NewsFetcher func(ctx context.Context) ([]NewsItem, error)

type Option func(*options)

type options struct {
	observer scope.Observer
}

// WithObserver attaches lifecycle hooks to the container's scope.
func WithObserver(obs scope.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Container owns one scope and the three cells it publishes into. The
// container is the only writer of its cells; anyone may read them.
type Container struct {
	UserName        *cell.Cell[string]
	NewsList        *cell.Cell[[]NewsItem]
	ProgressVisible *cell.Cell[bool]

	scope     *scope.Scope
	fetchUser UserFetcher
	fetchNews NewsFetcher

	mu    sync.Mutex
	tasks []*scope.Task
}

// New creates a stopped container. The scope uses the Supervisor policy:
// one fetch failing never cancels the other.
func New(parent context.Context, user UserFetcher, news NewsFetcher, optFns ...Option) *Container {
	var o options
	for _, fn := range optFns {
		fn(&o)
	}
	scopeOpts := []scope.Option{}
	if o.observer != nil {
		scopeOpts = append(scopeOpts, scope.WithObserver(o.observer))
	}
	return &Container{
		UserName:        cell.New[string](),
		NewsList:        cell.New[[]NewsItem](),
		ProgressVisible: cell.New[bool](),
		scope:           scope.New(parent, scope.Supervisor, scopeOpts...),
		fetchUser:       user,
		fetchNews:       news,
	}
}

// Start launches the user and news tasks concurrently. It returns
// scope.ErrScopeClosed after Stop. Start is not guarded against being
// called twice: a second call launches a second independent pair of tasks
// writing into the same cells.
func (c *Container) Start() error {
	userTask, err := c.scope.Launch(c.loadUser)
	if err != nil {
		return err
	}
	newsTask, err := c.scope.Launch(c.loadNews)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.tasks = append(c.tasks, userTask, newsTask)
	c.mu.Unlock()
	return nil
}

// Stop cancels every task the container launched and blocks until all of
// them have reached a terminal state. After Stop returns, no cell is
// written again. Idempotent.
func (c *Container) Stop() error {
	return c.scope.CancelAndJoin()
}

// Wait blocks until every task launched so far is terminal, without
// cancelling anything. It is how callers drain the container after the
// fetches have been allowed to resolve.
func (c *Container) Wait() error {
	return c.scope.Join()
}

// Tasks returns a snapshot of the task handles launched by Start, in
// launch order.
func (c *Container) Tasks() []*scope.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*scope.Task(nil), c.tasks...)
}

func (c *Container) loadUser(ctx context.Context) error {
	user, err := c.fetchUser(ctx)
	if err != nil {
		return err
	}
	c.UserName.Store(user.Name)
	return nil
}

// loadNews brackets the fetch with the progress flag. The flag is cleared
// once the fetch resolves, on failure as well as success: leaving a dead
// loading indicator stuck on after a failed fetch helps nobody.
func (c *Container) loadNews(ctx context.Context) error {
	c.ProgressVisible.Store(true)
	items, err := c.fetchNews(ctx)
	if err != nil {
		c.ProgressVisible.Store(false)
		return err
	}
	sorted := append([]NewsItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})
	c.NewsList.Store(sorted)
	c.ProgressVisible.Store(false)
	return nil
}
