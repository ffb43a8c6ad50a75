package userdata

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix           = "userdata:"
	defaultRetryAfter   = 500 * time.Millisecond
	defaultMaxAge       = 30 * time.Second
	defaultRedisTimeout = 2 * time.Second
)

type RedisOptions struct {
	// Owner is the local account id documents are uploaded under.
	Owner     int
	Namespace string
	// RetryAfter is the minimum gap between fetches of a missing document.
	RetryAfter time.Duration
	// MaxAge bounds how long a fetched document is served before it is fetched again.
	MaxAge  time.Duration
	Timeout time.Duration
}

type redisEntry struct {
	doc       Document
	found     bool
	fetching  bool
	fetchedAt time.Time
}

// RedisStore is a non-blocking view over documents kept in Redis. Contains
// never waits on the network: it reports what has been fetched so far and
// starts a background fetch when the document is missing or stale.
type RedisStore struct {
	client *redis.Client
	opts   RedisOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*redisEntry
	now     func() time.Time
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string, opts RedisOptions) (*RedisStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("userdata: redis url is required")
	}
	ro, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("userdata: parse redis url: %w", err)
	}
	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("userdata: connect to redis: %w", err)
	}
	return NewRedisStoreFromClient(client, opts), nil
}

func NewRedisStoreFromClient(client *redis.Client, opts RedisOptions) *RedisStore {
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = defaultRetryAfter
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultMaxAge
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRedisTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisStore{
		client:  client,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*redisEntry),
		now:     time.Now,
	}
}

// Key is the Redis key holding accountID's document in namespace.
func Key(accountID int, namespace string) string {
	return keyPrefix + namespace + ":" + strconv.Itoa(accountID)
}

func (s *RedisStore) Contains(accountID int, namespace string) bool {
	k := Key(accountID, namespace)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[k]
	if !ok {
		e = &redisEntry{}
		s.entries[k] = e
	}
	now := s.now()
	if e.found && now.Sub(e.fetchedAt) < s.opts.MaxAge {
		return true
	}
	if e.found {
		e.found = false
		e.doc = nil
		e.fetchedAt = time.Time{}
	}
	if !e.fetching && now.Sub(e.fetchedAt) >= s.opts.RetryAfter {
		e.fetching = true
		s.wg.Add(1)
		go s.fetch(k, e)
	}
	return false
}

// Refresh forgets the fetched copy of a document. The next Contains reports
// false and fetches it again; a fetch already in flight is discarded.
func (s *RedisStore) Refresh(accountID int, namespace string) {
	s.mu.Lock()
	delete(s.entries, Key(accountID, namespace))
	s.mu.Unlock()
}

func (s *RedisStore) Get(accountID int, namespace string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[Key(accountID, namespace)]
	if !ok || !e.found {
		return nil, ErrNotFound
	}
	return append(Document(nil), e.doc...), nil
}

// Upload writes doc under the owner's key in the background. Failures are
// logged and otherwise ignored.
func (s *RedisStore) Upload(doc Document) {
	if s.opts.Owner <= 0 || len(doc) == 0 {
		return
	}
	k := Key(s.opts.Owner, s.opts.Namespace)
	payload := append(Document(nil), doc...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
		defer cancel()
		if err := s.client.Set(ctx, k, []byte(payload), 0).Err(); err != nil {
			log.Printf("userdata: upload %s: %v", k, err)
			return
		}
		s.mu.Lock()
		s.entries[k] = &redisEntry{doc: payload, found: true, fetchedAt: s.now()}
		s.mu.Unlock()
	}()
}

// Close stops background work and closes the client.
func (s *RedisStore) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.client.Close()
}

func (s *RedisStore) fetch(k string, e *redisEntry) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.Timeout)
	defer cancel()
	val, err := s.client.Get(ctx, k).Bytes()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[k] != e {
		return
	}
	e.fetching = false
	e.fetchedAt = s.now()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
			log.Printf("userdata: fetch %s: %v", k, err)
		}
		return
	}
	e.doc = Document(val)
	e.found = true
}
