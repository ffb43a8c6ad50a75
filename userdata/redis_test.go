package userdata

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testNamespace = "profilesong"
	waitFor       = 2 * time.Second
	pollEvery     = 5 * time.Millisecond
)

func newTestRedisStore(t *testing.T, owner int) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, RedisOptions{
		Owner:      owner,
		Namespace:  testNamespace,
		RetryAfter: time.Millisecond,
	})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func songIDOf(t *testing.T, s *RedisStore, accountID int) int64 {
	t.Helper()
	doc, err := s.Get(accountID, testNamespace)
	require.NoError(t, err)
	id, err := doc.SongID()
	require.NoError(t, err)
	return id
}

func TestRedisStoreFetchesInBackground(t *testing.T) {
	s, mr := newTestRedisStore(t, 1)
	require.NoError(t, mr.Set(Key(2, testNamespace), `{"songId":4815162342}`))

	assert.False(t, s.Contains(2, testNamespace))
	_, err := s.Get(2, testNamespace)
	assert.ErrorIs(t, err, ErrNotFound)

	require.Eventually(t, func() bool { return s.Contains(2, testNamespace) }, waitFor, pollEvery)
	assert.Equal(t, int64(4815162342), songIDOf(t, s, 2))
}

func TestRedisStoreMissingKeyIsNotFound(t *testing.T) {
	s, _ := newTestRedisStore(t, 1)

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.False(t, s.Contains(3, testNamespace))
		time.Sleep(pollEvery)
	}
	_, err := s.Get(3, testNamespace)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreRefreshReadsCurrentDocument(t *testing.T) {
	s, mr := newTestRedisStore(t, 1)
	key := Key(2, testNamespace)

	require.NoError(t, mr.Set(key, `{"songId":111}`))
	require.Eventually(t, func() bool { return s.Contains(2, testNamespace) }, waitFor, pollEvery)
	assert.Equal(t, int64(111), songIDOf(t, s, 2))

	require.NoError(t, mr.Set(key, `{"songId":222}`))
	s.Refresh(2, testNamespace)

	assert.False(t, s.Contains(2, testNamespace))
	_, err := s.Get(2, testNamespace)
	assert.ErrorIs(t, err, ErrNotFound)

	require.Eventually(t, func() bool { return s.Contains(2, testNamespace) }, waitFor, pollEvery)
	assert.Equal(t, int64(222), songIDOf(t, s, 2))
}

func TestRedisStoreUploadWritesOwnerKey(t *testing.T) {
	s, mr := newTestRedisStore(t, 7)
	doc, err := NewSongDocument(55)
	require.NoError(t, err)

	s.Upload(doc)
	require.Eventually(t, func() bool {
		got, err := mr.Get(Key(7, testNamespace))
		return err == nil && got == string(doc)
	}, waitFor, pollEvery)

	require.Eventually(t, func() bool { return s.Contains(7, testNamespace) }, waitFor, pollEvery)
	assert.Equal(t, int64(55), songIDOf(t, s, 7))
}

func TestRedisStoreUploadWithoutOwnerDoesNothing(t *testing.T) {
	s, mr := newTestRedisStore(t, 0)
	doc, err := NewSongDocument(55)
	require.NoError(t, err)

	s.Upload(doc)
	require.NoError(t, s.Close())
	assert.Empty(t, mr.Keys())
}

func TestRedisStoreUploadFailureIsSwallowed(t *testing.T) {
	s, mr := newTestRedisStore(t, 7)
	mr.SetError("READONLY You can't write against a read only replica")
	doc, err := NewSongDocument(55)
	require.NoError(t, err)

	s.Upload(doc)
	require.NoError(t, s.Close())

	_, err = s.Get(7, testNamespace)
	assert.ErrorIs(t, err, ErrNotFound)
	mr.SetError("")
	assert.False(t, mr.Exists(Key(7, testNamespace)))
}
