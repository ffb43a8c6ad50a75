package userdata

import (
	"strconv"
	"sync"
)

// MemoryStore keeps documents in process. Documents become visible either
// immediately or after a number of Contains polls, which lets a host simulate
// slow remote data.
type MemoryStore struct {
	mu        sync.Mutex
	owner     int
	namespace string
	docs      map[string]Document
	delays    map[string]int
}

func NewMemoryStore(owner int, namespace string) *MemoryStore {
	return &MemoryStore{
		owner:     owner,
		namespace: namespace,
		docs:      make(map[string]Document),
		delays:    make(map[string]int),
	}
}

// Put stores doc for accountID, hidden from Contains for the next delayPolls polls.
func (s *MemoryStore) Put(accountID int, namespace string, doc Document, delayPolls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memoryKey(accountID, namespace)
	s.docs[k] = append(Document(nil), doc...)
	if delayPolls > 0 {
		s.delays[k] = delayPolls
	} else {
		delete(s.delays, k)
	}
}

func (s *MemoryStore) Contains(accountID int, namespace string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memoryKey(accountID, namespace)
	if _, ok := s.docs[k]; !ok {
		return false
	}
	if n := s.delays[k]; n > 0 {
		s.delays[k] = n - 1
		return false
	}
	return true
}

func (s *MemoryStore) Get(accountID int, namespace string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := memoryKey(accountID, namespace)
	doc, ok := s.docs[k]
	if !ok || s.delays[k] > 0 {
		return nil, ErrNotFound
	}
	return append(Document(nil), doc...), nil
}

// Refresh is a no-op: the in-process map is always current.
func (s *MemoryStore) Refresh(int, string) {}

// Upload stores doc for the owning account.
func (s *MemoryStore) Upload(doc Document) {
	if s.owner <= 0 {
		return
	}
	s.Put(s.owner, s.namespace, doc, 0)
}

func memoryKey(accountID int, namespace string) string {
	return namespace + ":" + strconv.Itoa(accountID)
}
