package submission

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"soloparent-workers/internal/common/salesforce"
	"soloparent-workers/internal/models"
)

var errInjected = errors.New("injected store failure")

type fakeRecord struct {
	sobject string
	parent  string
	doc     string
}

// fakeStore is an in-memory record store with master-detail cascade, failure injection and a
// call log. Calls sleep a random few milliseconds so batch members finish in arbitrary order.
type fakeStore struct {
	mu      sync.Mutex
	seq     int
	records map[string]fakeRecord
	creates map[string]int
	deletes map[string]int
	titles  map[string]string
	calls   []string

	failCreate  func(sobject string, fields interface{}) error
	failUpload  func(title string) error
	failLink    func(title string) error
	failDestroy func(sobject, id string) error
	partial     func(title string) bool
	onDestroy   func(ctx context.Context)

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: map[string]fakeRecord{},
		creates: map[string]int{},
		deletes: map[string]int{},
		titles:  map[string]string{},
	}
}

func (s *fakeStore) enter() func() {
	n := s.inFlight.Add(1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
	return func() { s.inFlight.Add(-1) }
}

func (s *fakeStore) insert(sobject string, rec fakeRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("%s-%03d", sobject, s.seq)
	rec.sobject = sobject
	s.records[id] = rec
	s.creates[sobject]++
	return id
}

func (s *fakeStore) logCall(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *fakeStore) Create(ctx context.Context, sobject string, fields interface{}) (string, error) {
	defer s.enter()()
	s.logCall("create %s", sobject)
	if s.failCreate != nil {
		if err := s.failCreate(sobject, fields); err != nil {
			return "", err
		}
	}
	var parent string
	if m, ok := fields.(models.FamilyMemberRecord); ok {
		parent = m.ApplicationFormID
		s.mu.Lock()
		_, exists := s.records[parent]
		s.mu.Unlock()
		if !exists {
			return "", fmt.Errorf("parent %s does not exist", parent)
		}
	}
	return s.insert(sobject, fakeRecord{parent: parent}), nil
}

func (s *fakeStore) UploadAttachment(ctx context.Context, u salesforce.Upload) (string, error) {
	defer s.enter()()
	s.logCall("upload %s", u.Title)
	if s.failUpload != nil {
		if err := s.failUpload(u.Title); err != nil {
			return "", err
		}
	}
	if s.partial != nil && s.partial(u.Title) {
		versionID := s.insert(models.SObjectContentVersion, fakeRecord{})
		return "", &salesforce.PartialUploadError{VersionID: versionID, Err: errInjected}
	}
	id := s.insert(models.SObjectContentDocument, fakeRecord{})
	s.mu.Lock()
	s.titles[id] = u.Title
	s.mu.Unlock()
	return id, nil
}

func (s *fakeStore) LinkAttachment(ctx context.Context, documentID, entityID string) (string, error) {
	defer s.enter()()
	s.logCall("link %s", documentID)
	if s.failLink != nil {
		s.mu.Lock()
		title := s.titles[documentID]
		s.mu.Unlock()
		if err := s.failLink(title); err != nil {
			return "", err
		}
	}
	return s.insert(models.SObjectContentDocumentLink, fakeRecord{parent: entityID, doc: documentID}), nil
}

func (s *fakeStore) Destroy(ctx context.Context, sobject string, ids ...string) ([]salesforce.DeleteResult, error) {
	if s.onDestroy != nil {
		s.onDestroy(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "destroy "+sobject)

	results := make([]salesforce.DeleteResult, 0, len(ids))
	for _, id := range ids {
		s.deletes[id]++
		if s.failDestroy != nil {
			if err := s.failDestroy(sobject, id); err != nil {
				results = append(results, salesforce.DeleteResult{ID: id, Errors: []salesforce.ErrorDetail{{StatusCode: "UNABLE_TO_LOCK_ROW", Message: err.Error()}}})
				continue
			}
		}
		rec, ok := s.records[id]
		if !ok || rec.sobject != sobject {
			results = append(results, salesforce.DeleteResult{ID: id, Errors: []salesforce.ErrorDetail{{StatusCode: "ENTITY_IS_DELETED"}}})
			continue
		}
		s.cascade(id)
		results = append(results, salesforce.DeleteResult{ID: id, Success: true})
	}
	return results, nil
}

// cascade must be called with mu held.
func (s *fakeStore) cascade(id string) {
	delete(s.records, id)
	for childID, rec := range s.records {
		if rec.parent == id || rec.doc == id {
			delete(s.records, childID)
		}
	}
}

func (s *fakeStore) count(sobject string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.records {
		if rec.sobject == sobject {
			n++
		}
	}
	return n
}

func (s *fakeStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *fakeStore) deleteCalls() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.deletes))
	for id, n := range s.deletes {
		out[id] = n
	}
	return out
}

func (s *fakeStore) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeStore) ids(sobject string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, rec := range s.records {
		if rec.sobject == sobject {
			ids = append(ids, id)
		}
	}
	return ids
}
