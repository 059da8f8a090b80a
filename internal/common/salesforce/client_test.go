package salesforce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"soloparent-workers/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrg serves the token endpoint plus whatever data routes a test registers.
type fakeOrg struct {
	t      *testing.T
	srv    *httptest.Server
	logins atomic.Int32

	mu     sync.Mutex
	token  string
	routes map[string]http.HandlerFunc
	calls  []string
}

func newFakeOrg(t *testing.T) *fakeOrg {
	o := &fakeOrg{t: t, token: "tok-1", routes: map[string]http.HandlerFunc{}}
	o.srv = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.srv.Close)
	return o
}

func (o *fakeOrg) handle(methodPath string, h http.HandlerFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes[methodPath] = h
}

func (o *fakeOrg) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/services/oauth2/token" {
		require.NoError(o.t, r.ParseForm())
		if r.PostForm.Get("password") != "secretTOKEN" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"authentication failure"}`)
			return
		}
		o.logins.Add(1)
		o.mu.Lock()
		tok := o.token
		o.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "instance_url": o.srv.URL})
		return
	}

	o.mu.Lock()
	o.calls = append(o.calls, r.Method+" "+r.URL.Path)
	tok := o.token
	h, ok := o.routes[r.Method+" "+r.URL.Path]
	o.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+tok {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `[{"message":"The requested resource does not exist","errorCode":"NOT_FOUND"}]`)
		return
	}
	h(w, r)
}

func (o *fakeOrg) rotateToken(tok string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.token = tok
}

func (o *fakeOrg) client(password string) *Client {
	cfg := config.SalesforceConfig{
		LoginURL:      o.srv.URL,
		APIVersion:    "v59.0",
		ClientID:      "cid",
		ClientSecret:  "csecret",
		Username:      "integration@example.org",
		Password:      password,
		SecurityToken: "TOKEN",
		Timeout:       5000,
	}
	return NewClient(NewSession(cfg, o.srv.Client()), nil, cfg.APIVersion)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSession_OpenRejectsBadCredentials(t *testing.T) {
	org := newFakeOrg(t)
	c := org.client("wrong")

	err := c.session.Open(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid_grant", authErr.Code)
	assert.True(t, c.session.IssuedAt().IsZero())
}

func TestSession_ConcurrentCallersShareOneLogin(t *testing.T) {
	release := make(chan struct{})
	var logins atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		<-release
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "tok-1", "instance_url": srv.URL + "/"})
	}))
	t.Cleanup(srv.Close)
	s := NewSession(config.SalesforceConfig{LoginURL: srv.URL}, srv.Client())

	// a caller that gives up does not cancel the login the others are waiting for
	ctx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan error, 1)
	go func() {
		_, _, err := s.Token(ctx)
		abandoned <- err
	}()
	require.Eventually(t, func() bool { return logins.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-abandoned, context.Canceled)

	var wg sync.WaitGroup
	tokens := make([]string, 5)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, instance, err := s.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, srv.URL, instance)
			tokens[i] = tok
		}(i)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, []string{"tok-1", "tok-1", "tok-1", "tok-1", "tok-1"}, tokens)
	assert.Equal(t, int32(1), logins.Load())
	assert.False(t, s.IssuedAt().IsZero())
}

func TestClient_Create(t *testing.T) {
	org := newFakeOrg(t)
	org.handle("POST /services/data/v59.0/sobjects/Family_Member__c/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["Name"] == "bad" {
			writeJSON(w, http.StatusCreated, SaveResult{Errors: []ErrorDetail{{StatusCode: "FIELD_CUSTOM_VALIDATION_EXCEPTION", Message: "Age is required"}}})
			return
		}
		writeJSON(w, http.StatusCreated, SaveResult{ID: "a0C000000000001AAA", Success: true})
	})
	c := org.client("secret")

	id, err := c.Create(context.Background(), "Family_Member__c", map[string]string{"Name": "ok"})
	require.NoError(t, err)
	assert.Equal(t, "a0C000000000001AAA", id)

	_, err = c.Create(context.Background(), "Family_Member__c", map[string]string{"Name": "bad"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "FIELD_CUSTOM_VALIDATION_EXCEPTION", apiErr.Code)
	assert.Equal(t, "Age is required", apiErr.Message)
}

func TestClient_RelogsInOnceOnExpiredSession(t *testing.T) {
	org := newFakeOrg(t)
	org.handle("PATCH /services/data/v59.0/sobjects/Solo_Parent_Application_Form__c/a0B000000000001AAA", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := org.client("secret")
	require.NoError(t, c.session.Open(context.Background()))

	org.rotateToken("tok-2")
	err := c.Update(context.Background(), "Solo_Parent_Application_Form__c", "a0B000000000001AAA", map[string]string{"Religion__c": "None"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), org.logins.Load())
}

func TestClient_RetrieveNotFound(t *testing.T) {
	org := newFakeOrg(t)
	c := org.client("secret")

	var out map[string]interface{}
	err := c.Retrieve(context.Background(), "Solo_Parent_Application_Form__c", "a0B000000000404AAA", []string{"Id"}, &out)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_RetrieveFields(t *testing.T) {
	org := newFakeOrg(t)
	org.handle("GET /services/data/v59.0/sobjects/ContentVersion/068000000000001AAA", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ContentDocumentId", r.URL.Query().Get("fields"))
		writeJSON(w, http.StatusOK, map[string]string{"ContentDocumentId": "069000000000001AAA"})
	})
	c := org.client("secret")

	var out struct{ ContentDocumentId string }
	require.NoError(t, c.Retrieve(context.Background(), "ContentVersion", "068000000000001AAA", []string{"ContentDocumentId"}, &out))
	assert.Equal(t, "069000000000001AAA", out.ContentDocumentId)
}

func TestClient_DestroyChunksAndAligns(t *testing.T) {
	org := newFakeOrg(t)
	var requests atomic.Int32
	org.handle("DELETE /services/data/v59.0/composite/sobjects", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "false", r.URL.Query().Get("allOrNone"))
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		assert.LessOrEqual(t, len(ids), compositeDeleteLimit)

		out := make([]DeleteResult, 0, len(ids))
		// reversed to prove alignment does not depend on order
		for i := len(ids) - 1; i >= 0; i-- {
			if ids[i] == "fail" {
				out = append(out, DeleteResult{ID: ids[i], Errors: []ErrorDetail{{StatusCode: "ENTITY_IS_DELETED", Message: "entity is deleted"}}})
				continue
			}
			out = append(out, DeleteResult{ID: ids[i], Success: true})
		}
		writeJSON(w, http.StatusOK, out)
	})
	c := org.client("secret")

	ids := make([]string, 0, 201)
	for i := 0; i < 200; i++ {
		ids = append(ids, fmt.Sprintf("id%03d", i))
	}
	ids = append(ids, "fail")

	results, err := c.Destroy(context.Background(), "ContentDocument", ids...)
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
	require.Len(t, results, 201)
	for i, r := range results {
		assert.Equal(t, ids[i], r.ID)
	}
	assert.NoError(t, results[0].Err())
	assert.ErrorContains(t, results[200].Err(), "ENTITY_IS_DELETED")

	none, err := c.Destroy(context.Background(), "ContentDocument")
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestClient_DestroyTransportFailureMarksChunk(t *testing.T) {
	org := newFakeOrg(t)
	org.handle("DELETE /services/data/v59.0/composite/sobjects", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, []ErrorDetail{{ErrorCode: "SERVER_UNAVAILABLE", Message: "try later"}})
	})
	c := org.client("secret")

	results, err := c.Destroy(context.Background(), "Solo_Parent_Application_Form__c", "a", "b")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	require.Len(t, results, 2)
	assert.Error(t, results[1].Err())
}

func TestClient_QueryFollowsNextRecordsURL(t *testing.T) {
	org := newFakeOrg(t)
	org.handle("GET /services/data/v59.0/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("q"), "FROM Case")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"totalSize": 3, "done": false, "nextRecordsUrl": "/services/data/v59.0/query/01g-2",
			"records": []map[string]string{{"CaseNumber": "1"}, {"CaseNumber": "2"}},
		})
	})
	org.handle("GET /services/data/v59.0/query/01g-2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"totalSize": 3, "done": true,
			"records": []map[string]string{{"CaseNumber": "3"}},
		})
	})
	c := org.client("secret")

	var rows []struct{ CaseNumber string }
	require.NoError(t, c.Query(context.Background(), "SELECT CaseNumber FROM Case", &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "3", rows[2].CaseNumber)
}

func TestClient_UploadAndLink(t *testing.T) {
	org := newFakeOrg(t)
	org.handle("POST /services/data/v59.0/sobjects/ContentVersion/", func(w http.ResponseWriter, r *http.Request) {
		var body contentVersion
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "payslip.pdf", body.PathOnClient)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF")), body.VersionData)
		writeJSON(w, http.StatusCreated, SaveResult{ID: "068000000000001AAA", Success: true})
	})
	org.handle("GET /services/data/v59.0/sobjects/ContentVersion/068000000000001AAA", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"ContentDocumentId": "069000000000001AAA"})
	})
	org.handle("POST /services/data/v59.0/sobjects/ContentDocumentLink/", func(w http.ResponseWriter, r *http.Request) {
		var body contentDocumentLink
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "V", body.ShareType)
		assert.Equal(t, "a0B000000000001AAA", body.LinkedEntityID)
		writeJSON(w, http.StatusCreated, SaveResult{ID: "06A000000000001AAA", Success: true})
	})
	c := org.client("secret")

	docID, err := c.UploadAttachment(context.Background(), Upload{Title: "payslip.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "069000000000001AAA", docID)

	linkID, err := c.LinkAttachment(context.Background(), docID, "a0B000000000001AAA")
	require.NoError(t, err)
	assert.Equal(t, "06A000000000001AAA", linkID)
}

func TestClient_UploadPartial(t *testing.T) {
	org := newFakeOrg(t)
	org.handle("POST /services/data/v59.0/sobjects/ContentVersion/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, SaveResult{ID: "068000000000002AAA", Success: true})
	})
	c := org.client("secret")

	_, err := c.UploadAttachment(context.Background(), Upload{Title: "x.pdf", Data: []byte("x")})
	var partial *PartialUploadError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "068000000000002AAA", partial.VersionID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestQuoteStringAndValidID(t *testing.T) {
	assert.Equal(t, `'O\'Brien'`, QuoteString("O'Brien"))
	assert.Equal(t, `'a\\b'`, QuoteString(`a\b`))
	assert.True(t, ValidID("001000000000001"))
	assert.True(t, ValidID("001000000000001AAA"))
	assert.False(t, ValidID("001' OR Id != '"))
	assert.False(t, ValidID(""))
}
