package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-battles/internal/ingest/dto"
	killmodels "go-battles/internal/killmails/models"
	killservices "go-battles/internal/killmails/services"
	rulemodels "go-battles/internal/ruleset/models"
	"go-battles/pkg/sde"
)

type fakeEventStore struct {
	results []killservices.InsertResult
	stored  []int64
}

func (s *fakeEventStore) Store(_ context.Context, event *killmodels.KillmailEvent) (killservices.InsertResult, error) {
	result := killservices.InsertStored
	if len(s.stored) < len(s.results) {
		result = s.results[len(s.stored)]
	}
	s.stored = append(s.stored, event.KillmailID)
	return result, nil
}

type fakeEnqueuer struct {
	ids []int64
}

func (q *fakeEnqueuer) Enqueue(_ context.Context, killmailID int64) error {
	q.ids = append(q.ids, killmailID)
	return nil
}

type staticRules struct {
	ruleset *rulemodels.Ruleset
}

func (r staticRules) Get(_ context.Context) (*rulemodels.Ruleset, error) {
	return r.ruleset, nil
}

func newTestConsumer(srv *httptest.Server, store EventStore, rules staticRules, queue Enqueuer) *Consumer {
	return &Consumer{
		httpClient:    srv.Client(),
		store:         store,
		rules:         rules,
		queue:         queue,
		classifier:    staticClassifier{sde.SpaceTypeHighsec},
		sourceURL:     srv.URL,
		queueID:       "test-queue",
		userAgent:     "go-battles test",
		pollInterval:  time.Millisecond,
		ttwMin:        1,
		ttwMax:        10,
		nullThreshold: 5,
		state:         StateStopped,
	}
}

func TestPollOnceSequence(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		var resp dto.SourceResponse
		if polls <= 2 {
			resp.Package = validPackage()
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	store := &fakeEventStore{results: []killservices.InsertResult{
		killservices.InsertStored,
		killservices.InsertDuplicate,
	}}
	queue := &fakeEnqueuer{}
	c := newTestConsumer(srv, store, staticRules{rulemodels.DefaultRuleset()}, queue)

	var results []IterationResult
	for i := 0; i < 3; i++ {
		result, err := c.PollOnce(context.Background())
		require.NoError(t, err)
		results = append(results, result)
	}

	assert.Equal(t, []IterationResult{ResultStored, ResultDuplicate, ResultEmpty}, results)
	assert.Equal(t, []int64{128000001, 128000001}, store.stored,
		"the store decides duplication, not the consumer")
	assert.Equal(t, []int64{128000001}, queue.ids, "duplicates are not re-enqueued")
	assert.Equal(t, int64(1), c.metrics.stored.Load())
	assert.Equal(t, int64(1), c.metrics.duplicates.Load())
	assert.Equal(t, int64(1), c.metrics.emptyPolls.Load())
}

func TestPollOnceFilteredNeverStores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(dto.SourceResponse{Package: validPackage()})
	}))
	defer srv.Close()

	ruleset := rulemodels.DefaultRuleset()
	ruleset.MinPilots = 50

	store := &fakeEventStore{}
	queue := &fakeEnqueuer{}
	c := newTestConsumer(srv, store, staticRules{ruleset}, queue)

	result, err := c.PollOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ResultFiltered, result)
	assert.Empty(t, store.stored)
	assert.Empty(t, queue.ids)
	assert.Equal(t, int64(1), c.metrics.filtered.Load())
}
