package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"achievement-sync-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	server *httptest.Server

	postCount int32
	getCount  int32

	postStatus   int
	postBody     string
	getStatus    int
	snapshotJSON string
}

func newFakeRemote(postStatus int, postBody string, getStatus int, snapshotJSON string) *fakeRemote {
	f := &fakeRemote{
		postStatus:   postStatus,
		postBody:     postBody,
		getStatus:    getStatus,
		snapshotJSON: snapshotJSON,
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			atomic.AddInt32(&f.postCount, 1)
			w.WriteHeader(f.postStatus)
			w.Write([]byte(f.postBody))
			return
		}
		atomic.AddInt32(&f.getCount, 1)
		w.WriteHeader(f.getStatus)
		w.Write([]byte(f.snapshotJSON))
	}))
	return f
}

func (f *fakeRemote) posts() int32 { return atomic.LoadInt32(&f.postCount) }
func (f *fakeRemote) gets() int32  { return atomic.LoadInt32(&f.getCount) }

func newTestCoordinator(remoteURL string, disabled ...string) (*GrantCoordinator, *MemoryProfileStore, *Catalog) {
	catalog := testCatalog(disabled...)
	resolver := NewIdentityResolver(catalog)
	merger := NewStateMerger(catalog, resolver)
	store := NewMemoryProfileStore()
	remote := NewRemoteClient(remoteURL, "")
	return NewGrantCoordinator(catalog, resolver, merger, store, remote), store, catalog
}

func registeredProfile() *models.Profile {
	id := "user-1"
	return &models.Profile{Identifier: &id}
}

func findRecord(t *testing.T, records []models.AchievementRecord, id string) models.AchievementRecord {
	t.Helper()
	for _, rec := range records {
		if rec.ID == id {
			return rec
		}
	}
	t.Fatalf("record %q not found", id)
	return models.AchievementRecord{}
}

func TestGrant_GuestNeverTouchesNetwork(t *testing.T) {
	remote := newFakeRemote(http.StatusOK, `{}`, http.StatusOK, `{}`)
	defer remote.server.Close()
	g, store, _ := newTestCoordinator(remote.server.URL)

	profile := &models.Profile{} // guest
	updated, notification := g.Grant(context.Background(), profile, "memory1")

	require.NotNil(t, notification)
	assert.Equal(t, "memory1", notification.AchievementID)
	assert.Equal(t, 20, notification.Points)

	rec := findRecord(t, updated.Achievements, "memory1")
	assert.True(t, rec.Earned)
	require.NotNil(t, rec.DateEarned)
	assert.Equal(t, 20, updated.TotalPoints)

	assert.EqualValues(t, 0, remote.posts())
	assert.EqualValues(t, 0, remote.gets())

	// optimistic state was persisted and is final for guests
	saved, found, err := store.Load(context.Background(), models.GuestStorageKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 20, saved.TotalPoints)
}

func TestGrant_IdempotentWhenAlreadyEarnedLocally(t *testing.T) {
	remote := newFakeRemote(http.StatusOK, `{}`, http.StatusOK, `{}`)
	defer remote.server.Close()
	g, _, _ := newTestCoordinator(remote.server.URL)

	profile := &models.Profile{}
	first, n1 := g.Grant(context.Background(), profile, "memory1")
	require.NotNil(t, n1)

	second, n2 := g.Grant(context.Background(), first, "memory1")
	assert.Nil(t, n2)
	assert.Equal(t, first, second)
	assert.Equal(t, 20, second.TotalPoints)
}

func TestGrant_DisabledIDIsNoOp(t *testing.T) {
	remote := newFakeRemote(http.StatusOK, `{}`, http.StatusOK, `{}`)
	defer remote.server.Close()
	g, _, _ := newTestCoordinator(remote.server.URL, "memory1")

	profile := &models.Profile{}
	updated, notification := g.Grant(context.Background(), profile, "memory1")

	assert.Nil(t, notification)
	assert.Equal(t, profile, updated)
	assert.EqualValues(t, 0, remote.posts())
}

func TestGrant_HappyPathReconciles(t *testing.T) {
	snapshot := `{
		"achievements": [
			{"id": "memory1", "serverId": "srv-1", "points": 25, "earned": true, "dateEarned": "2026-03-01T12:00:00Z"}
		],
		"totalPoints": 25
	}`
	remote := newFakeRemote(http.StatusOK, `{}`, http.StatusOK, snapshot)
	defer remote.server.Close()
	g, store, _ := newTestCoordinator(remote.server.URL)

	updated, notification := g.Grant(context.Background(), registeredProfile(), "memory1")

	require.NotNil(t, notification)
	assert.EqualValues(t, 1, remote.posts())
	assert.EqualValues(t, 1, remote.gets())

	// reconciled state adopts the remote's point value, not the local guess
	rec := findRecord(t, updated.Achievements, "memory1")
	assert.True(t, rec.Earned)
	assert.Equal(t, 25, rec.Points)
	assert.Equal(t, "srv-1", rec.ServerID)
	assert.Equal(t, 25, updated.TotalPoints)

	saved, found, err := store.Load(context.Background(), "user:user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 25, saved.TotalPoints)
}

func TestGrant_AlreadyEarnedConverges(t *testing.T) {
	snapshot := `{
		"achievements": [
			{"id": "memory1", "points": 30, "earned": true, "dateEarned": "2026-02-01T09:00:00Z"}
		],
		"totalPoints": 30
	}`
	remote := newFakeRemote(http.StatusConflict, `{"message": "Achievement already earned"}`, http.StatusOK, snapshot)
	defer remote.server.Close()
	g, _, _ := newTestCoordinator(remote.server.URL)

	updated, _ := g.Grant(context.Background(), registeredProfile(), "memory1")

	rec := findRecord(t, updated.Achievements, "memory1")
	assert.True(t, rec.Earned)
	// the remote had recorded different points than our optimistic guess
	assert.Equal(t, 30, rec.Points)
	assert.Equal(t, 30, updated.TotalPoints)
}

func TestGrant_AlreadyEarnedRollsBackWhenReconcileFails(t *testing.T) {
	remote := newFakeRemote(http.StatusConflict, `{"message": "Achievement already earned"}`, http.StatusInternalServerError, `{"message": "boom"}`)
	defer remote.server.Close()
	g, store, _ := newTestCoordinator(remote.server.URL)

	updated, notification := g.Grant(context.Background(), registeredProfile(), "memory1")

	// can't trust the optimistic points guess — back to last known-good
	assert.Nil(t, notification)
	rec := findRecord(t, updated.Achievements, "memory1")
	assert.False(t, rec.Earned)
	assert.Equal(t, 0, updated.TotalPoints)

	saved, found, err := store.Load(context.Background(), "user:user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0, saved.TotalPoints)
}

func TestGrant_BenignNotFoundKeepsOptimistic(t *testing.T) {
	remote := newFakeRemote(http.StatusBadRequest, `{"message": "User not found"}`, http.StatusOK, `{}`)
	defer remote.server.Close()
	g, _, _ := newTestCoordinator(remote.server.URL)

	updated, notification := g.Grant(context.Background(), registeredProfile(), "memory1")

	require.NotNil(t, notification)
	rec := findRecord(t, updated.Achievements, "memory1")
	assert.True(t, rec.Earned)
	assert.Equal(t, 20, updated.TotalPoints)
	// no reconciling fetch for local-only/dev accounts
	assert.EqualValues(t, 0, remote.gets())
}

func TestGrant_UnknownFailureKeepsOptimistic(t *testing.T) {
	remote := newFakeRemote(http.StatusInternalServerError, `{"message": "boom"}`, http.StatusOK, `{}`)
	defer remote.server.Close()
	g, _, _ := newTestCoordinator(remote.server.URL)

	updated, notification := g.Grant(context.Background(), registeredProfile(), "memory1")

	require.NotNil(t, notification)
	rec := findRecord(t, updated.Achievements, "memory1")
	assert.True(t, rec.Earned)
	assert.Equal(t, 20, updated.TotalPoints)
}

func TestGrant_ConcurrentCallsDeduplicated(t *testing.T) {
	release := make(chan struct{})
	firstPostReceived := make(chan struct{})
	var once sync.Once
	var postCount int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			atomic.AddInt32(&postCount, 1)
			once.Do(func() { close(firstPostReceived) })
			<-release // hold the first grant in flight
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
			return
		}
		w.Write([]byte(`{
			"achievements": [{"id": "memory1", "points": 20, "earned": true, "dateEarned": "2026-03-01T12:00:00Z"}],
			"totalPoints": 20
		}`))
	}))
	defer server.Close()

	g, _, _ := newTestCoordinator(server.URL)
	profile := registeredProfile()

	var wg sync.WaitGroup
	var firstResult *models.Profile
	var firstNotification *models.Notification
	wg.Add(1)
	go func() {
		defer wg.Done()
		firstResult, firstNotification = g.Grant(context.Background(), profile, "memory1")
	}()

	// second call arrives while the first is suspended on the network
	<-firstPostReceived
	secondResult, secondNotification := g.Grant(context.Background(), profile, "memory1")
	assert.Nil(t, secondNotification)
	assert.Equal(t, profile, secondResult)

	close(release)
	wg.Wait()

	require.NotNil(t, firstNotification)
	assert.EqualValues(t, 1, atomic.LoadInt32(&postCount), "exactly one network grant call")
	rec := findRecord(t, firstResult.Achievements, "memory1")
	assert.True(t, rec.Earned)
	assert.Equal(t, 20, firstResult.TotalPoints)
}
