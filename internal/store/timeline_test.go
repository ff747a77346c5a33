package store

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/pulsesync/internal/domain"
)

const (
	me    = "u1"
	other = "u2"
)

func strPtr(value string) *string {
	return &value
}

func at(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func newMsg(id string, sec int64) domain.Message {
	return domain.Message{
		ID:             id,
		ConversationID: "c1",
		SenderID:       other,
		ReceiverID:     me,
		Content:        strPtr("body " + id),
		CreatedAt:      at(sec),
	}
}

func ids(messages []domain.Message) []string {
	out := make([]string, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}

func TestUpsertIsIdempotent(t *testing.T) {
	m := newMsg("m1", 100)
	m.Reactions = domain.Reactions{"👍": {"u3", other}}

	once := NewTimeline()
	once.Upsert(m)

	twice := NewTimeline()
	assert.True(t, twice.Upsert(m))
	assert.False(t, twice.Upsert(m))

	assert.Equal(t, once.Query("c1", me), twice.Query("c1", me))
	assert.Equal(t, 1, twice.Len("c1"))
}

func TestUpsertOrdersByCreatedAtNotArrival(t *testing.T) {
	tl := NewTimeline()
	tl.Upsert(newMsg("m3", 300))
	tl.Upsert(newMsg("m1", 100))
	tl.Upsert(newMsg("m2", 200))

	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(tl.Query("c1", me)))
}

func TestUpsertConvergesForAnyArrivalOrder(t *testing.T) {
	events := []domain.Message{
		newMsg("a", 10),
		newMsg("b", 20),
		newMsg("c", 20),
		newMsg("d", 5),
		newMsg("e", 40),
	}
	// Redelivery of an event already applied.
	events = append(events, events[1], events[3])

	reference := NewTimeline()
	for _, m := range events {
		reference.Upsert(m)
	}
	want := reference.Query("c1", me)
	require.Equal(t, []string{"d", "a", "b", "c", "e"}, ids(want))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]domain.Message(nil), events...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		tl := NewTimeline()
		for _, m := range shuffled {
			tl.Upsert(m)
		}
		assert.Equal(t, want, tl.Query("c1", me))
	}
}

func TestLoadPageThenPushKeepsSingleMessage(t *testing.T) {
	tl := NewTimeline()
	tl.LoadPage("c1", []domain.Message{{ID: "m1", ConversationID: "c1", SenderID: other, CreatedAt: at(100)}}, "", false)

	tl.Upsert(domain.Message{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       other,
		CreatedAt:      at(100),
		Reactions:      domain.Reactions{"👍": {"u2"}},
	})

	got := tl.Query("c1", me)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, []string{"u2"}, got[0].Reactions["👍"])
}

func TestLoadPageReplacesAndDedupes(t *testing.T) {
	tl := NewTimeline()
	stale := newMsg("m2", 200)
	stale.Pinned = true
	tl.Upsert(stale)
	tl.Upsert(newMsg("m9", 900))

	fresh := newMsg("m2", 200)
	fresh.Content = strPtr("edited")
	tl.LoadPage("c1", []domain.Message{newMsg("m1", 100), fresh, fresh}, "cursor-1", true)

	got := tl.Query("c1", me)
	assert.Equal(t, []string{"m1", "m2", "m9"}, ids(got))
	assert.Equal(t, "edited", *got[1].Content)
	assert.False(t, got[1].Pinned, "page records replace stored ones entirely")

	page := tl.Page("c1")
	assert.True(t, page.Loaded)
	assert.True(t, page.HasMore)
	assert.Equal(t, "cursor-1", page.NextCursor)
}

func TestLoadPageSkipsForeignMessages(t *testing.T) {
	tl := NewTimeline()
	foreign := newMsg("x1", 100)
	foreign.ConversationID = "c2"
	noConv := newMsg("x2", 100)
	noConv.ConversationID = ""

	tl.LoadPage("c1", []domain.Message{foreign, noConv, {ConversationID: "c1"}}, "", false)

	assert.Equal(t, []string{"x2"}, ids(tl.Query("c1", me)))
	assert.False(t, tl.Has("x1"))
}

func TestUpsertIgnoresMalformed(t *testing.T) {
	tl := NewTimeline()
	assert.False(t, tl.Upsert(domain.Message{ConversationID: "c1"}))
	assert.False(t, tl.Upsert(domain.Message{ID: "m1"}))
	assert.Equal(t, 0, tl.Len("c1"))
}

func TestMarkDeletedForMeHidesOnlyForActor(t *testing.T) {
	tl := NewTimeline()
	tl.Upsert(newMsg("m1", 100))
	tl.Upsert(newMsg("m2", 200))

	require.True(t, tl.MarkDeleted("m1", me, domain.DeleteForMe))

	assert.Equal(t, []string{"m2"}, ids(tl.Query("c1", me)))
	theirs := tl.Query("c1", other)
	assert.Equal(t, []string{"m1", "m2"}, ids(theirs))
	assert.Equal(t, "body m1", *theirs[0].Content)
	assert.False(t, theirs[0].Deleted)
}

func TestMarkDeletedForEveryoneClearsContent(t *testing.T) {
	tl := NewTimeline()
	m := newMsg("m1", 100)
	m.FileURL = strPtr("https://files/x.png")
	tl.Upsert(m)

	require.True(t, tl.MarkDeleted("m1", other, domain.DeleteForEveryone))

	for _, viewer := range []string{me, other} {
		got := tl.Query("c1", viewer)
		require.Len(t, got, 1, "deleted messages keep their position")
		assert.True(t, got[0].Deleted)
		assert.Nil(t, got[0].Content)
		assert.Nil(t, got[0].FileURL)
	}
}

func TestMarkDeletedUnknownOrInvalid(t *testing.T) {
	tl := NewTimeline()
	tl.Upsert(newMsg("m1", 100))

	assert.False(t, tl.MarkDeleted("nope", me, domain.DeleteForMe))
	assert.False(t, tl.MarkDeleted("m1", "", domain.DeleteForMe))
	assert.False(t, tl.MarkDeleted("m1", me, domain.DeleteScope("bogus")))
}

func TestPushAfterDeleteDoesNotResurrectContent(t *testing.T) {
	tl := NewTimeline()
	tl.Upsert(newMsg("m1", 100))
	tl.MarkDeleted("m1", other, domain.DeleteForEveryone)

	tl.Upsert(newMsg("m1", 100))

	got, ok := tl.Get("m1")
	require.True(t, ok)
	assert.True(t, got.Deleted)
	assert.Nil(t, got.Content)
}

func TestMarkReadAndLatest(t *testing.T) {
	tl := NewTimeline()
	tl.Upsert(newMsg("m2", 200))
	tl.Upsert(newMsg("m1", 100))

	tl.MarkRead("c1")
	for _, m := range tl.Query("c1", me) {
		assert.True(t, m.Read)
	}

	latest, ok := tl.Latest("c1")
	require.True(t, ok)
	assert.Equal(t, "m2", latest.ID)

	_, ok = tl.Latest("missing")
	assert.False(t, ok)
}

func TestQueryReturnsCopies(t *testing.T) {
	tl := NewTimeline()
	m := newMsg("m1", 100)
	m.Reactions = domain.Reactions{"🔥": {other}}
	tl.Upsert(m)

	got := tl.Query("c1", me)
	got[0].Reactions["🔥"] = append(got[0].Reactions["🔥"], "intruder")
	*got[0].Content = "mutated"

	again, _ := tl.Get("m1")
	assert.Equal(t, []string{other}, again.Reactions["🔥"])
	assert.Equal(t, "body m1", *again.Content)
}

func TestQueryUnknownConversation(t *testing.T) {
	assert.Empty(t, NewTimeline().Query("nope", me))
}
