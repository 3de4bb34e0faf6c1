package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDirectory(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "subdir", "nested", "journal.db"))
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestCloseNilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestSessionLifecycle(t *testing.T) {
	s := openTestStore(t)

	sess, err := s.StartSession(8, 20)
	require.NoError(t, err)
	_, err = uuid.Parse(sess.ID)
	require.NoError(t, err, "session id should be a uuid")

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 8, got.Keyer)
	assert.Equal(t, 20, got.WPM)
	assert.Nil(t, got.EndedNs)

	require.NoError(t, s.EndSession(sess.ID, sess.StartedNs+5000))
	got, err = s.GetSession(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedNs)
	assert.Equal(t, sess.StartedNs+5000, *got.EndedNs)
}

func TestMissingSession(t *testing.T) {
	s := openTestStore(t)

	got, err := s.GetSession("nope")
	assert.NoError(t, err)
	assert.Nil(t, got)

	stats, err := s.SessionStats("nope")
	assert.NoError(t, err)
	assert.Nil(t, stats)

	err = s.EndSession("nope", 1)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestElementsReadBackInOrder(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.StartSession(6, 12)
	require.NoError(t, err)

	in := []Element{
		{Ordinal: 2, Paddle: "dit", StartMs: 1400, EndMs: 1500},
		{Ordinal: 0, Paddle: "dit", StartMs: 1000, EndMs: 1100},
		{Ordinal: 1, Paddle: "dah", StartMs: 1200, EndMs: 1500},
	}
	for i := range in {
		in[i].SessionID = sess.ID
		require.NoError(t, s.InsertElement(&in[i]))
		assert.NotZero(t, in[i].ID)
	}

	out, err := s.Elements(sess.ID)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, e := range out {
		assert.Equal(t, i, e.Ordinal)
	}
	assert.Equal(t, "dah", out[1].Paddle)
	assert.Equal(t, int64(300), out[1].DurationMs())
}

func TestInsertElementRejectsBackwardsInterval(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.StartSession(1, 20)
	require.NoError(t, err)

	err = s.InsertElement(&Element{SessionID: sess.ID, Paddle: "dit", StartMs: 10, EndMs: 5})
	assert.Error(t, err)
}

func TestInsertElementRequiresSession(t *testing.T) {
	s := openTestStore(t)
	err := s.InsertElement(&Element{SessionID: "ghost", Paddle: "dit", StartMs: 1, EndMs: 2})
	assert.Error(t, err, "foreign key should reject unknown session")
}

func TestDuplicateOrdinalRejected(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.StartSession(1, 20)
	require.NoError(t, err)

	require.NoError(t, s.InsertElement(&Element{SessionID: sess.ID, Ordinal: 0, Paddle: "dit", StartMs: 1, EndMs: 2}))
	assert.Error(t, s.InsertElement(&Element{SessionID: sess.ID, Ordinal: 0, Paddle: "dah", StartMs: 3, EndMs: 6}))
}

func TestSessionStats(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.StartSession(8, 20)
	require.NoError(t, err)

	elems := []Element{
		{Paddle: "dit", StartMs: 100, EndMs: 160},
		{Paddle: "dah", StartMs: 220, EndMs: 400},
		{Paddle: "dit", StartMs: 460, EndMs: 520},
	}
	for i := range elems {
		elems[i].SessionID = sess.ID
		elems[i].Ordinal = i
		require.NoError(t, s.InsertElement(&elems[i]))
	}

	stats, err := s.SessionStats(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Elements)
	assert.Equal(t, map[string]int{"dit": 2, "dah": 1}, stats.ByPaddle)
	assert.Equal(t, int64(300), stats.KeyDownMs)
	assert.Equal(t, int64(100), stats.FirstMs)
	assert.Equal(t, int64(520), stats.LastMs)
}

func TestEmptySessionStats(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.StartSession(2, 20)
	require.NoError(t, err)

	stats, err := s.SessionStats(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Zero(t, stats.Elements)
	assert.Empty(t, stats.ByPaddle)
}

func TestSessionsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		sess, err := s.StartSession(i+1, 20)
		require.NoError(t, err)
		// force distinct, increasing start times
		_, err = s.db.Exec(`UPDATE sessions SET started_ns = ? WHERE id = ?`, int64(i+1)*1000, sess.ID)
		require.NoError(t, err)
		ids = append(ids, sess.ID)
	}

	all, err := s.Sessions(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)

	two, err := s.Sessions(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}
