package push

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBuffer(t *testing.T) *Buffer {
	t.Helper()
	buf, err := OpenBuffer(filepath.Join(t.TempDir(), "push.db"))
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })
	return buf
}

func TestBufferEnqueueAndBatch(t *testing.T) {
	buf := openTestBuffer(t)

	base := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, buf.Enqueue(Delivery{
			UserID:    uint(i + 1),
			Endpoint:  "https://push.example.com/device",
			Message:   "hello",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	size, err := buf.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	// Oldest first, IDs assigned on enqueue.
	batch, err := buf.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	for i, d := range batch {
		assert.EqualValues(t, i+1, d.UserID)
		assert.NotEmpty(t, d.ID)
	}

	// Reading does not consume.
	size, err = buf.Size()
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestBufferBatchLimit(t *testing.T) {
	buf := openTestBuffer(t)

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, buf.Enqueue(Delivery{
			UserID:    1,
			Endpoint:  "https://push.example.com/device",
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	batch, err := buf.GetBatch(2)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
}

func TestBufferRemove(t *testing.T) {
	buf := openTestBuffer(t)

	require.NoError(t, buf.Enqueue(Delivery{UserID: 1, Endpoint: "a"}))
	require.NoError(t, buf.Enqueue(Delivery{UserID: 2, Endpoint: "b", Timestamp: time.Now().Add(time.Second)}))

	batch, err := buf.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	require.NoError(t, buf.Remove(batch[0]))

	remaining, err := buf.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.EqualValues(t, 2, remaining[0].UserID)
}

func TestBufferRequeueBumpsRetries(t *testing.T) {
	buf := openTestBuffer(t)

	require.NoError(t, buf.Enqueue(Delivery{UserID: 1, Endpoint: "a", Message: "m"}))
	batch, err := buf.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Zero(t, batch[0].Retries)

	require.NoError(t, buf.Remove(batch[0]))
	require.NoError(t, buf.Requeue(batch[0]))

	batch, err = buf.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 1, batch[0].Retries)
	assert.Equal(t, "m", batch[0].Message)

	size, err := buf.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestBufferSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "push.db")

	buf, err := OpenBuffer(path)
	require.NoError(t, err)
	require.NoError(t, buf.Enqueue(Delivery{UserID: 7, Endpoint: "a", Message: "persisted"}))
	require.NoError(t, buf.Close())

	reopened, err := OpenBuffer(path)
	require.NoError(t, err)
	defer reopened.Close()

	batch, err := reopened.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.EqualValues(t, 7, batch[0].UserID)
	assert.Equal(t, "persisted", batch[0].Message)
}

func TestNilBuffer(t *testing.T) {
	var buf *Buffer
	assert.Error(t, buf.Enqueue(Delivery{}))
	_, err := buf.GetBatch(1)
	assert.Error(t, err)
	assert.NoError(t, buf.Close())
}
