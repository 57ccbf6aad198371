package push

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"skillbarter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubGateway struct {
	delivered []string
	err       error
}

func (g *stubGateway) Deliver(ctx context.Context, endpoint string, payload []byte) error {
	if g.err != nil {
		return g.err
	}
	g.delivered = append(g.delivered, endpoint)
	return nil
}

func setupSenderTest(t *testing.T, gateway Gateway) (*Sender, *Buffer, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UserDevice{}))

	buf, err := OpenBuffer(filepath.Join(t.TempDir(), "push.db"))
	require.NoError(t, err)
	t.Cleanup(func() { buf.Close() })

	return NewSender(db, gateway, buf, nil), buf, db
}

func registerDevice(t *testing.T, db *gorm.DB, userID uint, endpoint string) {
	t.Helper()
	require.NoError(t, db.Create(&models.UserDevice{UserID: userID, Endpoint: endpoint}).Error)
}

func TestSendFansOutToDevices(t *testing.T) {
	gateway := &stubGateway{}
	sender, buf, db := setupSenderTest(t, gateway)
	registerDevice(t, db, 1, "https://push.example.com/a")
	registerDevice(t, db, 1, "https://push.example.com/b")
	registerDevice(t, db, 2, "https://push.example.com/other")

	require.NoError(t, sender.Send(context.Background(), 1, "hello", "/proposals/1"))

	assert.ElementsMatch(t,
		[]string{"https://push.example.com/a", "https://push.example.com/b"},
		gateway.delivered)

	size, err := buf.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestSendNoDevicesIsNoop(t *testing.T) {
	gateway := &stubGateway{}
	sender, _, _ := setupSenderTest(t, gateway)

	require.NoError(t, sender.Send(context.Background(), 42, "hello", ""))
	assert.Empty(t, gateway.delivered)
}

func TestSendBuffersFailedDeliveries(t *testing.T) {
	gateway := &stubGateway{err: errors.New("gateway down")}
	sender, buf, db := setupSenderTest(t, gateway)
	registerDevice(t, db, 1, "https://push.example.com/a")

	require.NoError(t, sender.Send(context.Background(), 1, "hello", ""))

	size, err := buf.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	// Gateway recovers: the retry drains the buffer.
	gateway.err = nil
	require.NoError(t, sender.RetryPending(context.Background(), 10))

	size, err = buf.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
	assert.Equal(t, []string{"https://push.example.com/a"}, gateway.delivered)
}

func TestRetryPendingDropsAfterMaxRetries(t *testing.T) {
	gateway := &stubGateway{err: errors.New("gateway down")}
	sender, buf, _ := setupSenderTest(t, gateway)

	require.NoError(t, buf.Enqueue(Delivery{
		UserID:   1,
		Endpoint: "https://push.example.com/a",
		Retries:  maxRetries,
	}))

	require.NoError(t, sender.RetryPending(context.Background(), 10))

	size, err := buf.Size()
	require.NoError(t, err)
	assert.Zero(t, size, "exhausted deliveries are dropped, not retried forever")
}

func TestRetryPendingRequeuesWithBumpedCount(t *testing.T) {
	gateway := &stubGateway{err: errors.New("gateway down")}
	sender, buf, _ := setupSenderTest(t, gateway)

	require.NoError(t, buf.Enqueue(Delivery{UserID: 1, Endpoint: "https://push.example.com/a"}))
	require.NoError(t, sender.RetryPending(context.Background(), 10))

	batch, err := buf.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 1, batch[0].Retries)
}
