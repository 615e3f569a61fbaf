package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	created := LotEvent{Type: LotCreated, LotID: 3, UserID: 9, Title: `Kozak "shabla"`, Price: 99.5, Category: "Зброя", OccurredAt: at}
	assert.Equal(t,
		`[2024-05-01T12:30:00Z] lot.created | lot_id=3 | user_id=9 | title="Kozak \"shabla\"" | price=99.50 | category="Зброя"`+"\n",
		FormatLine(created))

	saved := LotEvent{Type: LotSaved, LotID: 3, UserID: 4, Title: "Helmet", OccurredAt: at}
	assert.Equal(t, `[2024-05-01T12:30:00Z] lot.saved | lot_id=3 | user_id=4 | title="Helmet"`+"\n", FormatLine(saved))
}

func TestHandleMessageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "events.log")
	for _, ev := range []LotEvent{
		NewLotEvent(LotCreated, 1, 2, "Sabre"),
		NewLotEvent(LotDeleted, 1, 2, "Sabre"),
	} {
		body, err := json.Marshal(ev)
		require.NoError(t, err)
		require.NoError(t, HandleMessage(body, path))
	}
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "lot.created | lot_id=1")
	assert.Contains(t, string(raw), "lot.deleted | lot_id=1")
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	assert.Error(t, HandleMessage([]byte("not json"), path))
	assert.Error(t, HandleMessage([]byte(`{"lot_id":1}`), path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
