package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_AppendsLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	c := &AuditConsumer{Dir: dir, Log: logrus.New()}
	at := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)

	for _, ev := range []AuthEvent{
		{Type: EventUserRegistered, UserID: 1, PublicID: "u-1", Email: "a@a.com", OccurredAt: at},
		{Type: EventPasswordResetRequested, UserID: 1, PublicID: "u-1", Email: "a@a.com", ResetToken: "9f2c41d0reset", OccurredAt: at},
	} {
		body, err := json.Marshal(ev)
		require.NoError(t, err)
		require.NoError(t, c.Handle(body))
	}

	data, err := os.ReadFile(filepath.Join(dir, "auth.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `[2026-01-07T10:00:00Z] user.registered | user_id=1 | uuid=u-1 | email="a@a.com"`, lines[0])
	assert.Equal(t, `[2026-01-07T10:00:00Z] password.reset_requested | user_id=1 | uuid=u-1 | email="a@a.com"`, lines[1])
	assert.NotContains(t, string(data), "9f2c41d0reset")
}

func TestHandle_RejectsBadMessages(t *testing.T) {
	c := &AuditConsumer{Dir: t.TempDir(), Log: logrus.New()}
	assert.Error(t, c.Handle([]byte("{")))
	assert.Error(t, c.Handle([]byte(`{"user_id":1}`)))
}
