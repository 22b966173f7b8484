package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotificationTypeAudience(t *testing.T) {
	require.True(t, NotificationTypeLowStock.Broadcast())
	require.False(t, NotificationTypeOrderUpdate.Broadcast())
	require.False(t, NotificationType("bogus").Broadcast())

	parsed, err := ParseNotificationType("order_update")
	require.NoError(t, err)
	require.Equal(t, NotificationTypeOrderUpdate, parsed)

	_, err = ParseNotificationType("bogus")
	require.Error(t, err)
}
