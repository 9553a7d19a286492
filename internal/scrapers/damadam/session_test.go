package damadam

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	store, err := OpenSessionStore(t.TempDir(), time.Hour)
	require.NoError(t, err)
	defer store.Close()

	cookies, err := store.Load("primary")
	require.NoError(t, err)
	require.Nil(t, cookies)

	err = store.Save("primary", []*http.Cookie{
		{Name: "sessionid", Value: "abc", Path: "/"},
		{Name: "csrftoken", Value: "def"},
	})
	require.NoError(t, err)

	cookies, err = store.Load("primary")
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	require.Equal(t, "sessionid", cookies[0].Name)
	require.Equal(t, "abc", cookies[0].Value)
	require.Equal(t, "/", cookies[0].Path)

	require.NoError(t, store.Delete("primary"))
	cookies, err = store.Load("primary")
	require.NoError(t, err)
	require.Nil(t, cookies)
}
