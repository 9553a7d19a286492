package rowstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRowGet(t *testing.T) {
	row := Row{Index: 2, Values: []string{"alice", "Pending"}}
	require.Equal(t, "alice", row.Get(0))
	require.Equal(t, "Pending", row.Get(1))
	require.Equal(t, "", row.Get(3))
	require.Equal(t, "", row.Get(-1))
}

func TestSplitHeader(t *testing.T) {
	header, rows := SplitHeader([]Row{
		{Index: 1, Values: []string{"Nickname", "Status"}},
		{Index: 2, Values: []string{"alice", "Pending"}},
	})
	require.Equal(t, []string{"Nickname", "Status"}, header)
	require.Equal(t, []Row{{Index: 2, Values: []string{"alice", "Pending"}}}, rows)

	header, rows = SplitHeader(nil)
	require.Nil(t, header)
	require.Empty(t, rows)
}
