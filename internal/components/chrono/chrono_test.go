package chrono

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPKTOffset(t *testing.T) {
	utc := time.Date(2024, time.March, 10, 19, 30, 0, 0, time.UTC)
	local := utc.In(PKT())

	_, offset := local.Zone()
	require.Equal(t, 5*60*60, offset)
	require.Equal(t, 11, local.Day())
	require.Equal(t, 0, local.Hour())
}

func TestStandardImplUsesPKT(t *testing.T) {
	clock := NewStandardImpl()
	now := clock.Now()

	_, offset := now.Zone()
	require.Equal(t, 5*60*60, offset)
	require.Equal(t, clock.Location(), now.Location())
	require.WithinDuration(t, time.Now(), now, time.Second)
}
