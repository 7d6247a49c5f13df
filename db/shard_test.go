package db

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/raddi-network/raddi/raddi"
)

func eid(ts uint32) raddi.EID {
	return raddi.EID{Timestamp: raddi.Timestamp(ts)}
}

func TestShardInsertKeepsSortedCache(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenShard(dir, 10, ChannelRowCodec)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(ChannelRow{ID: eid(30)}, []byte("c")))
	require.NoError(t, s.Insert(ChannelRow{ID: eid(10)}, []byte("a")))
	require.NoError(t, s.Insert(ChannelRow{ID: eid(20)}, []byte("b")))

	var seen []uint32
	s.Enumerate(func(r ChannelRow) bool {
		seen = append(seen, uint32(r.ID.Timestamp))
		return true
	})
	require.Equal(t, []uint32{10, 20, 30}, seen)
}

func TestShardEraseZeroesRow(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenShard(dir, 10, ChannelRowCodec)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Insert(ChannelRow{ID: eid(10), Location: Location{Offset: 0, Length: 1}}, []byte("x")))
	ok := s.Erase(func(r ChannelRow) bool { return r.ID.Timestamp == 10 }, false, func(r ChannelRow) Location { return r.Location })
	require.True(t, ok)

	var count int
	s.Enumerate(func(r ChannelRow) bool { count++; return true })
	require.Equal(t, 0, count, "erased row should not be enumerated")
}

func TestTableInsertCreatesFirstShard(t *testing.T) {
	dir := t.TempDir()
	tbl := NewTable(dir, ChannelRowCodec)
	require.NoError(t, tbl.Insert(ChannelRow{ID: eid(100)}, []byte("x")))

	row, ok := tbl.Find(func(r ChannelRow) bool { return r.ID.Timestamp == 100 })
	require.True(t, ok)
	require.Equal(t, raddi.Timestamp(100), row.ID.Timestamp)
}

func TestTableInsertSplitsOnOverflow(t *testing.T) {
	dir := t.TempDir()
	tbl := NewTable(dir, ChannelRowCodec)
	tbl.maxShardRows = 2

	for _, ts := range []uint32{10, 20, 30} {
		require.NoError(t, tbl.Insert(ChannelRow{ID: eid(ts)}, []byte("x")))
	}
	require.Len(t, tbl.Bases(), 2)
}
