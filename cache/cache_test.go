package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/raddi-network/raddi/raddi"
)

func TestDetachedAcceptDrainsWaiters(t *testing.T) {
	d := NewDetached()
	parent := raddi.EID{Timestamp: 100}
	d.Insert(parent, []byte("child-1"))
	d.Insert(parent, []byte("child-2"))
	require.Equal(t, 2, d.Size())

	var drained [][]byte
	d.Accept(parent, func(b []byte) { drained = append(drained, b) })
	require.Len(t, drained, 2)
	require.Equal(t, 0, d.Size())
}

func TestDetachedRejectRecurses(t *testing.T) {
	d := NewDetached()
	root := raddi.EID{Timestamp: 1}
	child := raddi.EID{Timestamp: 2, Identity: raddi.IID{Timestamp: 2}}

	d.Insert(root, []byte("child-bytes"))
	d.Insert(child, []byte("grandchild-bytes"))

	lookup := map[string]raddi.EID{
		"child-bytes":      child,
		"grandchild-bytes": root, // arbitrary terminator for the test
	}
	n := d.Reject(root, func(b []byte) raddi.EID { return lookup[string(b)] })
	require.Equal(t, 2, n)
}

func TestNoticedInsertDedupes(t *testing.T) {
	n := NewNoticed()
	id := raddi.EID{Timestamp: 5}
	require.True(t, n.Insert(id))
	require.False(t, n.Insert(id))
	require.True(t, n.Contains(id))
}

func TestRefusedTracksContains(t *testing.T) {
	r := NewRefused()
	id := raddi.EID{Timestamp: 7}
	require.False(t, r.Contains(id))
	r.Insert(id)
	require.True(t, r.Contains(id))
}
