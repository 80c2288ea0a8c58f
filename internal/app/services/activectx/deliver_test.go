package activectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func drain(s *Session) []Update {
	var out []Update
	for {
		select {
		case u := <-s.out:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestDeliver_FullQueueKeepsContextChanges(t *testing.T) {
	s := &Session{log: zap.NewNop(), gen: 4, out: make(chan Update, 3)}

	require.True(t, s.deliver(4, Update{Kind: KindScope}))
	require.True(t, s.deliver(4, Update{Kind: KindContextChanged, Role: "owner"}))
	require.True(t, s.deliver(4, Update{Kind: KindScope}))
	require.True(t, s.deliver(4, Update{Kind: KindScope}))
	require.True(t, s.deliver(4, Update{Kind: KindScope}))

	got := drain(s)
	require.Len(t, got, 3)
	assert.Equal(t, KindContextChanged, got[0].Kind)
	assert.Equal(t, KindScope, got[1].Kind)
	assert.Equal(t, KindScope, got[2].Kind)
	for _, u := range got {
		assert.Equal(t, uint64(4), u.Generation)
	}
}

func TestDeliver_OnlyContextChangesDropsOldest(t *testing.T) {
	s := &Session{log: zap.NewNop(), gen: 1, out: make(chan Update, 2)}

	s.deliver(1, Update{Kind: KindContextChanged, Role: "member"})
	s.deliver(1, Update{Kind: KindContextChanged, Role: "admin"})
	s.deliver(1, Update{Kind: KindContextChanged, Role: "owner"})

	got := drain(s)
	require.Len(t, got, 2)
	assert.EqualValues(t, "admin", got[0].Role)
	assert.EqualValues(t, "owner", got[1].Role)
}

func TestDeliver_StaleGenerationIgnored(t *testing.T) {
	s := &Session{log: zap.NewNop(), gen: 2, out: make(chan Update, 1)}
	assert.False(t, s.deliver(1, Update{Kind: KindScope}))
	assert.Empty(t, drain(s))
}
