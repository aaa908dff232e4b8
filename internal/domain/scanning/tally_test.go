package scanning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTally(t *testing.T) {
	t.Run("empty tally has no leader", func(t *testing.T) {
		tally := NewTally()
		_, ok := tally.Leader()
		assert.False(t, ok)
		assert.Zero(t, tally.Total())
		assert.Empty(t, tally.Entries())
	})

	tests := []struct {
		name   string
		reads  []string
		leader string
		count  int
	}{
		{"single value", []string{"X"}, "X", 1},
		{"strict majority", []string{"A", "B", "B", "C", "B"}, "B", 3},
		{"first to reach maximum wins tie", []string{"A", "B", "A", "B"}, "A", 2},
		{"overtaking needs a strictly greater count", []string{"B", "A", "A", "B"}, "A", 2},
		{"late majority", []string{"C", "A", "B", "B", "B"}, "B", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tally := NewTally()
			for _, r := range tt.reads {
				tally.Add(Payload{Text: r})
			}
			leader, ok := tally.Leader()
			require.True(t, ok)
			assert.Equal(t, tt.leader, leader.Text)
			assert.Equal(t, tt.count, leader.Count)
			assert.Equal(t, len(tt.reads), tally.Total())
		})
	}

	t.Run("entries keep first-seen order and format", func(t *testing.T) {
		tally := NewTally()
		tally.Add(Payload{Text: "2", Format: "QR_CODE"})
		tally.Add(Payload{Text: "1", Format: "EAN_8"})
		tally.Add(Payload{Text: "2", Format: "EAN_13"})

		entries := tally.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, TallyEntry{Text: "2", Format: "QR_CODE", Count: 2}, entries[0])
		assert.Equal(t, TallyEntry{Text: "1", Format: "EAN_8", Count: 1}, entries[1])

		entries[0].Count = 99
		leader, _ := tally.Leader()
		assert.Equal(t, 2, leader.Count)
	})
}
