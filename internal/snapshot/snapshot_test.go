package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedSnapshotIsStableAndNonEmpty(t *testing.T) {
	p := NewFixed()
	first := p.Snapshot()
	second := p.Snapshot()
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}
