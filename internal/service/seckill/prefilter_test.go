package seckill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefilterMembership(t *testing.T) {
	p, err := NewPrefilter(time.Minute)
	require.NoError(t, err)
	defer p.Close()

	assert.False(t, p.MightExist(7))
	p.AddCampaign(7)
	assert.True(t, p.MightExist(7))
	// A never-added id must stay definitively absent.
	assert.False(t, p.MightExist(424242))
}

func TestPrefilterSoldOutMarker(t *testing.T) {
	p, err := NewPrefilter(time.Minute)
	require.NoError(t, err)
	defer p.Close()

	assert.False(t, p.IsSoldOut(7))
	p.MarkSoldOut(7)
	assert.True(t, p.IsSoldOut(7))

	p.ClearSoldOut(7)
	assert.False(t, p.IsSoldOut(7))
}
