package defs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefinitions_AddAndResolve(t *testing.T) {
	d := NewDefinitions()

	ref := d.AddString("region_a")
	got, ok := d.String(ref)
	assert.True(t, ok)
	assert.Equal(t, "region_a", got)

	_, ok = d.String(ref + 1)
	assert.False(t, ok, "an out-of-range ref must not resolve")
}

func TestDefinitions_AddString_DoesNotDeduplicate(t *testing.T) {
	d := NewDefinitions()

	a := d.AddString("same")
	b := d.AddString("same")

	assert.NotEqual(t, a, b, "unlike grammar.Interner, string refs are caller-deduplicated")
	assert.Len(t, d.Strings(), 2)
}

func TestDefinitions_RegionGroupComm_RoundTrip(t *testing.T) {
	d := NewDefinitions()

	regionRef := d.AddRegion(Region{NameRef: 1})
	groupRef := d.AddGroup(Group{NameRef: 2, Members: []uint32{0, 1, 2}})
	commRef := d.AddComm(Comm{NameRef: 3, GroupRef: groupRef})

	region, ok := d.Region(regionRef)
	assert.True(t, ok)
	assert.Equal(t, uint32(1), region.NameRef)

	group, ok := d.Group(groupRef)
	assert.True(t, ok)
	assert.Equal(t, []uint32{0, 1, 2}, group.Members)

	comm, ok := d.Comm(commRef)
	assert.True(t, ok)
	assert.Equal(t, groupRef, comm.GroupRef)

	_, ok = d.Comm(commRef + 1)
	assert.False(t, ok)
}

func TestInvalidRef_IsSentinelMaxUint32(t *testing.T) {
	assert.Equal(t, ^uint32(0), InvalidRef)
}
