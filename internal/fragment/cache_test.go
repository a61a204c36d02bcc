package fragment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchlabs/quench/internal/regime"
	"github.com/quenchlabs/quench/internal/tier"
)

// fixedSweep satisfies SweepState with a settable executing tier.
type fixedSweep struct {
	executing tier.Tier
}

func (s *fixedSweep) Executing() tier.Tier { return s.executing }

func gen(value string) func() (string, error) {
	return func() (string, error) { return value, nil }
}

func countingGen(value string, calls *int) func() (string, error) {
	return func() (string, error) {
		*calls++
		return value, nil
	}
}

func newCache(config Config) (*Cache, *regime.AtomicFlags, *fixedSweep) {
	flags := regime.NewAtomicFlags()
	sweep := &fixedSweep{executing: tier.None}
	return New(regime.NewMonitor(flags), sweep, config), flags, sweep
}

func TestCache_HitAvoidsRegeneration(t *testing.T) {
	c, _, _ := newCache(nil)

	calls := 0
	v, err := c.Get("item-1", countingGen("<td>ok</td>", &calls))
	require.NoError(t, err)
	assert.Equal(t, "<td>ok</td>", v)

	v, err = c.Get("item-1", countingGen("<td>other</td>", &calls))
	require.NoError(t, err)
	assert.Equal(t, "<td>ok</td>", v, "hit returns the memoized fragment")
	assert.Equal(t, 1, calls, "generator runs once per key")
}

func TestCache_GeneratorErrorNotCached(t *testing.T) {
	c, _, _ := newCache(nil)

	boom := errors.New("renderer failed")
	_, err := c.Get("item-1", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom, "generator errors propagate to the caller")
	assert.Equal(t, 0, c.Len(), "failures are never cached")

	// A later successful generation is cached normally.
	v, err := c.Get("item-1", gen("fine"))
	require.NoError(t, err)
	assert.Equal(t, "fine", v)
	assert.Equal(t, 1, c.Len())
}

func TestCache_FIFOEvictionAtCapacity(t *testing.T) {
	config := Config{
		regime.Idle: {Capacity: 3, Pressure: 10, RetainK: 1},
	}
	c, _, _ := newCache(config)

	for i := 1; i <= 4; i++ {
		_, err := c.Get(fmt.Sprintf("k%d", i), gen("v"))
		require.NoError(t, err)
	}

	assert.Equal(t, 3, c.Len(), "size never exceeds capacity after an insert")
	assert.Equal(t, []string{"k2", "k3", "k4"}, c.Keys(), "oldest entry evicted first")
}

// TestCache_BoundedAtEveryObservationPoint checks the size bound between
// every pair of operations, not just at the end.
func TestCache_BoundedAtEveryObservationPoint(t *testing.T) {
	config := Config{
		regime.Idle: {Capacity: 5, Pressure: 20, RetainK: 2},
	}
	c, _, _ := newCache(config)

	for i := 0; i < 50; i++ {
		_, err := c.Get(fmt.Sprintf("k%d", i), gen("v"))
		require.NoError(t, err)
		assert.LessOrEqual(t, c.Len(), 5, "bound must hold after insert %d", i)
	}
}

// TestCache_EmergencyEvictionRetainsNewestByIdentity builds up entries under
// the roomy walkthrough bound, then switches to the tight systematic regime:
// the next insert exceeds the pressure threshold and the cache is rebuilt
// from only the most recently inserted keys.
func TestCache_EmergencyEvictionRetainsNewestByIdentity(t *testing.T) {
	config := Config{
		regime.WalkthroughRunning: {Capacity: 30, Pressure: 60, RetainK: 8},
		regime.SystematicRunning:  {Capacity: 10, Pressure: 20, RetainK: 5},
	}
	c, flags, _ := newCache(config)

	flags.SetWalkthroughActive(true)
	for i := 1; i <= 25; i++ {
		_, err := c.Get(fmt.Sprintf("k%02d", i), gen("v"))
		require.NoError(t, err)
	}
	require.Equal(t, 25, c.Len(), "roomy bound: no eviction yet")

	flags.SetWalkthroughActive(false)
	flags.SetSystematicRunning(true)

	_, err := c.Get("k26", gen("v"))
	require.NoError(t, err)

	assert.Equal(t, 5, c.Len(), "emergency eviction retains K entries")
	assert.Equal(t, []string{"k22", "k23", "k24", "k25", "k26"}, c.Keys(),
		"the K most recently inserted keys survive, by identity")
}

func TestCache_EmergencyEvictPublicPath(t *testing.T) {
	config := Config{
		regime.Idle: {Capacity: 10, Pressure: 20, RetainK: 3},
	}
	c, _, _ := newCache(config)

	for i := 1; i <= 8; i++ {
		_, err := c.Get(fmt.Sprintf("k%d", i), gen("v"))
		require.NoError(t, err)
	}

	c.EmergencyEvict()
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"k6", "k7", "k8"}, c.Keys())
}

func TestCache_BypassDuringHighestCostTier(t *testing.T) {
	c, flags, sweep := newCache(nil)
	flags.SetSystematicRunning(true)

	sweep.executing = tier.Q8
	calls := 0
	for i := 0; i < 3; i++ {
		v, err := c.Get("same-key", countingGen("fresh", &calls))
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
	}
	assert.Equal(t, 3, calls, "bypass regenerates every time")
	assert.Equal(t, 0, c.Len(), "bypass never writes the cache")
}

func TestCache_NoBypassUnderWalkthrough(t *testing.T) {
	c, flags, sweep := newCache(nil)
	flags.SetWalkthroughActive(true)

	sweep.executing = tier.Q8
	calls := 0
	_, err := c.Get("k", countingGen("v", &calls))
	require.NoError(t, err)
	_, err = c.Get("k", countingGen("v", &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "walkthrough is protected: cache stays on")
	assert.Equal(t, 1, c.Len())
}

func TestCache_NoBypassInLowerTiers(t *testing.T) {
	c, flags, sweep := newCache(nil)
	flags.SetSystematicRunning(true)

	for _, executing := range []tier.Tier{tier.None, tier.Q1, tier.Q4} {
		sweep.executing = executing
		c.Clear()
		calls := 0
		_, err := c.Get("k", countingGen("v", &calls))
		require.NoError(t, err)
		_, err = c.Get("k", countingGen("v", &calls))
		require.NoError(t, err)
		assert.Equal(t, 1, calls, "tier %s must use the cache", executing)
	}
}

func TestCache_EnterHighestTierClears(t *testing.T) {
	c, _, _ := newCache(nil)

	_, err := c.Get("k1", gen("v"))
	require.NoError(t, err)
	_, err = c.Get("k2", gen("v"))
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	c.EnterTier(tier.Q8)
	assert.Equal(t, 0, c.Len(), "entering the highest-cost tier guarantees fresh generation")
}

func TestCache_EnterLowerTierKeepsEntries(t *testing.T) {
	c, _, _ := newCache(nil)

	_, err := c.Get("k1", gen("v"))
	require.NoError(t, err)

	c.EnterTier(tier.Q1)
	c.EnterTier(tier.Q4)
	assert.Equal(t, 1, c.Len())
}

func TestCache_CapacityVariesByRegime(t *testing.T) {
	c, flags, _ := newCache(nil) // defaults: systematic 8, idle 16, walkthrough 24

	flags.SetSystematicRunning(true)
	for i := 0; i < 20; i++ {
		_, err := c.Get(fmt.Sprintf("s%d", i), gen("v"))
		require.NoError(t, err)
	}
	assert.Equal(t, 8, c.Len(), "tightest bound while the bench suite runs")

	c.Clear()
	flags.SetSystematicRunning(false)
	flags.SetWalkthroughActive(true)
	for i := 0; i < 30; i++ {
		_, err := c.Get(fmt.Sprintf("w%d", i), gen("v"))
		require.NoError(t, err)
	}
	assert.Equal(t, 24, c.Len(), "largest bound during a walkthrough")
}
