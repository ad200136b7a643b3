package mode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rirc-go/rirc/internal/mode"
)

func TestVectorRoundTrip(t *testing.T) {
	var v mode.Vector
	for _, c := range []byte("ntsk") {
		v = v.Set(c)
	}
	for _, c := range []byte("ntsk") {
		assert.True(t, v.Has(c))
	}
	for _, c := range []byte("ntsk") {
		v = v.Clear(c)
	}
	assert.Equal(t, mode.Vector(0), v)
}

func TestVectorStringAlphabetical(t *testing.T) {
	var v mode.Vector
	v = v.Set('t').Set('n').Set('s')
	assert.Equal(t, "nst", v.String())
}

func TestParseISUPPORTMergesOverDefaults(t *testing.T) {
	base := mode.Default()
	cfg := mode.ParseISUPPORT(base, map[string]string{
		"CHANMODES": "b,k,l,n",
		"PREFIX":    "(ov)@+",
	})
	assert.Equal(t, "b", cfg.ListModes)
	assert.Equal(t, "k", cfg.ParamModes)
	assert.Equal(t, "l", cfg.SetParamModes)
	assert.Equal(t, "n", cfg.NoParamModes)
	assert.Equal(t, "ov", cfg.PrefixModes)
	assert.Equal(t, "@+", cfg.PrefixSigils)
	// fields absent from the token map keep their defaults
	assert.Equal(t, "#&", cfg.ChanTypes)
	assert.Equal(t, 3, cfg.ModesMax)
}

func TestParseISUPPORTIgnoresMalformedTokens(t *testing.T) {
	base := mode.Default()
	cfg := mode.ParseISUPPORT(base, map[string]string{
		"CHANMODES": "not-four-parts",
		"PREFIX":    "garbage",
	})
	assert.Equal(t, base.ListModes, cfg.ListModes)
	assert.Equal(t, base.PrefixModes, cfg.PrefixModes)
}

// CHANMODES=b,k,l,n; PREFIX=(ov)@+; MODE #c +ov alice bob.
func TestApplyStatusModesScenario(t *testing.T) {
	cfg := mode.ParseISUPPORT(mode.Default(), map[string]string{
		"CHANMODES": "b,k,l,n",
		"PREFIX":    "(ov)@+",
	})
	target := &mode.Target{
		Members: map[string]mode.Vector{
			"alice": 0,
			"bob":   0,
		},
	}
	rejections := mode.Apply(cfg, target, "+ov", []string{"alice", "bob"}, identity)
	assert.Empty(t, rejections)
	assert.True(t, target.Members["alice"].Has('o'))
	assert.True(t, target.Members["bob"].Has('v'))
	assert.False(t, target.Members["alice"].Has('v'))
}

func TestApplyRejectsUnknownLetter(t *testing.T) {
	cfg := mode.Default()
	target := &mode.Target{Members: map[string]mode.Vector{}}
	rejections := mode.Apply(cfg, target, "+Z", nil, identity)
	require.Len(t, rejections, 1)
	assert.Equal(t, mode.RejectUnknownLetter, rejections[0].Reason)
}

func TestApplyRejectsMissingArg(t *testing.T) {
	cfg := mode.Default()
	target := &mode.Target{Members: map[string]mode.Vector{}}
	rejections := mode.Apply(cfg, target, "+k", nil, identity)
	require.Len(t, rejections, 1)
	assert.Equal(t, mode.RejectMissingArg, rejections[0].Reason)
}

func TestApplyRejectsNoSuchMember(t *testing.T) {
	cfg := mode.ParseISUPPORT(mode.Default(), map[string]string{"PREFIX": "(ov)@+"})
	target := &mode.Target{Members: map[string]mode.Vector{}}
	rejections := mode.Apply(cfg, target, "+o", []string{"ghost"}, identity)
	require.Len(t, rejections, 1)
	assert.Equal(t, mode.RejectNoSuchMember, rejections[0].Reason)
}

func TestApplyRejectsModesCapExceeded(t *testing.T) {
	cfg := mode.Default()
	cfg.ModesMax = 1
	target := &mode.Target{}
	rejections := mode.Apply(cfg, target, "+nn", nil, identity)
	require.Len(t, rejections, 1)
	assert.Equal(t, mode.RejectModesCapExceeded, rejections[0].Reason)
	assert.True(t, target.Chan.Has('n'))
}

func TestApplyRoundTripRestoresVector(t *testing.T) {
	cfg := mode.Default()
	target := &mode.Target{}
	before := target.Chan
	mode.Apply(cfg, target, "+nt", nil, identity)
	assert.NotEqual(t, before, target.Chan)
	mode.Apply(cfg, target, "-nt", nil, identity)
	assert.Equal(t, before, target.Chan)
}

func TestSortPrefixPrecedenceOrder(t *testing.T) {
	cfg := mode.Default() // PrefixModes "ohv": o > h > v
	letters := []byte{'v', 'o', 'h'}
	cfg.SortPrefix(letters)
	assert.Equal(t, []byte{'o', 'h', 'v'}, letters)
}

func identity(s string) string { return s }
