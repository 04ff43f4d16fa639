package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdevo/internal/strategy"
)

var testPayoffs = Payoffs{ExploitComply: 10, ComplyExploit: 0, ComplyComply: 7, ExploitExploit: 3}

func play(t *testing.T, turns int, weight float64, a, b strategy.Prisoner) Result {
	t.Helper()
	room, err := NewRoom(turns, a, b, weight, testPayoffs)
	require.NoError(t, err)
	return room.Simulate()
}

func TestSimulateDiscounting(t *testing.T) {
	cases := []struct {
		name   string
		turns  int
		weight float64
		want   float64
	}{
		{name: "both comply 4 rounds weight 1", turns: 4, weight: 1, want: 28},
		{name: "both comply 4 rounds weight .75", turns: 4, weight: 0.75, want: 19.140625},
		{name: "both comply 1 round weight .75", turns: 1, weight: 0.75, want: 7},
		{name: "weight 0 pays only the first round", turns: 5, weight: 0, want: 7},
		{name: "no rounds", turns: 0, weight: 0.5, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := strategy.NewAlwaysComply()
			b := strategy.NewAlwaysComply()
			play(t, tc.turns, tc.weight, a, b)

			assert.Equal(t, tc.want, a.CumulativeScore())
			assert.Equal(t, tc.want, b.CumulativeScore())
		})
	}
}

func TestSimulateAsymmetricPayoff(t *testing.T) {
	exploiter := strategy.NewAlwaysExploit()
	complier := strategy.NewAlwaysComply()

	res := play(t, 1, 0.75, exploiter, complier)

	assert.Equal(t, 10.0, exploiter.CumulativeScore())
	assert.Equal(t, 0.0, complier.CumulativeScore())
	assert.Equal(t, Result{Turns: 1, FirstExploits: 1}, res)
}

func TestSimulateResetsGameScoreOnly(t *testing.T) {
	a := strategy.NewAlwaysExploit()
	b := strategy.NewAlwaysExploit()
	a.UpdateScore(100)

	play(t, 3, 1, a, b)

	assert.Equal(t, 0.0, a.GameScore())
	assert.Equal(t, 0.0, b.GameScore())
	assert.Equal(t, 109.0, a.CumulativeScore())
	assert.Equal(t, 9.0, b.CumulativeScore())
}

func TestSimulateTitForTatAgainstExploiter(t *testing.T) {
	tft := strategy.NewTitForTat()
	defector := strategy.NewAlwaysExploit()

	res := play(t, 3, 0.5, tft, defector)

	// round 1: 0, round 2: 3*0.5, round 3: 3*0.25
	assert.InDelta(t, 2.25, tft.CumulativeScore(), 1e-12)
	assert.InDelta(t, 10+1.5+0.75, defector.CumulativeScore(), 1e-12)
	assert.Equal(t, 2, res.FirstExploits)
	assert.Equal(t, 2, res.MutualExploits)
	assert.False(t, tft.Choose(), "memory resets when the game ends")
}

func TestSimulatePermanentRetaliationAgainstTitForTat(t *testing.T) {
	pr := strategy.NewPermanentRetaliation()
	tft := strategy.NewTitForTat()

	res := play(t, 6, 1, pr, tft)

	assert.Equal(t, 6, res.MutualComplies)
	assert.Equal(t, 42.0, pr.CumulativeScore())
	assert.Equal(t, 42.0, tft.CumulativeScore())
}

func TestSimulateIntroducesOpponents(t *testing.T) {
	grudger := strategy.NewGrudger()
	defector := strategy.NewAlwaysExploit()

	play(t, 2, 1, grudger, defector)
	assert.Equal(t, 1, grudger.Grudges())

	// The grudge survives into a rematch and the grudger exploits from round 1.
	res := play(t, 1, 1, grudger, defector)
	assert.Equal(t, 1, res.MutualExploits)
}

func TestPayoffsFor(t *testing.T) {
	a, b := testPayoffs.For(strategy.Comply, strategy.Exploit)
	assert.Equal(t, 0.0, a)
	assert.Equal(t, 10.0, b)

	a, b = testPayoffs.For(strategy.Exploit, strategy.Exploit)
	assert.Equal(t, 3.0, a)
	assert.Equal(t, 3.0, b)
}

func TestPayoffsValidate(t *testing.T) {
	require.NoError(t, testPayoffs.Validate())

	bad := testPayoffs
	bad.ComplyComply = math.NaN()
	require.ErrorIs(t, bad.Validate(), ErrInvalidPayoffs)

	bad = testPayoffs
	bad.ExploitExploit = math.Inf(1)
	require.ErrorIs(t, bad.Validate(), ErrInvalidPayoffs)
}

func TestNewRoomValidation(t *testing.T) {
	p := strategy.NewAlwaysComply()

	_, err := NewRoom(-1, p, strategy.NewAlwaysComply(), 1, testPayoffs)
	require.Error(t, err)

	_, err = NewRoom(1, p, nil, 1, testPayoffs)
	require.Error(t, err)

	_, err = NewRoom(1, p, p, 1, testPayoffs)
	require.Error(t, err)
}

// tally has value receivers and a slice field, so its values are not
// comparable.
type tally struct {
	*strategy.Base
	moves []bool
}

func newTally() tally {
	base := strategy.NewBase("tally")
	return tally{Base: &base}
}

func (p tally) Choose() bool { return len(p.moves) > 0 }

func TestNewRoomWithIncomparablePrisoners(t *testing.T) {
	a, b := newTally(), newTally()

	room, err := NewRoom(2, a, b, 1, testPayoffs)
	require.NoError(t, err)
	res := room.Simulate()
	assert.Equal(t, 2, res.MutualComplies)

	_, err = NewRoom(1, a, a, 1, testPayoffs)
	require.Error(t, err, "same identity cannot play itself")
}

func TestPayoffsRecordRoundTrip(t *testing.T) {
	assert.Equal(t, testPayoffs, PayoffsFromRecord(testPayoffs.Record()))
}
