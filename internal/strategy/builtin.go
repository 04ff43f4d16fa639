package strategy

const (
	KindAlwaysComply         = "AlwaysComply"
	KindAlwaysExploit        = "AlwaysExploit"
	KindTitForTat            = "TitForTat"
	KindPermanentRetaliation = "PermanentRetaliation"
	KindGrudger              = "Grudger"
)

func init() {
	MustRegister(KindSpec{
		Name:        KindAlwaysComply,
		Description: "always complies",
		New:         func() Prisoner { return NewAlwaysComply() },
	})
	MustRegister(KindSpec{
		Name:        KindAlwaysExploit,
		Description: "always exploits",
		New:         func() Prisoner { return NewAlwaysExploit() },
	})
	MustRegister(KindSpec{
		Name:        KindTitForTat,
		Description: "complies first, then repeats the opponent's previous move",
		New:         func() Prisoner { return NewTitForTat() },
	})
	MustRegister(KindSpec{
		Name:        KindPermanentRetaliation,
		Description: "complies until exploited, then exploits for the rest of the game",
		New:         func() Prisoner { return NewPermanentRetaliation() },
	})
	MustRegister(KindSpec{
		Name:        KindGrudger,
		Description: "exploits every opponent that has ever exploited it, across games and generations",
		New:         func() Prisoner { return NewGrudger() },
	})
}

type AlwaysComply struct {
	Base
}

func NewAlwaysComply() *AlwaysComply {
	return &AlwaysComply{Base: NewBase(KindAlwaysComply)}
}

func (*AlwaysComply) Choose() bool { return Comply }

type AlwaysExploit struct {
	Base
}

func NewAlwaysExploit() *AlwaysExploit {
	return &AlwaysExploit{Base: NewBase(KindAlwaysExploit)}
}

func (*AlwaysExploit) Choose() bool { return Exploit }

// TitForTat plays whatever the opponent played in the previous round.
type TitForTat struct {
	Base
	prevOpponent bool
}

func NewTitForTat() *TitForTat {
	return &TitForTat{Base: NewBase(KindTitForTat), prevOpponent: Comply}
}

func (p *TitForTat) Choose() bool { return p.prevOpponent }

func (p *TitForTat) NotifyOpponentChoice(exploit bool) { p.prevOpponent = exploit }

func (p *TitForTat) NotifyGameOver() { p.prevOpponent = Comply }

type PermanentRetaliation struct {
	Base
	exploited bool
}

func NewPermanentRetaliation() *PermanentRetaliation {
	return &PermanentRetaliation{Base: NewBase(KindPermanentRetaliation)}
}

func (p *PermanentRetaliation) Choose() bool { return p.exploited }

func (p *PermanentRetaliation) NotifyOpponentChoice(exploit bool) {
	if exploit {
		p.exploited = true
	}
}

func (p *PermanentRetaliation) NotifyGameOver() { p.exploited = false }

// Grudger remembers opponents by identity. It complies with strangers and
// exploits anyone who has exploited it before, from the first round of every
// later meeting. Survivors keep their IDs, so a grudge carries into the next
// generation's round robin. Opponents not met during a generation have left
// the population and are forgotten when it ends. Offspring start without
// grudges.
type Grudger struct {
	Base
	opponent string
	grudges  map[string]struct{}
	met      map[string]struct{}
}

func NewGrudger() *Grudger {
	return &Grudger{
		Base:    NewBase(KindGrudger),
		grudges: make(map[string]struct{}),
		met:     make(map[string]struct{}),
	}
}

func (p *Grudger) Choose() bool {
	_, held := p.grudges[p.opponent]
	return held
}

func (p *Grudger) NotifyOtherPrisoner(opponentID string) {
	p.opponent = opponentID
	p.met[opponentID] = struct{}{}
}

func (p *Grudger) NotifyOpponentChoice(exploit bool) {
	if exploit && p.opponent != "" {
		p.grudges[p.opponent] = struct{}{}
	}
}

func (p *Grudger) NotifyGameOver() { p.opponent = "" }

func (p *Grudger) NotifyGenerationOver() {
	for id := range p.grudges {
		if _, ok := p.met[id]; !ok {
			delete(p.grudges, id)
		}
	}
	clear(p.met)
}

// Grudges reports how many opponents are currently held in contempt.
func (p *Grudger) Grudges() int { return len(p.grudges) }
