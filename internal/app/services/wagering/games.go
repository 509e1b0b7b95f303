package wagering

// Dealer supplies randomness for dealing. IntN returns a value in [0, n).
type Dealer interface {
	IntN(n int) int
}

// Comparison is the result of scoring two hands.
type Comparison int

const (
	PlayerWins Comparison = iota
	DealerWins
	Tie
)

// Game deals and scores one head-to-head variant.
type Game interface {
	Name() string
	Deal(d Dealer) (player, dealer Hand)
	Score(h Hand) int
	Compare(player, dealer int) Comparison
}

// Game names accepted by Lookup.
const (
	GameThreeFlowers    = "three-flowers"
	GameGamblingFlowers = "gambling-flowers"
	GameTwentyOne       = "twenty-one"
	GameDrawCard        = "draw-card"
)

// Lookup returns the head-to-head game registered under name.
func Lookup(name string) (Game, bool) {
	switch name {
	case GameThreeFlowers:
		return ThreeFlowers{}, true
	case GameGamblingFlowers:
		return GamblingFlowers{}, true
	case GameTwentyOne:
		return TwentyOne{}, true
	default:
		return nil, false
	}
}

const faceValues = 13

func dealFaces(d Dealer, n int) Hand {
	h := make(Hand, n)
	for i := range h {
		h[i] = d.IntN(faceValues) + 1
	}
	return h
}

func higher(player, dealer int) Comparison {
	switch {
	case player > dealer:
		return PlayerWins
	case player < dealer:
		return DealerWins
	default:
		return Tie
	}
}

// ThreeFlowers (san gong) scores a 3-card hand by its largest group of equal
// cards: three of a kind 100, a pair 50, singles 20.
type ThreeFlowers struct{}

var threeFlowersBuckets = map[int]int{3: 100, 2: 50, 1: 20}

func (ThreeFlowers) Name() string { return GameThreeFlowers }

func (ThreeFlowers) Deal(d Dealer) (Hand, Hand) { return dealFaces(d, 3), dealFaces(d, 3) }

func (ThreeFlowers) Score(h Hand) int {
	counts := make(map[int]int, len(h))
	largest := 0
	for _, c := range h {
		counts[c]++
		if counts[c] > largest {
			largest = counts[c]
		}
	}
	return threeFlowersBuckets[largest]
}

func (ThreeFlowers) Compare(player, dealer int) Comparison { return higher(player, dealer) }

// GamblingFlowers (zha jin hua) scores a 3-card hand by its highest card.
type GamblingFlowers struct{}

func (GamblingFlowers) Name() string { return GameGamblingFlowers }

func (GamblingFlowers) Deal(d Dealer) (Hand, Hand) { return dealFaces(d, 3), dealFaces(d, 3) }

func (GamblingFlowers) Score(h Hand) int {
	best := 0
	for _, c := range h {
		if c > best {
			best = c
		}
	}
	return best
}

func (GamblingFlowers) Compare(player, dealer int) Comparison { return higher(player, dealer) }

// TwentyOne deals two cards each; face cards count 10.
type TwentyOne struct{}

const bust = 21

var cardPoints = [faceValues]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 10, 10, 10}

func (TwentyOne) Name() string { return GameTwentyOne }

func (TwentyOne) Deal(d Dealer) (Hand, Hand) {
	deal := func() Hand { return Hand{cardPoints[d.IntN(faceValues)], cardPoints[d.IntN(faceValues)]} }
	return deal(), deal()
}

// Score re-scores a sum over 21 as sum-10.
func (TwentyOne) Score(h Hand) int {
	sum := 0
	for _, c := range h {
		sum += c
	}
	if sum > bust {
		sum -= 10
	}
	return sum
}

func (TwentyOne) Compare(player, dealer int) Comparison {
	switch {
	case player > bust:
		return DealerWins
	case dealer > bust:
		return PlayerWins
	default:
		return higher(player, dealer)
	}
}
