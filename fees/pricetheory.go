package fees

import (
	"math"
	"math/rand"

	"github.com/joemphilips/ldkboss/config"
	"github.com/joemphilips/ldkboss/store"
)

// The price-theory modifier runs a card game per peer to learn the fee
// level that maximizes earnings. Each peer has a center price and a
// shuffled deck of candidate prices around it. Cards are played one at
// a time for a fixed number of ticks while their earnings accumulate;
// when the deck runs out, the best-earning price becomes the new
// center and a fresh deck is dealt.

// maxPrice bounds the absolute price.
const maxPrice = 10

// PriceMultiplier converts a price level to a fee multiplier.
// Positive prices raise fees, negative prices lower them.
func PriceMultiplier(price int) float64 {
	return math.Pow(1.2, float64(price))
}

// FeeModifier returns the multiplier of the peer's in-play card, or a
// neutral 1.0 when no card is in play.
func FeeModifier(st *store.Store, nodeID string) (float64, error) {
	card, ok, err := st.InPlayCard(nodeID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1.0, nil
	}
	return PriceMultiplier(card.Price), nil
}

// RecordEarnings credits forwarding fees to the peer's in-play card.
func RecordEarnings(st *store.Store, nodeID string, feeMsat int64) error {
	return st.AddCardEarnings(nodeID, feeMsat)
}

// Tick advances the card game one step for every peer: expired in-play
// cards are discarded and replaced, fresh peers get a deck dealt.
func Tick(st *store.Store, peerIDs []string, cfg *config.Fees) error {
	for _, peerID := range peerIDs {
		if err := ensureInitialized(st, peerID, cfg); err != nil {
			return err
		}

		card, ok, err := st.InPlayCard(peerID)
		if err != nil {
			return err
		}
		if !ok {
			if err := drawCard(st, peerID, cfg); err != nil {
				return err
			}
			continue
		}

		if card.Lifetime <= 1 {
			if err := st.DiscardCard(card.ID); err != nil {
				return err
			}
			log.Debugf("PriceTheory: peer %s card %d expired, discarding",
				peerID, card.ID)
			if err := drawCard(st, peerID, cfg); err != nil {
				return err
			}
		} else if err := st.DecrementCardLifetime(card.ID); err != nil {
			return err
		}
	}
	return nil
}

// drawCard flips the next deck card into play, dealing a new round
// first when the deck is empty.
func drawCard(st *store.Store, peerID string, cfg *config.Fees) error {
	card, ok, err := st.NextDeckCard(peerID)
	if err != nil {
		return err
	}
	if ok {
		if err := st.PlayCard(card.ID, int(cfg.PriceTheoryCardLifetimeTicks)); err != nil {
			return err
		}
		log.Debugf("PriceTheory: peer %s drew card with price %d (mult %.3f)",
			peerID, card.Price, PriceMultiplier(card.Price))
		return nil
	}

	if err := endRound(st, peerID, cfg); err != nil {
		return err
	}
	card, ok, err = st.NextDeckCard(peerID)
	if err != nil || !ok {
		return err
	}
	if err := st.PlayCard(card.ID, int(cfg.PriceTheoryCardLifetimeTicks)); err != nil {
		return err
	}
	log.Debugf("PriceTheory: peer %s new round, drew card with price %d",
		peerID, card.Price)
	return nil
}

// endRound promotes the best-earning discarded price to the new center
// and deals a fresh deck around it.
func endRound(st *store.Store, peerID string, cfg *config.Fees) error {
	newCenter, ok, err := st.BestDiscardedPrice(peerID)
	if err != nil {
		return err
	}
	if ok {
		newCenter = clampPrice(newCenter)
		log.Debugf("PriceTheory: peer %s round ended, new center %d",
			peerID, newCenter)
	} else {
		if newCenter, err = st.Center(peerID); err != nil {
			return err
		}
	}

	if err := st.SetCenter(peerID, newCenter); err != nil {
		return err
	}
	if err := st.DeleteCards(peerID); err != nil {
		return err
	}
	return createDeck(st, peerID, newCenter, cfg)
}

func ensureInitialized(st *store.Store, peerID string, cfg *config.Fees) error {
	n, err := st.CardCount(peerID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if err := st.EnsureCenter(peerID); err != nil {
		return err
	}
	return createDeck(st, peerID, 0, cfg)
}

// createDeck deals a shuffled deck of prices center-step..center+step.
func createDeck(st *store.Store, peerID string, center int, cfg *config.Fees) error {
	step := cfg.PriceTheoryMaxStep
	prices := make([]int, 0, 2*step+1)
	for s := -step; s <= step; s++ {
		prices = append(prices, clampPrice(center+s))
	}
	rand.Shuffle(len(prices), func(i, j int) {
		prices[i], prices[j] = prices[j], prices[i]
	})

	for order, price := range prices {
		if err := st.InsertCard(peerID, order, price,
			int(cfg.PriceTheoryCardLifetimeTicks)); err != nil {
			return err
		}
	}
	return nil
}

func clampPrice(price int) int {
	if price > maxPrice {
		return maxPrice
	}
	if price < -maxPrice {
		return -maxPrice
	}
	return price
}
