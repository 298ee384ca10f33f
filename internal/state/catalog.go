package state

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"marketmirror/internal/model"
)

// DefaultExpiryGuard is how close to expiration a contract may get before
// the mirror stops treating it as tradable. Last-second trades are not
// worth racing the settlement clock for.
const DefaultExpiryGuard = 15 * time.Second

// Catalog owns contract metadata: the live and expired partitions, the
// expiration-date index, strike ladders, put/call pairing and next-day-swap
// resolution. Not safe for concurrent use; the engine serializes access.
type Catalog struct {
	contracts   map[int64]*model.Contract
	expired     map[int64]*model.Contract
	traded      map[int64]*model.Contract
	labelToID   map[string]int64
	putCallPair map[int64]int64
	expDates    []time.Time                 // sorted, de-duplicated
	expStrikes  map[string]map[string][]int64 // expiry date key -> asset -> sorted strikes
	nextDay     map[string]*model.Contract

	skipExpired bool
	log         zerolog.Logger
}

func NewCatalog(skipExpired bool, log zerolog.Logger) *Catalog {
	c := &Catalog{skipExpired: skipExpired, log: log}
	c.Clear()
	return c
}

// Clear drops everything the catalog knows.
func (c *Catalog) Clear() {
	c.contracts = make(map[int64]*model.Contract)
	c.expired = make(map[int64]*model.Contract)
	c.traded = make(map[int64]*model.Contract)
	c.labelToID = make(map[string]int64)
	c.putCallPair = make(map[int64]int64)
	c.expDates = nil
	c.expStrikes = make(map[string]map[string][]int64)
	c.nextDay = make(map[string]*model.Contract)
}

func expiryKey(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// RegisterExpiration inserts an expiration timestamp into the sorted index.
// Duplicates are ignored.
func (c *Catalog) RegisterExpiration(t time.Time) {
	i := sort.Search(len(c.expDates), func(i int) bool { return !c.expDates[i].Before(t) })
	if i < len(c.expDates) && c.expDates[i].Equal(t) {
		return
	}
	c.expDates = append(c.expDates, time.Time{})
	copy(c.expDates[i+1:], c.expDates[i:])
	c.expDates[i] = t
}

// ExpirationDates returns the sorted expiration index.
func (c *Catalog) ExpirationDates() []time.Time {
	out := make([]time.Time, len(c.expDates))
	copy(out, c.expDates)
	return out
}

// IsExpired reports whether the contract is within guard of expiration or
// already sits in the expired partition. Once true it never flips back:
// time only moves forward and the partition is never left.
func (c *Catalog) IsExpired(contract *model.Contract, now time.Time, guard time.Duration) bool {
	if contract.DateExpires.Sub(now) < guard {
		return true
	}
	_, gone := c.expired[contract.ID]
	return gone
}

// IsLive reports whether the contract's activation timestamp has passed.
func (c *Catalog) IsLive(contract *model.Contract, now time.Time) bool {
	return !now.Before(contract.DateLive)
}

// Add inserts a contract, registering its expiration date first and
// classifying it into the expired partition when already past the guard
// window. Idempotent: a contract that is already present is left alone.
func (c *Catalog) Add(contract model.Contract, now time.Time) {
	c.RegisterExpiration(contract.DateExpires)

	if _, ok := c.contracts[contract.ID]; ok {
		return
	}
	stored := contract
	c.contracts[contract.ID] = &stored
	c.labelToID[contract.Label] = contract.ID

	if c.IsExpired(&stored, now, DefaultExpiryGuard) {
		c.expired[contract.ID] = &stored
		c.log.Debug().Int64("contract_id", contract.ID).Str("label", contract.Label).
			Msg("added contract already past expiry guard")
		if c.skipExpired {
			return
		}
	}

	derived := model.ContractLabel(stored.UnderlyingAsset, stored.DateExpires,
		stored.DerivativeType, stored.IsCall, stored.StrikePrice)
	if derived != stored.Label {
		c.log.Warn().Int64("contract_id", contract.ID).
			Str("feed_label", stored.Label).Str("derived_label", derived).
			Msg("feed label differs from derived label")
	}

	if stored.IsNextDay {
		c.considerNextDay(&stored, now)
	}
	if stored.IsOption() {
		c.crossReferencePutCall(&stored)
		c.addStrike(&stored)
	}
}

// considerNextDay keeps, per asset, the freshest active non-expired swap.
func (c *Catalog) considerNextDay(contract *model.Contract, now time.Time) {
	if c.IsExpired(contract, now, DefaultExpiryGuard) || !contract.Active {
		return
	}
	asset := contract.UnderlyingAsset
	current, ok := c.nextDay[asset]
	if ok && !current.DateExpires.Before(contract.DateExpires) {
		return
	}
	c.nextDay[asset] = contract
	c.log.Info().Str("asset", asset).Int64("contract_id", contract.ID).
		Str("label", contract.Label).Msg("tracking next-day swap")
}

// crossReferencePutCall pairs a put with its call (and vice versa) by label
// substitution.
func (c *Catalog) crossReferencePutCall(contract *model.Contract) {
	var counterpart string
	if contract.IsCall {
		counterpart = replaceLast(contract.Label, "Call", "Put")
	} else {
		counterpart = replaceLast(contract.Label, "Put", "Call")
	}
	otherID, ok := c.labelToID[counterpart]
	if !ok {
		return
	}
	c.putCallPair[contract.ID] = otherID
	c.putCallPair[otherID] = contract.ID
}

func replaceLast(s, old, new string) string {
	i := len(s) - len(old)
	for ; i >= 0; i-- {
		if s[i:i+len(old)] == old {
			return s[:i] + new + s[i+len(old):]
		}
	}
	return s
}

// addStrike inserts the contract's strike into the sorted ladder for its
// (expiration, asset) pair.
func (c *Catalog) addStrike(contract *model.Contract) {
	key := expiryKey(contract.DateExpires)
	byAsset, ok := c.expStrikes[key]
	if !ok {
		byAsset = make(map[string][]int64)
		c.expStrikes[key] = byAsset
	}
	strikes := byAsset[contract.UnderlyingAsset]
	i := sort.Search(len(strikes), func(i int) bool { return strikes[i] >= contract.StrikePrice })
	if i < len(strikes) && strikes[i] == contract.StrikePrice {
		return
	}
	strikes = append(strikes, 0)
	copy(strikes[i+1:], strikes[i:])
	strikes[i] = contract.StrikePrice
	byAsset[contract.UnderlyingAsset] = strikes
}

// StrikeLadder returns the sorted strikes listed for an (expiration, asset)
// pair.
func (c *Catalog) StrikeLadder(expires time.Time, asset string) []int64 {
	byAsset, ok := c.expStrikes[expiryKey(expires)]
	if !ok {
		return nil
	}
	strikes := byAsset[asset]
	out := make([]int64, len(strikes))
	copy(out, strikes)
	return out
}

// Contract looks up a contract by id in the live partition.
func (c *Catalog) Contract(id int64) (*model.Contract, bool) {
	contract, ok := c.contracts[id]
	return contract, ok
}

// IDByLabel resolves a display label back to a contract id.
func (c *Catalog) IDByLabel(label string) (int64, bool) {
	id, ok := c.labelToID[label]
	return id, ok
}

// PutCallPair returns the paired contract of an option.
func (c *Catalog) PutCallPair(id int64) (int64, bool) {
	other, ok := c.putCallPair[id]
	return other, ok
}

// InExpiredPartition reports membership without consulting the clock.
func (c *Catalog) InExpiredPartition(id int64) bool {
	_, ok := c.expired[id]
	return ok
}

// MarkExpired moves a contract into the expired partition. The record stays
// in the live map so late events can still resolve its metadata.
func (c *Catalog) MarkExpired(contract model.Contract) {
	if _, ok := c.expired[contract.ID]; ok {
		return
	}
	stored := contract
	c.expired[contract.ID] = &stored
	c.log.Info().Int64("contract_id", contract.ID).Str("label", contract.Label).
		Msg("contract expired")
}

// MarkTraded records that the trader's account has history on a contract.
func (c *Catalog) MarkTraded(contract *model.Contract) {
	c.traded[contract.ID] = contract
}

// TradedIDs returns the contract ids the trader has traded.
func (c *Catalog) TradedIDs() []int64 {
	out := make([]int64, 0, len(c.traded))
	for id := range c.traded {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IDs returns every contract id in the live partition, sorted.
func (c *Catalog) IDs() []int64 {
	out := make([]int64, 0, len(c.contracts))
	for id := range c.contracts {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the live partition size.
func (c *Catalog) Len() int {
	return len(c.contracts)
}

// SkipExpired reports whether expired contracts are excluded from position
// and basis upkeep.
func (c *Catalog) SkipExpired() bool {
	return c.skipExpired
}

// NextDaySwap returns the cached next-day swap for an asset, dropping it
// when it has expired (with a 1s guard, since the swap settles daily) or
// is not yet live.
func (c *Catalog) NextDaySwap(asset string, now time.Time) (*model.Contract, bool) {
	contract, ok := c.nextDay[asset]
	if !ok {
		// Fall back to a scan; an earlier Add may have been skipped.
		for _, candidate := range c.contracts {
			if candidate.IsNextDay && candidate.UnderlyingAsset == asset &&
				!c.IsExpired(candidate, now, DefaultExpiryGuard) && c.IsLive(candidate, now) {
				c.nextDay[asset] = candidate
				contract, ok = candidate, true
				break
			}
		}
		if !ok {
			return nil, false
		}
	}
	if c.IsExpired(contract, now, time.Second) || !c.IsLive(contract, now) {
		return nil, false
	}
	return contract, true
}

// SameSeriesStrikes collects the strikes of every contract in the same
// option series (same expiry, asset, type, side), sorted descending.
func (c *Catalog) SameSeriesStrikes(contract *model.Contract) []int64 {
	var strikes []int64
	for _, other := range c.contracts {
		if contract.SameOptionSeries(other) {
			strikes = append(strikes, other.StrikePrice)
		}
	}
	sort.Slice(strikes, func(i, j int) bool { return strikes[i] > strikes[j] })
	return strikes
}

// QualifyingStrikeFloor walks a descending strike ladder and returns the
// lowest strike still qualifying under the covered-call rank rules: at most
// one strike at or below fair value when expiry is over 30 days out, at
// most two when over 90.
func QualifyingStrikeFloor(strikesDesc []int64, fairValue int64, daysToExpiry float64) int64 {
	if len(strikesDesc) == 0 {
		return 0
	}
	lowest := strikesDesc[0]
	pastFMV := 0
	for _, strike := range strikesDesc {
		if strike <= fairValue {
			pastFMV++
		}
		if pastFMV <= 1 && daysToExpiry > 30 {
			lowest = strike
		}
		if pastFMV <= 2 && daysToExpiry > 90 {
			lowest = strike
		}
	}
	return lowest
}
