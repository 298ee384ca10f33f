package model

// PriceUnits is the number of minor price units per cent: prices on the
// wire are integers at 1/100 of a cent.
const PriceUnits = 100

const maxFeePerContract = 15

// Fee computes the exchange fee for trading |size| contracts at the given
// price: 20% of the price per contract or the per-contract cap, whichever
// is less.
func Fee(price, size int64) int64 {
	perContract := price / (5 * PriceUnits)
	if perContract > maxFeePerContract {
		perContract = maxFeePerContract
	}
	if size < 0 {
		size = -size
	}
	return perContract * size
}

// FloorDiv divides rounding toward negative infinity. Cost figures are
// quoted against signed sizes, so truncating division would round short
// positions the wrong way.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
