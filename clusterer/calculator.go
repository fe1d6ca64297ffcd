package clusterer

import "strconv"

// Calculator maps a cluster's members and the number of configured styles
// to a style bucket and a label.
type Calculator func(markers []*Marker, numStyles int) Sums

// DefaultCalculator picks the bucket from the number of decimal digits in the
// member count, capped at numStyles. The label is the count itself.
func DefaultCalculator(markers []*Marker, numStyles int) Sums {
	return BucketForCount(len(markers), numStyles)
}

// BucketForCount is DefaultCalculator for a bare count
func BucketForCount(count, numStyles int) Sums {
	return Sums{
		Index: min(digitCount(count), numStyles),
		Text:  strconv.Itoa(count),
	}
}

// digitCount counts decimal digits by repeated division so powers of ten are exact.
// Zero has no digits.
func digitCount(n int) int {
	digits := 0
	for n != 0 {
		n /= 10
		digits++
	}
	return digits
}
