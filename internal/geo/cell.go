// Package geo buckets coordinates into geohash cells so nearby requests share
// cache entries.
package geo

import "strings"

// CellPrecision is the geohash length used for cache cells.
// Five characters cover roughly 4.9km x 4.9km.
const CellPrecision = 5

const alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode returns the geohash of (lat, lng) with the given number of characters.
// A precision below 1 falls back to CellPrecision.
func Encode(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = CellPrecision
	}

	lo := [2]float64{-90, -180}
	hi := [2]float64{90, 180}
	coord := [2]float64{lat, lng}

	var b strings.Builder
	b.Grow(precision)

	axis := 1 // geohash interleaves starting with longitude
	var idx, bit uint
	for b.Len() < precision {
		mid := (lo[axis] + hi[axis]) / 2
		idx <<= 1
		if coord[axis] > mid {
			idx |= 1
			lo[axis] = mid
		} else {
			hi[axis] = mid
		}
		axis ^= 1
		bit++
		if bit == 5 {
			b.WriteByte(alphabet[idx])
			idx, bit = 0, 0
		}
	}
	return b.String()
}

// Cell returns the cache cell containing (lat, lng).
func Cell(lat, lng float64) string {
	return Encode(lat, lng, CellPrecision)
}
