// Package cosmo provides the comoving-distance function injected into the
// comoving binning policy. It implements exactly one spatially flat ΛCDM
// line-of-sight distance; anything more belongs to the caller.
package cosmo

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// SpeedOfLight is c in km/s, giving distances in Mpc for H0 in km/s/Mpc.
const SpeedOfLight = 299792.458

// Params is a flat ΛCDM cosmology: Hubble constant in km/s/Mpc and the
// matter density fraction (dark energy fraction is 1 - OmegaM).
type Params struct {
	H0     float64
	OmegaM float64
}

// Default returns the fiducial cosmology used by the drivers when none is
// configured.
func Default() Params {
	return Params{H0: 70.0, OmegaM: 0.3}
}

// efunc is the dimensionless Hubble parameter E(z).
func (p Params) efunc(z float64) float64 {
	zp1 := 1 + z
	return math.Sqrt(p.OmegaM*zp1*zp1*zp1 + (1 - p.OmegaM))
}

// ComovingDistance returns the line-of-sight comoving distance to redshift z
// in Mpc, by Gauss-Legendre quadrature of c/H0 ∫ dz'/E(z').
func (p Params) ComovingDistance(z float64) float64 {
	if z <= 0 {
		return 0
	}
	integral := quad.Fixed(func(zp float64) float64 {
		return 1 / p.efunc(zp)
	}, 0, z, 40, nil, 0)
	return SpeedOfLight / p.H0 * integral
}
