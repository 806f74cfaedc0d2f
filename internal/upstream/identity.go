package upstream

import (
	"github.com/samber/lo"

	"github.com/hszk-dev/audiostream/internal/domain/model"
)

// DefaultUserAgents is the pool of browser identities rotated across attempts.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

var (
	// DefaultPlayerClients are the client hints offered on a first attempt.
	DefaultPlayerClients = []string{"android", "web"}
	// NarrowedPlayerClients are offered once a first attempt has failed.
	NarrowedPlayerClients = []string{"android"}
	// NarrowedSkipProtocols drops segmented delivery on retries.
	NarrowedSkipProtocols = []string{"dash", "hls"}
)

// Intn returns a uniform integer in [0, n). *rand.Rand's IntN satisfies it.
type Intn func(n int) int

// IdentityPool hands out request identities.
type IdentityPool struct {
	userAgents []string
}

// NewIdentityPool creates a pool over userAgents, falling back to DefaultUserAgents when empty.
func NewIdentityPool(userAgents []string) *IdentityPool {
	if len(userAgents) == 0 {
		userAgents = DefaultUserAgents
	}
	return &IdentityPool{userAgents: append([]string(nil), userAgents...)}
}

// Default returns the fixed identity used where no rotation applies.
func (p *IdentityPool) Default() model.Identity {
	return model.Identity{
		UserAgent:     p.userAgents[0],
		PlayerClients: DefaultPlayerClients,
	}
}

// Rotate picks a user agent uniformly at random, excluding previous when the
// pool has an alternative. Narrowed identities restrict client hints and
// delivery protocols.
func (p *IdentityPool) Rotate(intn Intn, previous string, narrowed bool) model.Identity {
	candidates := p.userAgents
	if previous != "" && len(candidates) > 1 {
		// A pool of one repeated agent has nothing else to offer.
		if rest := lo.Without(p.userAgents, previous); len(rest) > 0 {
			candidates = rest
		}
	}

	id := model.Identity{
		UserAgent:     candidates[intn(len(candidates))],
		PlayerClients: DefaultPlayerClients,
	}
	if narrowed {
		id.PlayerClients = NarrowedPlayerClients
		id.SkipProtocols = NarrowedSkipProtocols
	}
	return id
}

// Size returns the number of identities in the pool.
func (p *IdentityPool) Size() int {
	return len(p.userAgents)
}
