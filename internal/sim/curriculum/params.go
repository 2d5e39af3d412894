// Package curriculum resolves the flat, string-keyed episode parameters that
// gate behaviour between episodes.
package curriculum

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	KeyMaxJumpHeight = "maxJumpHeight"
	KeyAllowMovement = "allowMovement"
	KeyAllowJump     = "allowJump"
	KeyExploreRoom   = "exploreRoom"
	KeyHasObjective  = "hasObjective"
)

const (
	EnvPrefix         = "NAV_PARAM_"
	DefaultJumpHeight = 1.0
	flagTrueThreshold = 0.5
)

// Params is a flat mapping of named scalars.
type Params map[string]float64

// Defaults is what an episode sees when nothing overrides a key.
func Defaults() Params {
	return Params{
		KeyMaxJumpHeight: DefaultJumpHeight,
		KeyAllowMovement: 1,
		KeyAllowJump:     1,
		KeyExploreRoom:   1,
		KeyHasObjective:  1,
	}
}

func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Flag reads a switch; values above one half are on.
func (p Params) Flag(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}
	return v > flagTrueThreshold
}

// Merge returns a copy of p with every key in over applied on top.
func (p Params) Merge(over Params) Params {
	out := make(Params, len(p)+len(over))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func (p Params) Keys() []string {
	out := make([]string, 0, len(p))
	for k := range p {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resolved is one episode's decoded view.
type Resolved struct {
	MaxJumpHeight float64
	AllowMovement bool
	AllowJump     bool
	Exploration   bool
	ObjectiveOn   bool
}

func (p Params) Resolve() Resolved {
	return Resolved{
		MaxJumpHeight: p.Get(KeyMaxJumpHeight, DefaultJumpHeight),
		AllowMovement: p.Flag(KeyAllowMovement, true),
		AllowJump:     p.Flag(KeyAllowJump, true),
		Exploration:   p.Flag(KeyExploreRoom, true),
		ObjectiveOn:   p.Flag(KeyHasObjective, true),
	}
}

// FromEnviron collects NAV_PARAM_<key>=<float> pairs. Malformed values are errors.
func FromEnviron(environ []string) (Params, error) {
	out := Params{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		name := strings.TrimPrefix(k, EnvPrefix)
		if name == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("curriculum: %s: %w", k, err)
		}
		out[name] = f
	}
	return out, nil
}

// FromEnvFile reads NAV_PARAM_ entries from a dotenv file, then lets the
// process environment override them. A missing file is not an error.
func FromEnvFile(path string) (Params, error) {
	out := Params{}
	if path != "" {
		m, err := godotenv.Read(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("curriculum: %s: %w", path, err)
		}
		env := make([]string, 0, len(m))
		for k, v := range m {
			env = append(env, k+"="+v)
		}
		if out, err = FromEnviron(env); err != nil {
			return nil, err
		}
	}
	proc, err := FromEnviron(os.Environ())
	if err != nil {
		return nil, err
	}
	return out.Merge(proc), nil
}
