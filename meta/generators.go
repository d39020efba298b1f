package meta

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Value generation for `gen:`-tagged properties. When Reflector.New
// instantiates a type, every property tagged `gen:<name>` is populated by
// the registered generator of that name. The stock generators cover the
// common identifier schemes; RegisterGenerator extends the set.

// IDGenerator produces one value per call. Generate may be called
// concurrently from New on different goroutines; implementations carrying
// state guard it themselves.
type IDGenerator interface {
	Generate() (any, error)
	Type() string
}

// UUIDGenerator produces random (v4) UUIDs. The value is a uuid.UUID;
// string-typed properties receive its canonical rendering through the
// setter's Stringer coercion.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() (any, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("uuid: %w", err)
	}
	return id, nil
}

func (UUIDGenerator) Type() string { return "uuid" }

// ULIDGenerator produces lexicographically sortable ULIDs. The monotonic
// entropy source is shared, so the generator serializes access to it.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ULIDGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return nil, fmt.Errorf("ulid: %w", err)
	}
	return id, nil
}

func (g *ULIDGenerator) Type() string { return "ulid" }

// SnowflakeGenerator produces time-ordered int64 IDs laid out as
// 41 bits of milliseconds since the epoch, 10 bits of machine ID and a
// 12-bit per-millisecond sequence. The sequence state is mutex-guarded;
// exhausting it within one millisecond spins until the clock advances.
type SnowflakeGenerator struct {
	mu        sync.Mutex
	machineID uint64
	sequence  uint64
	lastTime  uint64
	epoch     uint64
}

// snowflakeEpoch is 2023-01-01T00:00:00Z in Unix milliseconds.
var snowflakeEpoch = uint64(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())

func NewSnowflakeGenerator(machineID uint64) *SnowflakeGenerator {
	return &SnowflakeGenerator{
		machineID: machineID & 0x3FF,
		epoch:     snowflakeEpoch,
	}
}

func (g *SnowflakeGenerator) Generate() (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := uint64(time.Now().UnixMilli())
	if now < g.lastTime {
		return nil, fmt.Errorf("snowflake: clock moved backwards")
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & 0xFFF
		if g.sequence == 0 {
			for now <= g.lastTime {
				now = uint64(time.Now().UnixMilli())
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	return int64((now-g.epoch)<<22 | g.machineID<<12 | g.sequence), nil
}

func (g *SnowflakeGenerator) Type() string { return "snowflake" }

const nanoidAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NanoIDGenerator produces URL-safe random strings. The default alphabet
// has 64 symbols, so the modulo mapping from random bytes is unbiased.
type NanoIDGenerator struct {
	size     int
	alphabet string
}

func NewNanoIDGenerator(size int, alphabet string) *NanoIDGenerator {
	if size <= 0 {
		size = 21
	}
	if alphabet == "" {
		alphabet = nanoidAlphabet
	}
	return &NanoIDGenerator{size: size, alphabet: alphabet}
}

func (g *NanoIDGenerator) Generate() (any, error) {
	raw := make([]byte, g.size)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("nanoid: %w", err)
	}
	id := make([]byte, g.size)
	for i, b := range raw {
		id[i] = g.alphabet[int(b)%len(g.alphabet)]
	}
	return string(id), nil
}

func (g *NanoIDGenerator) Type() string { return "nanoid" }

// GeneratorRegistry maps `gen:` tag names to generators. The default
// registry backs tag resolution during build; a custom registry is only
// needed when isolating generator state, e.g. per-node machine IDs.
type GeneratorRegistry struct {
	mu         sync.RWMutex
	generators map[string]IDGenerator
}

var defaultGenerators = NewGeneratorRegistry()

func NewGeneratorRegistry() *GeneratorRegistry {
	r := &GeneratorRegistry{generators: make(map[string]IDGenerator)}
	for _, gen := range []IDGenerator{
		UUIDGenerator{},
		NewULIDGenerator(),
		NewSnowflakeGenerator(1),
		NewNanoIDGenerator(21, ""),
	} {
		r.Register(gen.Type(), gen)
	}
	return r
}

func (r *GeneratorRegistry) Register(name string, gen IDGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = gen
}

func (r *GeneratorRegistry) Get(name string) (IDGenerator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gen, ok := r.generators[name]
	return gen, ok
}

func (r *GeneratorRegistry) Generate(name string) (any, error) {
	gen, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown generator %q", name)
	}
	return gen.Generate()
}

// RegisterGenerator adds a generator to the default registry under name.
// Properties tagged `gen:<name>` on subsequently described types use it.
func RegisterGenerator(name string, gen IDGenerator) {
	defaultGenerators.Register(name, gen)
}

// GenerateID runs a default-registry generator by name.
func GenerateID(name string) (any, error) {
	return defaultGenerators.Generate(name)
}
