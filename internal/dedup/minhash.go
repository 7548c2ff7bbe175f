package dedup

import (
	"context"
	"math"
	"math/bits"
	"math/rand/v2"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ThakiCloud/vllm-eval/internal/dataset"
	"github.com/ThakiCloud/vllm-eval/internal/runconfig"
)

// mersennePrime is 2^61-1, the modulus of the universal hash family.
const mersennePrime uint64 = (1 << 61) - 1

const emptySlot uint64 = math.MaxUint64

// Signature holds one minimum per hash function. A signature whose every
// slot is emptySlot belongs to a record with no shingles.
type Signature []uint64

func (signature Signature) IsEmpty() bool {
	for _, value := range signature {
		if value != emptySlot {
			return false
		}
	}
	return true
}

// EstimateJaccard is the fraction of matching slots between two signatures
// of equal length.
func EstimateJaccard(left Signature, right Signature) float64 {
	if len(left) == 0 || len(left) != len(right) {
		return 0
	}
	matches := 0
	for index := range left {
		if left[index] == right[index] {
			matches++
		}
	}
	return float64(matches) / float64(len(left))
}

// MinHasher computes signatures with N functions (a_i*h + b_i) mod p whose
// coefficients are drawn once from the run seed, so every signature of a run
// is comparable with every other.
type MinHasher struct {
	mode         string
	shingleSize  int
	coefficientA []uint64
	coefficientB []uint64
}

func NewMinHasher(config runconfig.DedupRunConfig) *MinHasher {
	random := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))
	hasher := &MinHasher{
		mode:         config.ShingleMode,
		shingleSize:  config.ShingleSize,
		coefficientA: make([]uint64, config.SignatureSize),
		coefficientB: make([]uint64, config.SignatureSize),
	}
	for index := 0; index < config.SignatureSize; index++ {
		hasher.coefficientA[index] = 1 + random.Uint64N(mersennePrime-1)
		hasher.coefficientB[index] = random.Uint64N(mersennePrime)
	}
	return hasher
}

func (hasher *MinHasher) Size() int {
	return len(hasher.coefficientA)
}

// Shingles returns the base hash of every k-gram of text. Text shorter than
// k yields a single shingle; empty text yields none.
func (hasher *MinHasher) Shingles(text string) []uint64 {
	if hasher.mode == runconfig.ShingleModeToken {
		tokens := strings.Fields(text)
		return hashWindows(len(tokens), hasher.shingleSize, func(start int, end int) string {
			return strings.Join(tokens[start:end], " ")
		})
	}
	offsets := make([]int, 0, len(text)+1)
	for offset := range text {
		offsets = append(offsets, offset)
	}
	offsets = append(offsets, len(text))
	return hashWindows(len(offsets)-1, hasher.shingleSize, func(start int, end int) string {
		return text[offsets[start]:offsets[end]]
	})
}

func hashWindows(units int, size int, window func(start int, end int) string) []uint64 {
	if units == 0 {
		return nil
	}
	if units < size {
		size = units
	}
	shingles := make([]uint64, 0, units-size+1)
	for start := 0; start+size <= units; start++ {
		shingles = append(shingles, reduceMersenne(xxhash.Sum64String(window(start, start+size))))
	}
	return shingles
}

func (hasher *MinHasher) Signature(text string) Signature {
	signature := make(Signature, hasher.Size())
	for index := range signature {
		signature[index] = emptySlot
	}
	for _, shingle := range hasher.Shingles(text) {
		for index := range signature {
			value := hasher.permute(index, shingle)
			if value < signature[index] {
				signature[index] = value
			}
		}
	}
	return signature
}

func (hasher *MinHasher) permute(index int, value uint64) uint64 {
	high, low := bits.Mul64(hasher.coefficientA[index], value)
	result := bits.Rem64(high, low, mersennePrime) + hasher.coefficientB[index]
	if result >= mersennePrime {
		result -= mersennePrime
	}
	return result
}

func reduceMersenne(value uint64) uint64 {
	reduced := (value & mersennePrime) + (value >> 61)
	if reduced >= mersennePrime {
		reduced -= mersennePrime
	}
	return reduced
}

// SignRecords computes a signature for every record in parallel. The result
// is aligned with records.
func SignRecords(ctx context.Context, hasher *MinHasher, records []dataset.Record, workers int) ([]Signature, error) {
	signatures := make([]Signature, len(records))
	err := ForEachShard(ctx, len(records), workers, func(ctx context.Context, shard Shard) error {
		for position := shard.Start; position < shard.End; position++ {
			if position%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			signatures[position] = hasher.Signature(records[position].IdentityText())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signatures, nil
}
