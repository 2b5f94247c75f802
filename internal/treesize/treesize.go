// Package treesize maps the fixed set of supported concurrent Merkle tree
// shapes to their exact on-chain account sizes.
package treesize

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	clierr "github.com/ggonzalez94/arborist/internal/errors"
)

const (
	// HeaderSize is the serialized v1 tree header prepended to the tree struct.
	HeaderSize = 56
	// NodeSize is the byte width of a single tree node.
	NodeSize = 32
)

// The account-compression program only instantiates the tree for this fixed
// set of (depth, buffer size) pairs; anything else is rejected on-chain.
var validPairs = [][2]uint16{
	{3, 8},
	{5, 8},
	{14, 64}, {14, 256}, {14, 1024}, {14, 2048},
	{15, 64},
	{16, 64},
	{17, 64},
	{18, 64},
	{19, 64},
	{20, 64}, {20, 256}, {20, 1024}, {20, 2048},
	{24, 64}, {24, 256}, {24, 512}, {24, 1024}, {24, 2048},
	{26, 512}, {26, 1024}, {26, 2048},
	{30, 512}, {30, 1024}, {30, 2048},
}

type sizeTable struct {
	sizes  map[uint8]map[uint16]uint64
	depths []uint8
}

// structSize reproduces the in-memory layout of the upstream tree struct:
// three u64 counters, one changelog entry per buffer slot (root + path +
// index word), and the rightmost proof path.
func structSize(depth uint8, bufferSize uint16) uint64 {
	d := uint64(depth)
	b := uint64(bufferSize)
	changelog := NodeSize + NodeSize*d + 8
	path := NodeSize*d + NodeSize + 8
	return 24 + b*changelog + path
}

var table = sync.OnceValue(func() *sizeTable {
	t := &sizeTable{sizes: make(map[uint8]map[uint16]uint64)}
	for _, pair := range validPairs {
		depth := uint8(pair[0])
		buffer := pair[1]
		byDepth, ok := t.sizes[depth]
		if !ok {
			byDepth = make(map[uint16]uint64)
			t.sizes[depth] = byDepth
			t.depths = append(t.depths, depth)
		}
		byDepth[buffer] = structSize(depth, buffer)
	}
	sort.Slice(t.depths, func(i, j int) bool { return t.depths[i] < t.depths[j] })
	return t
})

// Lookup returns the tree struct size in bytes for a supported
// (depth, buffer size) pair. On a miss the error suggests the nearest valid
// depths, or the valid buffer sizes for the given depth.
func Lookup(depth uint8, bufferSize uint16) (uint64, error) {
	t := table()
	byDepth, ok := t.sizes[depth]
	if !ok {
		return 0, clierr.New(clierr.KindCapacity, unknownDepthMessage(t, depth))
	}
	size, ok := byDepth[bufferSize]
	if !ok {
		return 0, clierr.New(clierr.KindCapacity, unknownBufferMessage(byDepth, depth, bufferSize))
	}
	return size, nil
}

// CanopySize returns the bytes needed to cache the top canopyDepth levels of
// the tree: (2^(canopyDepth+1) - 2) nodes.
func CanopySize(canopyDepth uint8) (uint64, error) {
	if canopyDepth >= 58 {
		return 0, clierr.Newf(clierr.KindCapacity, "canopy depth %d overflows 64-bit size", canopyDepth)
	}
	return (uint64(2)<<canopyDepth - 2) * NodeSize, nil
}

// Total returns the full account allocation: header + tree struct + canopy.
func Total(depth uint8, bufferSize uint16, canopyDepth uint8) (uint64, error) {
	size, err := Lookup(depth, bufferSize)
	if err != nil {
		return 0, err
	}
	canopy, err := CanopySize(canopyDepth)
	if err != nil {
		return 0, err
	}
	total := HeaderSize + size
	if total+canopy < total {
		return 0, clierr.Newf(clierr.KindCapacity, "tree size for depth %d overflows 64-bit size", depth)
	}
	return total + canopy, nil
}

func unknownDepthMessage(t *sizeTable, depth uint8) string {
	var below, above *uint8
	for i := range t.depths {
		d := t.depths[i]
		if d < depth {
			below = &t.depths[i]
		}
		if d > depth {
			above = &t.depths[i]
			break
		}
	}
	switch {
	case below != nil && above != nil:
		return fmt.Sprintf("unsupported tree depth %d; nearest valid depths are %d and %d", depth, *below, *above)
	case below != nil:
		return fmt.Sprintf("unsupported tree depth %d; nearest valid depth is %d", depth, *below)
	default:
		return fmt.Sprintf("unsupported tree depth %d; nearest valid depth is %d", depth, *above)
	}
}

func unknownBufferMessage(byDepth map[uint16]uint64, depth uint8, bufferSize uint16) string {
	buffers := make([]int, 0, len(byDepth))
	for b := range byDepth {
		buffers = append(buffers, int(b))
	}
	sort.Ints(buffers)
	parts := make([]string, len(buffers))
	for i, b := range buffers {
		parts[i] = fmt.Sprintf("%d", b)
	}
	return fmt.Sprintf("unsupported buffer size %d for depth %d; valid buffer sizes are %s", bufferSize, depth, strings.Join(parts, ", "))
}
