// Package objclient implements the object client (§4.5): placement
// resolution against the current OSDMap, an authenticated session per
// storage node, the submit/redirect request loop, admission-control
// throttling, and pool/list operations.
package objclient

import (
	"hash/crc32"

	"github.com/marmos91/radosclient/pkg/crush"
)

const component = "objclient"

// ObjectId names one object: the pool it lives in, its name, an
// optional locator key overriding which object the hash is computed
// over, an optional namespace, and the cached 32-bit hash (§3
// ObjectId).
type ObjectId struct {
	PoolID    int64
	Name      string
	Key       string
	Namespace string
	Hash      uint32
}

// computeHash derives the object's placement hash as CRC32C over name,
// a NUL byte, and key (key defaults to name when unset) (§4.5 step 2).
func computeHash(name, key string) uint32 {
	input := key
	if input == "" {
		input = name
	}
	return crc32.Checksum([]byte(name+"\x00"+input), crc32.MakeTable(crc32.Castagnoli))
}

// NewObjectId builds an ObjectId and computes its hash.
func NewObjectId(poolID int64, name, key, namespace string) ObjectId {
	return ObjectId{PoolID: poolID, Name: name, Key: key, Namespace: namespace, Hash: computeHash(name, key)}
}

// pgSeed derives the placement group seed from an object hash and a
// pool's pg count, mixing in the pool id when the pool has
// HashPSPool set so that different pools with colliding hashes don't
// collide on the same PG (§4.5 step 2).
func pgSeed(hash uint32, poolID int64, pgCount uint32, hashPSPool bool) uint32 {
	seed := hash % pgCount
	if hashPSPool {
		seed = mixPoolID(seed, poolID)
	}
	return seed
}

// mixPoolID folds a pool id into a pg seed via CRC32C, the same
// construction used to scatter otherwise-identical seeds across pools
// sharing a hash function.
func mixPoolID(seed uint32, poolID int64) uint32 {
	var buf [12]byte
	buf[0] = byte(seed)
	buf[1] = byte(seed >> 8)
	buf[2] = byte(seed >> 16)
	buf[3] = byte(seed >> 24)
	buf[4] = byte(poolID)
	buf[5] = byte(poolID >> 8)
	buf[6] = byte(poolID >> 16)
	buf[7] = byte(poolID >> 24)
	buf[8] = byte(poolID >> 32)
	buf[9] = byte(poolID >> 40)
	buf[10] = byte(poolID >> 48)
	buf[11] = byte(poolID >> 56)
	return crc32.Checksum(buf[:], crc32.MakeTable(crc32.Castagnoli))
}

// PlacementGroup returns the object's placement group id.
func (o ObjectId) PlacementGroup(pgCount uint32, hashPSPool bool) crush.PlacementGroupID {
	return crush.PlacementGroupID{PoolID: o.PoolID, Seed: pgSeed(o.Hash, o.PoolID, pgCount, hashPSPool)}
}

// SubOpKind enumerates the per-object-op kinds an Operation carries.
type SubOpKind uint8

const (
	SubOpRead SubOpKind = iota + 1
	SubOpWrite
	SubOpWriteFull
	SubOpStat
	SubOpDelete
	SubOpSparseRead
	SubOpList
)

// SubOp is one element of an Operation's ordered sub-op list:
// reads/writes carry an offset and payload (or length, for reads);
// stat/delete/list carry neither.
type SubOp struct {
	Kind   SubOpKind
	Offset uint64
	Data   []byte
	Length uint64
}

// cost estimates the throttle byte budget a sub-op consumes: the
// payload size for writes, a small fixed cost otherwise (§4.5
// submit pseudocode, §5 throttle).
func (s SubOp) cost() int64 {
	switch s.Kind {
	case SubOpWrite, SubOpWriteFull:
		return int64(len(s.Data))
	default:
		return 64
	}
}

// OpFlags mirrors the reference's read/write/ordered/redirect bits
// derived from an Operation's sub-op list and redirect state.
type OpFlags uint32

const (
	FlagRead OpFlags = 1 << iota
	FlagWrite
	FlagOrdered
	FlagRedirected
	FlagIgnoreCache
	FlagIgnoreOverlay
)

func flagsForSubOps(subOps []SubOp) OpFlags {
	var f OpFlags
	for _, s := range subOps {
		switch s.Kind {
		case SubOpRead, SubOpSparseRead, SubOpStat, SubOpList:
			f |= FlagRead
		case SubOpWrite, SubOpWriteFull, SubOpDelete:
			f |= FlagWrite
		}
	}
	if len(subOps) > 1 {
		f |= FlagOrdered
	}
	return f
}

// RequestID globally identifies one Operation: the requesting entity,
// a per-session transaction id, and the client's incarnation (§3,
// request ids never repeat within an incarnation).
type RequestID struct {
	Entity      string
	TID         uint64
	Incarnation uint64
}

// Operation is one object request in flight: target object, ordered
// sub-ops, the OSDMap epoch it was built against, and derived flags.
type Operation struct {
	ID      RequestID
	Object  ObjectId
	SubOps  []SubOp
	Epoch   uint32
	Flags   OpFlags
	Redirected bool
}

// Redirect retargets an in-flight Operation to a different pool,
// locator key, namespace, and/or name; a nonempty Name replaces the
// object name outright (§4.5 redirect application).
type Redirect struct {
	Pool      int64
	Key       string
	Namespace string
	Name      string
}

// SubOpResult is one sub-op's outcome: a return code and, for reads,
// the data returned.
type SubOpResult struct {
	Code int32
	Data []byte
}

// OperationResult is the decoded reply to an Operation: an overall
// code, per-sub-op results, the object's version after the op, and an
// optional redirect the caller must follow (§3 OperationResult).
type OperationResult struct {
	Code     int32
	SubOps   []SubOpResult
	Version  uint64
	Redirect *Redirect
}

// budget sums the throttle cost of every sub-op in ops.
func budget(ops []SubOp) int64 {
	var total int64
	for _, s := range ops {
		total += s.cost()
	}
	return total
}
