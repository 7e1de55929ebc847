/*
Package dyncol implements dynamically typed containers: a growable List and
an insertion-ordered hash Map, both holding tagged Values.

We implement:

1. Values, a tagged union of null, bool, char, double, int, uint, size, string,
opaque payloads, and nested lists and maps.

2. Lists, with explicit capacity management (growth by 1.5x, shrinking once
a quarter full).

3. Maps, an open-addressed table with seeded hashing and an LCG probe, which
iterate in insertion order.

4. An ownership protocol deciding who frees what.

# Technical Details

**Ownership.**
A Value enters a container either by copy (the default constructors, CopyBytes,
CopyList, CopyMap, CopyOpaque) or by adoption (AdoptBytes, AdoptList, AdoptMap,
AdoptOpaque). Copied data is duplicated deeply; adopted data is taken as is and
belongs to the container from then on. Get returns a borrowed view. Pop hands an
owned value back to the caller, who must call Release on it.

Adopted lists and maps must be roots: a container already nested elsewhere, or
one that would end up inside itself, is rejected.

**Opaque payloads.**
An opaque value carries an arbitrary payload and an optional Destructor, which
runs exactly once when the last owner lets go. Deep copies clone []byte and
Cloner payloads; any other payload is shared by reference counting.

**Hashing.**
Each map draws its own 32-bit seed from the Context. A key hashes to
h = Hasher.Hash32(seed, key); the probe sequence is
x0 = lcg(h) mod cap, x(n+1) = lcg(xn) mod cap, where
lcg(x) = 6364136223846793005*x + 1. With a power-of-two cap this visits every
bucket once. Removed entries leave tombstones. The table doubles when an insert
would bring the load to 0.8, and rehashes in place when tombstones would.

**Diagnostics.**
Caller misuse (bad index, missing key, kind mismatch, use after Free) is logged
at WARN through the Context's slog.Logger and returned as an *AccessError
wrapping one of the Err* sentinels. Internal failures are logged at ERROR.
Weak typed getters (List.Int, Map.Str, ...) log and return zero values; Get
plus Value.AsInt and friends is the strict path.

**Concurrency.**
Containers are not safe for concurrent use. A Context is.

Subpackages: codec (MessagePack, JSON and YAML), rowstore (row persistence in
Bolt), httpval (HTTP responses as Values), strutil (string helpers over Lists).
*/
package dyncol
