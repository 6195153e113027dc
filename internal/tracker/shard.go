package tracker

import "hash/fnv"

// Tracker state is striped across shards so concurrent message handlers
// contend per-identity, not globally.
const shardCount = 32

func shardIndex(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}
