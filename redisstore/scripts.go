package redisstore

import "github.com/redis/go-redis/v9"

// addScript stores a task record and appends its id to the pickup order unless
// it is already there. Re-admission clears the completed flag.
var addScript = redis.NewScript(
	// language=Lua
	`
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
	local seq = redis.call('INCR', KEYS[3])
	redis.call('ZADD', KEYS[2], 'NX', seq, ARGV[1])
	redis.call('SREM', KEYS[4], ARGV[1])
	return 1
	`,
)

// assignScript leases a task only if it has no active assignment (HSETNX).
// Returns 1 on success, 0 on conflict, -1 when the task is unknown and -2 when
// the task is completed and ARGV[5] asks for pending tasks only.
var assignScript = redis.NewScript(
	// language=Lua
	`
	if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then return -1 end
	if ARGV[5] == '1' and redis.call('SISMEMBER', KEYS[5], ARGV[1]) == 1 then return -2 end
	if redis.call('HSETNX', KEYS[2], ARGV[1], ARGV[2]) == 0 then return 0 end
	redis.call('HSET', KEYS[3], ARGV[2], ARGV[3])
	if tonumber(ARGV[4]) > 0 then
	  redis.call('ZADD', KEYS[4], ARGV[4], ARGV[1])
	end
	return 1
	`,
)

// resolveScript removes the lease for a task if ARGV[2] is still its active
// assignment id, marking the task completed when ARGV[3] == '1'.
var resolveScript = redis.NewScript(
	// language=Lua
	`
	local cur = redis.call('HGET', KEYS[1], ARGV[1])
	if cur ~= ARGV[2] then return 0 end
	redis.call('HDEL', KEYS[1], ARGV[1])
	redis.call('HDEL', KEYS[2], ARGV[2])
	redis.call('ZREM', KEYS[3], ARGV[1])
	if ARGV[3] == '1' then
	  redis.call('SADD', KEYS[4], ARGV[1])
	end
	return 1
	`,
)

// reclaimOneScript atomically drops one expired lease, returning the task to pending.
var reclaimOneScript = redis.NewScript(
	// language=Lua
	`
	local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
	if #items == 0 then return false end
	local tid = items[1]
	redis.call('ZREM', KEYS[1], tid)
	local aid = redis.call('HGET', KEYS[2], tid)
	if aid then
	  redis.call('HDEL', KEYS[2], tid)
	  redis.call('HDEL', KEYS[3], aid)
	end
	return tid
	`,
)
