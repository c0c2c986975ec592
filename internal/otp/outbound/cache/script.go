package cache

import "github.com/redis/go-redis/v9"

// All keys share the {otp} hash tag so the scripts stay on one cluster slot.
//
//	{otp}:seq                 INCR counter for record ids
//	{otp}:code:<id>           hash: identity, code, issued_at (unix nanos)
//	{otp}:identity:<identity> zset of ids scored by id
//	{otp}:issued              zset of ids scored by issued_at (unix millis)

var insertScript = redis.NewScript(`
local prefix = ARGV[5]
local id = redis.call('INCR', KEYS[1])
redis.call('HSET', prefix .. 'code:' .. id, 'identity', ARGV[1], 'code', ARGV[2], 'issued_at', ARGV[3])
redis.call('ZADD', prefix .. 'identity:' .. ARGV[1], id, id)
redis.call('ZADD', KEYS[2], ARGV[4], id)
return id
`)

var latestScript = redis.NewScript(`
local prefix = ARGV[2]
local idx = prefix .. 'identity:' .. ARGV[1]
while true do
	local ids = redis.call('ZREVRANGE', idx, 0, 0)
	if #ids == 0 then
		return false
	end
	local rec = redis.call('HMGET', prefix .. 'code:' .. ids[1], 'code', 'issued_at')
	if rec[1] then
		return {ids[1], rec[1], rec[2]}
	end
	redis.call('ZREM', idx, ids[1])
end
`)

var deleteScript = redis.NewScript(`
local prefix = ARGV[2]
local key = prefix .. 'code:' .. ARGV[1]
local identity = redis.call('HGET', key, 'identity')
if not identity then
	return 0
end
redis.call('DEL', key)
redis.call('ZREM', prefix .. 'identity:' .. identity, ARGV[1])
redis.call('ZREM', KEYS[1], ARGV[1])
return 1
`)

var sweepScript = redis.NewScript(`
local prefix = ARGV[3]
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
	local key = prefix .. 'code:' .. id
	local identity = redis.call('HGET', key, 'identity')
	if identity then
		redis.call('DEL', key)
		redis.call('ZREM', prefix .. 'identity:' .. identity, id)
	end
	redis.call('ZREM', KEYS[1], id)
end
return #ids
`)
