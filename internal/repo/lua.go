package repo

import (
	"github.com/redis/go-redis/v9"
)

// ScriptAdmission implements the rolling-window admission check shared by
// multiple client instances. Unlike a plain sliding-window counter it also
// enforces a minimum gap between admitted starts, and it records nothing
// when the call is rejected, so rejected probes can be repeated freely.
var ScriptAdmission = redis.NewScript(`
-- KEYS[1] = window zset
-- KEYS[2] = last admitted start (ms)
-- ARGV[1] = now_ms
-- ARGV[2] = window_ms
-- ARGV[3] = capacity
-- ARGV[4] = spacing_ms
-- ARGV[5] = unique member for this start

local now     = tonumber(ARGV[1])
local window  = tonumber(ARGV[2])
local cap     = tonumber(ARGV[3])
local spacing = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, now - window)

local cnt = redis.call('ZCARD', KEYS[1])
if cnt >= cap then
  return {0, cnt}
end

local last = tonumber(redis.call('GET', KEYS[2]) or 0)
if last > 0 and now - last < spacing then
  return {0, cnt}
end

redis.call('ZADD', KEYS[1], now, ARGV[5])
redis.call('PEXPIRE', KEYS[1], window + 1000)
redis.call('SET', KEYS[2], now, 'PX', window + 1000)

return {1, cnt + 1}
`)
